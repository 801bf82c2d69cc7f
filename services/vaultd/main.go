package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	ledgerconfig "pangivault/config"
	"pangivault/core"
	"pangivault/core/events"
	"pangivault/native/common"
	"pangivault/observability"
	"pangivault/observability/logging"
	telemetry "pangivault/observability/otel"
	"pangivault/services/vaultd/audit"
	"pangivault/services/vaultd/config"
	"pangivault/services/vaultd/server"
	"pangivault/storage"
)

func main() {
	var (
		cfgPath     string
		verifyAudit bool
	)
	flag.StringVar(&cfgPath, "config", "services/vaultd/config.yaml", "path to vaultd configuration file")
	flag.BoolVar(&verifyAudit, "verify-audit", false, "verify the audit hash chain before serving and refuse to start if it is broken")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("PANGIVAULT_ENV"))
	logging.Setup("vaultd", env)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("vaultd: load config: %v", err)
	}

	var fileOpts *logging.FileOptions
	if path := strings.TrimSpace(cfg.Log.File); path != "" {
		fileOpts = &logging.FileOptions{
			Path:       path,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   true,
		}
	}
	logger, logCloser := logging.SetupWithOptions("vaultd", env, logging.Options{
		Level: logging.ParseLevel(cfg.Log.Level),
		File:  fileOpts,
	})
	defer logCloser.Close()

	if cfg.Telemetry.Enabled {
		telemetryCfg := telemetry.ConfigFromEnv("vaultd", env)
		if cfg.Telemetry.SampleRatio > 0 {
			telemetryCfg.SampleRatio = cfg.Telemetry.SampleRatio
		}
		shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryCfg)
		if err != nil {
			log.Fatalf("init telemetry: %v", err)
		}
		defer func() {
			_ = shutdownTelemetry(context.Background())
		}()
	}

	ledgerCfg, err := ledgerconfig.Load(cfg.LedgerConfig)
	if err != nil {
		log.Fatalf("vaultd: load ledger config: %v", err)
	}

	auditDB, err := audit.Open(cfg.Audit.Driver, cfg.Audit.DSN)
	if err != nil {
		log.Fatalf("vaultd: %v", err)
	}
	auditStore, err := audit.NewStore(auditDB)
	if err != nil {
		log.Fatalf("vaultd: %v", err)
	}
	logger.Info("audit store ready",
		slog.String("driver", cfg.Audit.Driver),
		logging.MaskField("dsn", cfg.Audit.DSN))
	if verifyAudit {
		report, err := auditStore.Check(context.Background())
		if err != nil {
			log.Fatalf("vaultd: audit verification: %v", err)
		}
		logger.Info("audit chain verified",
			slog.Uint64("records", report.Records),
			slog.String("head", report.Head))
	}
	sink := audit.NewSink(auditStore, cfg.Audit.Buffer, logger)
	defer sink.Close()

	db, err := storage.Open(ledgerCfg.Storage, ledgerCfg.StoragePath())
	if err != nil {
		log.Fatalf("vaultd: open storage: %v", err)
	}
	defer db.Close()

	ledger := core.NewLedger(db, events.Fanout{sink, observability.Events()})
	if err := ledger.SetParams(ledgerCfg.Vault); err != nil {
		log.Fatalf("vaultd: vault params: %v", err)
	}
	ledger.SetPauses(ledgerCfg.Pauses)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	allocations, err := ledgerCfg.Allocations()
	if err != nil {
		log.Fatalf("vaultd: genesis: %v", err)
	}
	applied, err := ledger.ApplyGenesis(ctx, allocations)
	if err != nil {
		log.Fatalf("vaultd: apply genesis: %v", err)
	}
	if applied {
		logger.Info("genesis balances credited", slog.Int("allocations", len(allocations)))
	}

	auth, err := server.NewAuthenticator(server.AuthConfig{
		HMACSecret: cfg.Auth.Secret(),
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ClockSkew:  cfg.Auth.ClockSkew.Duration,
	}, logger)
	if err != nil {
		log.Fatalf("vaultd: configure auth: %v", err)
	}

	srv, err := server.New(server.Config{
		ListenAddress: cfg.ListenAddress,
		RateLimit: server.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
		Quota: common.Quota{
			MaxRequestsPerEpoch: cfg.Quota.MaxRequests,
			MaxAmountPerEpoch:   cfg.Quota.MaxAmount,
			EpochSeconds:        uint32(cfg.Quota.Window.Seconds()),
		},
	}, ledger, auth, logger)
	if err != nil {
		log.Fatalf("vaultd: server: %v", err)
	}
	srv.SetAuditLog(auditStore)

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("vaultd: server error: %v", err)
	}
}
