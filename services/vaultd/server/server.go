package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pangivault/core"
	"pangivault/crypto"
	"pangivault/native/common"
	"pangivault/native/vault"
	"pangivault/observability"
	"pangivault/services/vaultd/audit"
)

const moduleName = "vaultd"

// Ledger is the subset of core.Ledger served over HTTP.
type Ledger interface {
	CreateVault(ctx context.Context, authority, tokenMint, creatorMint crypto.PublicKey, rewardRateBps uint16, lockDuration int64) (*vault.Vault, error)
	DeactivateVault(ctx context.Context, caller, vaultAddr crypto.PublicKey) (*vault.Vault, error)
	FundVault(ctx context.Context, funder, vaultAddr crypto.PublicKey, amount uint64) (*vault.FundReceipt, error)
	Deposit(ctx context.Context, caller, vaultAddr crypto.PublicKey, amount uint64) (*vault.DepositReceipt, error)
	Withdraw(ctx context.Context, caller, vaultAddr crypto.PublicKey, amount uint64) (*vault.WithdrawReceipt, error)
	Claim(ctx context.Context, caller, vaultAddr crypto.PublicKey) (*vault.ClaimReceipt, error)
	CheckCustodyAccount(vaultAddr, account crypto.PublicKey) error
	Vault(ctx context.Context, vaultAddr crypto.PublicKey) (*vault.Vault, error)
	Vaults() ([]crypto.PublicKey, error)
	Stake(ctx context.Context, vaultAddr, holder crypto.PublicKey) (*vault.StakeRecord, error)
	Preview(ctx context.Context, vaultAddr, holder crypto.PublicKey) (*vault.Preview, error)
	Reconcile(ctx context.Context, vaultAddr crypto.PublicKey) (*core.Reconciliation, error)
	Balance(owner, mint crypto.PublicKey) (uint64, error)
}

var _ Ledger = (*core.Ledger)(nil)

// AuditLog is the hash chained event log checked on demand.
type AuditLog interface {
	Check(ctx context.Context) (*audit.Verification, error)
}

var _ AuditLog = (*audit.Store)(nil)

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress string
	RateLimit     RateLimit
	Quota         common.Quota
}

// Server exposes the vault ledger over HTTP.
type Server struct {
	cfg     Config
	ledger  Ledger
	auth    *Authenticator
	limiter *RateLimiter
	quotas  *quotaTracker
	audit   AuditLog
	logger  *slog.Logger
}

// New constructs a new HTTP server.
func New(cfg Config, ledger Ledger, auth *Authenticator, logger *slog.Logger) (*Server, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if auth == nil {
		return nil, fmt.Errorf("authenticator required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		ledger:  ledger,
		auth:    auth,
		limiter: NewRateLimiter(cfg.RateLimit),
		quotas:  newQuotaTracker(cfg.Quota),
		logger:  logger.With(slog.String("component", moduleName)),
	}, nil
}

// SetAuditLog exposes log verification under /v1/audit/verify.
func (s *Server) SetAuditLog(log AuditLog) { s.audit = log }

// Handler builds the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(s.limiter.Middleware)
		v1.Use(s.observe)

		v1.Get("/vaults", s.handleListVaults)
		v1.Get("/vaults/{vault}", s.handleGetVault)
		v1.Get("/vaults/{vault}/reconcile", s.handleReconcile)
		v1.Get("/vaults/{vault}/stakes/{holder}", s.handleGetStake)
		v1.Get("/vaults/{vault}/stakes/{holder}/preview", s.handlePreview)
		v1.Get("/accounts/{owner}/balances/{mint}", s.handleBalance)

		v1.Group(func(authed chi.Router) {
			authed.Use(s.auth.Middleware)
			authed.Post("/vaults", s.handleCreateVault)
			authed.Post("/vaults/{vault}/deactivate", s.handleDeactivate)
			authed.Post("/vaults/{vault}/fund", s.handleFund)
			authed.Post("/vaults/{vault}/deposit", s.handleDeposit)
			authed.Post("/vaults/{vault}/withdraw", s.handleWithdraw)
			authed.Post("/vaults/{vault}/claim", s.handleClaim)
			authed.Get("/audit/verify", s.handleAuditVerify)
		})
	})

	return otelhttp.NewHandler(r, moduleName)
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server not configured")
	}
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", slog.String("address", s.cfg.ListenAddress))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.Method + " " + chi.RouteContext(r.Context()).RoutePattern()
		observability.ModuleMetrics().Observe(moduleName, route, rec.status, time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
