package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics tracks ledger activity for the staking vaults.
type VaultMetrics struct {
	operations     *prometheus.CounterVec
	failures       *prometheus.CounterVec
	penalties      prometheus.Counter
	rewardsClaimed prometheus.Counter
	totalStaked    *prometheus.GaugeVec
	lockWait       prometheus.Histogram
	auditDropped   prometheus.Counter
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the lazily registered vault metrics.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_operations_total",
				Help: "Count of ledger operations by operation and outcome.",
			}, []string{"operation", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_errors_total",
				Help: "Count of rejected ledger operations by operation and error kind.",
			}, []string{"operation", "kind"}),
			penalties: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_penalties_total",
				Help: "Cumulative reward forfeited to vault pools by early exits.",
			}),
			rewardsClaimed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_rewards_claimed_total",
				Help: "Cumulative rewards paid to holders.",
			}),
			totalStaked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "vault_total_staked",
				Help: "Principal currently locked per vault.",
			}, []string{"vault"}),
			lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "vault_lock_wait_seconds",
				Help:    "Time units of work spent waiting for record locks.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			}),
			auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_audit_dropped_total",
				Help: "Events the audit sink failed to persist.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.operations,
			vaultRegistry.failures,
			vaultRegistry.penalties,
			vaultRegistry.rewardsClaimed,
			vaultRegistry.totalStaked,
			vaultRegistry.lockWait,
			vaultRegistry.auditDropped,
		)
	})
	return vaultRegistry
}

// ObserveOperation records the outcome of a ledger operation. An empty kind
// marks success.
func (m *VaultMetrics) ObserveOperation(operation, kind string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	if kind == "" {
		m.operations.WithLabelValues(operation, "success").Inc()
		return
	}
	m.operations.WithLabelValues(operation, "error").Inc()
	m.failures.WithLabelValues(operation, kind).Inc()
}

func (m *VaultMetrics) AddPenalty(amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.penalties.Add(float64(amount))
}

func (m *VaultMetrics) AddRewardsClaimed(amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.rewardsClaimed.Add(float64(amount))
}

func (m *VaultMetrics) SetTotalStaked(vault string, amount uint64) {
	if m == nil {
		return
	}
	m.totalStaked.WithLabelValues(vault).Set(float64(amount))
}

func (m *VaultMetrics) ObserveLockWait(seconds float64) {
	if m == nil {
		return
	}
	m.lockWait.Observe(seconds)
}

func (m *VaultMetrics) IncAuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}
