package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"pangivault/core/events"
)

func TestEventsCountsByType(t *testing.T) {
	reg := Events()
	before := testutil.ToFloat64(reg.emitted.WithLabelValues(events.TypeVaultFunded))
	events.Fanout{reg}.Emit(events.VaultFunded{})
	reg.RecordEvent("  ")
	require.Equal(t, before+1, testutil.ToFloat64(reg.emitted.WithLabelValues(events.TypeVaultFunded)))
	require.GreaterOrEqual(t, testutil.ToFloat64(reg.emitted.WithLabelValues("unknown")), float64(1))
}

func TestModuleMetricsObserve(t *testing.T) {
	m := ModuleMetrics()
	m.Observe("vaultd", "POST /v1/vaults", 409, time.Millisecond)
	m.RecordThrottle("vaultd", "")
	require.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues("vaultd", "POST /v1/vaults", "409")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.throttles.WithLabelValues("vaultd", "unspecified")))
}
