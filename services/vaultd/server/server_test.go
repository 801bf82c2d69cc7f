package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"pangivault/core"
	"pangivault/core/events"
	"pangivault/crypto"
	"pangivault/native/common"
	"pangivault/core/types"
	"pangivault/native/vault"
	"pangivault/observability/logging"
	"pangivault/services/vaultd/audit"
	"pangivault/storage"
)

const testSecret = "vaultd-test-secret"

type harness struct {
	t         *testing.T
	handler   http.Handler
	server    *Server
	ledger    *core.Ledger
	clock     *atomic.Int64
	authority crypto.PublicKey
	token     crypto.PublicKey
	creator   crypto.PublicKey
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	ledger := core.NewLedger(storage.NewMemDB(), events.NoopEmitter{})
	clock := &atomic.Int64{}
	clock.Store(1_700_000_000)
	ledger.SetNowFunc(clock.Load)

	h := &harness{
		t:         t,
		ledger:    ledger,
		clock:     clock,
		authority: crypto.DeriveAddress([]byte("authority")),
		token:     crypto.DeriveAddress([]byte("token-mint")),
		creator:   crypto.DeriveAddress([]byte("creator-mint")),
	}
	require.NoError(t, ledger.Mint(context.Background(), h.authority, h.token, 10_000_000_000))

	auth, err := NewAuthenticator(AuthConfig{HMACSecret: testSecret}, nil)
	require.NoError(t, err)
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit = RateLimit{RequestsPerMinute: 6000, Burst: 1000}
	}
	srv, err := New(cfg, ledger, auth, nil)
	require.NoError(t, err)
	h.server = srv
	h.handler = srv.Handler()
	return h
}

func (h *harness) do(method, path string, as *crypto.PublicKey, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "10.0.0.1:5555"
	if as != nil {
		token, err := IssueToken(testSecret, *as, time.Hour)
		require.NoError(h.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (h *harness) createVault(rate uint16, lock int64) vaultView {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/v1/vaults", &h.authority, map[string]interface{}{
		"token_mint":      h.token,
		"creator_mint":    h.creator,
		"reward_rate_bps": rate,
		"lock_duration":   lock,
	})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[vaultView](h.t, rec)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, Config{})
	rec := h.do(http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMutationsRequireBearerToken(t *testing.T) {
	h := newHarness(t, Config{})
	rec := h.do(http.MethodPost, "/v1/vaults", nil, map[string]interface{}{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/vaults", nil)
	forged, err := IssueToken("other-secret", h.authority, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+forged)
	out := httptest.NewRecorder()
	h.handler.ServeHTTP(out, req)
	require.Equal(t, http.StatusUnauthorized, out.Code)
}

func TestVaultLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t, Config{})
	created := h.createVault(1000, int64(vault.SecondsPerYear))
	require.Equal(t, vault.VaultAddress(h.token, h.creator), created.Address)
	require.True(t, created.IsActive)
	path := "/v1/vaults/" + created.Address.String()

	rec := h.do(http.MethodPost, path+"/fund", &h.authority, map[string]string{"amount": "1000000000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, path+"/deposit", &h.authority, map[string]string{"amount": "1000000000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	deposit := decode[depositView](t, rec)
	require.Equal(t, uint64(1_000_000_000), deposit.Stake.Amount)
	require.Equal(t, uint64(1_000_000_000), deposit.VaultTotal)

	rec = h.do(http.MethodPost, path+"/claim", &h.authority, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decode[errorBody](t, rec)
	require.Equal(t, "StillLocked", body.Error.Code)
	require.Equal(t, "temporal", body.Error.Kind)

	h.clock.Add(int64(vault.SecondsPerYear))

	rec = h.do(http.MethodGet, path+"/stakes/"+h.authority.String()+"/preview", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decode[previewView](t, rec)
	require.Equal(t, string(vault.PhaseUnlockable), preview.Phase)
	require.Equal(t, uint64(100_000_000), preview.PendingRewards)

	rec = h.do(http.MethodPost, path+"/claim", &h.authority, map[string]interface{}{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	claim := decode[claimView](t, rec)
	require.Equal(t, uint64(100_000_000), claim.Amount)

	rec = h.do(http.MethodPost, path+"/withdraw", &h.authority, map[string]string{"amount": "1000000000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	withdraw := decode[withdrawView](t, rec)
	require.False(t, withdraw.EarlyUnlock)
	require.Zero(t, withdraw.RemainingStake)

	rec = h.do(http.MethodGet, "/v1/accounts/"+h.authority.String()+"/balances/"+h.token.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decode[balanceView](t, rec)
	require.Equal(t, uint64(10_000_000_000-1_000_000_000+100_000_000), balance.Balance)

	rec = h.do(http.MethodGet, path+"/reconcile", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decode[reconcileView](t, rec).Balanced)

	rec = h.do(http.MethodGet, "/v1/vaults", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), created.Address.String())
}

func TestErrorKindsMapToStatuses(t *testing.T) {
	h := newHarness(t, Config{})
	rec := h.do(http.MethodPost, "/v1/vaults", &h.authority, map[string]interface{}{
		"token_mint":      h.token,
		"creator_mint":    h.creator,
		"reward_rate_bps": 20000,
		"lock_duration":   3600,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "RewardRateTooHigh", decode[errorBody](t, rec).Error.Code)

	created := h.createVault(500, 3600)
	rec = h.do(http.MethodPost, "/v1/vaults", &h.authority, map[string]interface{}{
		"token_mint":      h.token,
		"creator_mint":    h.creator,
		"reward_rate_bps": 500,
		"lock_duration":   3600,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "VaultExists", decode[errorBody](t, rec).Error.Code)

	stranger := crypto.DeriveAddress([]byte("stranger"))
	rec = h.do(http.MethodPost, "/v1/vaults/"+created.Address.String()+"/deactivate", &stranger, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	wrong := crypto.DeriveAddress([]byte("not-custody"))
	rec = h.do(http.MethodPost, "/v1/vaults/"+created.Address.String()+"/deposit", &h.authority, map[string]interface{}{
		"amount":          "5000000",
		"custody_account": wrong,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "InvalidVaultAccount", decode[errorBody](t, rec).Error.Code)

	rec = h.do(http.MethodGet, "/v1/vaults/not-a-key", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/v1/vaults/"+crypto.DeriveAddress([]byte("missing")).String(), nil, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "VaultNotFound", decode[errorBody](t, rec).Error.Code)
}

func TestQuotaLimitsCallers(t *testing.T) {
	h := newHarness(t, Config{Quota: common.Quota{MaxRequestsPerEpoch: 1, EpochSeconds: 3600}})
	created := h.createVault(500, 3600)

	rec := h.do(http.MethodPost, "/v1/vaults/"+created.Address.String()+"/deactivate", &h.authority, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "QuotaExceeded", decode[errorBody](t, rec).Error.Code)

	other := crypto.DeriveAddress([]byte("other"))
	rec = h.do(http.MethodPost, "/v1/vaults/"+created.Address.String()+"/deactivate", &other, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimiterRejectsBursts(t *testing.T) {
	h := newHarness(t, Config{RateLimit: RateLimit{RequestsPerMinute: 1, Burst: 1}})
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/vaults", nil, nil).Code)
	require.Equal(t, http.StatusTooManyRequests, h.do(http.MethodGet, "/v1/vaults", nil, nil).Code)
}

func TestParseBearerToken(t *testing.T) {
	require.Equal(t, "abc", parseBearerToken("Bearer abc"))
	require.Equal(t, "abc", parseBearerToken("bearer  abc "))
	require.Empty(t, parseBearerToken("Basic abc"))
	require.Empty(t, parseBearerToken(""))
}

func TestRejectedRequestsDoNotConsumeAmountQuota(t *testing.T) {
	h := newHarness(t, Config{Quota: common.Quota{MaxAmountPerEpoch: 10_000_000, EpochSeconds: 3600}})
	active := h.createVault(500, 3600)

	rec := h.do(http.MethodPost, "/v1/vaults", &h.authority, map[string]interface{}{
		"token_mint":      h.token,
		"creator_mint":    crypto.DeriveAddress([]byte("creator-mint-2")),
		"reward_rate_bps": 500,
		"lock_duration":   3600,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	closed := decode[vaultView](t, rec)
	rec = h.do(http.MethodPost, "/v1/vaults/"+closed.Address.String()+"/deactivate", &h.authority, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/v1/vaults/"+closed.Address.String()+"/deposit", &h.authority, map[string]string{"amount": "8000000"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "VaultInactive", decode[errorBody](t, rec).Error.Code)

	rec = h.do(http.MethodPost, "/v1/vaults/"+active.Address.String()+"/deposit", &h.authority, map[string]interface{}{
		"amount":          "8000000",
		"custody_account": crypto.DeriveAddress([]byte("not-custody")),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/v1/vaults/"+active.Address.String()+"/deposit", &h.authority, map[string]string{"amount": "8000000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/v1/vaults/"+active.Address.String()+"/fund", &h.authority, map[string]string{"amount": "3000000"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "QuotaAmountExceeded", decode[errorBody](t, rec).Error.Code)
}

func TestQuotaChargeRefund(t *testing.T) {
	tracker := newQuotaTracker(common.Quota{MaxAmountPerEpoch: 100, EpochSeconds: 60})
	now := time.Unix(1_700_000_000, 0)
	tracker.now = func() time.Time { return now }

	charge, err := tracker.charge("alice", 80)
	require.NoError(t, err)
	charge.refund()
	charge.refund()
	_, err = tracker.charge("alice", 100)
	require.NoError(t, err)

	stale, err := tracker.charge("bob", 0)
	require.NoError(t, err)
	stale.amount = 50
	now = now.Add(time.Minute)
	_, err = tracker.charge("bob", 100)
	require.NoError(t, err)
	stale.refund()
	_, err = tracker.charge("bob", 1)
	require.ErrorIs(t, err, common.ErrQuotaAmountExceeded)
}

func TestAuditVerifyRoute(t *testing.T) {
	h := newHarness(t, Config{})
	rec := h.do(http.MethodGet, "/v1/audit/verify", &h.authority, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	db, err := audit.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	store, err := audit.NewStore(db)
	require.NoError(t, err)
	h.server.SetAuditLog(store)

	ctx := context.Background()
	_, err = store.Append(ctx, &types.Event{Type: events.TypeVaultCreated, Attributes: map[string]string{"vault": "a"}})
	require.NoError(t, err)
	last, err := store.Append(ctx, &types.Event{Type: events.TypeVaultDeposited, Attributes: map[string]string{"amount": "5"}})
	require.NoError(t, err)

	require.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/v1/audit/verify", nil, nil).Code)

	rec = h.do(http.MethodGet, "/v1/audit/verify", &h.authority, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[auditView](t, rec)
	require.True(t, view.Intact)
	require.Equal(t, uint64(2), view.Records)
	require.Equal(t, last.Hash, view.Head)

	require.NoError(t, db.Model(&audit.Record{}).Where("sequence = ?", 1).Update("attributes", `{"vault":"b"}`).Error)
	rec = h.do(http.MethodGet, "/v1/audit/verify", &h.authority, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "AuditChainBroken", decode[errorBody](t, rec).Error.Code)
}

func TestRejectedTokensAreNotLogged(t *testing.T) {
	var logs bytes.Buffer
	auth, err := NewAuthenticator(AuthConfig{HMACSecret: testSecret}, slog.New(slog.NewJSONHandler(&logs, nil)))
	require.NoError(t, err)
	forged, err := IssueToken("other-secret", crypto.DeriveAddress([]byte("mallory")), time.Hour)
	require.NoError(t, err)

	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("forged token reached the handler")
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/vaults", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, logs.String(), logging.RedactedValue)
	require.NotContains(t, logs.String(), forged)
}
