package common

import (
	"errors"
	"math"
	"testing"
)

func TestCheckQuotaRequestLimit(t *testing.T) {
	q := Quota{MaxRequestsPerEpoch: 10}
	prev := QuotaNow{EpochID: 1}

	next, err := CheckQuota(q, 1, prev, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ReqCount != 10 {
		t.Fatalf("unexpected request count: %d", next.ReqCount)
	}

	denied, err := CheckQuota(q, 1, next, 1, 0)
	if !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected ErrQuotaRequestsExceeded, got %v", err)
	}
	if denied != next {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 2, next, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.EpochID != 2 || rollover.ReqCount != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckQuotaAmount(t *testing.T) {
	q := Quota{MaxAmountPerEpoch: 1000}
	prev := QuotaNow{EpochID: 5}

	next, err := CheckQuota(q, 5, prev, 0, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.AmountUsed != 1000 {
		t.Fatalf("unexpected amount used: %d", next.AmountUsed)
	}

	denied, err := CheckQuota(q, 5, next, 0, 1)
	if !errors.Is(err, ErrQuotaAmountExceeded) {
		t.Fatalf("expected ErrQuotaAmountExceeded, got %v", err)
	}
	if denied != next {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 6, next, 0, 500)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.AmountUsed != 500 {
		t.Fatalf("unexpected amount used after rollover: %d", rollover.AmountUsed)
	}
}

func TestCheckQuotaCounterOverflow(t *testing.T) {
	prev := QuotaNow{EpochID: 1, AmountUsed: math.MaxUint64}
	if _, err := CheckQuota(Quota{}, 1, prev, 0, 1); !errors.Is(err, ErrQuotaCounterOverflow) {
		t.Fatalf("expected ErrQuotaCounterOverflow, got %v", err)
	}
}

func TestQuotaEpoch(t *testing.T) {
	q := Quota{EpochSeconds: 60}
	if got := q.Epoch(119); got != 1 {
		t.Fatalf("expected epoch 1, got %d", got)
	}
	if got := (Quota{}).Epoch(120); got != 2 {
		t.Fatalf("expected default 60s epoch, got %d", got)
	}
}

func TestGuardHonoursPauseSet(t *testing.T) {
	pauses := NewPauseSet("Vault")
	if err := Guard(pauses, "vault"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	pauses.Set("vault", false)
	if err := Guard(pauses, "vault"); err != nil {
		t.Fatalf("unexpected error after resume: %v", err)
	}
	if err := Guard(nil, "vault"); err != nil {
		t.Fatalf("nil pause view must not block: %v", err)
	}
}
