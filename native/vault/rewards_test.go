package vault

import (
	"errors"
	"math"
	"testing"
)

func TestRewardFullYearAtTenPercent(t *testing.T) {
	const start = int64(1_700_000_000)
	got, err := Reward(1_000_000_000, 1000, start, start+int64(SecondsPerYear))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 100_000_000 {
		t.Fatalf("expected 100000000, got %d", got)
	}
}

func TestRewardEmptyWindow(t *testing.T) {
	for _, tc := range []struct {
		name     string
		from, to int64
	}{
		{"equal", 100, 100},
		{"reversed", 200, 100},
	} {
		got, err := Reward(1_000_000_000, 1000, tc.from, tc.to)
		if err != nil || got != 0 {
			t.Fatalf("%s: expected zero reward, got %d (%v)", tc.name, got, err)
		}
	}
}

func TestRewardOverflow(t *testing.T) {
	// 100% for far longer than a year on the largest representable amount.
	_, err := Reward(math.MaxUint64, 10_000, 0, math.MaxInt64)
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if KindOf(err) != KindArithmetic {
		t.Fatalf("expected arithmetic kind, got %s", KindOf(err))
	}
}

func TestEarlyExitAtHalfway(t *testing.T) {
	const (
		day      = int64(86_400)
		stakedAt = int64(1_700_000_000)
	)
	unlockAt := stakedAt + 100*day
	quote, err := EarlyExit(1_000_000_000, 1000, stakedAt, unlockAt, stakedAt+50*day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Potential != 27_397_260 {
		t.Fatalf("unexpected potential reward %d", quote.Potential)
	}
	if quote.Proportional != 13_698_630 {
		t.Fatalf("unexpected proportional reward %d", quote.Proportional)
	}
	if quote.Penalty != 2_054_794 {
		t.Fatalf("unexpected penalty %d", quote.Penalty)
	}
	if quote.Payout != 11_643_836 {
		t.Fatalf("unexpected payout %d", quote.Payout)
	}
	if quote.Payout+quote.Penalty != quote.Proportional {
		t.Fatalf("payout and penalty must add up to the proportional reward")
	}
}

func TestEarlyExitZeroSpan(t *testing.T) {
	_, err := EarlyExit(1_000_000_000, 1000, 100, 100, 100)
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestSettleEarlyExitCustomPenalty(t *testing.T) {
	quote, err := SettleEarlyExit(1_000_000_000, 1000, 0, 0, int64(SecondsPerYear), int64(SecondsPerYear)/2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Penalty != 0 || quote.Payout != 50_000_000 {
		t.Fatalf("unexpected quote %+v", quote)
	}
}
