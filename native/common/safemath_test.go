package common

import (
	"errors"
	"math"
	"testing"
)

func TestCheckedArithmetic(t *testing.T) {
	if _, err := CheckedAdd(math.MaxUint64, 1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if v, err := CheckedAdd(40, 2); err != nil || v != 42 {
		t.Fatalf("unexpected add result %d (%v)", v, err)
	}
	if _, err := CheckedSub(1, 2); !errors.Is(err, ErrUnderflow) {
		t.Fatalf("expected underflow, got %v", err)
	}
	if v, err := CheckedSub(5, 5); err != nil || v != 0 {
		t.Fatalf("unexpected sub result %d (%v)", v, err)
	}
	if _, err := CheckedMul(math.MaxUint64, 2); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := CheckedDiv(1, 0); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
	if v, err := CheckedDiv(7, 2); err != nil || v != 3 {
		t.Fatalf("unexpected div result %d (%v)", v, err)
	}
}

func TestPercentage(t *testing.T) {
	got, err := Percentage(50_000_000, 1500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7_500_000 {
		t.Fatalf("expected 7500000, got %d", got)
	}
	got, err = Percentage(math.MaxUint64, 10_000)
	if err != nil || got != math.MaxUint64 {
		t.Fatalf("full percentage of max must not overflow: %d (%v)", got, err)
	}
}

func TestMulDivWide(t *testing.T) {
	got, err := MulDivWide([]uint64{1_000_000_000, 1000, 31_536_000}, 10_000*31_536_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 100_000_000 {
		t.Fatalf("expected 1e8, got %d", got)
	}
	if _, err := MulDivWide([]uint64{math.MaxUint64, math.MaxUint64}, 1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected quotient overflow, got %v", err)
	}
	if _, err := MulDivWide([]uint64{math.MaxUint64, math.MaxUint64, math.MaxUint64, math.MaxUint64, 2}, 1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected product overflow, got %v", err)
	}
	if _, err := MulDiv(1, 1, 0); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
}

func TestCheckedSpan(t *testing.T) {
	if v, err := CheckedSpan(10, 25); err != nil || v != 15 {
		t.Fatalf("unexpected span %d (%v)", v, err)
	}
	if _, err := CheckedSpan(25, 10); !errors.Is(err, ErrUnderflow) {
		t.Fatalf("expected underflow, got %v", err)
	}
}
