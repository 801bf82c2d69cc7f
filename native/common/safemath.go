package common

import (
	"errors"
	"math/bits"

	"github.com/holiman/uint256"
)

// BasisPointsDenominator expresses 100% in basis points.
const BasisPointsDenominator uint64 = 10_000

var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrUnderflow      = errors.New("arithmetic underflow")
	ErrDivisionByZero = errors.New("division by zero")
)

// CheckedAdd returns a+b or ErrOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b or ErrUnderflow.
func CheckedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return diff, nil
}

// CheckedMul returns a*b or ErrOverflow.
func CheckedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// CheckedDiv returns floor(a/b) or ErrDivisionByZero.
func CheckedDiv(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	return a / b, nil
}

// Percentage returns floor(amount*bps/10000).
func Percentage(amount, bps uint64) (uint64, error) {
	return MulDiv(amount, bps, BasisPointsDenominator)
}

// CheckedSpan returns to-from for timestamps, failing with ErrUnderflow when
// to precedes from.
func CheckedSpan(from, to int64) (uint64, error) {
	if to < from {
		return 0, ErrUnderflow
	}
	return uint64(to) - uint64(from), nil
}

// MulDiv computes floor(a*b/denom) with a 256-bit intermediate product. The
// result must fit in 64 bits.
func MulDiv(a, b, denom uint64) (uint64, error) {
	return MulDivWide([]uint64{a, b}, denom)
}

// MulDivWide computes floor(Π factors / denom) using 256-bit intermediates.
// Any intermediate product that exceeds 256 bits, or a quotient that does not
// fit in 64 bits, yields ErrOverflow.
func MulDivWide(factors []uint64, denom uint64) (uint64, error) {
	if denom == 0 {
		return 0, ErrDivisionByZero
	}
	product := uint256.NewInt(1)
	for _, factor := range factors {
		if _, overflow := product.MulOverflow(product, uint256.NewInt(factor)); overflow {
			return 0, ErrOverflow
		}
	}
	quotient := new(uint256.Int).Div(product, uint256.NewInt(denom))
	if !quotient.IsUint64() {
		return 0, ErrOverflow
	}
	return quotient.Uint64(), nil
}
