package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaAmountExceeded   = errors.New("quota amount cap exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the current quota usage counters for a caller.
type QuotaNow struct {
	ReqCount   uint32
	AmountUsed uint64
	EpochID    uint64
}

// Quota defines the limits enforced per caller within one epoch window.
type Quota struct {
	MaxRequestsPerEpoch uint32
	MaxAmountPerEpoch   uint64
	EpochSeconds        uint32
}

// Epoch maps a unix timestamp onto the quota window it falls into.
func (q Quota) Epoch(now int64) uint64 {
	if now <= 0 {
		return 0
	}
	span := int64(q.EpochSeconds)
	if span <= 0 {
		span = 60
	}
	return uint64(now / span)
}

// CheckQuota verifies whether the additional request and amount fit within the
// configured quota. The returned QuotaNow reflects the updated counters when the
// quota is not exceeded.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32, addAmount uint64) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}

	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerEpoch > 0 && next.ReqCount > q.MaxRequestsPerEpoch {
		return prev, ErrQuotaRequestsExceeded
	}

	if addAmount > 0 {
		if next.AmountUsed > math.MaxUint64-addAmount {
			return prev, ErrQuotaCounterOverflow
		}
		next.AmountUsed += addAmount
	}
	if q.MaxAmountPerEpoch > 0 && next.AmountUsed > q.MaxAmountPerEpoch {
		return prev, ErrQuotaAmountExceeded
	}

	return next, nil
}
