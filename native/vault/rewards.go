package vault

import "pangivault/native/common"

// accrualDenominator scales rate (bps) and elapsed seconds to a yearly fraction.
var accrualDenominator = common.BasisPointsDenominator * SecondsPerYear

// EarlyExitQuote is the settlement of an exit before the lock elapses.
type EarlyExitQuote struct {
	Potential    uint64
	Proportional uint64
	Penalty      uint64
	Payout       uint64
}

// Reward returns floor(amount*rateBps*(to-from) / (10000*SecondsPerYear)).
// A window where to does not exceed from accrues nothing.
func Reward(amount uint64, rateBps uint16, from, to int64) (uint64, error) {
	if to <= from || amount == 0 || rateBps == 0 {
		return 0, nil
	}
	elapsed, err := common.CheckedSpan(from, to)
	if err != nil {
		return 0, arithmetic(err)
	}
	reward, err := common.MulDivWide([]uint64{amount, uint64(rateBps), elapsed}, accrualDenominator)
	if err != nil {
		return 0, arithmetic(err)
	}
	return reward, nil
}

// EarlyExit settles an exit at now using the default early unlock penalty.
func EarlyExit(amount uint64, rateBps uint16, stakedAt, unlockAt, now int64) (EarlyExitQuote, error) {
	return SettleEarlyExit(amount, rateBps, EarlyUnlockPenaltyBps, stakedAt, unlockAt, now)
}

// SettleEarlyExit prorates the reward the full lock would have earned by the
// share of the lock served, then forfeits penaltyBps of it.
func SettleEarlyExit(amount uint64, rateBps uint16, penaltyBps uint64, stakedAt, unlockAt, now int64) (EarlyExitQuote, error) {
	var quote EarlyExitQuote
	potential, err := Reward(amount, rateBps, stakedAt, unlockAt)
	if err != nil {
		return quote, err
	}
	span, err := common.CheckedSpan(stakedAt, unlockAt)
	if err != nil {
		return quote, arithmetic(err)
	}
	if span == 0 {
		return quote, ErrDivisionByZero
	}
	served, err := common.CheckedSpan(stakedAt, now)
	if err != nil {
		return quote, arithmetic(err)
	}
	proportional, err := common.MulDiv(potential, served, span)
	if err != nil {
		return quote, arithmetic(err)
	}
	penalty, err := common.Percentage(proportional, penaltyBps)
	if err != nil {
		return quote, arithmetic(err)
	}
	payout, err := common.CheckedSub(proportional, penalty)
	if err != nil {
		return quote, arithmetic(err)
	}
	quote.Potential = potential
	quote.Proportional = proportional
	quote.Penalty = penalty
	quote.Payout = payout
	return quote, nil
}
