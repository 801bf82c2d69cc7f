package vault

// Phase is the lifecycle position of a stake record.
type Phase string

const (
	PhaseEmpty      Phase = "empty"
	PhaseLocked     Phase = "locked"
	PhaseUnlockable Phase = "unlockable"
)

// PhaseAt classifies the record at the supplied instant.
func PhaseAt(stake *StakeRecord, now int64) Phase {
	if stake == nil || stake.Amount == 0 {
		return PhaseEmpty
	}
	if IsUnlocked(stake, now) {
		return PhaseUnlockable
	}
	return PhaseLocked
}

// IsUnlocked reports whether the lock has elapsed. Reaching UnlockAt exactly
// counts as unlocked.
func IsUnlocked(stake *StakeRecord, now int64) bool {
	return stake != nil && now >= stake.UnlockAt
}

// elapsedAtLeast reports whether now-since >= window without overflowing.
func elapsedAtLeast(since, now, window int64) bool {
	if now < since {
		return false
	}
	return uint64(now)-uint64(since) >= uint64(window)
}

// CheckDepositCooldown rejects top-ups of a non-empty position made sooner
// than the deposit cooldown after it was opened.
func (p Params) CheckDepositCooldown(stake *StakeRecord, now int64) error {
	if stake == nil || stake.Amount == 0 {
		return nil
	}
	if !elapsedAtLeast(stake.StakedAt, now, p.DepositCooldown) {
		return ErrDepositCooldownActive
	}
	return nil
}

// CheckClaimWindow enforces the lock boundary and the claim cooldown.
func (p Params) CheckClaimWindow(stake *StakeRecord, now int64) error {
	if !IsUnlocked(stake, now) {
		return ErrStillLocked
	}
	if !elapsedAtLeast(stake.LastClaim, now, p.ClaimCooldown) {
		return ErrClaimCooldownActive
	}
	return nil
}

// NextClaimAt returns the earliest instant a claim passes the time gate.
func (p Params) NextClaimAt(stake *StakeRecord) int64 {
	if stake == nil {
		return 0
	}
	next := stake.LastClaim + p.ClaimCooldown
	if stake.UnlockAt > next {
		return stake.UnlockAt
	}
	return next
}

// NextDepositAt returns the earliest instant a top-up passes the time gate.
func (p Params) NextDepositAt(stake *StakeRecord) int64 {
	if stake == nil || stake.Amount == 0 {
		return 0
	}
	return stake.StakedAt + p.DepositCooldown
}
