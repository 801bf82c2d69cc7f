package vault

import "fmt"

const (
	// ModuleName identifies the vault module for pause switches and metrics.
	ModuleName = "vault"

	// MinStake is the smallest amount accepted by a single deposit.
	MinStake uint64 = 1_000_000
	// MaxStake is the largest amount accepted by a single deposit.
	MaxStake uint64 = 1_000_000_000_000_000
	// MinLockDuration is the shortest lock a vault may be configured with (1 minute).
	MinLockDuration int64 = 60
	// MaxLockDuration is the longest lock a vault may be configured with (1 year).
	MaxLockDuration int64 = 31_536_000
	// MaxRewardRateBps caps the annual reward rate at 100%.
	MaxRewardRateBps uint16 = 10_000
	// ClaimCooldown is the minimum spacing between two reward claims.
	ClaimCooldown int64 = 3_600
	// DepositCooldown is the minimum age of a position before it accepts a top-up.
	DepositCooldown int64 = 60
	// EarlyUnlockPenaltyBps is the share of earned rewards forfeited on early exit.
	EarlyUnlockPenaltyBps uint64 = 1_500

	// SecondsPerYear is the accrual year used by the reward formula.
	SecondsPerYear uint64 = 31_536_000
	// SecondsPerDay converts early exits into whole days for reporting.
	SecondsPerDay int64 = 86_400
)

// Params captures the tunable limits enforced by the engine.
type Params struct {
	MinStake              uint64 `toml:"MinStake"`
	MaxStake              uint64 `toml:"MaxStake"`
	MinLockDuration       int64  `toml:"MinLockDurationSeconds"`
	MaxLockDuration       int64  `toml:"MaxLockDurationSeconds"`
	MaxRewardRateBps      uint16 `toml:"MaxRewardRateBps"`
	ClaimCooldown         int64  `toml:"ClaimCooldownSeconds"`
	DepositCooldown       int64  `toml:"DepositCooldownSeconds"`
	EarlyUnlockPenaltyBps uint64 `toml:"EarlyUnlockPenaltyBps"`
}

// DefaultParams returns the production limits.
func DefaultParams() Params {
	return Params{
		MinStake:              MinStake,
		MaxStake:              MaxStake,
		MinLockDuration:       MinLockDuration,
		MaxLockDuration:       MaxLockDuration,
		MaxRewardRateBps:      MaxRewardRateBps,
		ClaimCooldown:         ClaimCooldown,
		DepositCooldown:       DepositCooldown,
		EarlyUnlockPenaltyBps: EarlyUnlockPenaltyBps,
	}
}

// Validate ensures the parameters are internally consistent.
func (p Params) Validate() error {
	if p.MinStake == 0 {
		return fmt.Errorf("vault params: MinStake must be positive")
	}
	if p.MinStake > p.MaxStake {
		return fmt.Errorf("vault params: MinStake %d exceeds MaxStake %d", p.MinStake, p.MaxStake)
	}
	if p.MinLockDuration <= 0 {
		return fmt.Errorf("vault params: MinLockDurationSeconds must be positive")
	}
	if p.MinLockDuration > p.MaxLockDuration {
		return fmt.Errorf("vault params: MinLockDurationSeconds %d exceeds MaxLockDurationSeconds %d", p.MinLockDuration, p.MaxLockDuration)
	}
	if p.MaxRewardRateBps > MaxRewardRateBps {
		return fmt.Errorf("vault params: MaxRewardRateBps must not exceed %d", MaxRewardRateBps)
	}
	if p.ClaimCooldown < 0 || p.DepositCooldown < 0 {
		return fmt.Errorf("vault params: cooldowns must not be negative")
	}
	if p.EarlyUnlockPenaltyBps > 10_000 {
		return fmt.Errorf("vault params: EarlyUnlockPenaltyBps must not exceed 10000")
	}
	return nil
}
