package events

import (
	"strconv"

	"pangivault/core/types"
	"pangivault/crypto"
)

const (
	// TypeVaultCreated is emitted when an authority opens a new vault.
	TypeVaultCreated = "vault.created"
	// TypeVaultDeactivated is emitted when the authority closes a vault to new activity.
	TypeVaultDeactivated = "vault.deactivated"
	// TypeVaultFunded is emitted when the reward reserve of a vault is topped up.
	TypeVaultFunded = "vault.funded"
	// TypeVaultDeposited is emitted when principal enters a stake position.
	TypeVaultDeposited = "vault.deposited"
	// TypeVaultWithdrawn is emitted when principal leaves a stake position.
	TypeVaultWithdrawn = "vault.withdrawn"
	// TypeVaultEarlyUnlock is emitted alongside a withdrawal made before the lock elapsed.
	TypeVaultEarlyUnlock = "vault.early_unlock"
	// TypeVaultRewardsClaimed is emitted when a holder collects accrued rewards.
	TypeVaultRewardsClaimed = "vault.rewards_claimed"
)

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

// VaultCreated records the configuration of a freshly created vault.
type VaultCreated struct {
	Vault         crypto.PublicKey
	Authority     crypto.PublicKey
	TokenMint     crypto.PublicKey
	CreatorMint   crypto.PublicKey
	RewardRateBps uint16
	LockDuration  int64
	Timestamp     int64
}

// EventType satisfies the Event interface.
func (VaultCreated) EventType() string { return TypeVaultCreated }

// Event converts the structured payload into a broadcastable event.
func (e VaultCreated) Event() *types.Event {
	return &types.Event{Type: TypeVaultCreated, Attributes: map[string]string{
		"vault":         e.Vault.String(),
		"authority":     e.Authority.String(),
		"tokenMint":     e.TokenMint.String(),
		"creatorMint":   e.CreatorMint.String(),
		"rewardRateBps": formatUint(uint64(e.RewardRateBps)),
		"lockDuration":  formatInt(e.LockDuration),
		"timestamp":     formatInt(e.Timestamp),
	}}
}

// VaultDeactivated records that a vault stopped accepting deposits and claims.
type VaultDeactivated struct {
	Vault     crypto.PublicKey
	Authority crypto.PublicKey
	Timestamp int64
}

// EventType satisfies the Event interface.
func (VaultDeactivated) EventType() string { return TypeVaultDeactivated }

// Event converts the structured payload into a broadcastable event.
func (e VaultDeactivated) Event() *types.Event {
	return &types.Event{Type: TypeVaultDeactivated, Attributes: map[string]string{
		"vault":     e.Vault.String(),
		"authority": e.Authority.String(),
		"timestamp": formatInt(e.Timestamp),
	}}
}

// VaultFunded records a reward reserve top-up.
type VaultFunded struct {
	Vault          crypto.PublicKey
	Funder         crypto.PublicKey
	Amount         uint64
	CustodyBalance uint64
	Timestamp      int64
}

// EventType satisfies the Event interface.
func (VaultFunded) EventType() string { return TypeVaultFunded }

// Event converts the structured payload into a broadcastable event.
func (e VaultFunded) Event() *types.Event {
	return &types.Event{Type: TypeVaultFunded, Attributes: map[string]string{
		"vault":          e.Vault.String(),
		"funder":         e.Funder.String(),
		"amount":         formatUint(e.Amount),
		"custodyBalance": formatUint(e.CustodyBalance),
		"timestamp":      formatInt(e.Timestamp),
	}}
}

// VaultDeposited records principal entering a position.
type VaultDeposited struct {
	Vault      crypto.PublicKey
	Holder     crypto.PublicKey
	Amount     uint64
	StakeTotal uint64
	VaultTotal uint64
	UnlockAt   int64
	Timestamp  int64
}

// EventType satisfies the Event interface.
func (VaultDeposited) EventType() string { return TypeVaultDeposited }

// Event converts the structured payload into a broadcastable event.
func (e VaultDeposited) Event() *types.Event {
	return &types.Event{Type: TypeVaultDeposited, Attributes: map[string]string{
		"vault":      e.Vault.String(),
		"holder":     e.Holder.String(),
		"amount":     formatUint(e.Amount),
		"stakeTotal": formatUint(e.StakeTotal),
		"vaultTotal": formatUint(e.VaultTotal),
		"unlockAt":   formatInt(e.UnlockAt),
		"timestamp":  formatInt(e.Timestamp),
	}}
}

// VaultWithdrawn records principal leaving a position together with the
// reward settlement computed at the time.
type VaultWithdrawn struct {
	Vault          crypto.PublicKey
	Holder         crypto.PublicKey
	Amount         uint64
	PendingRewards uint64
	PenaltyToPool  uint64
	RemainingStake uint64
	EarlyUnlock    bool
	Timestamp      int64
}

// EventType satisfies the Event interface.
func (VaultWithdrawn) EventType() string { return TypeVaultWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e VaultWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeVaultWithdrawn, Attributes: map[string]string{
		"vault":          e.Vault.String(),
		"holder":         e.Holder.String(),
		"amount":         formatUint(e.Amount),
		"pendingRewards": formatUint(e.PendingRewards),
		"penaltyToPool":  formatUint(e.PenaltyToPool),
		"remainingStake": formatUint(e.RemainingStake),
		"earlyUnlock":    strconv.FormatBool(e.EarlyUnlock),
		"timestamp":      formatInt(e.Timestamp),
	}}
}

// VaultEarlyUnlock records the reward forfeited by an early exit.
type VaultEarlyUnlock struct {
	Vault         crypto.PublicKey
	Holder        crypto.PublicKey
	Amount        uint64
	PenaltyAmount uint64
	UnlockAt      int64
	UnlockedAt    int64
	DaysEarly     int64
}

// EventType satisfies the Event interface.
func (VaultEarlyUnlock) EventType() string { return TypeVaultEarlyUnlock }

// Event converts the structured payload into a broadcastable event.
func (e VaultEarlyUnlock) Event() *types.Event {
	return &types.Event{Type: TypeVaultEarlyUnlock, Attributes: map[string]string{
		"vault":         e.Vault.String(),
		"holder":        e.Holder.String(),
		"amount":        formatUint(e.Amount),
		"penaltyAmount": formatUint(e.PenaltyAmount),
		"unlockAt":      formatInt(e.UnlockAt),
		"unlockedAt":    formatInt(e.UnlockedAt),
		"daysEarly":     formatInt(e.DaysEarly),
	}}
}

// VaultRewardsClaimed records a reward payout.
type VaultRewardsClaimed struct {
	Vault        crypto.PublicKey
	Holder       crypto.PublicKey
	Amount       uint64
	TotalClaimed uint64
	Timestamp    int64
}

// EventType satisfies the Event interface.
func (VaultRewardsClaimed) EventType() string { return TypeVaultRewardsClaimed }

// Event converts the structured payload into a broadcastable event.
func (e VaultRewardsClaimed) Event() *types.Event {
	return &types.Event{Type: TypeVaultRewardsClaimed, Attributes: map[string]string{
		"vault":        e.Vault.String(),
		"holder":       e.Holder.String(),
		"amount":       formatUint(e.Amount),
		"totalClaimed": formatUint(e.TotalClaimed),
		"timestamp":    formatInt(e.Timestamp),
	}}
}
