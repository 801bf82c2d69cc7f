package vault

import "pangivault/crypto"

// Vault is the staking pool configured by an authority for a single token.
type Vault struct {
	Address                 crypto.PublicKey
	Authority               crypto.PublicKey
	CreatorMint             crypto.PublicKey
	TokenMint               crypto.PublicKey
	CustodyAccount          crypto.PublicKey
	RewardRateBps           uint16
	LockDuration            int64
	TotalStaked             uint64
	TotalPenaltiesCollected uint64
	CreatedAt               int64
	LastRewardUpdate        int64
	IsActive                bool
}

// Clone returns a copy of the vault.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

// StakeRecord tracks one holder's position in one vault. Records are never
// deleted; a zero amount marks an empty, reusable position.
type StakeRecord struct {
	Vault        crypto.PublicKey
	Holder       crypto.PublicKey
	Amount       uint64
	StakedAt     int64
	UnlockAt     int64
	LastClaim    int64
	TotalClaimed uint64
}

// Clone returns a copy of the stake record.
func (s *StakeRecord) Clone() *StakeRecord {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// FundReceipt reports a reward reserve top-up.
type FundReceipt struct {
	Vault          crypto.PublicKey
	Funder         crypto.PublicKey
	Amount         uint64
	CustodyBalance uint64
}

// DepositReceipt reports the state of a position after a deposit.
type DepositReceipt struct {
	Stake      *StakeRecord
	Amount     uint64
	VaultTotal uint64
}

// WithdrawReceipt reports the settlement computed for a withdrawal. Only the
// principal is transferred; PendingRewards is informational.
type WithdrawReceipt struct {
	Vault          crypto.PublicKey
	Holder         crypto.PublicKey
	Amount         uint64
	PendingRewards uint64
	PenaltyToPool  uint64
	RemainingStake uint64
	EarlyUnlock    bool
	UnlockAt       int64
	DaysEarly      int64
	WithdrawnAt    int64
}

// ClaimReceipt reports a reward payout.
type ClaimReceipt struct {
	Vault        crypto.PublicKey
	Holder       crypto.PublicKey
	Amount       uint64
	TotalClaimed uint64
	ClaimedAt    int64
}

// Preview is a read-only projection of a position at a point in time.
type Preview struct {
	Stake          *StakeRecord
	Phase          Phase
	AsOf           int64
	PendingRewards uint64
	EarlyExit      EarlyExitQuote
	NextClaimAt    int64
	NextDepositAt  int64
}
