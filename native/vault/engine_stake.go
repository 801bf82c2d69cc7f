package vault

import (
	"pangivault/core/events"
	"pangivault/crypto"
	"pangivault/native/common"
)

// Deposit locks amount of the vault token in the caller's position. Opening
// an empty position starts a new lock; topping up keeps the original unlock
// time.
func (e *Engine) Deposit(caller, vaultAddr crypto.PublicKey, amount uint64) (*DepositReceipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	v, err := e.loadVault(vaultAddr)
	if err != nil {
		return nil, err
	}
	if !v.IsActive {
		return nil, ErrVaultInactive
	}
	if caller != v.Authority {
		return nil, ErrVaultAuthorityMismatch
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	stake, exists, err := e.state.StakeGet(v.Address, caller)
	if err != nil {
		return nil, err
	}
	if exists && stake != nil && stake.Vault != v.Address {
		return nil, ErrInvalidVaultAccount
	}
	if err := e.params.CheckDepositCooldown(stake, now); err != nil {
		return nil, err
	}
	if amount < e.params.MinStake {
		return nil, ErrAmountTooSmall
	}
	if amount > e.params.MaxStake {
		return nil, ErrAmountTooLarge
	}
	source := TokenAccountAddress(v.TokenMint, caller)
	balance, err := e.custody.Balance(source)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientBalance
	}

	if !exists || stake == nil {
		stake = &StakeRecord{Vault: v.Address, Holder: caller}
	}
	if stake.Amount == 0 {
		unlockAt := now + v.LockDuration
		if unlockAt < now {
			return nil, ErrOverflow
		}
		stake.StakedAt = now
		stake.UnlockAt = unlockAt
		stake.LastClaim = now
	}
	if stake.Amount, err = common.CheckedAdd(stake.Amount, amount); err != nil {
		return nil, arithmetic(err)
	}
	if v.TotalStaked, err = common.CheckedAdd(v.TotalStaked, amount); err != nil {
		return nil, arithmetic(err)
	}
	v.LastRewardUpdate = now

	if err := e.custody.Transfer(source, v.CustodyAccount, amount); err != nil {
		return nil, err
	}
	if err := e.state.StakePut(stake); err != nil {
		return nil, err
	}
	if err := e.state.VaultPut(v); err != nil {
		return nil, err
	}
	e.emit(events.VaultDeposited{
		Vault:      v.Address,
		Holder:     caller,
		Amount:     amount,
		StakeTotal: stake.Amount,
		VaultTotal: v.TotalStaked,
		UnlockAt:   stake.UnlockAt,
		Timestamp:  now,
	})
	return &DepositReceipt{Stake: stake.Clone(), Amount: amount, VaultTotal: v.TotalStaked}, nil
}

// Withdraw returns amount of principal to the caller. Exiting before the
// unlock time forfeits part of the prorated reward to the pool; the reward
// itself is reported but not paid.
func (e *Engine) Withdraw(caller, vaultAddr crypto.PublicKey, amount uint64) (*WithdrawReceipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	v, err := e.loadVault(vaultAddr)
	if err != nil {
		return nil, err
	}
	stake, err := e.loadStake(v, caller)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrAmountTooSmall
	}
	if amount > stake.Amount {
		return nil, ErrInsufficientStake
	}

	receipt := &WithdrawReceipt{
		Vault:       v.Address,
		Holder:      caller,
		Amount:      amount,
		UnlockAt:    stake.UnlockAt,
		WithdrawnAt: now,
	}
	if IsUnlocked(stake, now) {
		receipt.PendingRewards, err = Reward(stake.Amount, v.RewardRateBps, stake.LastClaim, now)
		if err != nil {
			return nil, err
		}
	} else {
		quote, err := SettleEarlyExit(stake.Amount, v.RewardRateBps, e.params.EarlyUnlockPenaltyBps, stake.StakedAt, stake.UnlockAt, now)
		if err != nil {
			return nil, err
		}
		receipt.EarlyUnlock = true
		receipt.PendingRewards = quote.Payout
		receipt.PenaltyToPool = quote.Penalty
		receipt.DaysEarly = (stake.UnlockAt - now) / SecondsPerDay
		if v.TotalPenaltiesCollected, err = common.CheckedAdd(v.TotalPenaltiesCollected, quote.Penalty); err != nil {
			return nil, arithmetic(err)
		}
	}

	if stake.Amount, err = common.CheckedSub(stake.Amount, amount); err != nil {
		return nil, arithmetic(err)
	}
	if v.TotalStaked, err = common.CheckedSub(v.TotalStaked, amount); err != nil {
		return nil, arithmetic(err)
	}
	receipt.RemainingStake = stake.Amount

	custodyBalance, err := e.custody.Balance(v.CustodyAccount)
	if err != nil {
		return nil, err
	}
	if custodyBalance < amount {
		return nil, ErrInsufficientVaultBalance
	}
	dest := TokenAccountAddress(v.TokenMint, caller)
	if err := e.custody.Open(dest, v.TokenMint, caller); err != nil {
		return nil, err
	}
	if err := e.custody.Transfer(v.CustodyAccount, dest, amount); err != nil {
		return nil, err
	}
	if err := e.state.StakePut(stake); err != nil {
		return nil, err
	}
	if err := e.state.VaultPut(v); err != nil {
		return nil, err
	}

	if receipt.EarlyUnlock {
		e.emit(events.VaultEarlyUnlock{
			Vault:         v.Address,
			Holder:        caller,
			Amount:        amount,
			PenaltyAmount: receipt.PenaltyToPool,
			UnlockAt:      receipt.UnlockAt,
			UnlockedAt:    now,
			DaysEarly:     receipt.DaysEarly,
		})
	}
	e.emit(events.VaultWithdrawn{
		Vault:          v.Address,
		Holder:         caller,
		Amount:         amount,
		PendingRewards: receipt.PendingRewards,
		PenaltyToPool:  receipt.PenaltyToPool,
		RemainingStake: receipt.RemainingStake,
		EarlyUnlock:    receipt.EarlyUnlock,
		Timestamp:      now,
	})
	return receipt, nil
}

// Claim pays the reward accrued since the last claim once the lock has
// elapsed and the claim cooldown has passed.
func (e *Engine) Claim(caller, vaultAddr crypto.PublicKey) (*ClaimReceipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	v, err := e.loadVault(vaultAddr)
	if err != nil {
		return nil, err
	}
	if !v.IsActive {
		return nil, ErrVaultInactive
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	stake, err := e.loadStake(v, caller)
	if err != nil {
		return nil, err
	}
	if err := e.params.CheckClaimWindow(stake, now); err != nil {
		return nil, err
	}
	reward, err := Reward(stake.Amount, v.RewardRateBps, stake.LastClaim, now)
	if err != nil {
		return nil, err
	}
	if reward == 0 {
		return nil, ErrNoRewardsToClaim
	}
	custodyBalance, err := e.custody.Balance(v.CustodyAccount)
	if err != nil {
		return nil, err
	}
	if custodyBalance < reward {
		return nil, ErrInsufficientVaultBalance
	}
	if stake.TotalClaimed, err = common.CheckedAdd(stake.TotalClaimed, reward); err != nil {
		return nil, arithmetic(err)
	}
	stake.LastClaim = now

	dest := TokenAccountAddress(v.TokenMint, caller)
	if err := e.custody.Open(dest, v.TokenMint, caller); err != nil {
		return nil, err
	}
	if err := e.custody.Transfer(v.CustodyAccount, dest, reward); err != nil {
		return nil, err
	}
	if err := e.state.StakePut(stake); err != nil {
		return nil, err
	}
	e.emit(events.VaultRewardsClaimed{
		Vault:        v.Address,
		Holder:       caller,
		Amount:       reward,
		TotalClaimed: stake.TotalClaimed,
		Timestamp:    now,
	})
	return &ClaimReceipt{
		Vault:        v.Address,
		Holder:       caller,
		Amount:       reward,
		TotalClaimed: stake.TotalClaimed,
		ClaimedAt:    now,
	}, nil
}
