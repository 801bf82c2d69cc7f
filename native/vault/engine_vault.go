package vault

import (
	"pangivault/core/events"
	"pangivault/crypto"
	"pangivault/native/common"
)

// CreateVault opens a vault for the token/creator mint pair. The vault address
// and its custody account are derived from the mints so each pair maps to at
// most one vault.
func (e *Engine) CreateVault(authority, tokenMint, creatorMint crypto.PublicKey, rewardRateBps uint16, lockDuration int64) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	if err := e.guard(); err != nil {
		return nil, err
	}
	if rewardRateBps > e.params.MaxRewardRateBps {
		return nil, ErrRewardRateTooHigh
	}
	if lockDuration < e.params.MinLockDuration {
		return nil, ErrLockDurationTooShort
	}
	if lockDuration > e.params.MaxLockDuration {
		return nil, ErrLockDurationTooLong
	}
	addr := VaultAddress(tokenMint, creatorMint)
	if _, exists, err := e.state.VaultGet(addr); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrVaultExists
	}
	v := &Vault{
		Address:          addr,
		Authority:        authority,
		CreatorMint:      creatorMint,
		TokenMint:        tokenMint,
		CustodyAccount:   CustodyAddress(addr),
		RewardRateBps:    rewardRateBps,
		LockDuration:     lockDuration,
		CreatedAt:        now,
		LastRewardUpdate: now,
		IsActive:         true,
	}
	if err := e.custody.Open(v.CustodyAccount, tokenMint, addr); err != nil {
		return nil, err
	}
	if err := e.state.VaultPut(v); err != nil {
		return nil, err
	}
	e.emit(events.VaultCreated{
		Vault:         addr,
		Authority:     authority,
		TokenMint:     tokenMint,
		CreatorMint:   creatorMint,
		RewardRateBps: rewardRateBps,
		LockDuration:  lockDuration,
		Timestamp:     now,
	})
	return v.Clone(), nil
}

// DeactivateVault stops deposits and claims on the vault. Withdrawals remain
// available. Deactivating twice fails.
func (e *Engine) DeactivateVault(caller, vaultAddr crypto.PublicKey) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	v, err := e.loadVault(vaultAddr)
	if err != nil {
		return nil, err
	}
	if caller != v.Authority {
		return nil, ErrUnauthorized
	}
	if !v.IsActive {
		return nil, ErrVaultAlreadyInactive
	}
	v.IsActive = false
	if err := e.state.VaultPut(v); err != nil {
		return nil, err
	}
	e.emit(events.VaultDeactivated{Vault: v.Address, Authority: caller, Timestamp: now})
	return v.Clone(), nil
}

// FundVault moves amount from the funder's token account into the vault's
// custody account as reward reserve. TotalStaked is unaffected.
func (e *Engine) FundVault(funder, vaultAddr crypto.PublicKey, amount uint64) (*FundReceipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	if err := e.guard(); err != nil {
		return nil, err
	}
	v, err := e.loadVault(vaultAddr)
	if err != nil {
		return nil, err
	}
	if !v.IsActive {
		return nil, ErrVaultInactive
	}
	if amount == 0 {
		return nil, ErrAmountTooSmall
	}
	source := TokenAccountAddress(v.TokenMint, funder)
	balance, err := e.custody.Balance(source)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientBalance
	}
	reserve, err := e.custody.Balance(v.CustodyAccount)
	if err != nil {
		return nil, err
	}
	reserve, err = common.CheckedAdd(reserve, amount)
	if err != nil {
		return nil, arithmetic(err)
	}
	if err := e.custody.Transfer(source, v.CustodyAccount, amount); err != nil {
		return nil, err
	}
	e.emit(events.VaultFunded{
		Vault:          v.Address,
		Funder:         funder,
		Amount:         amount,
		CustodyBalance: reserve,
		Timestamp:      now,
	})
	return &FundReceipt{Vault: v.Address, Funder: funder, Amount: amount, CustodyBalance: reserve}, nil
}
