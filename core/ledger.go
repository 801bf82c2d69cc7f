package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pangivault/core/events"
	"pangivault/core/state"
	"pangivault/crypto"
	"pangivault/native/bank"
	"pangivault/native/common"
	"pangivault/native/vault"
	"pangivault/observability/metrics"
	"pangivault/storage"
)

// Operation names used for metrics and logs.
const (
	OpCreateVault     = "create_vault"
	OpDeactivateVault = "deactivate_vault"
	OpFundVault       = "fund_vault"
	OpDeposit         = "deposit"
	OpWithdraw        = "withdraw"
	OpClaim           = "claim"
	OpMint            = "mint"
	OpGenesis         = "genesis"
)

// Allocation is a token balance credited when the ledger is first initialised.
type Allocation struct {
	Owner  crypto.PublicKey
	Mint   crypto.PublicKey
	Amount uint64
}

// Reconciliation compares a vault's bookkeeping with its positions and custody.
type Reconciliation struct {
	Vault          crypto.PublicKey
	TotalStaked    uint64
	SumOfStakes    uint64
	CustodyBalance uint64
	Holders        int
}

// Balanced reports whether the vault total equals the sum of its positions and
// custody holds at least the staked principal.
func (r *Reconciliation) Balanced() bool {
	return r != nil && r.TotalStaked == r.SumOfStakes && r.CustodyBalance >= r.TotalStaked
}

// Ledger is the entry point for every vault operation. Each call runs as one
// unit of work on the executor, so it either fully applies or has no effect.
type Ledger struct {
	exec    *Executor
	params  vault.Params
	pauses  common.PauseView
	nowFn   func() int64
	metrics *metrics.VaultMetrics
}

// NewLedger constructs a ledger over db that forwards committed events to
// emitter.
func NewLedger(db storage.Database, emitter events.Emitter) *Ledger {
	return &Ledger{
		exec:    NewExecutor(db, emitter),
		params:  vault.DefaultParams(),
		nowFn:   func() int64 { return time.Now().Unix() },
		metrics: metrics.Vault(),
	}
}

// SetParams overrides the vault limits. Invalid parameters are rejected.
func (l *Ledger) SetParams(p vault.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	l.params = p
	return nil
}

// Params returns the vault limits in force.
func (l *Ledger) Params() vault.Params { return l.params }

// SetPauses configures the pause switches consulted by mutating flows.
func (l *Ledger) SetPauses(p common.PauseView) { l.pauses = p }

// SetNowFunc overrides the time source used for deterministic testing.
func (l *Ledger) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

func (l *Ledger) now() int64 {
	if l.nowFn == nil {
		return time.Now().Unix()
	}
	return l.nowFn()
}

func (l *Ledger) engine(tx *Tx, now int64) *vault.Engine {
	custody := bank.New(tx.State)
	custody.SetEmitter(tx.Events)
	eng := vault.NewEngine()
	eng.SetState(tx.State)
	eng.SetCustody(custody)
	eng.SetEmitter(tx.Events)
	eng.SetPauses(l.pauses)
	eng.SetParams(l.params)
	eng.SetNowFunc(func() int64 { return now })
	return eng
}

// run executes fn as a unit of work. The clock is sampled once per unit, after
// its record locks are held, so commit order on a record follows time order.
func (l *Ledger) run(ctx context.Context, op string, keys []crypto.PublicKey, fn func(eng *vault.Engine) error) error {
	err := l.exec.Execute(ctx, keys, func(tx *Tx) error {
		return fn(l.engine(tx, l.now()))
	})
	if op != "" {
		kind := ""
		if err != nil {
			kind = string(vault.KindOf(err))
		}
		l.metrics.ObserveOperation(op, kind)
	}
	return err
}

// lookupVault reads committed vault configuration. Only immutable fields of the
// result may be relied upon outside a unit of work.
func (l *Ledger) lookupVault(addr crypto.PublicKey) (*vault.Vault, error) {
	v, ok, err := l.exec.Read().VaultGet(addr)
	if err != nil {
		return nil, fmt.Errorf("ledger: load vault: %w", err)
	}
	if !ok {
		return nil, vault.ErrVaultNotFound
	}
	return v, nil
}

func holderKeys(v *vault.Vault, holder crypto.PublicKey) []crypto.PublicKey {
	return []crypto.PublicKey{
		v.Address,
		v.CustodyAccount,
		vault.StakeAddress(v.Address, holder),
		vault.TokenAccountAddress(v.TokenMint, holder),
	}
}

// CreateVault opens a vault for the token/creator mint pair.
func (l *Ledger) CreateVault(ctx context.Context, authority, tokenMint, creatorMint crypto.PublicKey, rewardRateBps uint16, lockDuration int64) (*vault.Vault, error) {
	addr := vault.VaultAddress(tokenMint, creatorMint)
	keys := []crypto.PublicKey{addr, vault.CustodyAddress(addr), state.VaultIndexAddress}
	var created *vault.Vault
	err := l.run(ctx, OpCreateVault, keys, func(eng *vault.Engine) error {
		var err error
		created, err = eng.CreateVault(authority, tokenMint, creatorMint, rewardRateBps, lockDuration)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.metrics.SetTotalStaked(created.Address.String(), created.TotalStaked)
	return created, nil
}

// DeactivateVault closes the vault to deposits and claims.
func (l *Ledger) DeactivateVault(ctx context.Context, caller, vaultAddr crypto.PublicKey) (*vault.Vault, error) {
	var updated *vault.Vault
	err := l.run(ctx, OpDeactivateVault, []crypto.PublicKey{vaultAddr}, func(eng *vault.Engine) error {
		var err error
		updated, err = eng.DeactivateVault(caller, vaultAddr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// FundVault adds reward reserve to the vault's custody account.
func (l *Ledger) FundVault(ctx context.Context, funder, vaultAddr crypto.PublicKey, amount uint64) (*vault.FundReceipt, error) {
	v, err := l.lookupVault(vaultAddr)
	if err != nil {
		l.metrics.ObserveOperation(OpFundVault, string(vault.KindOf(err)))
		return nil, err
	}
	keys := []crypto.PublicKey{v.Address, v.CustodyAccount, vault.TokenAccountAddress(v.TokenMint, funder)}
	var receipt *vault.FundReceipt
	err = l.run(ctx, OpFundVault, keys, func(eng *vault.Engine) error {
		var err error
		receipt, err = eng.FundVault(funder, vaultAddr, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Deposit locks amount in the caller's position.
func (l *Ledger) Deposit(ctx context.Context, caller, vaultAddr crypto.PublicKey, amount uint64) (*vault.DepositReceipt, error) {
	v, err := l.lookupVault(vaultAddr)
	if err != nil {
		l.metrics.ObserveOperation(OpDeposit, string(vault.KindOf(err)))
		return nil, err
	}
	var receipt *vault.DepositReceipt
	err = l.run(ctx, OpDeposit, holderKeys(v, caller), func(eng *vault.Engine) error {
		var err error
		receipt, err = eng.Deposit(caller, vaultAddr, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.metrics.SetTotalStaked(vaultAddr.String(), receipt.VaultTotal)
	return receipt, nil
}

// Withdraw returns principal from the caller's position.
func (l *Ledger) Withdraw(ctx context.Context, caller, vaultAddr crypto.PublicKey, amount uint64) (*vault.WithdrawReceipt, error) {
	v, err := l.lookupVault(vaultAddr)
	if err != nil {
		l.metrics.ObserveOperation(OpWithdraw, string(vault.KindOf(err)))
		return nil, err
	}
	var (
		receipt *vault.WithdrawReceipt
		total   uint64
	)
	err = l.run(ctx, OpWithdraw, holderKeys(v, caller), func(eng *vault.Engine) error {
		var err error
		receipt, err = eng.Withdraw(caller, vaultAddr, amount)
		if err != nil {
			return err
		}
		updated, err := eng.Vault(vaultAddr)
		if err != nil {
			return err
		}
		total = updated.TotalStaked
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.metrics.AddPenalty(receipt.PenaltyToPool)
	l.metrics.SetTotalStaked(vaultAddr.String(), total)
	return receipt, nil
}

// Claim pays the caller's accrued reward.
func (l *Ledger) Claim(ctx context.Context, caller, vaultAddr crypto.PublicKey) (*vault.ClaimReceipt, error) {
	v, err := l.lookupVault(vaultAddr)
	if err != nil {
		l.metrics.ObserveOperation(OpClaim, string(vault.KindOf(err)))
		return nil, err
	}
	var receipt *vault.ClaimReceipt
	err = l.run(ctx, OpClaim, holderKeys(v, caller), func(eng *vault.Engine) error {
		var err error
		receipt, err = eng.Claim(caller, vaultAddr)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.metrics.AddRewardsClaimed(receipt.Amount)
	return receipt, nil
}

// CheckCustodyAccount verifies a client supplied custody account against the
// account derived for the vault.
func (l *Ledger) CheckCustodyAccount(vaultAddr, account crypto.PublicKey) error {
	v, err := l.lookupVault(vaultAddr)
	if err != nil {
		return err
	}
	if account != v.CustodyAccount || account != vault.CustodyAddress(v.Address) {
		return vault.ErrInvalidVaultAccount
	}
	return nil
}

// Vault returns the committed vault.
func (l *Ledger) Vault(ctx context.Context, vaultAddr crypto.PublicKey) (*vault.Vault, error) {
	var out *vault.Vault
	err := l.run(ctx, "", []crypto.PublicKey{vaultAddr}, func(eng *vault.Engine) error {
		var err error
		out, err = eng.Vault(vaultAddr)
		return err
	})
	return out, err
}

// Vaults lists every vault address in creation order.
func (l *Ledger) Vaults() ([]crypto.PublicKey, error) {
	return l.exec.Read().VaultList()
}

// Stake returns the committed position of holder in the vault.
func (l *Ledger) Stake(ctx context.Context, vaultAddr, holder crypto.PublicKey) (*vault.StakeRecord, error) {
	keys := []crypto.PublicKey{vaultAddr, vault.StakeAddress(vaultAddr, holder)}
	var out *vault.StakeRecord
	err := l.run(ctx, "", keys, func(eng *vault.Engine) error {
		var err error
		out, err = eng.Stake(vaultAddr, holder)
		return err
	})
	return out, err
}

// Preview projects the holder's position at the current instant.
func (l *Ledger) Preview(ctx context.Context, vaultAddr, holder crypto.PublicKey) (*vault.Preview, error) {
	keys := []crypto.PublicKey{vaultAddr, vault.StakeAddress(vaultAddr, holder)}
	var out *vault.Preview
	err := l.run(ctx, "", keys, func(eng *vault.Engine) error {
		var err error
		out, err = eng.Preview(vaultAddr, holder)
		return err
	})
	return out, err
}

// Balance returns the owner's balance of mint.
func (l *Ledger) Balance(owner, mint crypto.PublicKey) (uint64, error) {
	return bank.New(l.exec.Read()).Balance(vault.TokenAccountAddress(mint, owner))
}

// Mint credits amount of mint to owner. It backs genesis allocations and
// development faucets; production deployments leave it unexposed.
func (l *Ledger) Mint(ctx context.Context, owner, mint crypto.PublicKey, amount uint64) error {
	account := vault.TokenAccountAddress(mint, owner)
	err := l.exec.Execute(ctx, []crypto.PublicKey{account}, func(tx *Tx) error {
		custody := bank.New(tx.State)
		custody.SetEmitter(tx.Events)
		return custody.Credit(account, mint, owner, amount)
	})
	kind := ""
	if err != nil {
		kind = string(vault.KindOf(err))
	}
	l.metrics.ObserveOperation(OpMint, kind)
	return err
}

// ApplyGenesis credits the allocations once per database. Later calls are
// no-ops and report false.
func (l *Ledger) ApplyGenesis(ctx context.Context, allocations []Allocation) (bool, error) {
	keys := []crypto.PublicKey{state.GenesisAddress}
	for _, alloc := range allocations {
		keys = append(keys, vault.TokenAccountAddress(alloc.Mint, alloc.Owner))
	}
	applied := false
	err := l.exec.Execute(ctx, keys, func(tx *Tx) error {
		done, err := tx.State.GenesisApplied()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		custody := bank.New(tx.State)
		custody.SetEmitter(tx.Events)
		for i, alloc := range allocations {
			if alloc.Amount == 0 {
				continue
			}
			account := vault.TokenAccountAddress(alloc.Mint, alloc.Owner)
			if err := custody.Credit(account, alloc.Mint, alloc.Owner, alloc.Amount); err != nil {
				return fmt.Errorf("genesis allocation %d: %w", i, err)
			}
		}
		applied = true
		return tx.State.MarkGenesisApplied()
	})
	return applied, err
}

var errHoldersChanged = errors.New("ledger: vault holders changed during reconciliation")

// Reconcile verifies the vault's bookkeeping against its positions under the
// vault lock.
func (l *Ledger) Reconcile(ctx context.Context, vaultAddr crypto.PublicKey) (*Reconciliation, error) {
	v, err := l.lookupVault(vaultAddr)
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < 3; attempt++ {
		holders, err := l.exec.Read().VaultHolders(vaultAddr)
		if err != nil {
			return nil, err
		}
		keys := []crypto.PublicKey{v.Address, v.CustodyAccount}
		for _, holder := range holders {
			keys = append(keys, vault.StakeAddress(v.Address, holder))
		}
		var out *Reconciliation
		err = l.exec.Execute(ctx, keys, func(tx *Tx) error {
			current, err := tx.State.VaultHolders(vaultAddr)
			if err != nil {
				return err
			}
			if len(current) != len(holders) {
				return errHoldersChanged
			}
			stored, ok, err := tx.State.VaultGet(vaultAddr)
			if err != nil {
				return err
			}
			if !ok {
				return vault.ErrVaultNotFound
			}
			out = &Reconciliation{Vault: vaultAddr, TotalStaked: stored.TotalStaked, Holders: len(current)}
			for _, holder := range current {
				stake, ok, err := tx.State.StakeGet(vaultAddr, holder)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				if out.SumOfStakes, err = common.CheckedAdd(out.SumOfStakes, stake.Amount); err != nil {
					return err
				}
			}
			out.CustodyBalance, err = bank.New(tx.State).Balance(stored.CustodyAccount)
			return err
		})
		if errors.Is(err, errHoldersChanged) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, errHoldersChanged
}
