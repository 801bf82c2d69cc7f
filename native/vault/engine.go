package vault

import (
	"time"

	"pangivault/core/events"
	"pangivault/crypto"
	"pangivault/native/common"
)

type engineState interface {
	VaultGet(addr crypto.PublicKey) (*Vault, bool, error)
	VaultPut(v *Vault) error
	StakeGet(vault crypto.PublicKey, holder crypto.PublicKey) (*StakeRecord, bool, error)
	StakePut(stake *StakeRecord) error
}

// Engine applies vault and stake business rules on top of a state backend and
// a custody implementation. It holds no locks: callers serialise access to the
// records an operation touches.
type Engine struct {
	state   engineState
	custody Custody
	pauses  common.PauseView
	params  Params
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a vault engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		params:  DefaultParams(),
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCustody configures the token custody used to move funds.
func (e *Engine) SetCustody(custody Custody) { e.custody = custody }

// SetPauses configures the pause switches consulted before mutating flows.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetParams overrides the engine limits.
func (e *Engine) SetParams(p Params) { e.params = p }

// Params returns the limits currently enforced.
func (e *Engine) Params() Params { return e.params }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.custody == nil {
		return errNilCustody
	}
	return nil
}

func (e *Engine) guard() error {
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return ErrModulePaused
	}
	return nil
}

func (e *Engine) loadVault(addr crypto.PublicKey) (*Vault, error) {
	v, ok, err := e.state.VaultGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || v == nil {
		return nil, ErrVaultNotFound
	}
	return v, nil
}

func (e *Engine) loadStake(v *Vault, holder crypto.PublicKey) (*StakeRecord, error) {
	stake, ok, err := e.state.StakeGet(v.Address, holder)
	if err != nil {
		return nil, err
	}
	if !ok || stake == nil {
		return nil, ErrStakeNotFound
	}
	if stake.Vault != v.Address {
		return nil, ErrInvalidVaultAccount
	}
	if stake.Holder != holder {
		return nil, ErrUnauthorized
	}
	return stake, nil
}

// CheckCustodyAccount verifies that a client supplied custody account is the
// one derived for the vault.
func (e *Engine) CheckCustodyAccount(vaultAddr, account crypto.PublicKey) error {
	if err := e.ready(); err != nil {
		return err
	}
	v, err := e.loadVault(vaultAddr)
	if err != nil {
		return err
	}
	if account != v.CustodyAccount || account != CustodyAddress(v.Address) {
		return ErrInvalidVaultAccount
	}
	return nil
}

// Vault returns the stored vault.
func (e *Engine) Vault(addr crypto.PublicKey) (*Vault, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadVault(addr)
}

// Stake returns the stored position of holder in the vault.
func (e *Engine) Stake(vaultAddr, holder crypto.PublicKey) (*StakeRecord, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	v, err := e.loadVault(vaultAddr)
	if err != nil {
		return nil, err
	}
	return e.loadStake(v, holder)
}

// Preview projects the position at the current instant without mutating it.
func (e *Engine) Preview(vaultAddr, holder crypto.PublicKey) (*Preview, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	now := e.now()
	v, err := e.loadVault(vaultAddr)
	if err != nil {
		return nil, err
	}
	stake, err := e.loadStake(v, holder)
	if err != nil {
		return nil, err
	}
	preview := &Preview{
		Stake:         stake,
		Phase:         PhaseAt(stake, now),
		AsOf:          now,
		NextClaimAt:   e.params.NextClaimAt(stake),
		NextDepositAt: e.params.NextDepositAt(stake),
	}
	switch preview.Phase {
	case PhaseUnlockable:
		preview.PendingRewards, err = Reward(stake.Amount, v.RewardRateBps, stake.LastClaim, now)
	case PhaseLocked:
		preview.EarlyExit, err = SettleEarlyExit(stake.Amount, v.RewardRateBps, e.params.EarlyUnlockPenaltyBps, stake.StakedAt, stake.UnlockAt, now)
	}
	if err != nil {
		return nil, err
	}
	return preview, nil
}
