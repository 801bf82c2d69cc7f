package bank

import (
	"errors"
	"fmt"

	"pangivault/core/events"
	"pangivault/crypto"
	"pangivault/native/common"
)

var (
	errNilState          = errors.New("bank: state not configured")
	ErrAccountNotFound   = errors.New("bank: token account not found")
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	ErrMintMismatch      = errors.New("bank: token account holds a different mint")
	ErrInvalidAmount     = errors.New("bank: amount must be positive")
)

// Account is a single-mint token balance owned by a holder or a vault.
type Account struct {
	Address crypto.PublicKey
	Mint    crypto.PublicKey
	Owner   crypto.PublicKey
	Amount  uint64
}

type accountState interface {
	TokenAccountGet(addr crypto.PublicKey) (*Account, bool, error)
	TokenAccountPut(acc *Account) error
}

// Bank moves balances between token accounts with checked arithmetic.
type Bank struct {
	state   accountState
	emitter events.Emitter
}

// New constructs a bank over the provided state.
func New(state accountState) *Bank {
	return &Bank{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used by the bank.
func (b *Bank) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		b.emitter = events.NoopEmitter{}
		return
	}
	b.emitter = emitter
}

func (b *Bank) load(addr crypto.PublicKey) (*Account, error) {
	if b == nil || b.state == nil {
		return nil, errNilState
	}
	acc, ok, err := b.state.TokenAccountGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || acc == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return acc, nil
}

// Open creates an empty account when none exists at the address.
func (b *Bank) Open(addr, mint, owner crypto.PublicKey) error {
	if b == nil || b.state == nil {
		return errNilState
	}
	existing, ok, err := b.state.TokenAccountGet(addr)
	if err != nil {
		return err
	}
	if ok && existing != nil {
		if existing.Mint != mint {
			return ErrMintMismatch
		}
		return nil
	}
	return b.state.TokenAccountPut(&Account{Address: addr, Mint: mint, Owner: owner})
}

// Balance returns the balance held at addr. Missing accounts hold nothing.
func (b *Bank) Balance(addr crypto.PublicKey) (uint64, error) {
	if b == nil || b.state == nil {
		return 0, errNilState
	}
	acc, ok, err := b.state.TokenAccountGet(addr)
	if err != nil {
		return 0, err
	}
	if !ok || acc == nil {
		return 0, nil
	}
	return acc.Amount, nil
}

// Transfer moves amount between two accounts of the same mint.
func (b *Bank) Transfer(from, to crypto.PublicKey, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	src, err := b.load(from)
	if err != nil {
		return err
	}
	dst, err := b.load(to)
	if err != nil {
		return err
	}
	if src.Mint != dst.Mint {
		return ErrMintMismatch
	}
	if src.Amount < amount {
		return ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	if src.Amount, err = common.CheckedSub(src.Amount, amount); err != nil {
		return err
	}
	if dst.Amount, err = common.CheckedAdd(dst.Amount, amount); err != nil {
		return err
	}
	if err := b.state.TokenAccountPut(src); err != nil {
		return err
	}
	if err := b.state.TokenAccountPut(dst); err != nil {
		return err
	}
	b.emitter.Emit(events.Transfer{Mint: src.Mint, From: from, To: to, Amount: amount})
	return nil
}

// Credit mints amount into the account at addr, opening it if needed. It is
// reserved for genesis allocations and development faucets.
func (b *Bank) Credit(addr, mint, owner crypto.PublicKey, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if err := b.Open(addr, mint, owner); err != nil {
		return err
	}
	acc, err := b.load(addr)
	if err != nil {
		return err
	}
	if acc.Amount, err = common.CheckedAdd(acc.Amount, amount); err != nil {
		return err
	}
	if err := b.state.TokenAccountPut(acc); err != nil {
		return err
	}
	b.emitter.Emit(events.Mint{Mint: mint, Account: addr, Owner: owner, Amount: amount})
	return nil
}
