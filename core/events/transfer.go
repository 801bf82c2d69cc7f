package events

import (
	"pangivault/core/types"
	"pangivault/crypto"
)

const (
	// TypeTransfer is emitted for every token movement between token accounts.
	TypeTransfer = "bank.transfer"
	// TypeMint is emitted when tokens are credited outside of a transfer
	// (genesis allocations and development faucets).
	TypeMint = "bank.mint"
)

type Transfer struct {
	Mint   crypto.PublicKey
	From   crypto.PublicKey
	To     crypto.PublicKey
	Amount uint64
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{Type: TypeTransfer, Attributes: map[string]string{
		"mint":   e.Mint.String(),
		"from":   e.From.String(),
		"to":     e.To.String(),
		"amount": formatUint(e.Amount),
	}}
}

type Mint struct {
	Mint    crypto.PublicKey
	Account crypto.PublicKey
	Owner   crypto.PublicKey
	Amount  uint64
}

func (Mint) EventType() string { return TypeMint }

func (e Mint) Event() *types.Event {
	return &types.Event{Type: TypeMint, Attributes: map[string]string{
		"mint":    e.Mint.String(),
		"account": e.Account.String(),
		"owner":   e.Owner.String(),
		"amount":  formatUint(e.Amount),
	}}
}
