package state

import (
	"fmt"

	"pangivault/crypto"
	"pangivault/native/bank"
)

type storedTokenAccount struct {
	Address crypto.PublicKey
	Mint    crypto.PublicKey
	Owner   crypto.PublicKey
	Amount  uint64
}

// TokenAccountGet loads the token account stored at addr.
func (m *Manager) TokenAccountGet(addr crypto.PublicKey) (*bank.Account, bool, error) {
	if err := m.checkScope(addr); err != nil {
		return nil, false, err
	}
	stored := new(storedTokenAccount)
	ok, err := m.KVGet(TokenAccountKey(addr), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &bank.Account{
		Address: stored.Address,
		Mint:    stored.Mint,
		Owner:   stored.Owner,
		Amount:  stored.Amount,
	}, true, nil
}

// TokenAccountPut stores the token account.
func (m *Manager) TokenAccountPut(acc *bank.Account) error {
	if acc == nil {
		return fmt.Errorf("state: token account must not be nil")
	}
	if err := m.checkScope(acc.Address); err != nil {
		return err
	}
	return m.KVPut(TokenAccountKey(acc.Address), &storedTokenAccount{
		Address: acc.Address,
		Mint:    acc.Mint,
		Owner:   acc.Owner,
		Amount:  acc.Amount,
	})
}
