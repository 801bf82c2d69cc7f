package vault

import "pangivault/crypto"

// Custody moves fungible tokens between token accounts. Accounts are
// addressed by TokenAccountAddress or CustodyAddress and hold a single mint.
type Custody interface {
	// Open creates an empty account for owner if none exists yet.
	Open(account, mint, owner crypto.PublicKey) error
	Balance(account crypto.PublicKey) (uint64, error)
	Transfer(from, to crypto.PublicKey, amount uint64) error
}
