package vault

import "pangivault/crypto"

var (
	vaultSeed        = []byte("vault")
	vaultTokensSeed  = []byte("vault_tokens")
	stakeSeed        = []byte("stake")
	tokenAccountSeed = []byte("token_account")
)

// VaultAddress derives the address of the vault for a token and creator mint pair.
func VaultAddress(tokenMint, creatorMint crypto.PublicKey) crypto.PublicKey {
	return crypto.DeriveAddress(vaultSeed, tokenMint[:], creatorMint[:])
}

// CustodyAddress derives the token account holding the vault's pooled funds.
func CustodyAddress(vault crypto.PublicKey) crypto.PublicKey {
	return crypto.DeriveAddress(vaultTokensSeed, vault[:])
}

// StakeAddress derives the address of a holder's stake record in a vault.
func StakeAddress(vault, holder crypto.PublicKey) crypto.PublicKey {
	return crypto.DeriveAddress(stakeSeed, vault[:], holder[:])
}

// TokenAccountAddress derives the token account an owner holds for a mint.
func TokenAccountAddress(mint, owner crypto.PublicKey) crypto.PublicKey {
	return crypto.DeriveAddress(tokenAccountSeed, mint[:], owner[:])
}
