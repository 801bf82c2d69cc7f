package state

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"pangivault/crypto"
)

var (
	vaultRecordPrefix  = []byte("vault/record/")
	vaultHoldersPrefix = []byte("vault/holders/")
	stakeRecordPrefix  = []byte("vault/stake/")
	tokenAccountPrefix = []byte("bank/account/")
	vaultIndexKeyBytes = []byte("vault/index")
)

// VaultIndexAddress is the logical address guarding the global vault index.
// Units of work that create vaults must declare it.
var VaultIndexAddress = crypto.DeriveAddress([]byte("vault_index"))

func prefixed(prefix []byte, addr crypto.PublicKey) []byte {
	buf := make([]byte, len(prefix)+len(addr))
	copy(buf, prefix)
	copy(buf[len(prefix):], addr[:])
	return buf
}

// VaultRecordKey returns the key of the vault stored at addr.
func VaultRecordKey(addr crypto.PublicKey) []byte { return prefixed(vaultRecordPrefix, addr) }

// VaultHoldersKey returns the key of the holder index of a vault.
func VaultHoldersKey(addr crypto.PublicKey) []byte { return prefixed(vaultHoldersPrefix, addr) }

// StakeRecordKey returns the key of the stake record stored at addr.
func StakeRecordKey(addr crypto.PublicKey) []byte { return prefixed(stakeRecordPrefix, addr) }

// TokenAccountKey returns the key of the token account stored at addr.
func TokenAccountKey(addr crypto.PublicKey) []byte { return prefixed(tokenAccountPrefix, addr) }

// VaultIndexKey returns the key of the list of every vault address.
func VaultIndexKey() []byte { return append([]byte(nil), vaultIndexKeyBytes...) }

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

var genesisMarkerKeyBytes = []byte("ledger/genesis-applied")

// GenesisAddress is the logical address guarding the genesis marker.
var GenesisAddress = crypto.DeriveAddress([]byte("genesis"))
