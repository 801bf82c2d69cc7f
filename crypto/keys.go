package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/crypto"
)

// PublicKeyLength is the size in bytes of every identifier handled by the ledger.
const PublicKeyLength = 32

// PublicKey identifies an account, mint, vault or record. Holder keys are
// ed25519 public keys; program-owned records use keys derived from seeds.
type PublicKey [PublicKeyLength]byte

// String renders the key in base58, the canonical text form.
func (k PublicKey) String() string {
	return base58.Encode(k[:])
}

// Bytes returns a copy of the raw key bytes.
func (k PublicKey) Bytes() []byte {
	out := make([]byte, PublicKeyLength)
	copy(out, k[:])
	return out
}

// IsZero reports whether the key is unset.
func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// MarshalText implements encoding.TextMarshaler.
func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PublicKey) UnmarshalText(text []byte) error {
	decoded, err := DecodePublicKey(string(text))
	if err != nil {
		return err
	}
	*k = decoded
	return nil
}

// DecodePublicKey parses a base58 encoded public key.
func DecodePublicKey(s string) (PublicKey, error) {
	var key PublicKey
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return key, fmt.Errorf("public key required")
	}
	raw := base58.Decode(trimmed)
	if len(raw) != PublicKeyLength {
		return key, fmt.Errorf("invalid public key %q: expected %d bytes, got %d", trimmed, PublicKeyLength, len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

// MustDecodePublicKey is DecodePublicKey for constants and tests.
func MustDecodePublicKey(s string) PublicKey {
	key, err := DecodePublicKey(s)
	if err != nil {
		panic(err)
	}
	return key
}

// PublicKeyFromBytes copies raw bytes into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var key PublicKey
	if len(b) != PublicKeyLength {
		return key, fmt.Errorf("public key must be %d bytes long", PublicKeyLength)
	}
	copy(key[:], b)
	return key, nil
}

// DeriveAddress deterministically derives a record address from the supplied
// seeds. Seeds are length-prefixed before hashing so distinct seed lists never
// collide.
func DeriveAddress(seeds ...[]byte) PublicKey {
	buf := make([]byte, 0, 128)
	for _, seed := range seeds {
		buf = append(buf, byte(len(seed)))
		buf = append(buf, seed...)
	}
	var out PublicKey
	copy(out[:], crypto.Keccak256(buf))
	return out
}

// --- Key Management ---

// PrivateKey wraps an ed25519 signing key.
type PrivateKey struct {
	ed25519.PrivateKey
}

// GeneratePrivateKey creates a fresh ed25519 key pair.
func GeneratePrivateKey() (*PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{priv}, nil
}

// PubKey returns the public half of the key pair.
func (k *PrivateKey) PubKey() PublicKey {
	var out PublicKey
	copy(out[:], k.PrivateKey.Public().(ed25519.PublicKey))
	return out
}

// Bytes returns the 64-byte ed25519 private key encoding.
func (k *PrivateKey) Bytes() []byte {
	return append([]byte(nil), k.PrivateKey...)
}

// PrivateKeyFromBytes restores a key produced by Bytes.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes long", ed25519.PrivateKeySize)
	}
	return &PrivateKey{ed25519.PrivateKey(append([]byte(nil), b...))}, nil
}
