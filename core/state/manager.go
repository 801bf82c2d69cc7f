package state

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"pangivault/crypto"
	"pangivault/storage"
)

// ErrUndeclaredKey is returned when an operation touches a record its unit of
// work did not declare upfront.
var ErrUndeclaredKey = errors.New("state: record not declared by unit of work")

// Manager provides typed access to ledger records stored in a key/value store.
// Keys are hashed with keccak256 and values are RLP encoded.
type Manager struct {
	store Store
	scope map[crypto.PublicKey]struct{}
}

// NewManager creates a state manager operating on the provided store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// WithScope returns a manager that only permits access to the supplied record
// addresses. An empty list removes the restriction.
func (m *Manager) WithScope(addrs ...crypto.PublicKey) *Manager {
	scoped := &Manager{store: m.store}
	if len(addrs) == 0 {
		return scoped
	}
	scoped.scope = make(map[crypto.PublicKey]struct{}, len(addrs))
	for _, addr := range addrs {
		scoped.scope[addr] = struct{}{}
	}
	return scoped
}

func (m *Manager) checkScope(addr crypto.PublicKey) error {
	if m.scope == nil {
		return nil
	}
	if _, ok := m.scope[addr]; !ok {
		return fmt.Errorf("%w: %s", ErrUndeclaredKey, addr)
	}
	return nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is automatically hashed with keccak256.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.store.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.store.Get(kvKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

// KVList returns the byte slice list stored under key.
func (m *Manager) KVList(key []byte) ([][]byte, error) {
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func decodeAddresses(list [][]byte) ([]crypto.PublicKey, error) {
	out := make([]crypto.PublicKey, 0, len(list))
	for _, raw := range list {
		addr, err := crypto.PublicKeyFromBytes(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func toUnix(ts uint64) int64 { return int64(ts) }

func fromUnix(field string, ts int64) (uint64, error) {
	if ts < 0 {
		return 0, fmt.Errorf("state: %s must not be negative", field)
	}
	return uint64(ts), nil
}
