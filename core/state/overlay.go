package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"pangivault/storage"
)

// Store is the key/value surface the manager reads and writes.
type Store interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
}

// Overlay buffers writes on top of a database so a unit of work can be
// committed in one atomic batch or dropped without a trace.
type Overlay struct {
	mu     sync.Mutex
	base   storage.Database
	writes map[string][]byte
	done   bool
}

var errOverlayClosed = errors.New("state overlay: already committed or discarded")

// NewOverlay starts an empty write buffer over db.
func NewOverlay(db storage.Database) *Overlay {
	return &Overlay{base: db, writes: make(map[string][]byte)}
}

// Get returns the buffered value for key, falling back to the database.
func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return nil, errOverlayClosed
	}
	if value, ok := o.writes[string(key)]; ok {
		return append([]byte(nil), value...), nil
	}
	return o.base.Get(key)
}

// Put buffers a write.
func (o *Overlay) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return errOverlayClosed
	}
	o.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

// Len reports the number of buffered writes.
func (o *Overlay) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.writes)
}

// Commit applies every buffered write to the database atomically. The overlay
// cannot be used afterwards.
func (o *Overlay) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return errOverlayClosed
	}
	o.done = true
	if len(o.writes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(o.writes))
	for key := range o.writes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := o.base.NewBatch()
	for _, key := range keys {
		batch.Put([]byte(key), o.writes[key])
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state overlay: commit: %w", err)
	}
	return nil
}

// Discard drops every buffered write.
func (o *Overlay) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done = true
	o.writes = nil
}
