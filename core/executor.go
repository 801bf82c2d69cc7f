package core

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"pangivault/core/events"
	"pangivault/core/state"
	"pangivault/crypto"
	"pangivault/observability/metrics"
	"pangivault/storage"
)

var errNilDatabase = errors.New("executor: database not configured")

// Tx is the view a unit of work runs against. State reads see the unit's own
// buffered writes and may only touch the declared records. Events are held
// back until the unit commits.
type Tx struct {
	State  *state.Manager
	Events events.Emitter
}

// Executor serialises units of work that touch the same records and applies
// each unit atomically. Units with disjoint record sets run in parallel.
type Executor struct {
	db      storage.Database
	locks   *keyLocks
	emitter events.Emitter
	metrics *metrics.VaultMetrics
}

// NewExecutor constructs an executor over db. Committed events are forwarded
// to emitter.
func NewExecutor(db storage.Database, emitter events.Emitter) *Executor {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Executor{
		db:      db,
		locks:   newKeyLocks(),
		emitter: emitter,
		metrics: metrics.Vault(),
	}
}

// Execute runs fn as one unit of work over the declared record addresses.
// Locks are taken in sorted address order. If fn fails, nothing it wrote or
// emitted survives. Cancellation is only honoured before locks are acquired.
func (e *Executor) Execute(ctx context.Context, keys []crypto.PublicKey, fn func(tx *Tx) error) error {
	if e == nil || e.db == nil {
		return errNilDatabase
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	ordered := sortKeys(keys)
	start := time.Now()
	release := e.locks.acquire(ordered)
	defer release()
	e.metrics.ObserveLockWait(time.Since(start).Seconds())

	overlay := state.NewOverlay(e.db)
	buffer := &events.Buffer{}
	tx := &Tx{
		State:  state.NewManager(overlay).WithScope(ordered...),
		Events: buffer,
	}
	if err := fn(tx); err != nil {
		overlay.Discard()
		buffer.Discard()
		return err
	}
	if err := overlay.Commit(); err != nil {
		buffer.Discard()
		return err
	}
	buffer.Flush(e.emitter)
	return nil
}

// Read returns an unrestricted manager over committed state for lookups that
// do not need a consistent multi-record view.
func (e *Executor) Read() *state.Manager {
	return state.NewManager(e.db)
}

func sortKeys(keys []crypto.PublicKey) []crypto.PublicKey {
	seen := make(map[crypto.PublicKey]struct{}, len(keys))
	out := make([]crypto.PublicKey, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

// keyLocks hands out one mutex per record address and frees it once no unit
// holds or waits for it.
type keyLocks struct {
	mu    sync.Mutex
	locks map[crypto.PublicKey]*refLock
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[crypto.PublicKey]*refLock)}
}

func (k *keyLocks) acquire(ordered []crypto.PublicKey) func() {
	held := make([]*refLock, 0, len(ordered))
	for _, key := range ordered {
		k.mu.Lock()
		lock, ok := k.locks[key]
		if !ok {
			lock = &refLock{}
			k.locks[key] = lock
		}
		lock.refs++
		k.mu.Unlock()
		lock.mu.Lock()
		held = append(held, lock)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			k.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(k.locks, ordered[i])
			}
			k.mu.Unlock()
		}
	}
}

// size reports the number of live lock entries.
func (k *keyLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// waiters reports how many units hold or wait for the lock on key.
func (k *keyLocks) waiters(key crypto.PublicKey) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if lock, ok := k.locks[key]; ok {
		return lock.refs
	}
	return 0
}
