package audit

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"lukechampine.com/blake3"

	"pangivault/core/types"
)

// ErrChainBroken reports a record whose hash no longer matches its contents or
// predecessor.
var ErrChainBroken = errors.New("audit: hash chain broken")

// genesisHash anchors the first record of the chain.
var genesisHash = hex.EncodeToString(make([]byte, 32))

// Store appends events to the hash chained audit table.
type Store struct {
	db *gorm.DB

	mu   sync.Mutex
	head string
	seq  uint64
	now  func() time.Time
}

// NewStore resumes the chain from the newest persisted record.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("audit: database required")
	}
	store := &Store{db: db, head: genesisHash, now: time.Now}
	var last Record
	err := db.Order("sequence desc").Limit(1).Take(&last).Error
	switch {
	case err == nil:
		store.head = last.Hash
		store.seq = last.Sequence
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("audit: load head: %w", err)
	}
	return store, nil
}

// Append persists evt as the next link of the chain.
func (s *Store) Append(ctx context.Context, evt *types.Event) (*Record, error) {
	if evt == nil {
		return nil, fmt.Errorf("audit: nil event")
	}
	attrs := evt.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("audit: encode attributes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := &Record{
		ID:         uuid.New(),
		Sequence:   s.seq + 1,
		Type:       evt.Type,
		Attributes: string(encoded),
		RecordedAt: s.now().UTC().UnixNano(),
		PrevHash:   s.head,
	}
	record.Hash = chainHash(record)
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("audit: insert: %w", err)
	}
	s.head = record.Hash
	s.seq = record.Sequence
	return record, nil
}

// List returns up to limit records with a sequence greater than after.
func (s *Store) List(ctx context.Context, after uint64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []Record
	err := s.db.WithContext(ctx).
		Where("sequence > ?", after).
		Order("sequence asc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return records, nil
}

// Verification summarises a successful walk of the chain.
type Verification struct {
	Records uint64 `json:"records"`
	Head    string `json:"head"`
}

// Verify walks the whole chain and returns ErrChainBroken at the first record
// that does not link to its predecessor or whose contents were altered.
func (s *Store) Verify(ctx context.Context) error {
	_, err := s.Check(ctx)
	return err
}

// Check is Verify that also reports how many records were verified and the
// hash of the last one.
func (s *Store) Check(ctx context.Context) (*Verification, error) {
	prev := genesisHash
	var expected uint64 = 1
	const page = 500
	for {
		records, err := s.List(ctx, expected-1, page)
		if err != nil {
			return nil, err
		}
		for i := range records {
			rec := &records[i]
			if rec.Sequence != expected {
				return nil, fmt.Errorf("%w: missing sequence %d", ErrChainBroken, expected)
			}
			if rec.PrevHash != prev {
				return nil, fmt.Errorf("%w: sequence %d does not link to its predecessor", ErrChainBroken, rec.Sequence)
			}
			if chainHash(rec) != rec.Hash {
				return nil, fmt.Errorf("%w: sequence %d contents altered", ErrChainBroken, rec.Sequence)
			}
			prev = rec.Hash
			expected++
		}
		if len(records) < page {
			return &Verification{Records: expected - 1, Head: prev}, nil
		}
	}
}

func chainHash(rec *Record) string {
	h := blake3.New(32, nil)
	h.Write([]byte(rec.PrevHash))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], rec.Sequence)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(rec.RecordedAt))
	h.Write(buf[:])
	writeField(h, rec.Type)
	writeField(h, rec.Attributes)
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h *blake3.Hasher, field string) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(field)))
	h.Write(buf[:])
	h.Write([]byte(field))
}
