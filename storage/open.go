package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Open returns the database for the named backend rooted at path.
func Open(backend, path string) (Database, error) {
	switch backend {
	case "memory":
		return NewMemDB(), nil
	case "leveldb", "":
		db, err := NewLevelDB(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "bolt":
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		db, err := NewBoltDB(path, &bolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", backend)
	}
}
