package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Record is one persisted ledger event. Hash commits to the record contents
// and PrevHash, forming a chain that exposes edits and deletions.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"uniqueIndex;not null"`
	Type       string    `gorm:"size:64;index;not null"`
	Attributes string    `gorm:"type:text;not null"`
	RecordedAt int64     `gorm:"not null"`
	PrevHash   string    `gorm:"size:64;not null"`
	Hash       string    `gorm:"size:64;uniqueIndex;not null"`
	CreatedAt  time.Time
}

// TableName pins the table name independently of the struct name.
func (Record) TableName() string { return "vault_audit_events" }

// AutoMigrate performs all schema migrations for the audit log.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}

// Open connects to the audit database. Supported drivers are sqlite and
// postgres.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("audit: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", driver, err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return db, nil
}
