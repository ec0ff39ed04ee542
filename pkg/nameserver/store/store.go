// Package store is the name server's non-wire-format persistence layer: the
// SS roster and the pending access-request list. Neither has a format
// mandated by spec.md §6 (only users.db, permission_db/, and the SS's
// metadata.db do), so this package uses a real embedded SQL store
// (gorm.io/gorm over glebarez/sqlite) instead of another hand-rolled flat
// file.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SSRecord is the durable half of a storage server's roster entry: the
// stable id, its advertised endpoints, ring position, and load-balancing
// counters (spec.md §3's "Storage Server record"). Transient fields
// (Online, Syncing, LastHeartbeat) also live here so a restarted NS can
// resume with its last known view, but the heartbeat monitor immediately
// re-verifies liveness rather than trusting a stale Online flag.
type SSRecord struct {
	SSID           uint32 `gorm:"primaryKey"`
	IP             string `gorm:"size:64;not null"`
	ClientPort     uint32 `gorm:"not null"`
	ReplPort       uint32 `gorm:"not null"`
	RingOrder      int64  `gorm:"uniqueIndex;not null"`
	Online         bool
	Syncing        bool
	PendingFullSync bool
	FileCount      int
	BackupSSID     uint32
	HasBackup      bool
	LastHeartbeat  time.Time
}

func (SSRecord) TableName() string { return "ss_records" }

// AccessRequestRecord persists one pending REQACCESS entry so it survives
// an NS restart (spec.md §3's "Access request" entity).
type AccessRequestRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Requester string `gorm:"size:64;not null"`
	Filename  string `gorm:"size:256;not null"`
}

func (AccessRequestRecord) TableName() string { return "access_requests" }

// Store is the GORM-backed handle to the NS's SQLite database.
type Store struct {
	db *gorm.DB
}

// Open creates (if needed) the parent directory for path, connects to a
// SQLite database there with WAL journaling for concurrent readers, and
// auto-migrates the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("nameserver/store: create dir: %w", err)
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("nameserver/store: open: %w", err)
	}
	if err := db.AutoMigrate(&SSRecord{}, &AccessRequestRecord{}); err != nil {
		return nil, fmt.Errorf("nameserver/store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// LoadSSRecords returns every persisted SS roster entry, ordered by ring
// position.
func (s *Store) LoadSSRecords() ([]SSRecord, error) {
	var out []SSRecord
	if err := s.db.Order("ring_order asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertSSRecord inserts or fully replaces rec.
func (s *Store) UpsertSSRecord(rec SSRecord) error {
	return s.db.Save(&rec).Error
}

// LoadAccessRequests returns every persisted pending access request.
func (s *Store) LoadAccessRequests() ([]AccessRequestRecord, error) {
	var out []AccessRequestRecord
	if err := s.db.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// InsertAccessRequest persists a new pending request.
func (s *Store) InsertAccessRequest(requester, filename string) error {
	return s.db.Create(&AccessRequestRecord{Requester: requester, Filename: filename}).Error
}

// DeleteAccessRequest removes the first persisted request matching
// requester+filename.
func (s *Store) DeleteAccessRequest(requester, filename string) error {
	return s.db.Where("requester = ? AND filename = ?", requester, filename).
		Limit(1).Delete(&AccessRequestRecord{}).Error
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
