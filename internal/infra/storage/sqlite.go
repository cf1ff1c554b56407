package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// FillRecord is one accepted execution, journaled for post-session audit.
// The (OrderID, ExecID) pair is unique: redelivered fills that slip past
// the in-memory dedup are rejected by the index.
type FillRecord struct {
	ID          uint   `gorm:"primaryKey"`
	ExecID      string `gorm:"uniqueIndex:idx_fill_key"`
	OrderID     string `gorm:"uniqueIndex:idx_fill_key"`
	OrderLinkID string `gorm:"index"`
	Symbol      string
	Category    string
	Side        string
	Price       string // decimal string, exact
	Qty         string
	IsMaker     bool
	ExecTime    int64
	CreatedAt   time.Time
}

// SessionSnapshot is a point-in-time record of the session figures.
type SessionSnapshot struct {
	ID        uint `gorm:"primaryKey"`
	Symbol    string
	Pnl       string
	MaxPnl    string
	Drawdown  string
	Position  string
	CreatedAt time.Time
}

// Journal persists fills and session snapshots to a local SQLite file.
type Journal struct {
	db *gorm.DB
}

// NewJournal opens (or creates) the journal database. An empty path uses
// the OS user config directory.
func NewJournal(path string) (*Journal, error) {
	if path == "" {
		p, err := defaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve journal path: %w", err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	// Pure Go SQLite, no cgo.
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	if err := db.AutoMigrate(&FillRecord{}, &SessionSnapshot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal database: %w", err)
	}

	return &Journal{db: db}, nil
}

// defaultPath resolves the journal file path based on OS.
func defaultPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "OmsGo", "data", "journal.db"), nil
}

// SaveFill appends one fill. Duplicate (OrderID, ExecID) pairs are ignored.
func (j *Journal) SaveFill(fill *FillRecord) error {
	err := j.db.Create(fill).Error
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	return err
}

// ListFills returns all journaled fills in insertion order.
func (j *Journal) ListFills() ([]FillRecord, error) {
	var fills []FillRecord
	err := j.db.Order("id asc").Find(&fills).Error
	return fills, err
}

// SaveSnapshot appends a session snapshot row.
func (j *Journal) SaveSnapshot(snap *SessionSnapshot) error {
	return j.db.Create(snap).Error
}

// LatestSnapshot returns the most recent session snapshot, or nil.
func (j *Journal) LatestSnapshot() (*SessionSnapshot, error) {
	var snap SessionSnapshot
	err := j.db.Order("id desc").First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isUniqueViolation(err error) bool {
	// glebarez/sqlite surfaces constraint failures as plain errors; match
	// on the sqlite message rather than a driver-specific type.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
