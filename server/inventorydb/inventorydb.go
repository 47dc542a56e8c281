// Package inventorydb stores the product catalog, scanned cases, and sales floor counts.
package inventorydb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

var ErrDuplicateSerial = errors.New("A scanned item with this serial already exists")

// InventoryDB wraps our sqlite database.
// SQLite only supports one writer at a time, and we have several writers
// (the scanner, the dummy data generator, manual sales floor entry), so
// all writes go through writeLock.
type InventoryDB struct {
	Log logs.Log
	DB  *gorm.DB

	writeLock sync.Mutex
}

// Open or create an inventory DB
func NewInventoryDB(logger logs.Log, dbFilename string) (*InventoryDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbFilename), 0777); err != nil {
		return nil, fmt.Errorf("Failed to create database directory for '%v': %w", dbFilename, err)
	}
	db, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbFilename), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database %v: %w", dbFilename, err)
	}
	return &InventoryDB{
		Log: logger,
		DB:  db,
	}, nil
}

func (d *InventoryDB) Close() {
	if sqlDB, err := d.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

// write runs f inside a transaction, holding the write lock
func (d *InventoryDB) write(ctx context.Context, f func(tx *gorm.DB) error) error {
	d.writeLock.Lock()
	defer d.writeLock.Unlock()
	return d.DB.WithContext(ctx).Transaction(f)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "violates unique constraint")
}
