// Package testutil provides database fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openforum/forum/config"
	"github.com/openforum/forum/migrations"
	"github.com/openforum/forum/models"
	"github.com/openforum/forum/schema"
)

// IdentityTable is the identity table name used by test databases.
const IdentityTable = "users"

var userSeq atomic.Int64

// SetupTestDB opens a fresh SQLite database with foreign keys on and the full schema applied.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := config.SQLiteDSN(filepath.Join(t.TempDir(), "forum.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if _, err := migrations.Apply(context.Background(), db, schema.Forum(IdentityTable)); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// CreateUser inserts an identity row with a unique username and a placeholder hash.
func CreateUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	if name == "" {
		name = fmt.Sprintf("user%d", userSeq.Add(1))
	}
	u := &models.User{Username: name, PasswordHash: "$2a$10$placeholderplaceholderplacehold"}
	if err := db.Table(IdentityTable).Create(u).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", name, err)
	}
	return u
}

// CountRows returns the number of rows in table.
func CountRows(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var n int64
	if err := db.Table(table).Count(&n).Error; err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}
