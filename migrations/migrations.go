package migrations

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/openforum/forum/schema"
)

// SchemaMigration records one applied migration.
type SchemaMigration struct {
	Version   string    `gorm:"primaryKey;size:32"`
	Name      string    `gorm:"size:128;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// Migration is a forward-only schema change rendered from the schema definitions.
type Migration struct {
	Version string
	Name    string
	Up      func(s *schema.Schema, d schema.Dialect) []string
}

// All lists the migrations in the order they are applied.
var All = []Migration{
	{
		Version: "0001",
		Name:    "identity",
		Up: func(s *schema.Schema, d schema.Dialect) []string {
			return s.IdentityStatements(d)
		},
	},
	{
		Version: "0002",
		Name:    "forum_initial",
		Up: func(s *schema.Schema, d schema.Dialect) []string {
			return s.CreateStatements(d)
		},
	},
}

// Apply runs every migration not yet recorded and returns the versions it applied.
func Apply(ctx context.Context, db *gorm.DB, s *schema.Schema) ([]string, error) {
	d, err := schema.DialectFor(db.Dialector.Name())
	if err != nil {
		return nil, err
	}

	db = db.WithContext(ctx)
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return nil, fmt.Errorf("prepare schema_migrations: %w", err)
	}

	var done []SchemaMigration
	if err := db.Find(&done).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	applied := make(map[string]bool, len(done))
	for _, m := range done {
		applied[m.Version] = true
	}

	var ran []string
	for _, m := range All {
		if applied[m.Version] {
			continue
		}
		// MySQL commits DDL implicitly; the transaction still keeps the record
		// and the statements together on engines with transactional DDL.
		err := db.Transaction(func(tx *gorm.DB) error {
			for _, stmt := range m.Up(s, d) {
				if err := tx.Exec(stmt).Error; err != nil {
					return fmt.Errorf("%s_%s: %w", m.Version, m.Name, err)
				}
			}
			return tx.Create(&SchemaMigration{Version: m.Version, Name: m.Name, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return ran, err
		}
		ran = append(ran, m.Version)
	}
	return ran, nil
}
