package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openforum/forum/schema"
)

// DeleteResult counts the rows removed per table by a hard delete.
type DeleteResult map[string]int64

// Total is the number of rows removed across all tables.
func (r DeleteResult) Total() int64 {
	var n int64
	for _, c := range r {
		n += c
	}
	return n
}

// SoftDelete marks a row as deleted. Dependent rows are left untouched and
// marking an already deleted row again is a no-op.
func (s *Store) SoftDelete(ctx context.Context, table string, id uint) error {
	if !s.schema.SoftDeletable(table) {
		return ErrNotSoftDeletable
	}
	return s.setFlag(ctx, table, id, "is_deleted")
}

// ApproveTopic sets is_approved on a topic. Approving twice yields the same state.
func (s *Store) ApproveTopic(ctx context.Context, id uint) error {
	return s.setFlag(ctx, schema.TopicTable, id, "is_approved")
}

func (s *Store) setFlag(ctx context.Context, table string, id uint, column string) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		if err := lockRow(tx, table, id); err != nil {
			return err
		}
		if err := tx.Table(table).Where("id = ?", id).Update(column, true).Error; err != nil {
			return fmt.Errorf("update %s.%s: %w", table, column, err)
		}
		return nil
	})
}

// DeleteTopic removes a topic and every row reachable from it through the
// cascade chain: questions, their responses, upvotes and tags.
func (s *Store) DeleteTopic(ctx context.Context, id uint) (DeleteResult, error) {
	return s.hardDelete(ctx, schema.TopicTable, id)
}

// DeleteQuestion removes a question with its responses, upvotes and tags.
func (s *Store) DeleteQuestion(ctx context.Context, id uint) (DeleteResult, error) {
	return s.hardDelete(ctx, schema.QuestionTable, id)
}

func (s *Store) hardDelete(ctx context.Context, table string, id uint) (DeleteResult, error) {
	result := DeleteResult{}
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := lockRow(tx, table, id); err != nil {
			return err
		}
		return s.deleteSubtree(tx, table, []uint{id}, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// deleteSubtree walks the cascade edges depth first so children go before
// their parents, matching what ON DELETE CASCADE does in the database.
func (s *Store) deleteSubtree(tx *gorm.DB, table string, ids []uint, result DeleteResult) error {
	if len(ids) == 0 {
		return nil
	}
	for _, edge := range s.schema.CascadeChildren(table) {
		var childIDs []uint
		err := tx.Table(edge.Table).
			Where(clause.IN{Column: clause.Column{Name: edge.Column}, Values: idValues(ids)}).
			Pluck("id", &childIDs).Error
		if err != nil {
			return fmt.Errorf("collect %s: %w", edge.Table, err)
		}
		if err := s.deleteSubtree(tx, edge.Table, childIDs, result); err != nil {
			return err
		}
	}

	res := tx.Exec("DELETE FROM ? WHERE id IN ?", clause.Table{Name: table}, ids)
	if res.Error != nil {
		return fmt.Errorf("delete %s: %w", table, res.Error)
	}
	result[table] += res.RowsAffected
	return nil
}

// DeleteUser removes a user from the identity store. It fails with an
// *IntegrityViolation while any forum row still references the user.
func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	identity := s.schema.IdentityTable
	return s.tx(ctx, func(tx *gorm.DB) error {
		if err := lockRow(tx, identity, id); err != nil {
			return err
		}

		var refs []Reference
		for _, edge := range s.schema.ProtectedBy(identity) {
			var n int64
			err := tx.Table(edge.Table).
				Where(clause.Eq{Column: clause.Column{Name: edge.Column}, Value: id}).
				Count(&n).Error
			if err != nil {
				return fmt.Errorf("count %s.%s: %w", edge.Table, edge.Column, err)
			}
			if n > 0 {
				refs = append(refs, Reference{Table: edge.Table, Column: edge.Column, Count: n})
			}
		}
		if len(refs) > 0 {
			return &IntegrityViolation{Table: identity, ID: id, References: refs}
		}

		err := tx.Exec("DELETE FROM ? WHERE id = ?", clause.Table{Name: identity}, id).Error
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			// A reference the schema does not know about, e.g. from another application.
			return &IntegrityViolation{Table: identity, ID: id}
		}
		if err != nil {
			return fmt.Errorf("delete %s %d: %w", identity, id, err)
		}
		return nil
	})
}

func idValues(ids []uint) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
