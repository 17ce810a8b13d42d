package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openforum/forum/models"
	"github.com/openforum/forum/schema"
)

// Store persists forum rows and enforces the reference rules declared in the
// schema. Every exported operation runs in a single transaction.
type Store struct {
	db     *gorm.DB
	schema *schema.Schema
}

// New returns a Store over db using the given schema definitions.
func New(db *gorm.DB, s *schema.Schema) *Store {
	return &Store{db: db, schema: s}
}

// Schema returns the definitions the store enforces.
func (s *Store) Schema() *schema.Schema { return s.schema }

func (s *Store) tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// create validates row, checks that every referenced row exists and inserts it.
// refs maps the row's foreign-key columns to the ids it carries.
func (s *Store) create(ctx context.Context, row models.Row, refs map[string]uint) error {
	if err := row.Validate(); err != nil {
		return err
	}
	table := s.schema.MustTable(row.TableName())

	return s.tx(ctx, func(tx *gorm.DB) error {
		for _, col := range table.References() {
			id, ok := refs[col.Name]
			if !ok {
				return fmt.Errorf("store: no value supplied for %s.%s", table.Name, col.Name)
			}
			exists, err := rowExists(tx, col.Ref.Table, id)
			if err != nil {
				return err
			}
			if !exists {
				return &models.ValidationError{Field: col.Name, Message: fmt.Sprintf("references missing %s %d", col.Ref.Table, id)}
			}
		}
		if err := tx.Create(row).Error; err != nil {
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return &models.ValidationError{Field: table.Name, Message: "references a missing row"}
			}
			return fmt.Errorf("insert %s: %w", table.Name, err)
		}
		return nil
	})
}

func rowExists(tx *gorm.DB, table string, id uint) (bool, error) {
	var n int64
	if err := tx.Table(table).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("lookup %s %d: %w", table, id, err)
	}
	return n > 0, nil
}

// lockRow selects the row for update so concurrent writers serialise on it.
func lockRow(tx *gorm.DB, table string, id uint) error {
	var found []uint
	q := tx.Table(table).Where("id = ?", id)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Pluck("id", &found).Error; err != nil {
		return fmt.Errorf("lookup %s %d: %w", table, id, err)
	}
	if len(found) == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTopic persists a new, unapproved topic.
func (s *Store) CreateTopic(ctx context.Context, t *models.Topic) error {
	t.IsApproved = false
	return s.create(ctx, t, map[string]uint{"author_id": t.AuthorID})
}

// CreateQuestion persists a question under an existing topic.
func (s *Store) CreateQuestion(ctx context.Context, q *models.Question) error {
	return s.create(ctx, q, map[string]uint{"author_id": q.AuthorID, "topic_id": q.TopicID})
}

// CreateResponse persists a response to an existing question.
func (s *Store) CreateResponse(ctx context.Context, r *models.Response) error {
	return s.create(ctx, r, map[string]uint{"author_id": r.AuthorID, "question_id": r.QuestionID})
}

// CreateQuestionUpVote records an upvote. Repeated votes by the same author are stored as separate rows.
func (s *Store) CreateQuestionUpVote(ctx context.Context, v *models.QuestionUpVote) error {
	return s.create(ctx, v, map[string]uint{"author_id": v.AuthorID, "question_id": v.QuestionID})
}

// CreateResponseUpVote records an upvote of a response.
func (s *Store) CreateResponseUpVote(ctx context.Context, v *models.ResponseUpVote) error {
	return s.create(ctx, v, map[string]uint{"author_id": v.AuthorID, "response_id": v.ResponseID})
}

// CreateTag records the author tagging another user on a question.
func (s *Store) CreateTag(ctx context.Context, g *models.Tag) error {
	return s.create(ctx, g, map[string]uint{
		"author_id":      g.AuthorID,
		"question_id":    g.QuestionID,
		"tagged_user_id": g.TaggedUserID,
	})
}

// CreateNomination records the author nominating another user.
func (s *Store) CreateNomination(ctx context.Context, n *models.Nomination) error {
	return s.create(ctx, n, map[string]uint{"author_id": n.AuthorID, "nominated_user_id": n.NominatedUserID})
}
