package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openforum/forum/models"
)

// chronological quotes "timestamp", a keyword in some dialects.
var chronological = clause.OrderBy{Columns: []clause.OrderByColumn{
	{Column: clause.Column{Name: "timestamp"}},
	{Column: clause.Column{Name: "id"}},
}}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// AuthorOf returns the author of a forum row, for ownership checks.
func (s *Store) AuthorOf(ctx context.Context, table string, id uint) (uint, error) {
	if _, ok := s.schema.Table(table); !ok {
		return 0, fmt.Errorf("store: unknown table %q", table)
	}
	var authors []uint
	if err := s.db.WithContext(ctx).Table(table).Where("id = ?", id).Pluck("author_id", &authors).Error; err != nil {
		return 0, err
	}
	if len(authors) == 0 {
		return 0, ErrNotFound
	}
	return authors[0], nil
}

// GetTopic loads one topic.
func (s *Store) GetTopic(ctx context.Context, id uint) (*models.Topic, error) {
	var t models.Topic
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// ListTopics returns topics by id. With approvedOnly set it keeps approved
// topics plus the pending ones written by authorID; authorID 0 matches nobody.
func (s *Store) ListTopics(ctx context.Context, approvedOnly bool, authorID uint) ([]models.Topic, error) {
	q := s.db.WithContext(ctx).Order("id")
	if approvedOnly {
		q = q.Where("is_approved = ? OR author_id = ?", true, authorID)
	}
	var topics []models.Topic
	if err := q.Find(&topics).Error; err != nil {
		return nil, err
	}
	return topics, nil
}

// GetQuestion loads one question, soft-deleted or not.
func (s *Store) GetQuestion(ctx context.Context, id uint) (*models.Question, error) {
	var q models.Question
	if err := s.db.WithContext(ctx).First(&q, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &q, nil
}

// GetResponse loads one response, soft-deleted or not.
func (s *Store) GetResponse(ctx context.Context, id uint) (*models.Response, error) {
	var r models.Response
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// ListQuestions returns the live questions of a topic, oldest first.
func (s *Store) ListQuestions(ctx context.Context, topicID uint) ([]models.Question, error) {
	var qs []models.Question
	err := s.db.WithContext(ctx).
		Where("topic_id = ? AND is_deleted = ?", topicID, false).
		Order(chronological).
		Find(&qs).Error
	return qs, err
}

// ListResponses returns the live responses to a question, oldest first.
func (s *Store) ListResponses(ctx context.Context, questionID uint) ([]models.Response, error) {
	var rs []models.Response
	err := s.db.WithContext(ctx).
		Where("question_id = ? AND is_deleted = ?", questionID, false).
		Order(chronological).
		Find(&rs).Error
	return rs, err
}
