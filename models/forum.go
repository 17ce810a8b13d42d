package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/openforum/forum/schema"
)

// Row is implemented by every forum entity.
type Row interface {
	TableName() string
	Validate() error
}

// Topic is a moderated subject area grouping questions.
type Topic struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	AuthorID    uint   `gorm:"not null" json:"author_id"`
	Description string `gorm:"type:text;not null" json:"description"`
	IsApproved  bool   `gorm:"not null;default:false" json:"is_approved"`
	Title       string `gorm:"size:40;not null" json:"title"`
}

func (Topic) TableName() string { return schema.TopicTable }

func (t *Topic) Validate() error {
	if err := requireRef("author_id", t.AuthorID); err != nil {
		return err
	}
	if err := checkTitle(t.Title); err != nil {
		return err
	}
	return requireText("description", t.Description)
}

func (t *Topic) BeforeCreate(tx *gorm.DB) error { return t.Validate() }

// Question belongs to exactly one topic.
type Question struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AuthorID    uint      `gorm:"not null" json:"author_id"`
	Description string    `gorm:"type:text;not null" json:"description"`
	IsDeleted   bool      `gorm:"not null;default:false" json:"is_deleted"`
	Timestamp   time.Time `gorm:"not null" json:"timestamp"`
	Title       string    `gorm:"size:40;not null" json:"title"`
	TopicID     uint      `gorm:"not null" json:"topic_id"`
}

func (Question) TableName() string { return schema.QuestionTable }

func (q *Question) Validate() error {
	if err := requireRef("author_id", q.AuthorID); err != nil {
		return err
	}
	if err := requireRef("topic_id", q.TopicID); err != nil {
		return err
	}
	if err := checkTitle(q.Title); err != nil {
		return err
	}
	return requireText("description", q.Description)
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	stamp(&q.Timestamp)
	return q.Validate()
}

// Response answers one question.
type Response struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AuthorID    uint      `gorm:"not null" json:"author_id"`
	Description string    `gorm:"type:text;not null" json:"description"`
	IsDeleted   bool      `gorm:"not null;default:false" json:"is_deleted"`
	QuestionID  uint      `gorm:"not null" json:"question_id"`
	Timestamp   time.Time `gorm:"not null" json:"timestamp"`
}

func (Response) TableName() string { return schema.ResponseTable }

func (r *Response) Validate() error {
	if err := requireRef("author_id", r.AuthorID); err != nil {
		return err
	}
	if err := requireRef("question_id", r.QuestionID); err != nil {
		return err
	}
	return requireText("description", r.Description)
}

func (r *Response) BeforeCreate(tx *gorm.DB) error {
	stamp(&r.Timestamp)
	return r.Validate()
}

// QuestionUpVote is one user's upvote of a question.
type QuestionUpVote struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AuthorID   uint      `gorm:"not null" json:"author_id"`
	IsDeleted  bool      `gorm:"not null;default:false" json:"is_deleted"`
	QuestionID uint      `gorm:"not null" json:"question_id"`
	Timestamp  time.Time `gorm:"not null" json:"timestamp"`
}

func (QuestionUpVote) TableName() string { return schema.QuestionUpVoteTable }

func (v *QuestionUpVote) Validate() error {
	if err := requireRef("author_id", v.AuthorID); err != nil {
		return err
	}
	return requireRef("question_id", v.QuestionID)
}

func (v *QuestionUpVote) BeforeCreate(tx *gorm.DB) error {
	stamp(&v.Timestamp)
	return v.Validate()
}

// ResponseUpVote is one user's upvote of a response.
type ResponseUpVote struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AuthorID   uint      `gorm:"not null" json:"author_id"`
	IsDeleted  bool      `gorm:"not null;default:false" json:"is_deleted"`
	ResponseID uint      `gorm:"not null" json:"response_id"`
	Timestamp  time.Time `gorm:"not null" json:"timestamp"`
}

func (ResponseUpVote) TableName() string { return schema.ResponseUpVoteTable }

func (v *ResponseUpVote) Validate() error {
	if err := requireRef("author_id", v.AuthorID); err != nil {
		return err
	}
	return requireRef("response_id", v.ResponseID)
}

func (v *ResponseUpVote) BeforeCreate(tx *gorm.DB) error {
	stamp(&v.Timestamp)
	return v.Validate()
}

// Tag records one user tagging another within a question.
type Tag struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AuthorID     uint      `gorm:"not null" json:"author_id"`
	IsDeleted    bool      `gorm:"not null;default:false" json:"is_deleted"`
	QuestionID   uint      `gorm:"not null" json:"question_id"`
	TaggedUserID uint      `gorm:"not null" json:"tagged_user_id"`
	Timestamp    time.Time `gorm:"not null" json:"timestamp"`
}

func (Tag) TableName() string { return schema.TagTable }

func (g *Tag) Validate() error {
	if err := requireRef("author_id", g.AuthorID); err != nil {
		return err
	}
	if err := requireRef("question_id", g.QuestionID); err != nil {
		return err
	}
	return requireRef("tagged_user_id", g.TaggedUserID)
}

func (g *Tag) BeforeCreate(tx *gorm.DB) error {
	stamp(&g.Timestamp)
	return g.Validate()
}

// Nomination records one user nominating another.
type Nomination struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	AuthorID        uint      `gorm:"not null" json:"author_id"`
	IsDeleted       bool      `gorm:"not null;default:false" json:"is_deleted"`
	NominatedUserID uint      `gorm:"not null" json:"nominated_user_id"`
	Timestamp       time.Time `gorm:"not null" json:"timestamp"`
}

func (Nomination) TableName() string { return schema.NominationTable }

func (n *Nomination) Validate() error {
	if err := requireRef("author_id", n.AuthorID); err != nil {
		return err
	}
	return requireRef("nominated_user_id", n.NominatedUserID)
}

func (n *Nomination) BeforeCreate(tx *gorm.DB) error {
	stamp(&n.Timestamp)
	return n.Validate()
}

func requireRef(field string, id uint) error {
	if id == 0 {
		return invalid(field, "is required")
	}
	return nil
}

func requireText(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return invalid(field, "cannot be empty")
	}
	return nil
}

// checkTitle counts characters, not bytes. Titles are stored as plain
// text, so angle brackets are refused rather than escaped.
func checkTitle(v string) error {
	if err := requireText("title", v); err != nil {
		return err
	}
	if strings.ContainsAny(v, "<>") {
		return invalid("title", "must not contain markup")
	}
	if n := utf8.RuneCountInString(v); n > schema.TitleMaxLength {
		return invalid("title", "must be at most %d characters, got %d", schema.TitleMaxLength, n)
	}
	return nil
}

func stamp(ts *time.Time) {
	if ts.IsZero() {
		*ts = time.Now().UTC()
	}
}
