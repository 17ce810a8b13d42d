package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when the target row of an operation does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrNotSoftDeletable is returned for tables without an is_deleted flag.
	ErrNotSoftDeletable = errors.New("table does not support soft delete")
)

// Reference counts the rows of one table column that point at a protected row.
type Reference struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Count  int64  `json:"count"`
}

// IntegrityViolation is returned when deleting a row that protected references still point at.
type IntegrityViolation struct {
	Table      string      `json:"table"`
	ID         uint        `json:"id"`
	References []Reference `json:"references"`
}

func (e *IntegrityViolation) Error() string {
	parts := make([]string, 0, len(e.References))
	for _, r := range e.References {
		parts = append(parts, fmt.Sprintf("%s.%s (%d)", r.Table, r.Column, r.Count))
	}
	return fmt.Sprintf("cannot delete %s %d: still referenced by %s", e.Table, e.ID, strings.Join(parts, ", "))
}
