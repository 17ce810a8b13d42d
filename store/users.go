package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/openforum/forum/models"
)

// CreateUser adds a user to the identity store.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Table(s.schema.IdentityTable).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &models.ValidationError{Field: "username", Message: "already taken"}
	}
	if err != nil {
		return fmt.Errorf("insert %s: %w", s.schema.IdentityTable, err)
	}
	return nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Table(s.schema.IdentityTable).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// FindUserByUsername loads a user by username.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Table(s.schema.IdentityTable).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}
