// internal/domain/user/service.go
package user

import (
	"errors"
	"fmt"

	"github.com/your-org/marketplace-backend/internal/config"
	"gorm.io/gorm"
)

// ErrNotFound is returned when the identity provider claims a subject that has no
// internal user record yet.
var ErrNotFound = errors.New("user not found")

// Service handles user business logic
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new user service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// GetByAuthID looks up the internal user for an external subject id
func (s *Service) GetByAuthID(authID string) (*User, error) {
	var u User
	err := s.db.Where("auth_id = ?", authID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &u, nil
}

// Provision returns the internal user for the external subject, creating it on
// first authenticated action. Safe to call repeatedly.
func (s *Service) Provision(authID, email, name string) (*User, error) {
	u, err := s.GetByAuthID(authID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	created := User{
		AuthID: authID,
		Email:  email,
		Name:   name,
	}
	if err := s.db.Create(&created).Error; err != nil {
		// Concurrent provisioning for the same subject loses on the unique index
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.GetByAuthID(authID)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &created, nil
}

// GetByID fetches a user by internal id
func (s *Service) GetByID(id uint) (*User, error) {
	var u User
	err := s.db.First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &u, nil
}
