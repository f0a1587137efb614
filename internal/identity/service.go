// Package identity resolves owner references to display-safe summaries.
// Owner is a foreign-key-style reference on Project; the query side joins
// through this service explicitly instead of eager-loading users.
package identity

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"veriflow-backend/internal/models"
	"veriflow-backend/internal/pkg/apperrors"
	"veriflow-backend/internal/pkg/constants"
)

// Summary is the display-safe owner shape (never a stored credential).
type Summary struct {
	ID    uuid.UUID `json:"_id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}

type Service struct {
	DB *gorm.DB
}

// Resolve looks up summaries for the given user IDs. Unknown IDs are
// simply absent from the result; callers fall back to the raw reference.
func (s *Service) Resolve(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Summary, error) {
	out := make(map[uuid.UUID]Summary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, apperrors.Storage(err)
	}
	for _, u := range users {
		out[u.ID] = Summary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
	}
	return out, nil
}

// Lookup resolves a single owner reference, nil if the user is gone.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*Summary, error) {
	m, err := s.Resolve(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if sum, ok := m[id]; ok {
		return &sum, nil
	}
	return nil, nil
}

// ListFarmers returns summaries of all farmer accounts (admin view).
func (s *Service) ListFarmers(ctx context.Context) ([]Summary, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).Where("role = ?", constants.RoleFarmer).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, apperrors.Storage(err)
	}
	out := make([]Summary, 0, len(users))
	for _, u := range users {
		out = append(out, Summary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
	}
	return out, nil
}
