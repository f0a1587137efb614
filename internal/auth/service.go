package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"veriflow-backend/internal/models"
	"veriflow-backend/internal/pkg/apperrors"
	"veriflow-backend/internal/pkg/constants"
	"veriflow-backend/internal/pkg/validation"
)

// Principal is the authenticated caller attached to each request.
type Principal struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}

// IsAdmin reports whether the caller carries the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == constants.RoleAdmin
}

// SafeUser is the user shape returned to clients (no credentials).
type SafeUser struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Service handles registration and login against the user table.
type Service struct {
	DB     *gorm.DB
	Tokens *TokenIssuer
}

func safeUser(u *models.User) *SafeUser {
	return &SafeUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Register creates a user with a bcrypt-hashed password and returns the
// safe user plus a signed token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*SafeUser, string, error) {
	if in.Email == "" || in.Password == "" {
		return nil, "", apperrors.Validation("email and password required")
	}
	if !validation.IsValidEmail(in.Email) {
		return nil, "", apperrors.Validation("invalid email")
	}
	if !validation.IsValidPassword(in.Password) {
		return nil, "", apperrors.Validation("password too short")
	}

	var existing models.User
	err := s.DB.WithContext(ctx).Where("email = ?", in.Email).First(&existing).Error
	if err == nil {
		return nil, "", apperrors.Conflict("User already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", apperrors.Storage(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), 10)
	if err != nil {
		return nil, "", apperrors.Storage(err)
	}
	u := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Phone:        in.Phone,
	}
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		return nil, "", apperrors.Storage(err)
	}

	token, err := s.Tokens.Sign(u)
	if err != nil {
		return nil, "", apperrors.Storage(err)
	}
	return safeUser(u), token, nil
}

// Login verifies credentials and returns the safe user plus a token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*SafeUser, string, error) {
	if in.Email == "" || in.Password == "" {
		return nil, "", apperrors.Validation("email and password required")
	}
	var u models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", in.Email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", apperrors.Validation("Invalid credentials")
		}
		return nil, "", apperrors.Storage(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return nil, "", apperrors.Validation("Invalid credentials")
	}
	token, err := s.Tokens.Sign(&u)
	if err != nil {
		return nil, "", apperrors.Storage(err)
	}
	return safeUser(&u), token, nil
}

// PrincipalFor loads the principal for a verified user ID. The role is
// read fresh from the user table so role changes take effect immediately.
func (s *Service) PrincipalFor(ctx context.Context, userID uuid.UUID) (*Principal, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Validation("Invalid credentials")
		}
		return nil, apperrors.Storage(err)
	}
	return &Principal{ID: u.ID, Email: u.Email, Role: u.Role}, nil
}
