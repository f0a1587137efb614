package auth

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"veriflow-backend/internal/models"
	"veriflow-backend/internal/pkg/apperrors"
	"veriflow-backend/internal/pkg/constants"
)

func setupAuthTest(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return &Service{DB: db, Tokens: &TokenIssuer{Secret: []byte("test-secret")}}
}

func TestRegister_Success(t *testing.T) {
	svc := setupAuthTest(t)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, RegisterInput{
		Name:     "Nimal",
		Email:    "nimal@test.com",
		Password: "secret1",
		Phone:    "0771234567",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "Nimal", user.Name)
	assert.Equal(t, constants.RoleFarmer, user.Role)

	// The hash never leaks through the safe shape.
	assert.NotContains(t, []string{user.Name, user.Email, user.Role}, "secret1")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc := setupAuthTest(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, RegisterInput{Email: "a@test.com", Password: "secret1"})
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, RegisterInput{Email: "a@test.com", Password: "secret2"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestRegister_Validation(t *testing.T) {
	svc := setupAuthTest(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, RegisterInput{Email: "", Password: ""})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, _, err = svc.Register(ctx, RegisterInput{Email: "not-an-email", Password: "secret1"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, _, err = svc.Register(ctx, RegisterInput{Email: "a@test.com", Password: "abc"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestLogin_Success(t *testing.T) {
	svc := setupAuthTest(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, RegisterInput{Email: "a@test.com", Password: "secret1"})
	require.NoError(t, err)

	user, token, err := svc.Login(ctx, LoginInput{Email: "a@test.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "a@test.com", user.Email)

	// Token verifies back to the same user.
	userID, err := svc.Tokens.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := setupAuthTest(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, RegisterInput{Email: "a@test.com", Password: "secret1"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, LoginInput{Email: "a@test.com", Password: "wrong"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, _, err = svc.Login(ctx, LoginInput{Email: "nobody@test.com", Password: "secret1"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestPrincipalFor_ReadsFreshRole(t *testing.T) {
	svc := setupAuthTest(t)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, RegisterInput{Email: "a@test.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, svc.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Update("role", constants.RoleAdmin).Error)

	userID, err := svc.Tokens.Verify(ctx, token)
	require.NoError(t, err)
	p, err := svc.PrincipalFor(ctx, userID)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())
}
