package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pawhaven/petclass-api/internal/models"
	appErrors "github.com/pawhaven/petclass-api/pkg/errors"
)

type mockAuthRepo struct {
	user             *models.User
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.user == nil || m.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func newAuthFixture(t *testing.T, user *models.User) (*AuthService, *mockAuthRepo) {
	t.Helper()
	repo := &mockAuthRepo{user: user}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "petclass-api",
	})
	return svc, repo
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	require.NoError(t, err)
	svc, repo := newAuthFixture(t, &models.User{
		ID: "user-1", TenantID: "tenant-1", Email: "staff@example.com",
		PasswordHash: string(hash), Active: true, Role: models.RoleStaff,
	})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "tenant-1", res.User.TenantID)
	assert.True(t, repo.lastLoginUpdated)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	svc, _ := newAuthFixture(t, &models.User{
		ID: "user-1", Email: "staff@example.com", PasswordHash: string(hash), Active: true,
	})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "wrong"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	svc, _ := newAuthFixture(t, &models.User{
		ID: "user-1", Email: "staff@example.com", PasswordHash: string(hash), Active: false,
	})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "password"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceTokenCarriesTenant(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	svc, _ := newAuthFixture(t, &models.User{
		ID: "user-1", TenantID: "tenant-1", Email: "staff@example.com",
		PasswordHash: string(hash), Active: true, Role: models.RoleAdmin,
	})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "password"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "tenant-1", claims.TenantID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceValidateGarbageToken(t *testing.T) {
	svc, _ := newAuthFixture(t, nil)

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
