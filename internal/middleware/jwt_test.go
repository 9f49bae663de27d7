package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pawhaven/petclass-api/internal/models"
	"github.com/pawhaven/petclass-api/internal/service"
)

type staticUserRepo struct {
	user *models.User
}

func (r *staticUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if r.user == nil {
		return nil, sql.ErrNoRows
	}
	return r.user, nil
}

func (r *staticUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if r.user == nil {
		return nil, sql.ErrNoRows
	}
	return r.user, nil
}

func (r *staticUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func newGuardedRouter(t *testing.T, user *models.User) (*gin.Engine, *service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	authSvc := service.NewAuthService(&staticUserRepo{user: user}, nil, zap.NewNop(), service.AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "petclass-api",
	})

	r := gin.New()
	r.GET("/guarded", JWT(authSvc), func(c *gin.Context) {
		claims, _ := c.Get(ContextUserKey)
		jwtClaims := claims.(*models.JWTClaims)
		c.JSON(http.StatusOK, gin.H{"tenant_id": jwtClaims.TenantID})
	})
	return r, authSvc
}

func loginToken(t *testing.T, authSvc *service.AuthService, email string) string {
	t.Helper()
	res, err := authSvc.Login(context.Background(), models.LoginRequest{Email: email, Password: "password"})
	require.NoError(t, err)
	return res.AccessToken
}

func TestJWTMiddlewareAllowsValidToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	require.NoError(t, err)
	router, authSvc := newGuardedRouter(t, &models.User{
		ID: "user-1", TenantID: "tenant-1", Email: "staff@example.com",
		PasswordHash: string(hash), Active: true, Role: models.RoleStaff,
	})
	token := loginToken(t, authSvc, "staff@example.com")

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tenant-1")
}

func TestJWTMiddlewareRejectsMissingHeader(t *testing.T) {
	router, _ := newGuardedRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddlewareRejectsMalformedHeader(t *testing.T) {
	router, _ := newGuardedRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddlewareRejectsTokenWithoutTenant(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	require.NoError(t, err)
	router, authSvc := newGuardedRouter(t, &models.User{
		ID: "user-1", Email: "staff@example.com",
		PasswordHash: string(hash), Active: true, Role: models.RoleStaff,
	})
	token := loginToken(t, authSvc, "staff@example.com")

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
