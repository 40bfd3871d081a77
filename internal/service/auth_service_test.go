package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

type mockUserReader struct {
	users map[string]models.User
}

func (m *mockUserReader) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			u := user
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func newAuthTestService(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &mockUserReader{users: map[string]models.User{
		"cashier@school.test": {
			ID:           "u-1",
			Email:        "cashier@school.test",
			Username:     "cashier",
			PasswordHash: string(hash),
			Role:         models.RoleCashier,
			Active:       true,
		},
		"gone@school.test": {
			ID:           "u-2",
			Email:        "gone@school.test",
			Username:     "gone",
			PasswordHash: string(hash),
			Role:         models.RoleParent,
			Active:       false,
		},
	}}
	return NewAuthService(users, "test-secret", time.Hour, nil, nil)
}

func TestLoginIssuesToken(t *testing.T) {
	svc := newAuthTestService(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "cashier@school.test",
		Password: "s3cret!",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.RoleCashier, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "cashier", claims.Username)
	assert.Equal(t, models.RoleCashier, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newAuthTestService(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "cashier@school.test",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newAuthTestService(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@school.test",
		Password: "s3cret!",
	})
	require.Error(t, err)
	// Unknown accounts read exactly like a bad password.
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc := newAuthTestService(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "gone@school.test",
		Password: "s3cret!",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestLoginValidatesPayload(t *testing.T) {
	svc := newAuthTestService(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: ""})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	svc := newAuthTestService(t)
	other := NewAuthService(&mockUserReader{}, "other-secret", time.Hour, nil, nil)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "cashier@school.test",
		Password: "s3cret!",
	})
	require.NoError(t, err)

	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthTestService(t)

	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)
}
