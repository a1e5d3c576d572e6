package usecase

import (
	"testing"
	"time"

	authdomain "invoice-backend/internal/auth/domain"
	authdto "invoice-backend/internal/auth/dto"
	"invoice-backend/internal/auth/repository"
	"invoice-backend/pkg/config"
	"invoice-backend/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUsecase(t *testing.T) AuthUsecase {
	t.Helper()
	db, err := database.OpenMemory(&authdomain.User{})
	require.NoError(t, err)
	cfg := &config.Config{JWTSecret: "test-secret", SessionExpiry: time.Hour}
	return NewAuthUsecase(repository.NewUserRepository(db), cfg)
}

func register(t *testing.T, uc AuthUsecase, username, email string) *authdomain.User {
	t.Helper()
	user, err := uc.Register(&authdto.RegisterRequest{
		Username: username, Email: email, Password: "secret1", ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	return user
}

func TestRegisterValidates(t *testing.T) {
	uc := newTestUsecase(t)
	register(t, uc, "alice", "Alice@Example.com")

	tests := []struct {
		name string
		req  authdto.RegisterRequest
		want error
	}{
		{"short password", authdto.RegisterRequest{Username: "bob", Email: "b@x.com", Password: "123", ConfirmPassword: "123"}, ErrPasswordTooShort},
		{"mismatch", authdto.RegisterRequest{Username: "bob", Email: "b@x.com", Password: "secret1", ConfirmPassword: "secret2"}, ErrPasswordMismatch},
		{"username taken", authdto.RegisterRequest{Username: "alice", Email: "b@x.com", Password: "secret1", ConfirmPassword: "secret1"}, ErrUsernameTaken},
		{"email taken", authdto.RegisterRequest{Username: "bob", Email: "alice@example.com", Password: "secret1", ConfirmPassword: "secret1"}, ErrEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Register(&tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegisterHashesPassword(t *testing.T) {
	uc := newTestUsecase(t)
	user := register(t, uc, "alice", "alice@example.com")

	assert.NotEqual(t, "secret1", user.Password)
	assert.True(t, repository.CheckPasswordHash("secret1", user.Password))
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestLoginIssuesValidToken(t *testing.T) {
	uc := newTestUsecase(t)
	registered := register(t, uc, "alice", "alice@example.com")

	token, user, err := uc.Login(&authdto.LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	got, err := uc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	uc := newTestUsecase(t)
	register(t, uc, "alice", "alice@example.com")

	_, _, err := uc.Login(&authdto.LoginRequest{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = uc.Login(&authdto.LoginRequest{Username: "nobody", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	uc := newTestUsecase(t)

	_, err := uc.ValidateToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = uc.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
