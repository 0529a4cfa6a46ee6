package auth

import (
	"context"
	"testing"
	"time"

	"courtly/internal/shared/config"
	"courtly/internal/users"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) CreateUser(ctx context.Context, user *users.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockRepository) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *mockRepository) GetUserByID(ctx context.Context, id string) (*users.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *mockRepository) UpdateUserPassword(ctx context.Context, userID string, hashedPassword string) error {
	args := m.Called(ctx, userID, hashedPassword)
	return args.Error(0)
}

func (m *mockRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func authTestConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:           "unit-test-secret",
			JWTExpiresIn:     15 * time.Minute,
			RefreshExpiresIn: 24 * time.Hour,
		},
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("new user registers with tokens", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, authTestConfig())

		repo.On("EmailExists", mock.Anything, "a@example.com").Return(false, nil)
		repo.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *users.User) bool {
			return u.Email == "a@example.com" && u.Role == users.RoleUser
		})).Return(nil)

		resp, err := svc.Register(ctx, &RegisterRequest{
			FirstName: "An", LastName: "Tran", Email: "a@example.com", Password: "secret123",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		assert.Equal(t, "USER", resp.User.Role)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, authTestConfig())
		repo.On("EmailExists", mock.Anything, "dup@example.com").Return(true, nil)

		_, err := svc.Register(ctx, &RegisterRequest{Email: "dup@example.com", Password: "secret123"})
		assert.ErrorIs(t, err, ErrUserAlreadyExists)
	})

	t.Run("admin role is downgraded on self registration", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, authTestConfig())

		repo.On("EmailExists", mock.Anything, mock.Anything).Return(false, nil)
		repo.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *users.User) bool {
			return u.Role == users.RoleUser
		})).Return(nil)

		resp, err := svc.Register(ctx, &RegisterRequest{
			Email: "sneaky@example.com", Password: "secret123", Role: "ADMIN",
		})
		require.NoError(t, err)
		assert.Equal(t, "USER", resp.User.Role)
	})

	t.Run("owner role is allowed", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, authTestConfig())

		repo.On("EmailExists", mock.Anything, mock.Anything).Return(false, nil)
		repo.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *users.User) bool {
			return u.Role == users.RoleOwner
		})).Return(nil)

		resp, err := svc.Register(ctx, &RegisterRequest{
			Email: "owner@example.com", Password: "secret123", Role: "owner",
		})
		require.NoError(t, err)
		assert.Equal(t, "OWNER", resp.User.Role)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	hashed, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.DefaultCost)
	user := &users.User{ID: uuid.New(), Email: "a@example.com", Password: string(hashed), Role: users.RoleUser}

	t.Run("valid credentials", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, authTestConfig())
		repo.On("GetUserByEmail", mock.Anything, "a@example.com").Return(user, nil)

		resp, err := svc.Login(ctx, &LoginRequest{Email: "a@example.com", Password: "correct-horse"})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
	})

	t.Run("wrong password", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, authTestConfig())
		repo.On("GetUserByEmail", mock.Anything, "a@example.com").Return(user, nil)

		_, err := svc.Login(ctx, &LoginRequest{Email: "a@example.com", Password: "wrong"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email maps to invalid credentials", func(t *testing.T) {
		repo := new(mockRepository)
		svc := NewService(repo, authTestConfig())
		repo.On("GetUserByEmail", mock.Anything, "ghost@example.com").Return(nil, ErrUserNotFound)

		_, err := svc.Login(ctx, &LoginRequest{Email: "ghost@example.com", Password: "whatever"})
		assert.ErrorIs(t, err, ErrInvalidCredentials,
			"login must not reveal whether the email exists")
	})
}

func TestRefreshToken(t *testing.T) {
	ctx := context.Background()
	hashed, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.DefaultCost)
	user := &users.User{ID: uuid.New(), Email: "a@example.com", Password: string(hashed), Role: users.RoleUser}

	repo := new(mockRepository)
	svc := NewService(repo, authTestConfig())
	repo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil)
	repo.On("GetUserByID", mock.Anything, user.ID.String()).Return(user, nil)

	resp, err := svc.Login(ctx, &LoginRequest{Email: user.Email, Password: "pw"})
	require.NoError(t, err)

	t.Run("refresh token rotates the pair", func(t *testing.T) {
		pair, err := svc.RefreshToken(ctx, resp.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
	})

	t.Run("access token cannot refresh", func(t *testing.T) {
		_, err := svc.RefreshToken(ctx, resp.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		_, err := svc.RefreshToken(ctx, "not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestValidateToken(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo, authTestConfig())

	hashed, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.DefaultCost)
	user := &users.User{ID: uuid.New(), Email: "v@example.com", Password: string(hashed), Role: users.RoleOwner}
	repo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil)

	resp, err := svc.Login(context.Background(), &LoginRequest{Email: user.Email, Password: "pw"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, "OWNER", claims.Role)
	assert.Equal(t, "access", claims.Type)

	// A token signed with a different secret must not validate.
	other := NewService(repo, &config.Config{JWT: config.JWTConfig{Secret: "other-secret", JWTExpiresIn: time.Minute, RefreshExpiresIn: time.Hour}})
	_, err = other.ValidateToken(resp.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
