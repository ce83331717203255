package service

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/ezpc-api/internal/dto"
	"github.com/flicky/ezpc-api/internal/model"
	"github.com/flicky/ezpc-api/internal/repository"
)

type mockUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	cp.Addresses = append([]model.Address(nil), u.Addresses...)
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) SaveAddresses(_ context.Context, userID uuid.UUID, prev, addresses []model.Address) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if !slices.Equal(u.Addresses, prev) {
		return false, nil
	}
	u.Addresses = append([]model.Address(nil), addresses...)
	return true, nil
}

func TestAuthService_Register(t *testing.T) {
	svc := NewAuthService(newMockUserRepo(), "secret", time.Hour)
	resp, err := svc.Register(context.Background(), dto.RegisterRequest{
		Name: "Test User", Email: "Test@Example.com", Password: "password123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "test@example.com", resp.User.Email)
	assert.Equal(t, model.RoleUser, resp.User.Role)
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "secret", time.Hour)
	req := dto.RegisterRequest{Name: "A", Email: "dup@example.com", Password: "password123"}

	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAuthService_Login(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "secret", time.Hour)
	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Name: "A", Email: "login@example.com", Password: "password123",
	})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Email: "login@example.com", Password: "password123"})
	require.NoError(t, err)

	token, err := jwt.Parse(resp.Token, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil })
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, resp.User.ID.String(), claims["sub"])
	assert.Equal(t, "user", claims["role"])
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "secret", time.Hour)
	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Name: "A", Email: "wrong@example.com", Password: "password123",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Email: "wrong@example.com", Password: "wrongpassword"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthService_Me(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "secret", time.Hour)
	resp, err := svc.Register(context.Background(), dto.RegisterRequest{
		Name: "Me", Email: "me@example.com", Password: "password123",
	})
	require.NoError(t, err)

	me, err := svc.Me(context.Background(), userSession(resp.User.ID))
	require.NoError(t, err)
	assert.Equal(t, "Me", me.Name)

	_, err = svc.Me(context.Background(), userSession(uuid.New()))
	assert.ErrorIs(t, err, ErrUserNotFound)
}
