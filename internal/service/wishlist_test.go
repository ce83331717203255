package service

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/ezpc-api/internal/model"
)

type mockWishlistRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID][]uuid.UUID
}

func newMockWishlistRepo() *mockWishlistRepo {
	return &mockWishlistRepo{items: make(map[uuid.UUID][]uuid.UUID)}
}

func (m *mockWishlistRepo) Toggle(_ context.Context, userID, productID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.items[userID]
	if i := slices.Index(list, productID); i >= 0 {
		m.items[userID] = slices.Delete(list, i, i+1)
		return false, nil
	}
	m.items[userID] = append([]uuid.UUID{productID}, list...)
	return true, nil
}

func (m *mockWishlistRepo) List(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.items[userID]), nil
}

func TestWishlistService_Toggle(t *testing.T) {
	repo := newMockWishlistRepo()
	products := newMockProductRepo()
	svc := NewWishlistService(repo, products)
	user := uuid.New()
	pid := products.add(model.Product{Name: "keyboard"})

	added, err := svc.Toggle(context.Background(), user, pid)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = svc.Toggle(context.Background(), user, pid)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Empty(t, repo.items[user])
}

func TestWishlistService_RejectsUnknownOrDeletedProduct(t *testing.T) {
	repo := newMockWishlistRepo()
	products := newMockProductRepo()
	now := time.Now()
	gone := products.add(model.Product{Name: "old mouse", DeletedAt: &now})
	svc := NewWishlistService(repo, products)
	user := uuid.New()

	_, err := svc.Toggle(context.Background(), user, uuid.New())
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = svc.Toggle(context.Background(), user, gone)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Empty(t, repo.items[user])
}

func TestWishlistService_RemovesStaleEntry(t *testing.T) {
	repo := newMockWishlistRepo()
	products := newMockProductRepo()
	now := time.Now()
	gone := products.add(model.Product{Name: "old mouse", DeletedAt: &now})
	user := uuid.New()
	repo.items[user] = []uuid.UUID{gone, uuid.New()}
	svc := NewWishlistService(repo, products)

	added, err := svc.Toggle(context.Background(), user, gone)
	require.NoError(t, err)
	assert.False(t, added)
	assert.NotContains(t, repo.items[user], gone)
}

func TestWishlistService_ConcurrentTogglesKeepSetSemantics(t *testing.T) {
	repo := newMockWishlistRepo()
	products := newMockProductRepo()
	svc := NewWishlistService(repo, products)
	user := uuid.New()
	pid := products.add(model.Product{Name: "headset"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Toggle(context.Background(), user, pid)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Empty(t, repo.items[user], "an even number of toggles leaves the product out")
}

func TestWishlistService_List(t *testing.T) {
	products := newMockProductRepo()
	now := time.Now()
	live := products.add(model.Product{Name: "monitor"})
	gone := products.add(model.Product{Name: "old monitor", DeletedAt: &now})

	repo := newMockWishlistRepo()
	user := uuid.New()
	repo.items[user] = []uuid.UUID{live, gone}
	svc := NewWishlistService(repo, products)

	lines, err := svc.List(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.NotNil(t, lines[0].Product)
	assert.Equal(t, "monitor", lines[0].Product.Name)
	assert.Nil(t, lines[1].Product)
}
