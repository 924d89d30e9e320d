package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/istominvi/shaurmaniya/internal/cart"
	"github.com/istominvi/shaurmaniya/internal/entity"
	"github.com/istominvi/shaurmaniya/internal/repository"
	"github.com/istominvi/shaurmaniya/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id string, price int64) entity.Product {
	return entity.Product{ID: id, Name: id, BasePrice: price, Available: true}
}

func TestBind_MissingCartLoadsEmpty(t *testing.T) {
	p := repository.Bind(memory.NewCartRepository(), "s1")

	c, err := p.Load(context.Background())

	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestBind_RoundTripsThroughStore(t *testing.T) {
	repo := memory.NewCartRepository()
	ctx := context.Background()

	store := cart.Open(ctx, cart.WithPersister(repository.Bind(repo, "s1")))
	store.AddItem(product("classic", 280), nil, nil, 2)
	store.SetLocation(entity.LocationInfo{Type: entity.LocationDelivery, Address: "ул. Ленина, 1"})

	reopened := cart.Open(ctx, cart.WithPersister(repository.Bind(repo, "s1")))
	other := cart.Open(ctx, cart.WithPersister(repository.Bind(repo, "s2")))

	assert.Equal(t, int64(660), reopened.Total())
	assert.Equal(t, 1, reopened.Len())
	assert.Zero(t, other.Len())
}

func TestValidSessionID(t *testing.T) {
	assert.True(t, repository.ValidSessionID("3f2b9c1e-aaaa-4bbb-8ccc-123456789abc"))
	assert.False(t, repository.ValidSessionID(""))
	assert.False(t, repository.ValidSessionID("../etc/passwd"))
	assert.False(t, repository.ValidSessionID("a b"))
}

type slowPersister struct {
	mu      sync.Mutex
	saves   []entity.Cart
	release chan struct{}
	err     error
}

func (s *slowPersister) Load(context.Context) (*entity.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		return nil, nil
	}
	c := s.saves[len(s.saves)-1]
	return &c, nil
}

func (s *slowPersister) Save(_ context.Context, c entity.Cart) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, c)
	return s.err
}

func (s *slowPersister) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func TestAsyncPersister_CoalescesToLatest(t *testing.T) {
	next := &slowPersister{release: make(chan struct{})}
	async := repository.NewAsyncPersister(next, nil)
	ctx := context.Background()

	require.NoError(t, async.Save(ctx, entity.Cart{Total: 1}))
	// Wait until the first write is blocked in the backend.
	require.Eventually(t, func() bool {
		c, _ := async.Load(ctx)
		return c != nil && c.Total == 1
	}, time.Second, 5*time.Millisecond)

	for i := int64(2); i <= 5; i++ {
		require.NoError(t, async.Save(ctx, entity.Cart{Total: i}))
	}

	latest, err := async.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), latest.Total)

	close(next.release)
	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, async.Close(closeCtx))

	assert.LessOrEqual(t, next.count(), 3)
	stored, err := next.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stored.Total)
}

func TestAsyncPersister_SaveAfterClose(t *testing.T) {
	async := repository.NewAsyncPersister(&slowPersister{}, nil)
	require.NoError(t, async.Close(context.Background()))

	err := async.Save(context.Background(), entity.Cart{})

	assert.ErrorIs(t, err, repository.ErrPersisterClosed)
	assert.NoError(t, async.Close(context.Background()))
}

func TestAsyncPersister_BackendErrorIsLogged(t *testing.T) {
	next := &slowPersister{err: errors.New("disk full")}
	async := repository.NewAsyncPersister(next, nil)

	require.NoError(t, async.Save(context.Background(), entity.Cart{Total: 7}))
	require.NoError(t, async.Close(context.Background()))

	assert.Equal(t, 1, next.count())
}

func TestAsyncPersister_LoadFallsThrough(t *testing.T) {
	next := &slowPersister{saves: []entity.Cart{{Total: 42}}}
	async := repository.NewAsyncPersister(next, nil)
	defer async.Close(context.Background())

	c, err := async.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(42), c.Total)
}
