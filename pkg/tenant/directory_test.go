package tenant_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rheckart/rescue-ranger/pkg/tenant"
)

type fakeStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*tenant.Tenant
	bySub   map[string]*tenant.Tenant
	idCalls int
	err     error
}

func newFakeStore(tenants ...*tenant.Tenant) *fakeStore {
	s := &fakeStore{
		byID:  make(map[uuid.UUID]*tenant.Tenant),
		bySub: make(map[string]*tenant.Tenant),
	}
	for _, t := range tenants {
		s.byID[t.ID] = t
		s.bySub[t.Subdomain] = t
	}
	return s
}

func (s *fakeStore) FindByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idCalls++
	if s.err != nil {
		return nil, s.err
	}
	t, ok := s.byID[id]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	return t, nil
}

func (s *fakeStore) FindBySubdomain(_ context.Context, subdomain string) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	t, ok := s.bySub[subdomain]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	return t, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*tenant.Info
	fail    bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*tenant.Info)}
}

func (c *fakeCache) Get(_ context.Context, key string) (*tenant.Info, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, false, errors.New("cache down")
	}
	info, ok := c.entries[key]
	return info, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, info *tenant.Info, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache down")
	}
	c.entries[key] = info
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache down")
	}
	delete(c.entries, key)
	return nil
}

func activeTenant(subdomain string) *tenant.Tenant {
	return &tenant.Tenant{
		ID:        uuid.New(),
		Name:      "Sunrise Rescue",
		Subdomain: subdomain,
		Status:    tenant.StatusActive,
		CreatedAt: time.Now(),
	}
}

func TestDirectoryLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("resolves uuid identifier by id", func(t *testing.T) {
		t.Parallel()
		tn := activeTenant("sunrise")
		dir := tenant.NewDirectory(newFakeStore(tn), newFakeCache())

		info, err := dir.Lookup(ctx, tn.ID.String())

		require.NoError(t, err)
		assert.Equal(t, tn.ID, info.ID)
		assert.Equal(t, "sunrise", info.Subdomain)
	})

	t.Run("resolves non-uuid identifier by subdomain", func(t *testing.T) {
		t.Parallel()
		tn := activeTenant("sunrise")
		dir := tenant.NewDirectory(newFakeStore(tn), newFakeCache())

		info, err := dir.Lookup(ctx, "sunrise")

		require.NoError(t, err)
		assert.Equal(t, tn.ID, info.ID)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		t.Parallel()
		dir := tenant.NewDirectory(newFakeStore(), newFakeCache())

		_, err := dir.Lookup(ctx, "missing")

		require.ErrorIs(t, err, tenant.ErrNotFound)
	})

	t.Run("reserved subdomain never resolves", func(t *testing.T) {
		t.Parallel()
		tn := activeTenant("admin")
		dir := tenant.NewDirectory(newFakeStore(tn), newFakeCache())

		_, err := dir.Lookup(ctx, "admin")

		require.ErrorIs(t, err, tenant.ErrNotFound)
	})
}

func TestDirectoryCacheAside(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("second lookup is served from cache", func(t *testing.T) {
		t.Parallel()
		tn := activeTenant("sunrise")
		store := newFakeStore(tn)
		dir := tenant.NewDirectory(store, newFakeCache())

		for range 3 {
			_, err := dir.ByID(ctx, tn.ID)
			require.NoError(t, err)
		}

		assert.Equal(t, 1, store.idCalls)
	})

	t.Run("lookup populates both id and subdomain keys", func(t *testing.T) {
		t.Parallel()
		tn := activeTenant("sunrise")
		cache := newFakeCache()
		dir := tenant.NewDirectory(newFakeStore(tn), cache)

		_, err := dir.ByID(ctx, tn.ID)
		require.NoError(t, err)

		cache.mu.Lock()
		defer cache.mu.Unlock()
		assert.Contains(t, cache.entries, "id:"+tn.ID.String())
		assert.Contains(t, cache.entries, "sub:sunrise")
	})

	t.Run("cache failure degrades to store", func(t *testing.T) {
		t.Parallel()
		tn := activeTenant("sunrise")
		cache := newFakeCache()
		cache.fail = true
		dir := tenant.NewDirectory(newFakeStore(tn), cache)

		info, err := dir.BySubdomain(ctx, "sunrise")

		require.NoError(t, err)
		assert.Equal(t, tn.ID, info.ID)
	})

	t.Run("store error is not cached", func(t *testing.T) {
		t.Parallel()
		tn := activeTenant("sunrise")
		store := newFakeStore(tn)
		store.err = errors.New("db down")
		cache := newFakeCache()
		dir := tenant.NewDirectory(store, cache)

		_, err := dir.ByID(ctx, tn.ID)
		require.Error(t, err)

		cache.mu.Lock()
		defer cache.mu.Unlock()
		assert.Empty(t, cache.entries)
	})
}

func TestDirectoryInvalidate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tn := activeTenant("sunrise")
	store := newFakeStore(tn)
	cache := newFakeCache()
	dir := tenant.NewDirectory(store, cache)

	_, err := dir.ByID(ctx, tn.ID)
	require.NoError(t, err)

	dir.Invalidate(ctx, tn.ID, "sunrise")

	cache.mu.Lock()
	assert.Empty(t, cache.entries)
	cache.mu.Unlock()

	// Next lookup goes back to the store.
	_, err = dir.ByID(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, store.idCalls)
}
