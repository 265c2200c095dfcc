package tenant

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store is the durable lookup contract the directory depends on.
// Implementations return ErrNotFound for missing tenants and reserve
// real errors for infrastructure failure.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	FindBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
}

// DefaultCacheTTL bounds how long a tenant projection may be served from
// cache without revisiting the store. Mutations invalidate proactively,
// so the TTL is only a backstop.
const DefaultCacheTTL = 30 * time.Minute

// Directory resolves identifiers to tenant projections using a
// cache-aside pattern over the durable store. Cache outages degrade the
// directory to "slower", never to "broken".
type Directory struct {
	store Store
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// DirectoryOption configures the directory.
type DirectoryOption func(*Directory)

// WithCacheTTL overrides the default cache TTL.
func WithCacheTTL(ttl time.Duration) DirectoryOption {
	return func(d *Directory) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithDirectoryLogger sets the logger for cache degradation warnings.
func WithDirectoryLogger(log *slog.Logger) DirectoryOption {
	return func(d *Directory) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDirectory creates a directory over the given store and cache.
func NewDirectory(store Store, cache Cache, opts ...DirectoryOption) *Directory {
	if cache == nil {
		cache = NoOpCache{}
	}
	d := &Directory{
		store: store,
		cache: cache,
		ttl:   DefaultCacheTTL,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func idKey(id uuid.UUID) string      { return "id:" + id.String() }
func subKey(subdomain string) string { return "sub:" + subdomain }

// Lookup resolves an identifier that may be a tenant id (UUID form) or a
// subdomain. Reserved subdomains never resolve, regardless of store
// contents.
func (d *Directory) Lookup(ctx context.Context, identifier string) (*Info, error) {
	if id, err := uuid.Parse(identifier); err == nil {
		return d.ByID(ctx, id)
	}
	return d.BySubdomain(ctx, identifier)
}

// ByID resolves a tenant by its id.
func (d *Directory) ByID(ctx context.Context, id uuid.UUID) (*Info, error) {
	if info, ok := d.cacheGet(ctx, idKey(id)); ok {
		return info, nil
	}
	t, err := d.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	info := t.Info()
	d.cachePut(ctx, info)
	return info, nil
}

// BySubdomain resolves a tenant by its subdomain.
func (d *Directory) BySubdomain(ctx context.Context, subdomain string) (*Info, error) {
	if IsReservedSubdomain(subdomain) {
		return nil, ErrNotFound
	}
	if info, ok := d.cacheGet(ctx, subKey(subdomain)); ok {
		return info, nil
	}
	t, err := d.store.FindBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	info := t.Info()
	d.cachePut(ctx, info)
	return info, nil
}

// Invalidate removes both cache keys for a tenant. Callers must invoke
// it after the store write commits so a stale concurrent read cannot
// repopulate the cache with pre-write state and have it survive.
func (d *Directory) Invalidate(ctx context.Context, id uuid.UUID, subdomain string) {
	if err := d.cache.Delete(ctx, idKey(id)); err != nil {
		d.log.WarnContext(ctx, "tenant cache invalidation failed",
			slog.String("key", idKey(id)), slog.Any("error", err))
	}
	if subdomain == "" {
		return
	}
	if err := d.cache.Delete(ctx, subKey(subdomain)); err != nil {
		d.log.WarnContext(ctx, "tenant cache invalidation failed",
			slog.String("key", subKey(subdomain)), slog.Any("error", err))
	}
}

func (d *Directory) cacheGet(ctx context.Context, key string) (*Info, bool) {
	info, ok, err := d.cache.Get(ctx, key)
	if err != nil {
		d.log.WarnContext(ctx, "tenant cache unavailable, falling back to store",
			slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	return info, ok
}

func (d *Directory) cachePut(ctx context.Context, info *Info) {
	if err := d.cache.Set(ctx, idKey(info.ID), info, d.ttl); err != nil {
		d.log.WarnContext(ctx, "tenant cache write failed",
			slog.String("key", idKey(info.ID)), slog.Any("error", err))
	}
	if err := d.cache.Set(ctx, subKey(info.Subdomain), info, d.ttl); err != nil {
		d.log.WarnContext(ctx, "tenant cache write failed",
			slog.String("key", subKey(info.Subdomain)), slog.Any("error", err))
	}
}
