package tenant_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rheckart/rescue-ranger/pkg/environment"
	"github.com/rheckart/rescue-ranger/pkg/tenant"
)

type recordedSample struct {
	method  tenant.Method
	success bool
	reason  string
}

type fakeMetrics struct {
	mu      sync.Mutex
	samples []recordedSample
}

func (m *fakeMetrics) RecordResolution(method tenant.Method, success bool, reason string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, recordedSample{method, success, reason})
}

func (m *fakeMetrics) all() []recordedSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedSample(nil), m.samples...)
}

func okHandler(seen *[]uuid.UUID) http.Handler {
	var mu sync.Mutex
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := tenant.IDFromContext(r.Context()); ok && seen != nil {
			mu.Lock()
			*seen = append(*seen, id)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	})
}

func envRequest(env environment.Environment, target string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	return r.WithContext(environment.WithContext(r.Context(), env))
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	extract := tenant.NewDefaultExtractor(baseDomain, nil)

	t.Run("resolves tenant and installs context", func(t *testing.T) {
		t.Parallel()
		tn := activeTenant("sunrise")
		dir := tenant.NewDirectory(newFakeStore(tn), newFakeCache())
		metrics := &fakeMetrics{}
		var seen []uuid.UUID

		mw := tenant.Middleware(extract, dir, tenant.WithMetrics(metrics))
		r := envRequest(environment.Production, "/")
		r.Host = "sunrise.rescueranger.app"
		rec := httptest.NewRecorder()

		mw(okHandler(&seen)).ServeHTTP(rec, r)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, seen, 1)
		assert.Equal(t, tn.ID, seen[0])

		samples := metrics.all()
		require.Len(t, samples, 1, "exactly one sample per resolution")
		assert.True(t, samples[0].success)
		assert.Equal(t, tenant.MethodSubdomain, samples[0].method)
	})

	t.Run("production without identifier is 400", func(t *testing.T) {
		t.Parallel()
		dir := tenant.NewDirectory(newFakeStore(), newFakeCache())
		metrics := &fakeMetrics{}

		mw := tenant.Middleware(extract, dir, tenant.WithMetrics(metrics))
		r := envRequest(environment.Production, "/")
		r.Host = "localhost"
		rec := httptest.NewRecorder()

		mw(okHandler(nil)).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		samples := metrics.all()
		require.Len(t, samples, 1)
		assert.False(t, samples[0].success)
		assert.Equal(t, "identifier_required", samples[0].reason)
	})

	t.Run("development falls back to default tenant", func(t *testing.T) {
		t.Parallel()
		tn := activeTenant("demo")
		dir := tenant.NewDirectory(newFakeStore(tn), newFakeCache())
		metrics := &fakeMetrics{}
		var seen []uuid.UUID

		mw := tenant.Middleware(extract, dir,
			tenant.WithMetrics(metrics),
			tenant.WithDefaultSubdomain("demo"))
		r := envRequest(environment.Development, "/")
		r.Host = "localhost:3000"
		rec := httptest.NewRecorder()

		mw(okHandler(&seen)).ServeHTTP(rec, r)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, seen, 1)
		assert.Equal(t, tn.ID, seen[0])

		samples := metrics.all()
		require.Len(t, samples, 1)
		assert.Equal(t, tenant.MethodDefault, samples[0].method)
	})

	t.Run("development without default proceeds tenantless", func(t *testing.T) {
		t.Parallel()
		dir := tenant.NewDirectory(newFakeStore(), newFakeCache())

		mw := tenant.Middleware(extract, dir)
		r := envRequest(environment.Development, "/")
		r.Host = "localhost"
		rec := httptest.NewRecorder()

		var hadTenant bool
		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, hadTenant = tenant.FromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, hadTenant)
	})

	t.Run("unknown tenant is 404", func(t *testing.T) {
		t.Parallel()
		dir := tenant.NewDirectory(newFakeStore(), newFakeCache())
		metrics := &fakeMetrics{}

		mw := tenant.Middleware(extract, dir, tenant.WithMetrics(metrics))
		r := envRequest(environment.Production, "/")
		r.Host = "ghost.rescueranger.app"
		rec := httptest.NewRecorder()

		mw(okHandler(nil)).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		samples := metrics.all()
		require.Len(t, samples, 1)
		assert.Equal(t, "not_found", samples[0].reason)
	})

	t.Run("suspended tenant is 403", func(t *testing.T) {
		t.Parallel()
		tn := activeTenant("sunrise")
		tn.Status = tenant.StatusSuspended
		dir := tenant.NewDirectory(newFakeStore(tn), newFakeCache())
		metrics := &fakeMetrics{}

		mw := tenant.Middleware(extract, dir, tenant.WithMetrics(metrics))
		r := envRequest(environment.Production, "/")
		r.Host = "sunrise.rescueranger.app"
		rec := httptest.NewRecorder()

		mw(okHandler(nil)).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		samples := metrics.all()
		require.Len(t, samples, 1)
		assert.Equal(t, "access_denied", samples[0].reason)
	})

	t.Run("store failure is 500 and nothing is cached", func(t *testing.T) {
		t.Parallel()
		store := newFakeStore()
		store.err = assert.AnError
		cache := newFakeCache()
		dir := tenant.NewDirectory(store, cache)
		metrics := &fakeMetrics{}

		mw := tenant.Middleware(extract, dir, tenant.WithMetrics(metrics))
		r := envRequest(environment.Production, "/")
		r.Host = "sunrise.rescueranger.app"
		rec := httptest.NewRecorder()

		mw(okHandler(nil)).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		samples := metrics.all()
		require.Len(t, samples, 1)
		assert.Equal(t, "store_error", samples[0].reason)

		cache.mu.Lock()
		assert.Empty(t, cache.entries)
		cache.mu.Unlock()
	})

	t.Run("skip paths bypass resolution", func(t *testing.T) {
		t.Parallel()
		dir := tenant.NewDirectory(newFakeStore(), newFakeCache())
		metrics := &fakeMetrics{}

		mw := tenant.Middleware(extract, dir,
			tenant.WithMetrics(metrics),
			tenant.WithSkipPaths("/health"))
		r := envRequest(environment.Production, "/health/live")
		r.Host = "localhost"
		rec := httptest.NewRecorder()

		mw(okHandler(nil)).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, metrics.all())
	})

	t.Run("unset environment fails closed as production", func(t *testing.T) {
		t.Parallel()
		dir := tenant.NewDirectory(newFakeStore(), newFakeCache())

		mw := tenant.Middleware(extract, dir, tenant.WithDefaultSubdomain("demo"))
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Host = "localhost"
		rec := httptest.NewRecorder()

		mw(okHandler(nil)).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMiddlewareConcurrentIsolation(t *testing.T) {
	t.Parallel()

	a := activeTenant("alpha")
	b := activeTenant("bravo")
	dir := tenant.NewDirectory(newFakeStore(a, b), newFakeCache())
	extract := tenant.NewDefaultExtractor(baseDomain, nil)
	mw := tenant.Middleware(extract, dir)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := tenant.FromContext(r.Context())
		require.True(t, ok)
		w.Write([]byte(info.Subdomain))
	}))

	var wg sync.WaitGroup
	for range 50 {
		for _, tn := range []*tenant.Tenant{a, b} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r := envRequest(environment.Production, "/")
				r.Host = tn.Subdomain + "." + baseDomain
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, r)
				assert.Equal(t, tn.Subdomain, rec.Body.String())
			}()
		}
	}
	wg.Wait()
}

func TestRequireTenant(t *testing.T) {
	t.Parallel()

	mw := tenant.RequireTenant(nil)

	t.Run("rejects without tenant", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		mw(okHandler(nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("passes with tenant", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := tenant.WithInfo(r.Context(), &tenant.Info{ID: uuid.New(), Status: tenant.StatusActive})
		rec := httptest.NewRecorder()
		mw(okHandler(nil)).ServeHTTP(rec, r.WithContext(ctx))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
