package horses_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rheckart/rescue-ranger/core"
	"github.com/rheckart/rescue-ranger/modules/horses"
	"github.com/rheckart/rescue-ranger/pkg/audit"
	"github.com/rheckart/rescue-ranger/pkg/authz"
	"github.com/rheckart/rescue-ranger/pkg/scoped"
	"github.com/rheckart/rescue-ranger/pkg/tenant"
)

type memBackend struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*horses.Horse
}

func newMemBackend() *memBackend {
	return &memBackend{rows: make(map[uuid.UUID]*horses.Horse)}
}

func (b *memBackend) Insert(_ context.Context, h *horses.Horse) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *h
	b.rows[h.ID] = &cp
	return nil
}

func (b *memBackend) FindByID(_ context.Context, tenantID, id uuid.UUID) (*horses.Horse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.rows[id]
	if !ok || h.TenantID() != tenantID {
		return nil, scoped.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (b *memBackend) List(_ context.Context, tenantID uuid.UUID, limit, offset int) ([]*horses.Horse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*horses.Horse
	for _, h := range b.rows {
		if h.TenantID() == tenantID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (b *memBackend) Update(_ context.Context, tenantID uuid.UUID, h *horses.Horse) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	existing, ok := b.rows[h.ID]
	if !ok || existing.TenantID() != tenantID {
		return scoped.ErrNotFound
	}
	cp := *h
	b.rows[h.ID] = &cp
	return nil
}

func (b *memBackend) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.rows[id]
	if !ok || h.TenantID() != tenantID {
		return scoped.ErrNotFound
	}
	delete(b.rows, id)
	return nil
}

func (b *memBackend) OwnerOf(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.rows[id]
	if !ok {
		return uuid.Nil, scoped.ErrNotFound
	}
	return h.TenantID(), nil
}

type captureStorage struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *captureStorage) StoreBatch(_ context.Context, events []audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *captureStorage) RecentByTenant(context.Context, uuid.UUID, int) ([]audit.Event, error) {
	return nil, nil
}

func (s *captureStorage) RecentByUser(context.Context, string, int) ([]audit.Event, error) {
	return nil, nil
}

func (s *captureStorage) byType(t audit.EventType) []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type allMembers struct{}

func (allMembers) IsMember(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return true, nil
}

type testEnv struct {
	handler http.Handler
	backend *memBackend
	storage *captureStorage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := newMemBackend()
	storage := &captureStorage{}
	auditSvc := audit.NewService(audit.NewSyncWriter(storage))
	store := scoped.New[*horses.Horse](backend, tenant.IDFromContext, nil)

	roles, err := authz.NewRoles(map[string]authz.RoleDefinition{
		"volunteer": {Permissions: []string{"horses.read"}},
	})
	require.NoError(t, err)
	authorizer := authz.NewAuthorizer(allMembers{}, roles, nil)

	return &testEnv{
		handler: horses.Router(horses.NewService(store, auditSvc), authorizer),
		backend: backend,
		storage: storage,
	}
}

// do issues a request as an authenticated volunteer of the given tenant.
func (e *testEnv) do(method, target, body string, tenantID uuid.UUID) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, strings.NewReader(body))

	ctx := tenant.WithInfo(r.Context(), &tenant.Info{
		ID:        tenantID,
		Subdomain: "sunrise",
		Status:    tenant.StatusActive,
	})
	claims := authz.Claims{Role: "volunteer"}
	claims.Subject = uuid.NewString()
	ctx = authz.WithIdentity(ctx, claims)

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r.WithContext(ctx))
	return w
}

func TestHorseCRUD(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tenantID := uuid.New()

	w := env.do(http.MethodPost, "/", `{"name":"Willow","breed":"Mustang","birth_year":2019}`, tenantID)
	require.Equal(t, http.StatusCreated, w.Code)

	var created core.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	horse := created.Data.(map[string]any)
	assert.Equal(t, "intake", horse["status"], "status defaults on create")
	assert.Equal(t, tenantID.String(), horse["tenant_id"])
	id := horse["id"].(string)

	w = env.do(http.MethodGet, "/"+id, "", tenantID)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/", "", tenantID)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPut, "/"+id, `{"name":"Willow","status":"available"}`, tenantID)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodDelete, "/"+id, "", tenantID)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/"+id, "", tenantID)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHorseValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tenantID := uuid.New()

	w := env.do(http.MethodPost, "/", `{"breed":"Mustang"}`, tenantID)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "name is required")

	w = env.do(http.MethodPost, "/", `{"name":"Willow","status":"galloping"}`, tenantID)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "unknown status rejected")

	w = env.do(http.MethodGet, "/not-a-uuid", "", tenantID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHorseTenantIsolation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	owner := uuid.New()
	intruder := uuid.New()

	w := env.do(http.MethodPost, "/", `{"name":"Willow"}`, owner)
	require.Equal(t, http.StatusCreated, w.Code)
	var created core.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.Data.(map[string]any)["id"].(string)

	t.Run("cross tenant read is not found", func(t *testing.T) {
		w := env.do(http.MethodGet, "/"+id, "", intruder)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("cross tenant delete is forbidden and audited", func(t *testing.T) {
		w := env.do(http.MethodDelete, "/"+id, "", intruder)
		assert.Equal(t, http.StatusForbidden, w.Code)

		events := env.storage.byType(audit.TypeCrossTenantAttempt)
		require.NotEmpty(t, events)
		e := events[len(events)-1]
		assert.Equal(t, intruder, e.TenantID)
		assert.Equal(t, "horse.delete", e.Action)
		assert.Equal(t, id, e.Metadata["entity_id"])
	})

	t.Run("other tenant's horses are invisible in listings", func(t *testing.T) {
		w := env.do(http.MethodGet, "/", "", intruder)
		require.Equal(t, http.StatusOK, w.Code)
		var listed core.JSONResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
		assert.Nil(t, listed.Data)
	})
}

func TestHorseUnauthenticated(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
