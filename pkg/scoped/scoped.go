// Package scoped provides a generic tenant-isolation guard over
// per-entity storage backends.
//
// Every read the backend exposes takes the tenant id as a required
// argument, so an unfiltered read path does not exist. The Store adds
// the request-side guarantees on top: writes are stamped with the
// current tenant, mutations verify stored ownership, and any call
// without a tenant in context fails loudly.
package scoped

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

var (
	// ErrNoTenant indicates a data access attempt without a tenant in
	// context. This is a programming error, never a user condition.
	ErrNoTenant = errors.New("scoped: no tenant in context")
	// ErrCrossTenant indicates an attempt to touch an entity owned by
	// another tenant.
	ErrCrossTenant = errors.New("scoped: entity belongs to another tenant")
	// ErrNotFound indicates the entity does not exist within the
	// current tenant's scope.
	ErrNotFound = errors.New("scoped: entity not found")
)

// Entity is implemented by tenant-owned domain types.
type Entity interface {
	EntityID() uuid.UUID
	TenantID() uuid.UUID
	SetTenantID(uuid.UUID)
}

// Backend is the storage contract for one entity type. Every read and
// mutation takes the owning tenant id; OwnerOf exists solely so the
// Store can tell a cross-tenant attempt apart from a missing row.
// Backends return ErrNotFound for rows outside the given tenant.
type Backend[T Entity] interface {
	Insert(ctx context.Context, entity T) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (T, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]T, error)
	Update(ctx context.Context, tenantID uuid.UUID, entity T) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	OwnerOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// TenantIDFunc extracts the current tenant id from the request context.
type TenantIDFunc func(ctx context.Context) (uuid.UUID, bool)

// Store wraps a Backend with tenant-isolation guarantees.
type Store[T Entity] struct {
	backend  Backend[T]
	tenantID TenantIDFunc
	log      *slog.Logger
}

// New returns a Store over the given backend. tenantID resolves the
// current tenant from context, typically tenant.IDFromContext.
func New[T Entity](backend Backend[T], tenantID TenantIDFunc, log *slog.Logger) *Store[T] {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Store[T]{backend: backend, tenantID: tenantID, log: log}
}

// Add stamps the entity with the current tenant id, overriding any
// caller-supplied value, and inserts it.
func (s *Store[T]) Add(ctx context.Context, entity T) error {
	tid, ok := s.tenantID(ctx)
	if !ok {
		return ErrNoTenant
	}
	entity.SetTenantID(tid)
	return s.backend.Insert(ctx, entity)
}

// GetByID fetches an entity within the current tenant's scope. The
// returned row's ownership is re-verified after the filtered fetch.
func (s *Store[T]) GetByID(ctx context.Context, id uuid.UUID) (T, error) {
	var zero T
	tid, ok := s.tenantID(ctx)
	if !ok {
		return zero, ErrNoTenant
	}

	entity, err := s.backend.FindByID(ctx, tid, id)
	if err != nil {
		return zero, err
	}
	if entity.TenantID() != tid {
		s.log.WarnContext(ctx, "tenant filter bypass detected",
			slog.String("entity_id", id.String()),
			slog.String("expected_tenant", tid.String()),
			slog.String("actual_tenant", entity.TenantID().String()))
		return zero, ErrCrossTenant
	}
	return entity, nil
}

// List returns the current tenant's entities.
func (s *Store[T]) List(ctx context.Context, limit, offset int) ([]T, error) {
	tid, ok := s.tenantID(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	return s.backend.List(ctx, tid, limit, offset)
}

// Update verifies the stored entity belongs to the current tenant
// before applying the change. A mismatch returns ErrCrossTenant so the
// caller can audit the attempt.
func (s *Store[T]) Update(ctx context.Context, entity T) error {
	tid, ok := s.tenantID(ctx)
	if !ok {
		return ErrNoTenant
	}
	if err := s.verifyOwnership(ctx, tid, entity.EntityID()); err != nil {
		return err
	}
	entity.SetTenantID(tid)
	return s.backend.Update(ctx, tid, entity)
}

// Delete verifies stored ownership before removing the entity.
func (s *Store[T]) Delete(ctx context.Context, id uuid.UUID) error {
	tid, ok := s.tenantID(ctx)
	if !ok {
		return ErrNoTenant
	}
	if err := s.verifyOwnership(ctx, tid, id); err != nil {
		return err
	}
	return s.backend.Delete(ctx, tid, id)
}

func (s *Store[T]) verifyOwnership(ctx context.Context, tid, id uuid.UUID) error {
	owner, err := s.backend.OwnerOf(ctx, id)
	if err != nil {
		return err
	}
	if owner != tid {
		return ErrCrossTenant
	}
	return nil
}
