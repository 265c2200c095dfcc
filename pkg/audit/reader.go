package audit

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

// Storage is the audit persistence contract. The redis implementation
// is the default; a durable write-ahead store can be dropped in
// without touching callers.
type Storage interface {
	StoreBatch(ctx context.Context, events []Event) error
	RecentByTenant(ctx context.Context, tenantID uuid.UUID, n int) ([]Event, error)
	RecentByUser(ctx context.Context, userID string, n int) ([]Event, error)
}

// Reader exposes the audit query surface.
type Reader struct {
	storage Storage
}

func NewReader(storage Storage) *Reader {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	return &Reader{storage: storage}
}

// RecentByTenant returns the n most recent events for a tenant, all
// event kinds merged, newest first.
func (r *Reader) RecentByTenant(ctx context.Context, tenantID uuid.UUID, n int) ([]Event, error) {
	return r.storage.RecentByTenant(ctx, tenantID, n)
}

// RecentByUser returns the n most recent events for a user, all event
// kinds merged, newest first.
func (r *Reader) RecentByUser(ctx context.Context, userID string, n int) ([]Event, error) {
	return r.storage.RecentByUser(ctx, userID, n)
}

func sortByTimestampDesc(events []Event) {
	slices.SortFunc(events, func(a, b Event) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}
