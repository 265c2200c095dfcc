package tenant

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// contextKey is private to prevent collisions with other context keys.
type contextKey struct{}

// WithInfo returns a context carrying the resolved tenant. The pipeline
// calls this at most once per request; because the value lives on the
// request context, it is scoped to exactly one request and vanishes when
// the request completes, including on panic or client abort.
func WithInfo(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, contextKey{}, info)
}

// FromContext retrieves the resolved tenant from the context.
// Returns nil, false when no tenant has been resolved.
func FromContext(ctx context.Context) (*Info, bool) {
	info, ok := ctx.Value(contextKey{}).(*Info)
	return info, ok && info != nil
}

// IDFromContext returns just the tenant id, or the zero UUID and false
// when no tenant has been resolved.
func IDFromContext(ctx context.Context) (uuid.UUID, bool) {
	info, ok := FromContext(ctx)
	if !ok {
		return uuid.UUID{}, false
	}
	return info.ID, true
}

// SubdomainFromContext returns the resolved tenant's subdomain, or ""
// when no tenant has been resolved.
func SubdomainFromContext(ctx context.Context) string {
	info, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return info.Subdomain
}

// IsSystemTenant reports whether the resolved tenant is the
// administrative system tenant.
func IsSystemTenant(ctx context.Context) bool {
	info, ok := FromContext(ctx)
	return ok && info.System
}

// ValidateAccess re-checks the held tenant's status without refetching,
// catching suspensions that landed mid-request.
func ValidateAccess(ctx context.Context) error {
	info, ok := FromContext(ctx)
	if !ok {
		return ErrNoTenantInContext
	}
	if !info.CanAccess() {
		return ErrAccessDenied
	}
	return nil
}

// ConfigFromContext returns the resolved tenant's embedded configuration,
// or nil when no tenant has been resolved.
func ConfigFromContext(ctx context.Context) *Config {
	info, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	cfg := info.Config
	return &cfg
}

// MustFromContext panics if no tenant is resolved. Use only in handlers
// mounted behind RequireTenant.
func MustFromContext(ctx context.Context) *Info {
	info, ok := FromContext(ctx)
	if !ok {
		panic("tenant: no tenant in context")
	}
	return info
}

// LoggerExtractor enriches log records with the resolved tenant id.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := IDFromContext(ctx); ok {
			return slog.String("tenant_id", id.String()), true
		}
		return slog.Attr{}, false
	}
}
