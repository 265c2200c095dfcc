package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/rheckart/rescue-ranger/pkg/jwt"
)

// Claims is the session token payload. Tenant fields describe the
// tenant the session was issued for; the switch fields are only present
// on system-admin sessions that moved into another tenant.
type Claims struct {
	jwt.StandardClaims

	Email            string `json:"email,omitempty"`
	Role             string `json:"role,omitempty"`
	TenantID         string `json:"tenant_id,omitempty"`
	TenantName       string `json:"tenant_name,omitempty"`
	TenantSubdomain  string `json:"tenant_subdomain,omitempty"`
	SecurityStamp    string `json:"security_stamp,omitempty"`
	SystemAdmin      bool   `json:"system_admin,omitempty"`
	CanSwitchTenant  bool   `json:"can_switch_tenant,omitempty"`
	OriginalTenantID string `json:"original_tenant_id,omitempty"`
	TenantSwitched   bool   `json:"tenant_switched,omitempty"`
}

// UserID parses the subject claim as a UUID.
func (c Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TenantUUID parses the tenant_id claim as a UUID.
func (c Claims) TenantUUID() (uuid.UUID, error) {
	return uuid.Parse(c.TenantID)
}

type contextKey struct{}

// WithIdentity stores the authenticated claims in the context.
func WithIdentity(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// IdentityFromContext returns the authenticated claims, if any.
func IdentityFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(Claims)
	return claims, ok
}
