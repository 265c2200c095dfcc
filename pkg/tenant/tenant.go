package tenant

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a tenant.
type Status string

const (
	StatusProvisioning    Status = "provisioning"
	StatusActive          Status = "active"
	StatusInactive        Status = "inactive"
	StatusSuspended       Status = "suspended"
	StatusArchived        Status = "archived"
	StatusPendingDeletion Status = "pending_deletion"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusProvisioning, StatusActive, StatusInactive,
		StatusSuspended, StatusArchived, StatusPendingDeletion:
		return true
	}
	return false
}

// Branding holds per-tenant UI customization.
type Branding struct {
	LogoURL      string `json:"logo_url,omitempty"`
	PrimaryColor string `json:"primary_color,omitempty"`
}

// Config is the embedded per-tenant configuration.
type Config struct {
	MaxHorses     int               `json:"max_horses"`
	MaxVolunteers int               `json:"max_volunteers"`
	Features      map[string]bool   `json:"features,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Branding      Branding          `json:"branding"`
}

// FeatureEnabled reports whether the named feature flag is on for this tenant.
func (c Config) FeatureEnabled(name string) bool {
	return c.Features[name]
}

// Tenant is one rescue organization with isolated data.
// The subdomain is globally unique and immutable once assigned;
// rotating it requires provisioning a new tenant.
type Tenant struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Subdomain          string     `json:"subdomain"`
	ContactEmail       string     `json:"contact_email"`
	Status             Status     `json:"status"`
	SuspensionReason   string     `json:"suspension_reason,omitempty"`
	SuspendScheduledAt *time.Time `json:"suspend_scheduled_at,omitempty"`
	Config             Config     `json:"config"`
	APIKeyHash         string     `json:"-"`
	APIKeyRotatedAt    *time.Time `json:"api_key_rotated_at,omitempty"`
	System             bool       `json:"system"`
	CreatedAt          time.Time  `json:"created_at"`
	ActivatedAt        *time.Time `json:"activated_at,omitempty"`
	SuspendedAt        *time.Time `json:"suspended_at,omitempty"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty"`
}

// Info is the read-optimized projection of Tenant carried through the
// request path. It omits secrets and admin-only fields so it is cheap to
// cache and safe to hand to downstream handlers.
type Info struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Subdomain string    `json:"subdomain"`
	Status    Status    `json:"status"`
	System    bool      `json:"system"`
	Config    Config    `json:"config"`
	CreatedAt time.Time `json:"created_at"`
}

// Info returns the request-path projection of the tenant.
func (t *Tenant) Info() *Info {
	return &Info{
		ID:        t.ID,
		Name:      t.Name,
		Subdomain: t.Subdomain,
		Status:    t.Status,
		System:    t.System,
		Config:    t.Config,
		CreatedAt: t.CreatedAt,
	}
}

// IsActive reports whether the tenant is fully active.
func (i *Info) IsActive() bool {
	return i != nil && i.Status == StatusActive
}

// CanAccess reports whether requests may be served for this tenant.
// Provisioning tenants are reachable so onboarding flows work before
// activation completes.
func (i *Info) CanAccess() bool {
	if i == nil {
		return false
	}
	return i.Status == StatusActive || i.Status == StatusProvisioning
}

const (
	// MinSubdomainLength and MaxSubdomainLength bound tenant subdomains.
	// The upper bound matches the DNS label limit.
	MinSubdomainLength = 3
	MaxSubdomainLength = 63
)

// subdomainPattern enforces DNS-label shape: alphanumeric at both ends,
// hyphens allowed inside.
var subdomainPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// reservedSubdomains can never resolve to a tenant regardless of what the
// store contains. Matched case-insensitively.
var reservedSubdomains = map[string]struct{}{
	"www": {}, "api": {}, "admin": {}, "app": {}, "mail": {},
	"ftp": {}, "ssl": {}, "cdn": {}, "staging": {}, "dev": {},
	"test": {}, "demo": {}, "blog": {}, "help": {}, "support": {},
	"docs": {}, "status": {}, "secure": {}, "static": {}, "assets": {},
}

// IsValidSubdomain reports whether s is a syntactically acceptable
// tenant subdomain. Reserved names are checked separately.
func IsValidSubdomain(s string) bool {
	if len(s) < MinSubdomainLength || len(s) > MaxSubdomainLength {
		return false
	}
	return subdomainPattern.MatchString(s)
}

// IsReservedSubdomain reports whether s is on the reserved list.
func IsReservedSubdomain(s string) bool {
	_, ok := reservedSubdomains[strings.ToLower(s)]
	return ok
}
