package authz

import "errors"

var (
	// ErrUnauthenticated is returned when no identity is present.
	ErrUnauthenticated = errors.New("authz: not authenticated")
	// ErrNoTenantContext is returned when the tenant context is missing
	// or the tenant is not accessible.
	ErrNoTenantContext = errors.New("authz: invalid tenant context")
	// ErrNotMember is returned when the identity does not belong to the
	// current tenant.
	ErrNotMember = errors.New("authz: not a member of tenant")
	// ErrInsufficientRole is returned when the identity lacks the
	// required role.
	ErrInsufficientRole = errors.New("authz: insufficient role")
	// ErrNotTenantAdmin is returned when a tenant-admin requirement fails.
	ErrNotTenantAdmin = errors.New("authz: tenant admin required")
	// ErrSwitchDenied is returned when a tenant switch is attempted by
	// anyone other than an entitled system administrator.
	ErrSwitchDenied = errors.New("authz: tenant switch denied")
	// ErrInvalidRole is returned when a role name is not defined.
	ErrInvalidRole = errors.New("authz: invalid role")
	// ErrCircularInheritance is returned when role definitions inherit
	// in a cycle.
	ErrCircularInheritance = errors.New("authz: circular role inheritance")
)
