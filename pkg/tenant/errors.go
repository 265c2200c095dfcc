package tenant

import "errors"

var (
	// ErrNotFound is returned when no tenant matches an identifier.
	ErrNotFound = errors.New("tenant not found")

	// ErrIdentifierRequired is returned when no tenant identifier could be
	// extracted from a request and no development fallback applies.
	ErrIdentifierRequired = errors.New("tenant identifier required")

	// ErrAccessDenied is returned when a tenant exists but its status
	// does not allow serving requests.
	ErrAccessDenied = errors.New("tenant access denied")

	// ErrNoTenantInContext is returned when a tenant is required but
	// none has been resolved for the request.
	ErrNoTenantInContext = errors.New("no tenant in context")

	// ErrSubdomainInvalid is returned when a subdomain fails format validation.
	ErrSubdomainInvalid = errors.New("invalid tenant subdomain")

	// ErrSubdomainReserved is returned when a subdomain is on the reserved list.
	ErrSubdomainReserved = errors.New("reserved tenant subdomain")

	// ErrSubdomainTaken is returned when the subdomain is already assigned.
	ErrSubdomainTaken = errors.New("tenant subdomain already taken")

	// ErrInvalidTransition is returned for a disallowed lifecycle change.
	ErrInvalidTransition = errors.New("invalid tenant status transition")

	// ErrSystemTenantProtected is returned for suspend/delete attempts on
	// the system tenant.
	ErrSystemTenantProtected = errors.New("system tenant cannot be suspended or deleted")
)
