// Package authz implements the authorization decision points: tenant
// requirement evaluation, the system-administrator bypass, and the
// explicit tenant-switch path.
package authz

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rheckart/rescue-ranger/pkg/tenant"
)

// Requirement describes what a protected operation demands of the
// caller. Zero value requires only authentication and a valid tenant
// context.
type Requirement struct {
	Membership  bool
	Role        string
	TenantAdmin bool
}

// MembershipSource answers whether a user belongs to a tenant.
type MembershipSource interface {
	IsMember(ctx context.Context, userID, tenantID uuid.UUID) (bool, error)
}

// Authorizer evaluates Requirements against authenticated identities.
type Authorizer struct {
	members MembershipSource
	roles   *Roles
	log     *slog.Logger
}

// NewAuthorizer returns an Authorizer. roles may not be nil; members
// may be nil only when no Requirement uses Membership.
func NewAuthorizer(members MembershipSource, roles *Roles, log *slog.Logger) *Authorizer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Authorizer{members: members, roles: roles, log: log}
}

// Authorize evaluates the requirement in fixed order: authentication,
// tenant context, system-admin bypass, membership, role, tenant-admin.
// The first failing rule is terminal.
func (a *Authorizer) Authorize(ctx context.Context, req Requirement) error {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}

	if err := tenant.ValidateAccess(ctx); err != nil {
		return ErrNoTenantContext
	}

	if identity.SystemAdmin {
		return nil
	}

	if req.Membership {
		userID, err := identity.UserID()
		if err != nil {
			return ErrUnauthenticated
		}
		tenantID, ok := tenant.IDFromContext(ctx)
		if !ok {
			return ErrNoTenantContext
		}
		member, err := a.members.IsMember(ctx, userID, tenantID)
		if err != nil {
			return err
		}
		if !member {
			a.log.WarnContext(ctx, "membership check failed",
				slog.String("user_id", userID.String()),
				slog.String("tenant_id", tenantID.String()))
			return ErrNotMember
		}
	}

	if req.Role != "" && !a.roles.Satisfies(identity.Role, req.Role) {
		return ErrInsufficientRole
	}

	if req.TenantAdmin && !a.roles.IsTenantAdmin(identity.Role) {
		return ErrNotTenantAdmin
	}

	return nil
}

// AuthorizeTenantSwitch permits only system administrators, gated on
// the can_switch_tenant capability. Everyone else is denied outright.
func (a *Authorizer) AuthorizeTenantSwitch(identity Claims) error {
	if !identity.SystemAdmin {
		return ErrSwitchDenied
	}
	if !identity.CanSwitchTenant {
		return ErrSwitchDenied
	}
	return nil
}

// SwitchClaims derives the claims for a session switched into target.
// The original tenant id is preserved across repeated switches.
func SwitchClaims(identity Claims, target *tenant.Info) Claims {
	original := identity.TenantID
	if identity.TenantSwitched && identity.OriginalTenantID != "" {
		original = identity.OriginalTenantID
	}

	switched := identity
	switched.TenantID = target.ID.String()
	switched.TenantName = target.Name
	switched.TenantSubdomain = target.Subdomain
	switched.OriginalTenantID = original
	switched.TenantSwitched = true
	return switched
}
