package admin

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rheckart/rescue-ranger/core"
	"github.com/rheckart/rescue-ranger/pkg/authz"
	"github.com/rheckart/rescue-ranger/pkg/tenant"
)

type switchTenantRequest struct {
	TenantID string `json:"tenant_id"`
}

type switchTenantResponse struct {
	Token  string       `json:"token"`
	Tenant *tenant.Info `json:"tenant"`
}

// switchTenant mints a new session token scoped to the target tenant.
// Only system administrators with the switch capability reach the
// minting step; everyone else is denied outright.
func (s *Service) switchTenant(w http.ResponseWriter, r *http.Request) {
	identity, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		core.JSONError(w, core.ErrUnauthorized)
		return
	}

	if err := s.authorizer.AuthorizeTenantSwitch(identity); err != nil {
		core.JSONError(w, core.ErrForbidden)
		return
	}

	var req switchTenantRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.JSONError(w, err)
		return
	}
	targetID, err := uuid.Parse(req.TenantID)
	if err != nil {
		core.JSONError(w, core.ErrBadRequest)
		return
	}

	target, err := s.dir.ByID(r.Context(), targetID)
	if err != nil {
		core.JSONError(w, tenantError(err))
		return
	}

	claims := authz.SwitchClaims(identity, target)
	now := time.Now()
	claims.ID = uuid.New().String()
	claims.IssuedAt = now.Unix()
	claims.ExpiresAt = now.Unix() + s.tokenTTL

	token, err := s.tokens.Generate(claims)
	if err != nil {
		core.JSONError(w, core.ErrInternalServerError)
		return
	}

	s.auditSvc.RecordAdmin(r.Context(), "tenant.switch", targetID, map[string]any{
		"original_tenant_id": claims.OriginalTenantID,
	})

	core.JSON(w, http.StatusOK, switchTenantResponse{Token: token, Tenant: target})
}
