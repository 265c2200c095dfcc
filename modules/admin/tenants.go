package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rheckart/rescue-ranger/core"
	"github.com/rheckart/rescue-ranger/pkg/tenant"
)

type createTenantRequest struct {
	Name         string         `json:"name"`
	Subdomain    string         `json:"subdomain"`
	ContactEmail string         `json:"contact_email"`
	Config       *tenant.Config `json:"config"`
}

type createTenantResponse struct {
	Tenant *tenant.Tenant `json:"tenant"`
	// APIKey is returned exactly once; only its hash is stored.
	APIKey string `json:"api_key"`
}

func (s *Service) createTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.JSONError(w, err)
		return
	}

	p := tenant.CreateParams{
		Name:         req.Name,
		Subdomain:    req.Subdomain,
		ContactEmail: req.ContactEmail,
	}
	if req.Config != nil {
		p.Config = *req.Config
	}

	t, apiKey, err := s.tenants.Create(r.Context(), p)
	if err != nil {
		core.JSONError(w, tenantError(err))
		return
	}
	core.JSON(w, http.StatusCreated, createTenantResponse{Tenant: t, APIKey: apiKey})
}

func (s *Service) listTenants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	filter := tenant.ListFilter{
		Status:   tenant.Status(q.Get("status")),
		Search:   q.Get("search"),
		SortBy:   q.Get("sort"),
		SortDesc: q.Get("order") == "desc",
		Limit:    limit,
		Offset:   offset,
	}

	tenants, total, err := s.tenants.List(r.Context(), filter)
	if err != nil {
		core.JSONError(w, tenantError(err))
		return
	}
	core.JSONWithMeta(w, http.StatusOK, tenants, map[string]any{
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func (s *Service) getTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	t, err := s.tenants.Get(r.Context(), id)
	if err != nil {
		core.JSONError(w, tenantError(err))
		return
	}
	core.JSON(w, http.StatusOK, t)
}

type updateTenantRequest struct {
	Name         string         `json:"name"`
	ContactEmail string         `json:"contact_email"`
	Config       *tenant.Config `json:"config"`
}

func (s *Service) updateTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	var req updateTenantRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.JSONError(w, err)
		return
	}

	t, err := s.tenants.Update(r.Context(), id, tenant.UpdateParams{
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		Config:       req.Config,
	})
	if err != nil {
		core.JSONError(w, tenantError(err))
		return
	}
	core.JSON(w, http.StatusOK, t)
}

func (s *Service) deleteTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	if _, err := s.tenants.SoftDelete(r.Context(), id); err != nil {
		core.JSONError(w, tenantError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type suspendTenantRequest struct {
	Reason      string     `json:"reason"`
	EffectiveAt *time.Time `json:"effective_at"`
	Notify      bool       `json:"notify"`
}

func (s *Service) suspendTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	var req suspendTenantRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.JSONError(w, err)
		return
	}

	t, err := s.tenants.Suspend(r.Context(), id, tenant.SuspendParams{
		Reason:      req.Reason,
		EffectiveAt: req.EffectiveAt,
		Notify:      req.Notify,
	})
	if err != nil {
		core.JSONError(w, tenantError(err))
		return
	}
	core.JSON(w, http.StatusOK, t)
}

func (s *Service) reactivateTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	t, err := s.tenants.Reactivate(r.Context(), id)
	if err != nil {
		core.JSONError(w, tenantError(err))
		return
	}
	core.JSON(w, http.StatusOK, t)
}

func (s *Service) completeProvisioning(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	t, err := s.tenants.CompleteProvisioning(r.Context(), id)
	if err != nil {
		core.JSONError(w, tenantError(err))
		return
	}
	core.JSON(w, http.StatusOK, t)
}

func (s *Service) rotateAPIKey(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	key, err := s.tenants.RotateAPIKey(r.Context(), id)
	if err != nil {
		core.JSONError(w, tenantError(err))
		return
	}
	core.JSON(w, http.StatusOK, map[string]string{"api_key": key})
}

func (s *Service) tenantAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.auditRead.RecentByTenant(r.Context(), id, n)
	if err != nil {
		core.JSONError(w, core.ErrInternalServerError)
		return
	}
	core.JSON(w, http.StatusOK, events)
}

func tenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.JSONError(w, core.ErrBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// tenantError maps domain errors onto the HTTP error taxonomy.
func tenantError(err error) error {
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		return core.ErrNotFound
	case errors.Is(err, tenant.ErrSubdomainInvalid),
		errors.Is(err, tenant.ErrSubdomainReserved):
		return core.ErrUnprocessableEntity
	case errors.Is(err, tenant.ErrSubdomainTaken):
		return core.ErrConflict
	case errors.Is(err, tenant.ErrInvalidTransition),
		errors.Is(err, tenant.ErrSystemTenantProtected):
		return core.ErrConflict
	default:
		return core.ErrInternalServerError
	}
}
