package horses

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rheckart/rescue-ranger/core"
	"github.com/rheckart/rescue-ranger/pkg/audit"
	"github.com/rheckart/rescue-ranger/pkg/authz"
	"github.com/rheckart/rescue-ranger/pkg/scoped"
	"github.com/rheckart/rescue-ranger/pkg/tenant"
)

// Service handles the horse HTTP surface on top of the tenant-guarded
// store.
type Service struct {
	store *scoped.Store[*Horse]
	audit *audit.Service
}

func NewService(store *scoped.Store[*Horse], auditSvc *audit.Service) *Service {
	return &Service{store: store, audit: auditSvc}
}

// Router mounts the horse endpoints behind tenant membership.
func Router(svc *Service, authorizer *authz.Authorizer) chi.Router {
	r := chi.NewRouter()
	r.Use(authz.Require(authorizer, authz.Requirement{Membership: true}))

	r.Get("/", svc.list)
	r.Post("/", svc.create)
	r.Get("/{id}", svc.get)
	r.Put("/{id}", svc.update)
	r.Delete("/{id}", svc.delete)
	return r
}

type horseRequest struct {
	Name      string `json:"name"`
	Breed     string `json:"breed"`
	Color     string `json:"color"`
	BirthYear int    `json:"birth_year"`
	Status    Status `json:"status"`
	Notes     string `json:"notes"`
}

func (q horseRequest) validate() error {
	if q.Name == "" {
		return core.ErrUnprocessableEntity
	}
	if q.Status != "" && !validStatus(q.Status) {
		return core.ErrUnprocessableEntity
	}
	return nil
}

func (s *Service) create(w http.ResponseWriter, r *http.Request) {
	var req horseRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.JSONError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		core.JSONError(w, err)
		return
	}

	now := time.Now().UTC()
	h := &Horse{
		ID:        uuid.New(),
		Name:      req.Name,
		Breed:     req.Breed,
		Color:     req.Color,
		BirthYear: req.BirthYear,
		Status:    req.Status,
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if h.Status == "" {
		h.Status = StatusIntake
	}

	if err := s.store.Add(r.Context(), h); err != nil {
		s.writeError(w, r, err, "horse.create", h.ID)
		return
	}
	core.JSON(w, http.StatusCreated, h)
}

func (s *Service) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	result, err := s.store.List(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, r, err, "horse.list", uuid.Nil)
		return
	}
	core.JSON(w, http.StatusOK, result)
}

func (s *Service) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.JSONError(w, core.ErrBadRequest)
		return
	}

	h, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "horse.get", id)
		return
	}
	core.JSON(w, http.StatusOK, h)
}

func (s *Service) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.JSONError(w, core.ErrBadRequest)
		return
	}

	var req horseRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.JSONError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		core.JSONError(w, err)
		return
	}

	h, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "horse.update", id)
		return
	}

	h.Name = req.Name
	h.Breed = req.Breed
	h.Color = req.Color
	h.BirthYear = req.BirthYear
	if req.Status != "" {
		h.Status = req.Status
	}
	h.Notes = req.Notes
	h.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(r.Context(), h); err != nil {
		s.writeError(w, r, err, "horse.update", id)
		return
	}
	core.JSON(w, http.StatusOK, h)
}

func (s *Service) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.JSONError(w, core.ErrBadRequest)
		return
	}

	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err, "horse.delete", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps store errors to HTTP responses. Cross-tenant
// attempts are audited as security events before being denied.
func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error, action string, entityID uuid.UUID) {
	switch {
	case errors.Is(err, scoped.ErrNotFound):
		core.JSONError(w, core.ErrNotFound)
	case errors.Is(err, scoped.ErrCrossTenant):
		if tid, ok := tenant.IDFromContext(r.Context()); ok {
			s.audit.RecordCrossTenantAttempt(r.Context(), tid, action, map[string]any{
				"entity":    "horse",
				"entity_id": entityID.String(),
			})
		}
		core.JSONError(w, core.ErrForbidden)
	case errors.Is(err, scoped.ErrNoTenant):
		core.JSONError(w, core.ErrBadRequest)
	default:
		core.JSONError(w, err)
	}
}
