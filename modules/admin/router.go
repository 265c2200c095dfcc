// Package admin is the system-administrator HTTP surface: tenant
// lifecycle management, tenant switching, audit reads, and
// operational health.
package admin

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rheckart/rescue-ranger/pkg/audit"
	"github.com/rheckart/rescue-ranger/pkg/authz"
	"github.com/rheckart/rescue-ranger/pkg/jwt"
	"github.com/rheckart/rescue-ranger/pkg/tenant"
	"github.com/rheckart/rescue-ranger/pkg/tenantmetrics"
)

// Service holds the admin surface dependencies.
type Service struct {
	tenants    *tenant.Service
	dir        *tenant.Directory
	authorizer *authz.Authorizer
	tokens     *jwt.Service
	auditRead  *audit.Reader
	auditSvc   *audit.Service
	metrics    *tenantmetrics.Recorder
	tokenTTL   int64
}

// Options configures the admin service.
type Options struct {
	Tenants    *tenant.Service
	Directory  *tenant.Directory
	Authorizer *authz.Authorizer
	Tokens     *jwt.Service
	AuditRead  *audit.Reader
	Audit      *audit.Service
	Metrics    *tenantmetrics.Recorder
	// TokenTTLSeconds bounds switched-session tokens. Defaults to one hour.
	TokenTTLSeconds int64
}

func NewService(opts Options) *Service {
	ttl := opts.TokenTTLSeconds
	if ttl <= 0 {
		ttl = 3600
	}
	return &Service{
		tenants:    opts.Tenants,
		dir:        opts.Directory,
		authorizer: opts.Authorizer,
		tokens:     opts.Tokens,
		auditRead:  opts.AuditRead,
		auditSvc:   opts.Audit,
		metrics:    opts.Metrics,
		tokenTTL:   ttl,
	}
}

// Router mounts the admin endpoints. Everything except health and
// metrics requires a system-administrator session.
func Router(svc *Service, healthDeps ...func(context.Context) error) chi.Router {
	r := chi.NewRouter()

	r.Get("/health/live", healthHandler())
	r.Get("/health/resolution", healthHandler(svc.metrics.Healthcheck()))
	r.Get("/health/directory", healthHandler(healthDeps...))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authz.RequireSystemAdmin())

		r.Route("/tenants", func(r chi.Router) {
			r.Get("/", svc.listTenants)
			r.Post("/", svc.createTenant)
			r.Get("/{id}", svc.getTenant)
			r.Put("/{id}", svc.updateTenant)
			r.Delete("/{id}", svc.deleteTenant)
			r.Post("/{id}/suspend", svc.suspendTenant)
			r.Post("/{id}/reactivate", svc.reactivateTenant)
			r.Post("/{id}/provision-complete", svc.completeProvisioning)
			r.Post("/{id}/rotate-key", svc.rotateAPIKey)
			r.Get("/{id}/audit", svc.tenantAudit)
		})

		r.Post("/switch-tenant", svc.switchTenant)
	})

	return r
}

// healthHandler runs the checks on the request context so a hung
// dependency check is abandoned when the caller goes away.
func healthHandler(checks ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if check == nil {
				continue
			}
			if err := check(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}
