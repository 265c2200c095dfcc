package tenant

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rheckart/rescue-ranger/pkg/environment"
)

// MetricsRecorder receives exactly one sample per resolution attempt.
type MetricsRecorder interface {
	RecordResolution(method Method, success bool, reason string, duration time.Duration)
}

// Middleware builds the resolution pipeline: extract an identifier,
// resolve it through the directory, validate access, and install the
// tenant on the request context. Every terminal branch records one
// metrics sample. The context entry is scoped to the request and is
// gone when the request finishes, whatever the outcome.
func Middleware(extract Extractor, dir *Directory, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		errorHandler:  defaultErrorHandler,
		log:           slog.Default(),
		slowThreshold: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range cfg.skipPaths {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			ctx := r.Context()
			start := time.Now()
			record := func(method Method, success bool, reason string) {
				elapsed := time.Since(start)
				if cfg.metrics != nil {
					cfg.metrics.RecordResolution(method, success, reason, elapsed)
				}
				if elapsed > cfg.slowThreshold {
					cfg.log.WarnContext(ctx, "slow tenant resolution",
						slog.Duration("elapsed", elapsed),
						slog.String("method", string(method)))
				}
			}

			identifier, method := extract(r)
			if identifier == "" {
				if environment.IsDevelopment(ctx) && cfg.defaultSubdomain != "" {
					identifier, method = cfg.defaultSubdomain, MethodDefault
				} else if environment.IsDevelopment(ctx) {
					// Development without a default proceeds tenantless;
					// RequireTenant guards the routes that need one.
					record(MethodNone, true, "no_tenant")
					next.ServeHTTP(w, r)
					return
				} else {
					record(MethodNone, false, "identifier_required")
					cfg.errorHandler(w, r, ErrIdentifierRequired)
					return
				}
			}

			info, err := dir.Lookup(ctx, identifier)
			if err != nil {
				switch {
				case errors.Is(err, ErrNotFound):
					record(method, false, "not_found")
					cfg.log.WarnContext(ctx, "tenant not found",
						slog.String("identifier", identifier),
						slog.String("method", string(method)))
					cfg.errorHandler(w, r, ErrNotFound)
				default:
					record(method, false, "store_error")
					cfg.log.ErrorContext(ctx, "tenant resolution failed",
						slog.String("identifier", identifier), slog.Any("error", err))
					cfg.errorHandler(w, r, err)
				}
				return
			}

			ctx = WithInfo(ctx, info)
			if err := ValidateAccess(ctx); err != nil {
				record(method, false, "access_denied")
				cfg.log.WarnContext(ctx, "tenant access denied",
					slog.String("tenant_id", info.ID.String()),
					slog.String("status", string(info.Status)))
				cfg.errorHandler(w, r, ErrAccessDenied)
				return
			}

			record(method, true, "")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant rejects requests that reach a tenant-scoped route
// without a resolved tenant.
func RequireTenant(errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				errorHandler(w, r, ErrNoTenantInContext)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
