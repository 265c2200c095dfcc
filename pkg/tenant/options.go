package tenant

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// ErrorHandler converts resolution failures to HTTP responses.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// config holds middleware configuration.
type config struct {
	errorHandler     ErrorHandler
	skipPaths        []string
	metrics          MetricsRecorder
	log              *slog.Logger
	defaultSubdomain string
	slowThreshold    time.Duration
}

// Option configures the resolution middleware.
type Option func(*config)

// WithErrorHandler sets a custom error handler.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(c *config) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// WithSkipPaths sets path prefixes that bypass resolution entirely,
// typically health and metrics endpoints.
func WithSkipPaths(paths ...string) Option {
	return func(c *config) {
		c.skipPaths = append(c.skipPaths, paths...)
	}
}

// WithMetrics attaches a resolution metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.log = log
		}
	}
}

// WithDefaultSubdomain sets the tenant used in development when a
// request carries no identifier. Ignored outside development.
func WithDefaultSubdomain(subdomain string) Option {
	return func(c *config) {
		c.defaultSubdomain = subdomain
	}
}

// WithSlowThreshold overrides the advisory slow-resolution warning
// threshold (default 50ms). It never aborts the request.
func WithSlowThreshold(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.slowThreshold = d
		}
	}
}

// defaultErrorHandler maps resolution outcomes to status codes without
// leaking tenant details.
func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrIdentifierRequired):
		http.Error(w, "Tenant identifier required", http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "Tenant not found", http.StatusNotFound)
	case errors.Is(err, ErrAccessDenied):
		http.Error(w, "Tenant is not accessible", http.StatusForbidden)
	case errors.Is(err, ErrNoTenantInContext):
		http.Error(w, "Tenant required", http.StatusBadRequest)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
