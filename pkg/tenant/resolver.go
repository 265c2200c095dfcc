package tenant

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Method identifies which request attribute produced a tenant identifier.
// It is recorded with every resolution metric and audit entry.
type Method string

const (
	MethodSubdomain Method = "subdomain"
	MethodHeader    Method = "header"
	MethodQuery     Method = "query"
	MethodRoute     Method = "route"
	MethodDefault   Method = "default"
	MethodNone      Method = "none"
)

const (
	// HeaderTenantID carries an explicit tenant id.
	HeaderTenantID = "X-Tenant-Id"
	// HeaderTenantSubdomain carries an explicit tenant subdomain.
	HeaderTenantSubdomain = "X-Tenant-Subdomain"
	// queryParam and routeParam are the fallback identifier carriers.
	queryParam = "tenant"
	routeParam = "tenant"
)

// Extractor pulls a raw tenant identifier out of an HTTP request.
// It returns the identifier and the method that produced it, or an
// empty string with MethodNone when the request carries nothing usable.
type Extractor func(r *http.Request) (string, Method)

// NewSubdomainExtractor extracts the tenant subdomain from the request
// host. Hosts that are localhost, a loopback address, or any IP literal
// yield no identifier so header/query/route fallbacks apply during local
// development. Malformed and reserved subdomains both fall through to
// the next extractor; the distinction is logged at debug level only.
func NewSubdomainExtractor(baseDomain string, log *slog.Logger) Extractor {
	if log == nil {
		log = slog.Default()
	}
	suffix := "." + strings.ToLower(strings.TrimPrefix(baseDomain, "."))

	return func(r *http.Request) (string, Method) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		host = strings.ToLower(strings.TrimSuffix(host, "."))

		if host == "localhost" || net.ParseIP(strings.Trim(host, "[]")) != nil {
			return "", MethodNone
		}
		if !strings.HasSuffix(host, suffix) || len(host) <= len(suffix) {
			return "", MethodNone
		}

		candidate := host[:len(host)-len(suffix)]
		if !IsValidSubdomain(candidate) {
			log.DebugContext(r.Context(), "subdomain failed format validation",
				slog.String("host", r.Host))
			return "", MethodNone
		}
		if IsReservedSubdomain(candidate) {
			log.DebugContext(r.Context(), "subdomain is reserved",
				slog.String("subdomain", candidate))
			return "", MethodNone
		}
		return candidate, MethodSubdomain
	}
}

// NewHeaderExtractor extracts the identifier from the X-Tenant-Id header,
// falling back to X-Tenant-Subdomain. First non-blank value wins.
func NewHeaderExtractor() Extractor {
	return func(r *http.Request) (string, Method) {
		for _, name := range []string{HeaderTenantID, HeaderTenantSubdomain} {
			if v := strings.TrimSpace(r.Header.Get(name)); v != "" {
				return v, MethodHeader
			}
		}
		return "", MethodNone
	}
}

// NewQueryExtractor extracts the identifier from the "tenant" query parameter.
func NewQueryExtractor() Extractor {
	return func(r *http.Request) (string, Method) {
		if v := strings.TrimSpace(r.URL.Query().Get(queryParam)); v != "" {
			return v, MethodQuery
		}
		return "", MethodNone
	}
}

// NewRouteExtractor extracts the identifier from the chi "tenant" route
// value, supporting path-templated tenancy like /t/{tenant}/horses.
func NewRouteExtractor() Extractor {
	return func(r *http.Request) (string, Method) {
		if v := strings.TrimSpace(chi.URLParam(r, routeParam)); v != "" {
			return v, MethodRoute
		}
		return "", MethodNone
	}
}

// NewChainExtractor tries each extractor in order and returns the first
// identifier found. Order defines precedence: an earlier match always
// wins, even when later extractors would also match.
func NewChainExtractor(extractors ...Extractor) Extractor {
	return func(r *http.Request) (string, Method) {
		for _, extract := range extractors {
			if id, method := extract(r); id != "" {
				return id, method
			}
		}
		return "", MethodNone
	}
}

// NewDefaultExtractor returns the standard precedence chain:
// subdomain, then tenant headers, then query parameter, then route value.
func NewDefaultExtractor(baseDomain string, log *slog.Logger) Extractor {
	return NewChainExtractor(
		NewSubdomainExtractor(baseDomain, log),
		NewHeaderExtractor(),
		NewQueryExtractor(),
		NewRouteExtractor(),
	)
}
