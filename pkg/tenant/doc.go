// Package tenant implements tenant resolution and the tenant request
// context for the multi-tenant rescue platform.
//
// The package is built around four concepts:
//
//  1. Extractors - pull a raw tenant identifier out of HTTP requests
//     (subdomain, headers, query parameter, route value) under a strict
//     precedence order
//  2. Directory - resolves identifiers to tenant projections through a
//     cache-aside layer (in-process L1, redis L2) over the durable store
//  3. Context - the request-scoped holder of the resolved tenant,
//     carried on context.Context so it can never leak across requests
//  4. Middleware - the resolution pipeline gluing the above together
//     and mapping outcomes to HTTP status codes
//
// # Resolution pipeline
//
//	extract := tenant.NewDefaultExtractor("rescueranger.app", log)
//	dir := tenant.NewDirectory(store, cache)
//	router.Use(tenant.Middleware(extract, dir,
//		tenant.WithSkipPaths("/health", "/metrics"),
//		tenant.WithMetrics(resolution),
//	))
//
// Requests without a resolvable identifier are rejected with 400 in
// production; in development a configured default tenant applies.
// Unknown identifiers yield 404, tenants whose status forbids access
// yield 403, infrastructure failures yield 500. Every attempt records
// exactly one metrics sample, and resolutions slower than 50ms log an
// advisory warning.
//
// # Data isolation
//
// Downstream code reads the resolved tenant with FromContext and
// friends; the scoped package builds tenant-filtered data access on top
// of it. Suspending a tenant invalidates its cache entries synchronously
// after the store write, so a suspended tenant is unreachable on the
// very next request.
package tenant
