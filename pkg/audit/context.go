package audit

import (
	"context"
	"net/http"
)

type userAgentKey struct{}

// UserAgentMiddleware captures the request's User-Agent so audit
// events emitted deeper in the stack can carry it.
func UserAgentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), userAgentKey{}, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserAgentFromContext returns the captured User-Agent, if any.
func UserAgentFromContext(ctx context.Context) (string, bool) {
	ua, ok := ctx.Value(userAgentKey{}).(string)
	return ua, ok && ua != ""
}
