package middleware

import (
	"net/http"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/tenant"
)

// Tenant resolves the serving tenant from the request host and
// attaches it to the context. Resolution never fails a request.
func Tenant(resolver *tenant.Resolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := resolver.Resolve(r.Context(), r.Host)
			next.ServeHTTP(w, r.WithContext(tenant.WithInfo(r.Context(), info)))
		})
	}
}
