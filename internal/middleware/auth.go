package middleware

import (
	"net/http"

	"github.com/templui/bullseye/internal/ctxkeys"
	"github.com/templui/bullseye/internal/service"
)

// Identity resolves the caller's identity from the bearer token or auth cookie
// and adds it to the context. Requests without a valid token continue
// anonymously; the services reject anonymous callers where a role is needed.
func Identity(identities *service.IdentityService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := identities.FromRequest(r)
			if identity == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := ctxkeys.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
