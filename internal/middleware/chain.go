package middleware

import "net/http"

// Chain wraps h so that middlewares run in the order given, first to last.
// Nil entries are skipped, which lets callers leave optional layers out.
//
//	handler := Chain(mux,
//	    RequestLogging(mux),  // runs first
//	    RateLimit(limiter),   // runs second
//	    Identity(identities), // runs last, just before mux
//	)
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] == nil {
			continue
		}
		h = middlewares[i](h)
	}
	return h
}
