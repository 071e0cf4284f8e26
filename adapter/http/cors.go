package http

import (
	"net/http"
)

// WithCORS allows browser front-ends on any origin to call the API and
// answers pre-flight requests directly.
func WithCORS(next http.Handler) http.Handler {
	if next == nil {
		return nil
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		if origin := r.Header.Get("Origin"); origin != "" {
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Vary", "Origin, Access-Control-Request-Headers, Access-Control-Request-Method")
		} else {
			header.Set("Access-Control-Allow-Origin", "*")
		}
		header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		requested := r.Header.Get("Access-Control-Request-Headers")
		if requested == "" {
			requested = "Content-Type"
		}
		header.Set("Access-Control-Allow-Headers", requested)
		header.Set("Access-Control-Max-Age", "600")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
