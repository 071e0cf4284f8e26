package http

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
)

// WithRecover turns a handler panic into a 500 JSON response.
func WithRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Printf("panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				encode(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("internal server error: %v", rec)})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
