// Package requesttime pins a single "now" per HTTP request so a claim transition's
// UpdatedAt, its transition log entry and its outbox event agree.
package requesttime

import (
	"net/http"
	"time"

	"carrieralpha/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
