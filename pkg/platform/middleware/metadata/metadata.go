// Package metadata populates request-scoped identifiers from incoming headers.
package metadata

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"carrieralpha/pkg/requestcontext"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderActor     = "X-Actor"

	maxHeaderValueLen = 128
)

// RequestMetadata stores the request ID and acting operator in the context.
// A request ID is generated when the caller did not send one; it is echoed back
// on the response so automation can correlate claim transitions with its own logs.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := sanitize(r.Header.Get(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		if actor := sanitize(r.Header.Get(HeaderActor)); actor != "" {
			ctx = requestcontext.WithActor(ctx, actor)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sanitize(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > maxHeaderValueLen {
		v = v[:maxHeaderValueLen]
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, v)
}

// ClientIPFromRequest extracts the client IP, honouring proxy headers.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// first entry is the original client
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return "unknown"
}
