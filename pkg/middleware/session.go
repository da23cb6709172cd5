package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/geb2701/storefront/pkg/logger"
)

// SessionHeader carries the cart session identity between client and server.
const SessionHeader = "X-Session-ID"

type contextKeyType string

const sessionIDKey contextKeyType = "session_id"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// Session resolves the cart session of a request. A well-formed X-Session-ID
// header is reused; a missing or malformed one is replaced by a new UUID.
// The resolved id is echoed in the response header, stored in the context for
// handlers and the request logger, and recorded on the active server span.
func Session() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			if !sessionIDPattern.MatchString(id) {
				id = uuid.NewString()
			}

			w.Header().Set(SessionHeader, id)
			trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("storefront.session_id", id))

			ctx := context.WithValue(r.Context(), sessionIDKey, id)
			ctx = logger.WithSessionID(ctx, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionIDFromContext returns the session id resolved by Session.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}
