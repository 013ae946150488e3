package middleware

import (
	"context"
	"net"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/emergency-console/services"
	"github.com/upb/emergency-console/session"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// ClaimsKey is the context key for verified session claims
	ClaimsKey contextKey = "claims"
)

// GetRequestIDFromContext retrieves the request ID from context. Falls back
// to the id set by chi's RequestID middleware.
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return chimw.GetReqID(ctx)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetClaimsFromContext retrieves session claims from context
func GetClaimsFromContext(ctx context.Context) *session.Claims {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*session.Claims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds session claims to the context
func WithClaims(ctx context.Context, claims *session.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// RequestInfo collects the audit metadata of r
func RequestInfo(r *http.Request) services.RequestInfo {
	return services.RequestInfo{
		RequestID: GetRequestIDFromContext(r.Context()),
		ClientIP:  ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// ClientIP returns the remote host without port. chi's RealIP middleware has
// already replaced RemoteAddr when a proxy header was present.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
