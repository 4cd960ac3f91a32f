package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sagarc03/pagehaven"
	"github.com/sagarc03/pagehaven/session"
)

// IdentityVerifier turns a session token into a verified identity.
type IdentityVerifier interface {
	Verify(token string) (pagehaven.Identity, error)
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity pagehaven.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, &identity)
}

// IdentityFromContext returns the verified identity of the request, or nil
// for anonymous visitors.
func IdentityFromContext(ctx context.Context) *pagehaven.Identity {
	identity, _ := ctx.Value(identityKey{}).(*pagehaven.Identity)
	return identity
}

// IdentityMiddleware verifies the session token of each request. A missing
// or invalid token leaves the request anonymous; it is never rejected here,
// because public sites need no identity at all. Pass a nil verifier to
// treat every visitor as anonymous.
func IdentityMiddleware(cookieName string, verifier IdentityVerifier) func(http.Handler) http.Handler {
	if verifier == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := session.TokenFromRequest(r, cookieName)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				slog.Debug("ignoring invalid session token", "host", r.Host, "err", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// dispatchLog is filled in by the handler so the access log can report
// how the request was answered.
type dispatchLog struct {
	outcome pagehaven.Outcome
	reason  pagehaven.DenialReason
}

type dispatchLogKey struct{}

func dispatchLogFrom(ctx context.Context) *dispatchLog {
	l, _ := ctx.Value(dispatchLogKey{}).(*dispatchLog)
	return l
}

// AccessLog writes one structured log line per request.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		entry := &dispatchLog{}

		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), dispatchLogKey{}, entry)))

		attrs := []any{
			"method", r.Method,
			"host", r.Host,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		}
		if entry.outcome != "" {
			attrs = append(attrs, "outcome", string(entry.outcome))
		}
		if entry.reason != "" {
			attrs = append(attrs, "reason", string(entry.reason))
		}

		slog.Info("request", attrs...)
	})
}
