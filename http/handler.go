package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sagarc03/pagehaven"
)

// Dispatcher answers framework-independent requests. *pagehaven.Dispatcher
// implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req pagehaven.Request) (pagehaven.Response, error)
}

// Recorder observes every dispatched request. *metrics.Recorder implements it.
type Recorder interface {
	Observe(resp pagehaven.Response, elapsed time.Duration)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	// SessionCookie names the cookie holding the session token.
	SessionCookie string
	// Verifier validates session tokens; nil serves everyone anonymously.
	Verifier IdentityVerifier
	// Metrics is optional.
	Metrics Recorder
	CORS    CORSConfig
}

// Handler serves static sites through a Dispatcher.
type Handler struct {
	config     HandlerConfig
	dispatcher Dispatcher
}

// NewHandler creates a new Handler with the given configuration and dispatcher.
func NewHandler(config *HandlerConfig, dispatcher Dispatcher) *Handler {
	return &Handler{
		config:     *config,
		dispatcher: dispatcher,
	}
}

// Router returns an http.Handler answering GET and HEAD on every path.
// Other methods get 405.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Use(IdentityMiddleware(h.config.SessionCookie, h.config.Verifier))

	r.Get("/*", h.handleServe)
	r.Head("/*", h.handleServe)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

func (h *Handler) handleServe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req := pagehaven.Request{
		Host:        r.Host,
		Path:        r.URL.Path,
		EscapedPath: r.URL.EscapedPath(),
		RawQuery:    r.URL.RawQuery,
		Cookies:     requestCookies(r),
		Identity:    IdentityFromContext(r.Context()),
	}

	resp, err := h.dispatcher.Dispatch(r.Context(), req)

	if h.config.Metrics != nil {
		h.config.Metrics.Observe(resp, time.Since(start))
	}
	if entry := dispatchLogFrom(r.Context()); entry != nil {
		entry.outcome = resp.Outcome
		entry.reason = resp.Reason
	}

	if err != nil {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
		HandleError(w, err)
		return
	}

	if resp.Outcome == pagehaven.OutcomeRedirected {
		slog.Debug("access denied", "host", r.Host, "path", r.URL.Path, "reason", resp.Reason)
	}

	writeResponse(w, r, resp)
}

// requestCookies keeps the first value of each cookie name.
func requestCookies(r *http.Request) map[string]string {
	cookies := r.Cookies()
	if len(cookies) == 0 {
		return nil
	}

	m := make(map[string]string, len(cookies))
	for _, c := range cookies {
		if _, seen := m[c.Name]; !seen {
			m[c.Name] = c.Value
		}
	}
	return m
}
