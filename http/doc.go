// Package http exposes the pagehaven dispatcher over HTTP.
//
// The router accepts GET and HEAD on every path of every host. Each request
// is turned into a pagehaven.Request, dispatched, and the pagehaven.Response
// is written back: the stored object, a 302 to a gate page of the web app,
// the default 404 page, or a generic 500 page for upstream failures.
//
// # Middleware
//
//   - chi RequestID, so every access log line carries a request id
//   - AccessLog: one slog line per request with status, bytes, duration,
//     host and dispatch outcome
//   - CORS (optional, go-chi/cors)
//   - IdentityMiddleware: verifies the session token from the session
//     cookie or an Authorization bearer header and stores the identity in
//     the request context. Invalid tokens are treated as anonymous.
//
// # Usage
//
//	verifier, _ := session.NewJWTVerifier(secret, "")
//	handler := http.NewHandler(&http.HandlerConfig{
//	    SessionCookie: session.DefaultCookieName,
//	    Verifier:      verifier,
//	}, dispatcher)
//	server := &nethttp.Server{Addr: ":8080", Handler: handler.Router()}
//
// Object bodies that implement io.ReadSeeker are served with
// http.ServeContent, which adds Range and conditional request support.
package http
