package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sagarc03/pagehaven"
)

// HandleError logs err and writes the matching error page. Only
// pagehaven.ErrNotFound maps to 404; everything else is a generic 500 with
// no detail in the body.
func HandleError(w http.ResponseWriter, err error) {
	if errors.Is(err, pagehaven.ErrNotFound) {
		writeDefaultNotFound(w)
		return
	}

	slog.Error("request error", "err", err)
	writeDefaultInternalError(w)
}

// writeResponse writes a dispatcher response and closes its body.
func writeResponse(w http.ResponseWriter, r *http.Request, resp pagehaven.Response) {
	if resp.Body != nil {
		defer func() {
			if err := resp.Body.Close(); err != nil {
				slog.Warn("failed to close object body", "key", resp.Key, "err", err)
			}
		}()
	}

	switch resp.Status {
	case http.StatusOK:
		copyHeader(w.Header(), resp.Header)
		serveBody(w, r, resp)
	case http.StatusNotFound:
		writeDefaultNotFound(w)
	case http.StatusInternalServerError:
		writeDefaultInternalError(w)
	default:
		copyHeader(w.Header(), resp.Header)
		w.WriteHeader(resp.Status)
	}
}

func serveBody(w http.ResponseWriter, r *http.Request, resp pagehaven.Response) {
	if rs, ok := resp.Body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, resp.Key, resp.ModTime, rs)
		return
	}

	if etag := resp.Header.Get("ETag"); etag != "" && r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if !resp.ModTime.IsZero() {
		w.Header().Set("Last-Modified", resp.ModTime.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead || resp.Body == nil {
		return
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.Warn("failed to stream object", "key", resp.Key, "err", err)
	}
}

func copyHeader(dst, src http.Header) {
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}
