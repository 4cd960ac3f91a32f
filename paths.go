package pagehaven

import (
	"net"
	"strings"
)

// NormalizePath maps a request path to an object path inside a site.
// Exactly one leading "/" is stripped; empty and directory paths resolve to
// their index.html. No other normalization is applied.
func NormalizePath(requestPath string) string {
	p := strings.TrimPrefix(requestPath, "/")
	if p == "" || strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	return p
}

// SubdomainFromHost extracts the site subdomain from a Host header value.
// The port is dropped and the host lower-cased before the ".baseDomain"
// suffix is removed. ok is false for hosts outside baseDomain, for the bare
// base domain, and for multi-label prefixes.
func SubdomainFromHost(host, baseDomain string) (string, bool) {
	host = strings.ToLower(strings.TrimSuffix(stripPort(host), "."))
	baseDomain = strings.ToLower(strings.Trim(baseDomain, "."))
	if host == "" || baseDomain == "" {
		return "", false
	}

	sub, found := strings.CutSuffix(host, "."+baseDomain)
	if !found || sub == "" || strings.Contains(sub, ".") {
		return "", false
	}

	return sub, true
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
