package pagehaven

import (
	"net/url"
	"strings"
)

// BuildGateRedirect returns the gate page URL for a denial. originalURL is
// carried in the "redirect" query parameter so the gate can send the visitor
// back once the requirement is met.
func BuildGateRedirect(reason DenialReason, siteID, originalURL, webBaseURL string) string {
	base := strings.TrimSuffix(webBaseURL, "/")
	redirect := url.QueryEscape(originalURL)

	switch reason {
	case ReasonPasswordRequired:
		return base + "/gate/password?siteId=" + url.QueryEscape(siteID) + "&redirect=" + redirect
	case ReasonLoginRequired:
		return base + "/gate/login?redirect=" + redirect
	case ReasonNotInvited, ReasonNotMember:
		return base + "/gate/denied?reason=" + url.QueryEscape(string(reason)) + "&redirect=" + redirect
	default:
		return base + "/gate/denied?reason=unknown"
	}
}
