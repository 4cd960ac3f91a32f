package pagehaven

import (
	"crypto/subtle"
	"slices"
	"strings"
)

// EvaluateAccess decides whether creds may view site. It has no side effects
// and is evaluated fresh for every request.
//
// Precedence, first match wins:
//   - public: always allowed
//   - password: the password cookie must equal the stored hash; an empty
//     stored hash never matches
//   - private: requires an identity that is a member or the owner. A
//     matching pending invite yields ReasonNotInvited, anything else
//     ReasonNotMember
//   - owner_only: requires the owner's identity, otherwise the same
//     login_required / not_member reasons as private
//
// Unknown access types are denied.
func EvaluateAccess(site Site, creds Credentials) AccessResult {
	switch site.AccessType {
	case AccessPublic:
		return allow()

	case AccessPassword:
		if passwordMatches(site.PasswordHash, creds.PasswordCookie) {
			return allow()
		}
		return deny(ReasonPasswordRequired)

	case AccessPrivate:
		id := creds.Identity
		if id == nil || id.UserID == "" {
			return deny(ReasonLoginRequired)
		}
		if id.UserID == site.OwnerID || site.IsMember(id.UserID) {
			return allow()
		}
		if site.HasInvite(*id) {
			return deny(ReasonNotInvited)
		}
		return deny(ReasonNotMember)

	case AccessOwnerOnly:
		id := creds.Identity
		if id == nil || id.UserID == "" {
			return deny(ReasonLoginRequired)
		}
		if site.OwnerID != "" && id.UserID == site.OwnerID {
			return allow()
		}
		return deny(ReasonNotMember)
	}

	return deny(ReasonNotMember)
}

func passwordMatches(stored, presented string) bool {
	if stored == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

// IsMember reports whether userID holds a member row for the site.
func (s Site) IsMember(userID string) bool {
	return userID != "" && slices.Contains(s.Members, userID)
}

// HasInvite reports whether a pending invite matches id, either by user ID
// or by email (case-insensitive).
func (s Site) HasInvite(id Identity) bool {
	for _, inv := range s.Invites {
		if inv.Matches(id) {
			return true
		}
	}
	return false
}

// Matches reports whether the invite was issued to id.
func (i Invite) Matches(id Identity) bool {
	if i.UserID != "" && i.UserID == id.UserID {
		return true
	}
	return i.Email != "" && id.Email != "" && strings.EqualFold(i.Email, id.Email)
}
