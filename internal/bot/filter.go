package bot

import "github.com/corvid-irc/corvid/internal/event"

// Verdict is the outcome of a privilege check.
type Verdict int8

const (
	// Deny rejects the invocation outright.
	Deny Verdict = iota
	// Allow clears the invocation to proceed.
	Allow
	// NeedLookup means the decision cannot be made until a directory
	// lookup for the sender resolves.
	NeedLookup
)

func (v Verdict) String() string {
	switch v {
	case Deny:
		return "deny"
	case Allow:
		return "allow"
	case NeedLookup:
		return "need-lookup"
	}
	return "invalid"
}

// Filter decides whether a user at their current classification clears
// the requested level. retry is the lookup retry window in seconds: an
// unauthenticated user gets one lookup chance per window before being
// denied. Pure function; it never issues a lookup itself.
func Filter(u *event.User, want event.Level, now, retry int64) Verdict {
	if u.Class == event.Blacklist {
		return Deny
	}

	fresh := u.LastLookup > 0 && now-u.LastLookup < retry

	if u.Account != "" && u.Class != event.Unset {
		switch {
		case u.Class == event.Admin:
			return Allow
		case u.Class == event.Operator && want <= event.Operator:
			return Allow
		case u.Class == event.Whitelist && want <= event.Whitelist:
			return Allow
		case want <= event.Registered:
			// A services account satisfies "registered" on its own.
			return Allow
		}
		return Deny
	}

	// Account unknown. Give the user one chance per retry window to
	// prove identity before denying.
	switch {
	case want >= event.Registered:
		if !fresh {
			return NeedLookup
		}
		return Deny
	case want == event.Anyone:
		if !fresh {
			return NeedLookup
		}
		return Allow
	default:
		// Ignore, or no requirement at all.
		return Allow
	}
}

// Clears reports whether a user's (possibly freshly refreshed)
// classification satisfies the requested level, with no lookup option.
// It is the test applied when a queued replay resolves.
func Clears(u *event.User, want event.Level) bool {
	if u.Class == event.Blacklist {
		return false
	}
	switch {
	case want <= event.Anyone:
		return true
	case u.Class == event.Admin:
		return true
	case u.Class >= event.Anyone && u.Class >= want:
		return true
	case u.Account != "" && want <= event.Registered:
		return true
	}
	return false
}
