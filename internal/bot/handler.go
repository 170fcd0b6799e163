package bot

import (
	"regexp"

	"github.com/corvid-irc/corvid/internal/event"
)

// Phase orders handlers within one event's dispatch. All Setup
// handlers across every plugin run before any Early handler does, and
// so on. Setup/Early/Late/Cleanup are reserved for cross-cutting
// bookkeeping; plugin business logic belongs in Normal.
type Phase int8

const (
	Setup Phase = iota
	Early
	Normal
	Late
	Cleanup

	numPhases
)

func (p Phase) String() string {
	switch p {
	case Setup:
		return "setup"
	case Early:
		return "early"
	case Normal:
		return "normal"
	case Late:
		return "late"
	case Cleanup:
		return "cleanup"
	}
	return "invalid"
}

// ChannelPolicy scopes a handler to the plugin's home channels or to
// any channel. Channel-less events (queries) are exempt either way.
type ChannelPolicy int8

const (
	AnyChannel ChannelPolicy = iota
	HomeOnly
)

// PrefixPolicy controls what must precede a trigger in message content.
type PrefixPolicy int8

const (
	// Direct matches content as-is.
	Direct PrefixPolicy = iota
	// Prefixed requires the configured command prefix, stripped before
	// token extraction. With the nickname-fallback option set, content
	// addressed to the bot's nick also qualifies.
	Prefixed
	// Nickname requires the bot's own nick (optionally preceded by @)
	// and a separator. Queries are exempt from the requirement.
	Nickname
)

// A HandlerFunc is the code a handler runs once dispatch clears it.
// The event is the handler's own working copy.
type HandlerFunc func(ctx *Context, p *Plugin, ev *event.Event) error

// A Handler is one row of a plugin's registration table: which events
// it wants, how content must be shaped to trigger it, what the sender
// must be, and whether later handlers still run after it.
type Handler struct {
	// Types the handler fires on. event.Any matches everything.
	Types []event.Type
	Phase Phase
	Scope ChannelPolicy

	// Trigger. Commands are whitespace-delimited leading tokens,
	// matched case-insensitively after prefix stripping; Patterns are
	// tried when no command matched. A handler with neither always
	// fires (subject to the other checks).
	Prefix   PrefixPolicy
	Commands []string
	Patterns []*regexp.Regexp

	// Level the sender must clear. Unset means no check at all;
	// command handlers must declare one (Ignore is the floor).
	Level event.Level

	// Chain lets later handlers of the same plugin and phase run after
	// this one matches.
	Chain bool

	Fn HandlerFunc
}

func (h *Handler) wantsType(t event.Type) bool {
	for _, ht := range h.Types {
		if ht == event.Any || ht == t {
			return true
		}
	}
	return false
}

func (h *Handler) triggered() bool {
	return len(h.Commands) > 0 || len(h.Patterns) > 0
}

// validate rejects declarations the engine cannot honor. Called at
// registration so a bad table aborts composition instead of silently
// misbehaving later.
func (h *Handler) validate(plugin string) error {
	if h.Fn == nil {
		return &RegistrationError{Plugin: plugin, Reason: "handler has no function"}
	}
	if len(h.Types) == 0 {
		return &RegistrationError{Plugin: plugin, Reason: "handler declares no event types"}
	}
	for _, t := range h.Types {
		if t.Meta() {
			return &RegistrationError{
				Plugin: plugin,
				Reason: "handler declares wire-level type " + t.String(),
			}
		}
	}
	if h.Phase < Setup || h.Phase >= numPhases {
		return &RegistrationError{Plugin: plugin, Reason: "handler declares invalid phase"}
	}
	if len(h.Commands) > 0 && h.Level == event.Unset {
		return &RegistrationError{
			Plugin: plugin,
			Reason: "command handler declares no privilege level",
		}
	}
	return nil
}
