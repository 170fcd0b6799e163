package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/corvid-irc/corvid/internal/event"
)

// Dispatch runs one incoming event through every enabled plugin's
// handler table, phase by phase: all Setup handlers across every
// plugin first, then Early, Normal, Late, Cleanup. Within a phase,
// plugins run in registration order and handlers in declaration
// order. Afterwards, event-triggered continuations waiting on this
// event's type are resumed.
func (b *Bot) Dispatch(ev *event.Event) error {
	if ev.Type.Meta() {
		return fmt.Errorf("dispatch: %s must be rewritten before dispatch", ev.Type)
	}
	if ev.Type == event.Any {
		return fmt.Errorf("dispatch: event carries no concrete type")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for phase := Setup; phase < numPhases; phase++ {
		for _, p := range b.plugins {
			if !p.enabled {
				continue
			}
			for _, h := range p.handlers[phase] {
				if b.evalHandler(p, h, ev) {
					// A terminating handler matched; the rest of this
					// plugin's handlers in this phase stay untouched.
					break
				}
			}
		}
	}

	for _, p := range b.plugins {
		if !p.enabled {
			continue
		}
		for _, c := range p.state.takeWaiting(ev.Type) {
			b.runContinuation(p, c, ev)
		}
	}

	return nil
}

// evalHandler applies the per-handler checks to one event and invokes
// the handler if they all pass. Reports whether evaluation of this
// plugin's phase should stop.
func (b *Bot) evalHandler(p *Plugin, h *Handler, ev *event.Event) (stop bool) {
	if !h.wantsType(ev.Type) {
		return false
	}
	if h.Scope == HomeOnly && ev.Channel != "" && !p.Home(ev.Channel) {
		return false
	}

	// Each handler works on its own copy and may rewrite Content.
	work := *ev

	if h.triggered() && !b.matchTrigger(h, &work) {
		return false
	}

	if h.Level != event.Unset {
		u := p.user(&work)
		switch Filter(u, h.Level, work.Time, b.ctx.Config.RetryTimeout) {
		case Deny:
			return false
		case NeedLookup:
			if err := p.LookupThenReplay(b.ctx, work.Sender.Nick, h.Level, &work, func(ev *event.Event) {
				b.runCommand(p, h, ev)
			}); err != nil {
				b.ctx.Log.WithError(err).WithField("nick", work.Sender.Nick).
					Warn("directory lookup request failed")
			}
			return false
		}
	}

	b.runCommand(p, h, &work)
	return !h.Chain
}

// matchTrigger applies the handler's prefix policy and trigger lists
// to the working copy. On a match, Content is rewritten to the
// prefix-stripped form and, for commands, the remainder after the
// token lands in Aux.
func (b *Bot) matchTrigger(h *Handler, ev *event.Event) bool {
	stripped, ok := b.stripPrefix(h.Prefix, ev)
	if !ok {
		return false
	}

	if len(h.Commands) > 0 && ev.Content != "" {
		token, rest := splitToken(stripped)
		for _, cmd := range h.Commands {
			if strings.EqualFold(token, cmd) {
				ev.Content = stripped
				ev.Aux = rest
				return true
			}
		}
	}

	for _, re := range h.Patterns {
		if re.MatchString(stripped) {
			ev.Content = stripped
			return true
		}
	}

	return false
}

// stripPrefix applies a prefix policy to the event's content,
// returning the content with any required prefix removed.
func (b *Bot) stripPrefix(pol PrefixPolicy, ev *event.Event) (string, bool) {
	content := ev.Content
	switch pol {
	case Direct:
		return content, true
	case Prefixed:
		prefix := b.ctx.Config.Prefix
		if prefix != "" && strings.HasPrefix(content, prefix) {
			return content[len(prefix):], true
		}
		if b.ctx.Config.NickFallback {
			return stripNickAddress(content, b.ctx.Conn.Nick())
		}
		return "", false
	case Nickname:
		// Queries address the bot by definition.
		if ev.Type == event.PrivateMessage {
			return content, true
		}
		return stripNickAddress(content, b.ctx.Conn.Nick())
	}
	return "", false
}

// stripNickAddress matches content of the form "nick: rest",
// "nick, rest", "nick rest" or any of those with a leading @.
func stripNickAddress(content, nick string) (string, bool) {
	rest := strings.TrimPrefix(content, "@")
	if nick == "" || len(rest) <= len(nick) || !strings.EqualFold(rest[:len(nick)], nick) {
		return "", false
	}
	rest = rest[len(nick):]
	switch rest[0] {
	case ':', ',':
		rest = rest[1:]
	case ' ':
	default:
		return "", false
	}
	return strings.TrimLeft(rest, " "), true
}

func splitToken(s string) (token, rest string) {
	s = strings.TrimLeft(s, " ")
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i], strings.TrimLeft(s[i+1:], " ")
	}
	return s, ""
}

// runHandler invokes a handler, isolating panics and giving it one
// sanitize-and-retry when it reports malformed text.
func (b *Bot) runHandler(p *Plugin, h *Handler, ev *event.Event) {
	err := b.callHandler(p, h, ev)
	if errors.Is(err, ErrMalformedText) {
		sanitizeEvent(ev)
		err = b.callHandler(p, h, ev)
	}
	if err != nil {
		b.ctx.Log.WithFields(logrus.Fields{
			"plugin": p.name,
			"event":  ev.Type.String(),
		}).WithError(err).Error("handler failed")
	}
}

func (b *Bot) callHandler(p *Plugin, h *Handler, ev *event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Fn(b.ctx, p, ev)
}

func (b *Bot) runContinuation(p *Plugin, c *Continuation, ev *event.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.ctx.Log.WithField("plugin", p.name).Errorf("continuation panic: %v", r)
		}
	}()
	c.Fn(b.ctx, p, ev)
}
