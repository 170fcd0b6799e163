package bot

import (
	"fmt"
	"sync"

	"github.com/corvid-irc/corvid/internal/event"
	"github.com/corvid-irc/corvid/internal/storage"
)

// A Bot owns the plugin registry and drives dispatch and the
// deferred-task queues. One mutex serializes Dispatch, Tick and the
// lifecycle calls, so handler code always runs on a single logical
// stream of control and no plugin's state sees parallel mutation.
type Bot struct {
	mu      sync.Mutex
	ctx     *Context
	plugins []*Plugin

	// audit holds the privileged-command log, newest first.
	audit []string
}

// New makes a bot around an injected context.
func New(ctx *Context) *Bot {
	return &Bot{ctx: ctx}
}

// Context returns the injected context.
func (b *Bot) Context() *Context { return b.ctx }

// Register appends a plugin. Registration order is dispatch order.
func (b *Bot) Register(p *Plugin) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.plugins {
		if existing.name == p.name {
			return &RegistrationError{Plugin: p.name, Reason: "duplicate plugin name"}
		}
	}
	b.plugins = append(b.plugins, p)
	return nil
}

// Plugin returns the registered plugin by name, or nil. The registry
// is fixed once the bot starts, so reads take no lock and are safe
// from inside handlers.
func (b *Bot) Plugin(name string) *Plugin {
	for _, p := range b.plugins {
		if p.name == name {
			return p
		}
	}
	return nil
}

// Plugins returns the registry in registration order. Like Plugin, it
// is callable from inside handlers.
func (b *Bot) Plugins() []*Plugin {
	out := make([]*Plugin, len(b.plugins))
	copy(out, b.plugins)
	return out
}

// Start resources and starts every enabled plugin. A plugin that
// fails to come up is disabled and reported; the others keep going.
func (b *Bot) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	audit, err := storage.LoadAudit(b.ctx.Config.DataDir)
	if err != nil {
		b.ctx.Log.WithError(err).Warn("could not load audit log")
	} else {
		b.audit = audit
	}

	for _, p := range b.plugins {
		if !p.enabled {
			continue
		}
		if err := b.lifecycle(p, p.Start); err != nil {
			b.ctx.Log.WithField("plugin", p.name).WithError(err).
				Error("plugin failed to start, disabling")
			p.Disable()
		}
	}
}

// Reload re-reads every running plugin's on-disk state.
func (b *Bot) Reload() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.plugins {
		if !p.enabled {
			continue
		}
		if err := b.lifecycle(p, p.Reload); err != nil {
			b.ctx.Log.WithField("plugin", p.name).WithError(err).Error("plugin reload failed")
		}
	}
}

// Teardown tears every plugin down, enabled or not.
func (b *Bot) Teardown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.plugins {
		if err := b.lifecycle(p, p.Teardown); err != nil {
			b.ctx.Log.WithField("plugin", p.name).WithError(err).Error("plugin teardown failed")
		}
	}
}

func (b *Bot) lifecycle(p *Plugin, call func(*Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s: lifecycle panic: %v", p.name, r)
		}
	}()
	return call(b.ctx)
}

// Tick drains every enabled plugin's due timed continuations and runs
// its periodic hooks if the configured interval elapsed. Each resumed
// continuation runs to completion before the next one starts.
func (b *Bot) Tick(now int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.plugins {
		if !p.enabled {
			continue
		}
		for _, c := range p.state.dueTimed(now) {
			b.runContinuation(p, c, nil)
		}
		p.tickPeriodic(b.ctx, now)
	}
}

// LookupThenReplay queues fn to re-run with ev once a directory lookup
// for nick resolves and the required level clears, issuing the lookup
// query unless one is already outstanding for that nickname. This is
// the suspension primitive dispatch itself uses for NeedLookup
// verdicts; handlers can call it directly to pause on identity.
func (p *Plugin) LookupThenReplay(ctx *Context, nick string, level event.Level, ev *event.Event, resume func(*event.Event)) error {
	r := &PendingReplay{
		Event:   *ev,
		Level:   level,
		Created: ev.Time,
		Resume:  resume,
	}
	if p.state.QueueLookup(nick, r) {
		return ctx.Conn.Whois(nick)
	}
	return nil
}
