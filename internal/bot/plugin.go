package bot

import (
	"fmt"
	"strings"

	"github.com/corvid-irc/corvid/internal/event"
)

// Stage is where a plugin sits in its lifecycle.
type Stage int8

const (
	StageConstructed Stage = iota
	StageResourced
	StageStarted
	StageRunning
	StageReloading
	StageTornDown
)

func (s Stage) String() string {
	switch s {
	case StageConstructed:
		return "constructed"
	case StageResourced:
		return "resourced"
	case StageStarted:
		return "started"
	case StageRunning:
		return "running"
	case StageReloading:
		return "reloading"
	case StageTornDown:
		return "torn-down"
	}
	return "invalid"
}

// A Plugin is one handler module: a registration table, its own State,
// lifecycle hooks and bookkeeping. Dispatch and the deferred-task
// engine mutate its State on its behalf; nothing is shared between
// plugins.
type Plugin struct {
	name  string
	state *State
	stage Stage

	enabled  bool
	handlers [numPhases][]*Handler
	commands []string

	homeChannels map[string]bool

	// PeriodicInterval is how often, in seconds, the periodic hooks
	// run from the main-loop tick. Zero disables them.
	PeriodicInterval int64

	hasAuth      bool
	hasAwareness bool

	// Lifecycle hooks, all optional.
	OnResource func(ctx *Context, p *Plugin) error
	OnStart    func(ctx *Context, p *Plugin) error
	OnReload   func(ctx *Context, p *Plugin) error
	OnTeardown func(ctx *Context, p *Plugin) error
	OnSetting  func(ctx *Context, p *Plugin, key, value string) error

	periodic []func(ctx *Context, p *Plugin, now int64)
}

// NewPlugin seeds a plugin with its identity and home-channel set.
func NewPlugin(name string, homeChannels []string) *Plugin {
	homes := make(map[string]bool, len(homeChannels))
	for _, ch := range homeChannels {
		homes[strings.ToLower(ch)] = true
	}
	return &Plugin{
		name:         name,
		state:        newState(),
		enabled:      true,
		homeChannels: homes,
	}
}

// Name returns the plugin's identity.
func (p *Plugin) Name() string { return p.name }

// State exposes the plugin's state container. State accessors keep
// working while the plugin is disabled.
func (p *Plugin) State() *State { return p.state }

// Stage returns the plugin's lifecycle stage.
func (p *Plugin) Stage() Stage { return p.stage }

// Enabled reports whether dispatch considers the plugin at all.
func (p *Plugin) Enabled() bool { return p.enabled }

// Enable allows dispatch to consider the plugin again.
func (p *Plugin) Enable() { p.enabled = true }

// Disable makes dispatch and lifecycle calls skip the plugin.
func (p *Plugin) Disable() { p.enabled = false }

// Home reports whether the plugin treats the channel as one of its
// own.
func (p *Plugin) Home(channel string) bool {
	return p.homeChannels[strings.ToLower(channel)]
}

// Commands lists every command trigger registered across the plugin's
// handlers, in registration order.
func (p *Plugin) Commands() []string {
	out := make([]string, len(p.commands))
	copy(out, p.commands)
	return out
}

// Handle appends a handler to the plugin's registration table after
// validating the declaration. Handlers run in declaration order within
// their phase.
func (p *Plugin) Handle(h *Handler) error {
	if err := h.validate(p.name); err != nil {
		return err
	}
	p.handlers[h.Phase] = append(p.handlers[h.Phase], h)
	p.commands = append(p.commands, h.Commands...)
	return nil
}

// MustHandle is Handle for statically-known tables, where a bad
// declaration is a bug worth dying for.
func (p *Plugin) MustHandle(h *Handler) {
	if err := p.Handle(h); err != nil {
		panic(err)
	}
}

// AddPeriodic appends a hook run from the main-loop tick every
// PeriodicInterval seconds.
func (p *Plugin) AddPeriodic(fn func(ctx *Context, p *Plugin, now int64)) {
	p.periodic = append(p.periodic, fn)
}

// Resource initializes the plugin's on-disk resources. Idempotent:
// calling it on an already-resourced plugin is a no-op.
func (p *Plugin) Resource(ctx *Context) error {
	if p.stage >= StageResourced && p.stage != StageTornDown {
		return nil
	}
	if p.stage == StageTornDown {
		return &ResourceError{Plugin: p.name, Err: fmt.Errorf("plugin is torn down")}
	}
	if p.OnResource != nil {
		if err := p.OnResource(ctx, p); err != nil {
			return &ResourceError{Plugin: p.name, Err: err}
		}
	}
	p.stage = StageResourced
	return nil
}

// Start runs post-connection hooks and moves the plugin to running.
func (p *Plugin) Start(ctx *Context) error {
	if err := p.Resource(ctx); err != nil {
		return err
	}
	if p.OnStart != nil {
		if err := p.OnStart(ctx, p); err != nil {
			return err
		}
	}
	p.stage = StageRunning
	return nil
}

// Reload re-reads whatever the plugin keeps on disk and returns it to
// running.
func (p *Plugin) Reload(ctx *Context) error {
	if p.stage != StageRunning {
		return nil
	}
	p.stage = StageReloading
	defer func() { p.stage = StageRunning }()
	if p.OnReload != nil {
		return p.OnReload(ctx, p)
	}
	return nil
}

// Teardown is terminal.
func (p *Plugin) Teardown(ctx *Context) error {
	if p.stage == StageTornDown {
		return nil
	}
	p.stage = StageTornDown
	if p.OnTeardown != nil {
		return p.OnTeardown(ctx, p)
	}
	return nil
}

// ApplySetting hands a key/value pair to the plugin's setting hook.
// A rejection comes back as a SettingError so the caller can tell it
// apart from resource failures.
func (p *Plugin) ApplySetting(ctx *Context, key, value string) error {
	if p.OnSetting == nil {
		return &SettingError{Plugin: p.name, Key: key, Err: fmt.Errorf("no settings accepted")}
	}
	if err := p.OnSetting(ctx, p, key, value); err != nil {
		return &SettingError{Plugin: p.name, Key: key, Err: err}
	}
	return nil
}

func (p *Plugin) tickPeriodic(ctx *Context, now int64) {
	if p.PeriodicInterval <= 0 {
		return
	}
	if p.state.nextPeriodic == 0 {
		p.state.nextPeriodic = now + p.PeriodicInterval
		return
	}
	if now < p.state.nextPeriodic {
		return
	}
	p.state.nextPeriodic = now + p.PeriodicInterval
	for _, fn := range p.periodic {
		fn(ctx, p, now)
	}
}

// user returns the state entry for the event's sender, creating and
// melding as needed so later phases see fresh sender info.
func (p *Plugin) user(ev *event.Event) *event.User {
	u := p.state.User(ev.Sender.Nick)
	u.Meld(&ev.Sender)
	return u
}
