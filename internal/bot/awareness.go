package bot

import (
	"strings"

	"github.com/corvid-irc/corvid/internal/event"
)

// UseAuthentication mixes the minimal-authentication behavior into a
// plugin: Setup-phase handlers that record directory-lookup results
// and resolve the plugin's replay queue. Idempotent.
//
// Event conventions: WhoisAccount and WhoisEnd carry the looked-up
// user in Target; UnknownCommand carries the rejected command name in
// Content.
func UseAuthentication(p *Plugin) error {
	if p.hasAuth {
		return nil
	}

	err := p.Handle(&Handler{
		Types: []event.Type{event.WhoisAccount},
		Phase: Setup,
		Chain: true,
		Fn: func(ctx *Context, p *Plugin, ev *event.Event) error {
			u := p.state.User(ev.Target.Nick)
			u.Meld(&ev.Target)
			u.LastLookup = ev.Time
			if u.Account != "" {
				u.Class = classify(ctx, u)
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	err = p.Handle(&Handler{
		Types: []event.Type{event.WhoisEnd},
		Phase: Setup,
		Chain: true,
		Fn: func(ctx *Context, p *Plugin, ev *event.Event) error {
			u := p.state.User(ev.Target.Nick)
			u.LastLookup = ev.Time
			if u.Class == event.Unset {
				// Lookup completed with no account: the user exists
				// but is unauthenticated.
				u.Class = event.Anyone
			}
			p.state.ResolveLookups(ev.Target.Nick, u, ev.Time, ctx.Config.RetryTimeout)
			return nil
		},
	})
	if err != nil {
		return err
	}

	err = p.Handle(&Handler{
		Types: []event.Type{event.UnknownCommand},
		Phase: Setup,
		Chain: true,
		Fn: func(ctx *Context, p *Plugin, ev *event.Event) error {
			if strings.EqualFold(ev.Content, "WHOIS") && p.state.LookupCount() > 0 {
				ctx.Log.WithField("plugin", p.name).
					Warn("server does not support WHOIS, flushing pending replays")
				p.state.FlushLookups()
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	p.hasAuth = true
	return nil
}

// classify maps a freshly learned account to a trust tier: the access
// list seed if there is one, otherwise Registered. A seeded tier never
// loses to Registered but an observed account can only upgrade Unset
// or Anyone.
func classify(ctx *Context, u *event.User) event.Level {
	if ctx.Access != nil {
		if level, ok := ctx.Access.Level(u.Account); ok {
			return level
		}
	}
	if u.Class <= event.Anyone {
		return event.Registered
	}
	return u.Class
}

// UseAwareness layers full user/channel bookkeeping on top of the
// authentication behavior: Early-phase handlers maintain the users and
// channels tables from join/part/quit/nick/mode/topic/names traffic,
// Cleanup-phase handlers prune users once they leave the last tracked
// channel, and a periodic hook rehashes the tables. Requires
// UseAuthentication to have been mixed in first; that dependency is
// checked here, at composition time.
func UseAwareness(p *Plugin) error {
	if p.hasAwareness {
		return nil
	}
	if !p.hasAuth {
		return &RegistrationError{
			Plugin: p.name,
			Reason: "channel awareness requires the authentication behavior",
		}
	}

	table := []*Handler{
		{
			Types: []event.Type{event.Join},
			Phase: Early,
			Chain: true,
			Fn:    onJoin,
		},
		{
			Types: []event.Type{event.Part, event.Kick},
			Phase: Early,
			Chain: true,
			Fn:    onPart,
		},
		{
			Types: []event.Type{event.NickChange},
			Phase: Early,
			Chain: true,
			Fn:    onNickChange,
		},
		{
			Types: []event.Type{event.Mode},
			Phase: Early,
			Chain: true,
			Fn:    onMode,
		},
		{
			Types: []event.Type{event.Topic},
			Phase: Early,
			Chain: true,
			Fn:    onTopic,
		},
		{
			Types: []event.Type{event.Names},
			Phase: Early,
			Chain: true,
			Fn:    onNames,
		},
		{
			Types: []event.Type{event.ChannelMessage, event.Emote},
			Phase: Early,
			Chain: true,
			Fn: func(ctx *Context, p *Plugin, ev *event.Event) error {
				p.user(ev)
				return nil
			},
		},
		{
			Types: []event.Type{event.Part, event.Kick, event.Quit},
			Phase: Cleanup,
			Chain: true,
			Fn:    pruneDeparted,
		},
	}
	for _, h := range table {
		if err := p.Handle(h); err != nil {
			return err
		}
	}

	p.AddPeriodic(func(ctx *Context, p *Plugin, now int64) {
		p.state.Rehash()
	})

	p.hasAwareness = true
	return nil
}

func onJoin(ctx *Context, p *Plugin, ev *event.Event) error {
	if strings.EqualFold(ev.Sender.Nick, ctx.Conn.Nick()) {
		p.state.Channels[strings.ToLower(ev.Channel)] = event.NewChannel(ev.Channel, ev.Time)
		return nil
	}
	p.user(ev)
	if ch := p.state.Channels[strings.ToLower(ev.Channel)]; ch != nil {
		ch.Members[ev.Sender.Nick] = &event.Member{Nick: ev.Sender.Nick}
	}
	return nil
}

func onPart(ctx *Context, p *Plugin, ev *event.Event) error {
	// A kick names the removed user in Target; a part removes the
	// sender itself.
	nick := ev.Sender.Nick
	if ev.Type == event.Kick {
		nick = ev.Target.Nick
	}
	if strings.EqualFold(nick, ctx.Conn.Nick()) {
		delete(p.state.Channels, strings.ToLower(ev.Channel))
		return nil
	}
	if ch := p.state.Channels[strings.ToLower(ev.Channel)]; ch != nil {
		delete(ch.Members, nick)
	}
	return nil
}

func onNickChange(ctx *Context, p *Plugin, ev *event.Event) error {
	oldNick, newNick := ev.Sender.Nick, ev.Content
	if u := p.state.Users[oldNick]; u != nil {
		delete(p.state.Users, oldNick)
		u.Nick = newNick
		p.state.Users[newNick] = u
	}
	for _, ch := range p.state.Channels {
		if m := ch.Members[oldNick]; m != nil {
			delete(ch.Members, oldNick)
			m.Nick = newNick
			ch.Members[newNick] = m
		}
	}
	return nil
}

// onMode applies a channel mode change. Content holds the mode string,
// Aux its space-separated arguments. Member-prefix modes adjust
// member records; anything else lands in the channel's mode map.
func onMode(ctx *Context, p *Plugin, ev *event.Event) error {
	ch := p.state.Channels[strings.ToLower(ev.Channel)]
	if ch == nil {
		return nil
	}
	args := strings.Fields(ev.Aux)
	adding := true
	for _, r := range ev.Content {
		switch r {
		case '+':
			adding = true
		case '-':
			adding = false
		case 'o', 'h', 'v':
			if len(args) == 0 {
				continue
			}
			nick := args[0]
			args = args[1:]
			if m := ch.Members[nick]; m != nil {
				prefix := memberPrefix(r)
				if adding && !strings.ContainsRune(m.Prefixes, rune(prefix)) {
					m.Prefixes += string(prefix)
				} else if !adding {
					m.Prefixes = strings.ReplaceAll(m.Prefixes, string(prefix), "")
				}
			}
		case 'k', 'l', 'b', 'e', 'I':
			value := ""
			if len(args) > 0 {
				value = args[0]
				args = args[1:]
			}
			if adding {
				ch.Modes[string(r)] = value
			} else {
				delete(ch.Modes, string(r))
			}
		default:
			if adding {
				ch.Modes[string(r)] = ""
			} else {
				delete(ch.Modes, string(r))
			}
		}
	}
	return nil
}

func memberPrefix(mode rune) byte {
	switch mode {
	case 'o':
		return '@'
	case 'h':
		return '%'
	default:
		return '+'
	}
}

func onTopic(ctx *Context, p *Plugin, ev *event.Event) error {
	if ch := p.state.Channels[strings.ToLower(ev.Channel)]; ch != nil {
		ch.Topic = ev.Content
	}
	return nil
}

// onNames folds one names-list line into the channel's member table.
// Content is the space-separated list of prefixed nicks.
func onNames(ctx *Context, p *Plugin, ev *event.Event) error {
	ch := p.state.Channels[strings.ToLower(ev.Channel)]
	if ch == nil {
		return nil
	}
	for _, entry := range strings.Fields(ev.Content) {
		prefixes := ""
		for len(entry) > 0 && strings.IndexByte("@%+&~", entry[0]) >= 0 {
			prefixes += string(entry[0])
			entry = entry[1:]
		}
		if entry == "" {
			continue
		}
		ch.Members[entry] = &event.Member{Nick: entry, Prefixes: prefixes}
		p.state.User(entry)
	}
	return nil
}

// pruneDeparted drops a user from the table once they are gone from
// every tracked channel. Runs in the Cleanup phase so every handler
// observing the departure still saw the user.
func pruneDeparted(ctx *Context, p *Plugin, ev *event.Event) error {
	nick := ev.Sender.Nick
	if ev.Type == event.Kick {
		nick = ev.Target.Nick
	}
	if ev.Type == event.Quit {
		for _, ch := range p.state.Channels {
			delete(ch.Members, nick)
		}
	}
	for _, ch := range p.state.Channels {
		if ch.Members[nick] != nil {
			return nil
		}
	}
	delete(p.state.Users, nick)
	return nil
}
