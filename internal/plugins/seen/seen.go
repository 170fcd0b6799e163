// Package seen provides the built-in seen plugin: it watches channel
// traffic through the awareness behavior and answers "when was X last
// around".
package seen

import (
	"fmt"
	"strings"
	"time"

	"github.com/corvid-irc/corvid/internal/bot"
	"github.com/corvid-irc/corvid/internal/event"
	"github.com/corvid-irc/corvid/internal/storage"
)

// saveDelay debounces disk writes: activity schedules a save this many
// seconds out, and further activity before it fires reschedules it.
const saveDelay = 30

type store struct {
	records map[string]*storage.SeenRecord
	pending *bot.Continuation
}

// New builds the seen plugin. interval is the periodic rehash/save
// interval in seconds.
func New(homeChannels []string, interval int64) (*bot.Plugin, error) {
	p := bot.NewPlugin("seen", homeChannels)
	p.PeriodicInterval = interval

	if err := bot.UseAuthentication(p); err != nil {
		return nil, err
	}
	if err := bot.UseAwareness(p); err != nil {
		return nil, err
	}

	s := &store{records: map[string]*storage.SeenRecord{}}

	p.OnResource = func(ctx *bot.Context, p *bot.Plugin) error {
		records, err := storage.LoadSeen(ctx.Config.DataDir)
		if err != nil {
			return err
		}
		s.records = records
		return nil
	}
	p.OnReload = p.OnResource
	p.OnTeardown = func(ctx *bot.Context, p *bot.Plugin) error {
		return storage.SaveSeen(ctx.Config.DataDir, s.records)
	}

	// Record activity after awareness has updated the tables.
	err := p.Handle(&bot.Handler{
		Types: []event.Type{
			event.ChannelMessage, event.Emote, event.Join,
			event.Part, event.Quit, event.NickChange,
		},
		Phase: bot.Late,
		Chain: true,
		Fn:    s.record,
	})
	if err != nil {
		return nil, err
	}

	err = p.Handle(&bot.Handler{
		Types:    []event.Type{event.ChannelMessage, event.PrivateMessage},
		Phase:    bot.Normal,
		Scope:    bot.HomeOnly,
		Prefix:   bot.Prefixed,
		Commands: []string{"seen"},
		Level:    event.Anyone,
		Fn:       s.answer,
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

func (s *store) record(ctx *bot.Context, p *bot.Plugin, ev *event.Event) error {
	nick := ev.Sender.Nick
	if nick == "" || strings.EqualFold(nick, ctx.Conn.Nick()) {
		return nil
	}

	var info string
	switch ev.Type {
	case event.ChannelMessage, event.Emote:
		info = fmt.Sprintf("talking in %s", ev.Channel)
	case event.Join:
		info = fmt.Sprintf("joining %s", ev.Channel)
	case event.Part:
		info = fmt.Sprintf("leaving %s", ev.Channel)
	case event.Quit:
		info = "disconnecting"
	case event.NickChange:
		info = fmt.Sprintf("changing nick to %s", ev.Content)
	}
	s.records[strings.ToLower(nick)] = &storage.SeenRecord{
		Nick: nick,
		Time: ev.Time,
		Info: info,
	}

	// Push the pending save out rather than writing on every line.
	if s.pending != nil {
		p.State().CancelTimed(s.pending)
	}
	s.pending = &bot.Continuation{
		Fn: func(ctx *bot.Context, p *bot.Plugin, _ *event.Event) {
			s.pending = nil
			if err := storage.SaveSeen(ctx.Config.DataDir, s.records); err != nil {
				ctx.Log.WithError(err).Warn("seen: save failed")
			}
		},
	}
	p.State().ScheduleAfter(s.pending, saveDelay, ev.Time)
	return nil
}

func (s *store) answer(ctx *bot.Context, p *bot.Plugin, ev *event.Event) error {
	target := ev.Channel
	reply := bot.SendChannelMessage
	if target == "" {
		target = ev.Sender.Nick
		reply = bot.SendPrivateMessage
	}

	who := strings.Fields(ev.Aux)
	if len(who) == 0 {
		return reply(ctx, target, "seen who?")
	}
	nick := who[0]

	if strings.EqualFold(nick, ctx.Conn.Nick()) {
		return reply(ctx, target, "right here.")
	}
	for _, ch := range p.State().Channels {
		for _, m := range ch.Members {
			if strings.EqualFold(m.Nick, nick) {
				return reply(ctx, target, fmt.Sprintf("%s is in %s right now", m.Nick, ch.Name))
			}
		}
	}

	r := s.records[strings.ToLower(nick)]
	if r == nil {
		return reply(ctx, target, fmt.Sprintf("I have not seen %s", nick))
	}
	ago := time.Since(time.Unix(r.Time, 0)).Round(time.Second)
	return reply(ctx, target, fmt.Sprintf("%s was last seen %s ago, %s", r.Nick, ago, r.Info))
}
