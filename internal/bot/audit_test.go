package bot_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvid-irc/corvid/internal/bot"
	"github.com/corvid-irc/corvid/internal/event"
	"github.com/corvid-irc/corvid/internal/storage"
)

func TestPrivilegedCommandIsAudited(t *testing.T) {
	b, _ := newTestBot(t)
	p := bot.NewPlugin("ops", nil)
	require.NoError(t, p.Handle(&bot.Handler{
		Types:    []event.Type{event.ChannelMessage},
		Phase:    bot.Normal,
		Prefix:   bot.Prefixed,
		Commands: []string{"reload"},
		Level:    event.Operator,
		Fn:       func(ctx *bot.Context, p *bot.Plugin, ev *event.Event) error { return nil },
	}))
	require.NoError(t, b.Register(p))

	u := p.State().User("alice")
	u.Account = "alice"
	u.Class = event.Operator
	u.Ident = "al"
	u.Host = "host.example"

	ev := channelMessage("alice", "#test", "!reload", 100)
	ev.Sender.Ident = "al"
	ev.Sender.Host = "host.example"
	require.NoError(t, b.Dispatch(ev))

	entries, err := storage.LoadAudit(b.Context().Config.DataDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0], "alice!al@host.example")
	require.Contains(t, entries[0], "reload")
}

func TestReplayedPrivilegedCommandIsAudited(t *testing.T) {
	b, conn := newTestBot(t)
	b.Context().Access.Accounts["alice"] = event.Operator

	p := bot.NewPlugin("ops", nil)
	require.NoError(t, bot.UseAuthentication(p))
	require.NoError(t, p.Handle(&bot.Handler{
		Types:    []event.Type{event.ChannelMessage},
		Phase:    bot.Normal,
		Prefix:   bot.Prefixed,
		Commands: []string{"kickban"},
		Level:    event.Operator,
		Fn:       func(ctx *bot.Context, p *bot.Plugin, ev *event.Event) error { return nil },
	}))
	require.NoError(t, b.Register(p))

	// Unknown sender: the command suspends on a directory lookup.
	require.NoError(t, b.Dispatch(channelMessage("alice", "#test", "!kickban mallory", 100)))
	require.Equal(t, []string{"alice"}, conn.whois)

	entries, err := storage.LoadAudit(b.Context().Config.DataDir)
	require.NoError(t, err)
	require.Empty(t, entries, "nothing ran yet, nothing to audit")

	acct := event.New(event.WhoisAccount)
	acct.Time = 101
	acct.Target = event.User{Nick: "alice", Account: "alice"}
	require.NoError(t, b.Dispatch(&acct))

	end := event.New(event.WhoisEnd)
	end.Time = 102
	end.Target = event.User{Nick: "alice"}
	require.NoError(t, b.Dispatch(&end))

	entries, err = storage.LoadAudit(b.Context().Config.DataDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0], "kickban mallory")
}

func TestUnprivilegedCommandIsNotAudited(t *testing.T) {
	b, _ := newTestBot(t)
	p := bot.NewPlugin("chatter", nil)
	require.NoError(t, p.Handle(&bot.Handler{
		Types:    []event.Type{event.ChannelMessage},
		Phase:    bot.Normal,
		Prefix:   bot.Prefixed,
		Commands: []string{"hello"},
		Level:    event.Ignore,
		Fn:       func(ctx *bot.Context, p *bot.Plugin, ev *event.Event) error { return nil },
	}))
	require.NoError(t, b.Register(p))

	require.NoError(t, b.Dispatch(channelMessage("alice", "#test", "!hello", 100)))

	entries, err := storage.LoadAudit(b.Context().Config.DataDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
