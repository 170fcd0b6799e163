package bot_test

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/corvid-irc/corvid/internal/access"
	"github.com/corvid-irc/corvid/internal/bot"
	"github.com/corvid-irc/corvid/internal/config"
	"github.com/corvid-irc/corvid/internal/event"
)

// fakeConn records everything the engine asks the connection layer to
// do.
type fakeConn struct {
	nick    string
	sent    []*event.Event
	whois   []string
	quitMsg []string
}

func (f *fakeConn) Send(ev *event.Event) error {
	f.sent = append(f.sent, ev)
	return nil
}

func (f *fakeConn) Whois(nick string) error {
	f.whois = append(f.whois, nick)
	return nil
}

func (f *fakeConn) Quit(message string) error {
	f.quitMsg = append(f.quitMsg, message)
	return nil
}

func (f *fakeConn) Nick() string { return f.nick }

func newTestBot(t *testing.T) (*bot.Bot, *fakeConn) {
	t.Helper()
	cfg := config.Default()
	cfg.Nick = "corvid"
	cfg.DataDir = t.TempDir()

	log := logrus.New()
	log.SetOutput(io.Discard)

	conn := &fakeConn{nick: "corvid"}
	ctx := &bot.Context{
		Config: cfg,
		Log:    log,
		Access: &access.List{Accounts: map[string]event.Level{}},
		Conn:   conn,
	}
	return bot.New(ctx), conn
}

func channelMessage(nick, channel, content string, at int64) *event.Event {
	ev := event.New(event.ChannelMessage)
	ev.Time = at
	ev.Sender = event.User{Nick: nick}
	ev.Channel = channel
	ev.Content = content
	return &ev
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	b, _ := newTestBot(t)
	require.NoError(t, b.Register(bot.NewPlugin("twin", nil)))

	err := b.Register(bot.NewPlugin("twin", nil))
	var regErr *bot.RegistrationError
	require.ErrorAs(t, err, &regErr)
}

func TestDispatchRejectsMetaTypes(t *testing.T) {
	b, _ := newTestBot(t)
	for _, typ := range []event.Type{event.RawPrivmsg, event.RawWhisper, event.Any} {
		ev := event.New(typ)
		require.Error(t, b.Dispatch(&ev), "type %s must not dispatch", typ)
	}
}

func TestDisabledPluginIsSkippedEntirely(t *testing.T) {
	b, _ := newTestBot(t)
	p := bot.NewPlugin("mute", nil)
	calls := 0
	require.NoError(t, p.Handle(&bot.Handler{
		Types: []event.Type{event.Any},
		Phase: bot.Normal,
		Chain: true,
		Fn: func(ctx *bot.Context, p *bot.Plugin, ev *event.Event) error {
			calls++
			return nil
		},
	}))
	require.NoError(t, b.Register(p))

	p.Disable()
	require.NoError(t, b.Dispatch(channelMessage("alice", "#test", "hi", 100)))
	require.Zero(t, calls)

	p.Enable()
	require.NoError(t, b.Dispatch(channelMessage("alice", "#test", "hi", 101)))
	require.Equal(t, 1, calls)
}

func TestHandlerPanicDoesNotStopOthers(t *testing.T) {
	b, _ := newTestBot(t)
	p := bot.NewPlugin("fragile", nil)
	ran := false
	require.NoError(t, p.Handle(&bot.Handler{
		Types: []event.Type{event.ChannelMessage},
		Phase: bot.Normal,
		Chain: true,
		Fn: func(ctx *bot.Context, p *bot.Plugin, ev *event.Event) error {
			panic("boom")
		},
	}))
	require.NoError(t, p.Handle(&bot.Handler{
		Types: []event.Type{event.ChannelMessage},
		Phase: bot.Normal,
		Chain: true,
		Fn: func(ctx *bot.Context, p *bot.Plugin, ev *event.Event) error {
			ran = true
			return nil
		},
	}))
	require.NoError(t, b.Register(p))

	require.NoError(t, b.Dispatch(channelMessage("alice", "#test", "hi", 100)))
	require.True(t, ran)
}

func TestEgressHelpersForwardToConn(t *testing.T) {
	b, conn := newTestBot(t)
	ctx := b.Context()

	require.NoError(t, bot.SendChannelMessage(ctx, "#test", "hello"))
	require.NoError(t, bot.SendPrivateMessage(ctx, "alice", "psst"))
	require.NoError(t, bot.SetTopic(ctx, "#test", "welcome"))
	require.NoError(t, bot.KickUser(ctx, "#test", "mallory", "begone"))
	require.NoError(t, bot.SendRaw(ctx, "PING :x"))

	require.Len(t, conn.sent, 5)
	require.Equal(t, event.ChannelMessage, conn.sent[0].Type)
	require.Equal(t, "#test", conn.sent[0].Channel)
	require.Equal(t, "hello", conn.sent[0].Content)
	require.Equal(t, event.PrivateMessage, conn.sent[1].Type)
	require.Equal(t, "alice", conn.sent[1].Target.Nick)
	require.Equal(t, event.Topic, conn.sent[2].Type)
	require.Equal(t, event.Kick, conn.sent[3].Type)
	require.Equal(t, "mallory", conn.sent[3].Target.Nick)
	require.Equal(t, event.RawLine, conn.sent[4].Type)

	require.NoError(t, bot.RequestDirectoryLookup(ctx, "bob"))
	require.Equal(t, []string{"bob"}, conn.whois)

	require.NoError(t, bot.QuitServer(ctx, "bye"))
	require.Equal(t, []string{"bye"}, conn.quitMsg)
}
