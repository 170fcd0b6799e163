package bot_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvid-irc/corvid/internal/bot"
	"github.com/corvid-irc/corvid/internal/event"
)

func awarePlugin(t *testing.T, b *bot.Bot) *bot.Plugin {
	t.Helper()
	p := bot.NewPlugin("aware", []string{"#test"})
	require.NoError(t, bot.UseAuthentication(p))
	require.NoError(t, bot.UseAwareness(p))
	require.NoError(t, b.Register(p))
	return p
}

func simpleEvent(t event.Type, nick, channel string, at int64) *event.Event {
	ev := event.New(t)
	ev.Time = at
	ev.Sender = event.User{Nick: nick}
	ev.Channel = channel
	return &ev
}

func TestAwarenessRequiresAuthentication(t *testing.T) {
	p := bot.NewPlugin("bare", nil)
	err := bot.UseAwareness(p)
	var regErr *bot.RegistrationError
	require.ErrorAs(t, err, &regErr)

	require.NoError(t, bot.UseAuthentication(p))
	require.NoError(t, bot.UseAwareness(p))
	// Both behaviors are idempotent.
	require.NoError(t, bot.UseAuthentication(p))
	require.NoError(t, bot.UseAwareness(p))
}

func TestChannelLifecycleTracking(t *testing.T) {
	b, _ := newTestBot(t)
	p := awarePlugin(t, b)
	s := p.State()

	// The bot joining creates the channel.
	require.NoError(t, b.Dispatch(simpleEvent(event.Join, "corvid", "#Test", 100)))
	require.NotNil(t, s.Channels["#test"])

	// Other users joining become members and tracked users.
	require.NoError(t, b.Dispatch(simpleEvent(event.Join, "alice", "#Test", 101)))
	require.NotNil(t, s.Channels["#test"].Members["alice"])
	require.NotNil(t, s.Users["alice"])

	// A names list fills in members and prefixes.
	names := simpleEvent(event.Names, "", "#Test", 102)
	names.Content = "@ophelia +voicy plain"
	require.NoError(t, b.Dispatch(names))
	require.Equal(t, "@", s.Channels["#test"].Members["ophelia"].Prefixes)
	require.Equal(t, "+", s.Channels["#test"].Members["voicy"].Prefixes)
	require.Equal(t, "", s.Channels["#test"].Members["plain"].Prefixes)

	// Topic and mode changes land on the channel record.
	topic := simpleEvent(event.Topic, "alice", "#Test", 103)
	topic.Content = "welcome"
	require.NoError(t, b.Dispatch(topic))
	require.Equal(t, "welcome", s.Channels["#test"].Topic)

	mode := simpleEvent(event.Mode, "ophelia", "#Test", 104)
	mode.Content = "+ok"
	mode.Aux = "alice sekrit"
	require.NoError(t, b.Dispatch(mode))
	require.Equal(t, "@", s.Channels["#test"].Members["alice"].Prefixes)
	require.Equal(t, "sekrit", s.Channels["#test"].Modes["k"])

	mode = simpleEvent(event.Mode, "ophelia", "#Test", 105)
	mode.Content = "-o"
	mode.Aux = "alice"
	require.NoError(t, b.Dispatch(mode))
	require.Equal(t, "", s.Channels["#test"].Members["alice"].Prefixes)

	// The bot parting destroys the channel record.
	require.NoError(t, b.Dispatch(simpleEvent(event.Part, "corvid", "#Test", 106)))
	require.Nil(t, s.Channels["#test"])
}

func TestUserPrunedAfterLeavingLastChannel(t *testing.T) {
	b, _ := newTestBot(t)
	p := awarePlugin(t, b)
	s := p.State()

	require.NoError(t, b.Dispatch(simpleEvent(event.Join, "corvid", "#one", 100)))
	require.NoError(t, b.Dispatch(simpleEvent(event.Join, "corvid", "#two", 101)))
	require.NoError(t, b.Dispatch(simpleEvent(event.Join, "alice", "#one", 102)))
	require.NoError(t, b.Dispatch(simpleEvent(event.Join, "alice", "#two", 103)))

	// Leaving one channel keeps the user while the other still holds
	// them.
	require.NoError(t, b.Dispatch(simpleEvent(event.Part, "alice", "#one", 104)))
	require.NotNil(t, s.Users["alice"])

	// Leaving the last tracked channel prunes the user.
	require.NoError(t, b.Dispatch(simpleEvent(event.Part, "alice", "#two", 105)))
	require.Nil(t, s.Users["alice"])
}

func TestQuitRemovesUserEverywhere(t *testing.T) {
	b, _ := newTestBot(t)
	p := awarePlugin(t, b)
	s := p.State()

	require.NoError(t, b.Dispatch(simpleEvent(event.Join, "corvid", "#one", 100)))
	require.NoError(t, b.Dispatch(simpleEvent(event.Join, "corvid", "#two", 101)))
	require.NoError(t, b.Dispatch(simpleEvent(event.Join, "bob", "#one", 102)))
	require.NoError(t, b.Dispatch(simpleEvent(event.Join, "bob", "#two", 103)))

	require.NoError(t, b.Dispatch(simpleEvent(event.Quit, "bob", "", 104)))
	require.Nil(t, s.Users["bob"])
	require.Nil(t, s.Channels["#one"].Members["bob"])
	require.Nil(t, s.Channels["#two"].Members["bob"])
}

func TestKickRemovesTarget(t *testing.T) {
	b, _ := newTestBot(t)
	p := awarePlugin(t, b)
	s := p.State()

	require.NoError(t, b.Dispatch(simpleEvent(event.Join, "corvid", "#one", 100)))
	require.NoError(t, b.Dispatch(simpleEvent(event.Join, "mallory", "#one", 101)))

	kick := simpleEvent(event.Kick, "ophelia", "#one", 102)
	kick.Target = event.User{Nick: "mallory"}
	require.NoError(t, b.Dispatch(kick))
	require.Nil(t, s.Channels["#one"].Members["mallory"])
	require.Nil(t, s.Users["mallory"])
}

func TestNickChangeRenamesUserAndMembers(t *testing.T) {
	b, _ := newTestBot(t)
	p := awarePlugin(t, b)
	s := p.State()

	require.NoError(t, b.Dispatch(simpleEvent(event.Join, "corvid", "#one", 100)))
	require.NoError(t, b.Dispatch(simpleEvent(event.Join, "alice", "#one", 101)))
	s.User("alice").Account = "alice"

	change := simpleEvent(event.NickChange, "alice", "", 102)
	change.Content = "alicia"
	require.NoError(t, b.Dispatch(change))

	require.Nil(t, s.Users["alice"])
	require.NotNil(t, s.Users["alicia"])
	require.Equal(t, "alice", s.Users["alicia"].Account)
	require.Nil(t, s.Channels["#one"].Members["alice"])
	require.NotNil(t, s.Channels["#one"].Members["alicia"])
}

func TestWhoisUpgradesClassification(t *testing.T) {
	b, _ := newTestBot(t)
	p := awarePlugin(t, b)
	s := p.State()
	b.Context().Access.Accounts["root"] = event.Admin

	acct := event.New(event.WhoisAccount)
	acct.Time = 100
	acct.Target = event.User{Nick: "boss", Account: "root"}
	require.NoError(t, b.Dispatch(&acct))
	require.Equal(t, event.Admin, s.Users["boss"].Class)
	require.EqualValues(t, 100, s.Users["boss"].LastLookup)

	// An account with no seed is simply registered.
	acct2 := event.New(event.WhoisAccount)
	acct2.Time = 101
	acct2.Target = event.User{Nick: "norm", Account: "norm"}
	require.NoError(t, b.Dispatch(&acct2))
	require.Equal(t, event.Registered, s.Users["norm"].Class)

	// A lookup that ends with no account marks the user as anyone.
	end := event.New(event.WhoisEnd)
	end.Time = 102
	end.Target = event.User{Nick: "drifter"}
	require.NoError(t, b.Dispatch(&end))
	require.Equal(t, event.Anyone, s.Users["drifter"].Class)
}

func TestRehashPreservesTables(t *testing.T) {
	b, _ := newTestBot(t)
	p := awarePlugin(t, b)
	p.PeriodicInterval = 10
	s := p.State()

	require.NoError(t, b.Dispatch(simpleEvent(event.Join, "corvid", "#one", 100)))
	require.NoError(t, b.Dispatch(simpleEvent(event.Join, "alice", "#one", 101)))

	// First tick arms the interval, second fires the periodic hooks.
	b.Tick(1000)
	b.Tick(1010)

	require.NotNil(t, s.Users["alice"])
	require.NotNil(t, s.Channels["#one"])
}
