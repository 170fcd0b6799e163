package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/corvid-irc/corvid/internal/config"
	"github.com/corvid-irc/corvid/internal/event"
)

// Version information (set at build time or here)
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Client owns the server connection. Incoming lines are parsed by
// ircevent/ircmsg and translated to canonical events before they reach
// the sink; outgoing canonical events are serialized back to wire
// commands here. It is the only writer to the outbound stream, and a
// token bucket paces sends from all plugins.
type Client struct {
	conn    *ircevent.Connection
	cfg     *config.Config
	log     *logrus.Logger
	limiter *rate.Limiter

	mu     sync.Mutex
	sink   func(*event.Event)
	closed bool
}

// NewClient creates a client for the configured server
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	c := &Client{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(2), 4),
	}

	conn := &ircevent.Connection{
		Server:      fmt.Sprintf("%s:%d", cfg.Server, cfg.Port),
		Nick:        cfg.Nick,
		User:        cfg.Username,
		RealName:    cfg.IRCName,
		Password:    cfg.ServerPass,
		QuitMessage: "Shutting down",
		Debug:       false,
		UseTLS:      cfg.UseTLS,
		TLSConfig:   &tls.Config{InsecureSkipVerify: true},
	}
	c.conn = conn

	c.registerHandlers()

	return c
}

// SetSink installs the function incoming events are handed to, in
// arrival order.
func (c *Client) SetSink(fn func(*event.Event)) {
	c.mu.Lock()
	c.sink = fn
	c.mu.Unlock()
}

func (c *Client) registerHandlers() {
	// Connected (end of MOTD)
	c.conn.AddCallback("376", c.onConnect)
	c.conn.AddCallback("422", c.onConnect) // MOTD missing is also "connected"

	// Messages
	c.conn.AddCallback("PRIVMSG", c.onPrivMsg)
	c.conn.AddCallback("WHISPER", c.onWhisper) // Twitch
	c.conn.AddCallback("NOTICE", c.onNotice)

	// Channel traffic
	c.conn.AddCallback("JOIN", c.onSimple(event.Join))
	c.conn.AddCallback("PART", c.onSimple(event.Part))
	c.conn.AddCallback("QUIT", c.onQuit)
	c.conn.AddCallback("NICK", c.onNick)
	c.conn.AddCallback("MODE", c.onMode)
	c.conn.AddCallback("TOPIC", c.onSimple(event.Topic))
	c.conn.AddCallback("KICK", c.onKick)
	c.conn.AddCallback("INVITE", c.onInvite)
	c.conn.AddCallback("353", c.onNames) // RPL_NAMREPLY

	// WHOIS responses
	c.conn.AddCallback("330", c.onWhoisAccount) // RPL_WHOISACCOUNT
	c.conn.AddCallback("318", c.onWhoisEnd)     // RPL_ENDOFWHOIS

	// Servers without WHOIS (Twitch) reject it here
	c.conn.AddCallback("421", c.onUnknownCommand) // ERR_UNKNOWNCOMMAND

	// Nick issues
	c.conn.AddCallback("432", c.onNickHeld)  // ERR_ERRONEUSNICKNAME
	c.conn.AddCallback("433", c.onNickInUse) // ERR_NICKNAMEINUSE

	// CTCP VERSION
	c.conn.AddCallback("CTCP_VERSION", c.onCtcpVersion)
}

// Connect initiates the IRC connection
func (c *Client) Connect() error {
	return c.conn.Connect()
}

// Loop runs the IRC event loop (blocking)
func (c *Client) Loop() {
	c.conn.Loop()
}

// Quit disconnects from IRC
func (c *Client) Quit(message string) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.conn.Quit()
	return nil
}

// Nick returns the bot's current nickname.
func (c *Client) Nick() string {
	return c.conn.CurrentNick()
}

// Whois issues a directory lookup query for a nickname.
func (c *Client) Whois(nick string) error {
	c.wait()
	return c.conn.Send("WHOIS", nick)
}

// Send serializes an outgoing canonical event to its wire command.
func (c *Client) Send(ev *event.Event) error {
	c.wait()
	switch ev.Type {
	case event.ChannelMessage:
		c.conn.Privmsg(ev.Channel, ev.Content)
		return nil
	case event.PrivateMessage:
		c.conn.Privmsg(ev.Target.Nick, ev.Content)
		return nil
	case event.Emote:
		target := ev.Channel
		if target == "" {
			target = ev.Target.Nick
		}
		c.conn.Privmsg(target, "\x01ACTION "+ev.Content+"\x01")
		return nil
	case event.Notice:
		return c.conn.Send("NOTICE", ev.Target.Nick, ev.Content)
	case event.Mode:
		params := append([]string{ev.Channel, ev.Content}, strings.Fields(ev.Aux)...)
		return c.conn.Send("MODE", params...)
	case event.Topic:
		return c.conn.Send("TOPIC", ev.Channel, ev.Content)
	case event.Join:
		return c.conn.Send("JOIN", ev.Channel)
	case event.Part:
		return c.conn.Send("PART", ev.Channel, ev.Content)
	case event.Kick:
		return c.conn.Send("KICK", ev.Channel, ev.Target.Nick, ev.Content)
	case event.Invite:
		return c.conn.Send("INVITE", ev.Target.Nick, ev.Channel)
	case event.RawLine:
		return c.conn.SendRaw(ev.Content)
	}
	return fmt.Errorf("irc: cannot serialize %s event", ev.Type)
}

// wait blocks until the rate limiter admits one more outgoing command.
func (c *Client) wait() {
	if err := c.limiter.Wait(context.Background()); err != nil {
		c.log.WithError(err).Warn("send limiter interrupted")
	}
}

func (c *Client) emit(ev *event.Event) {
	c.mu.Lock()
	sink := c.sink
	closed := c.closed
	c.mu.Unlock()
	if sink == nil || closed {
		return
	}
	sink(ev)
}

// isChannel reports whether a message target names a channel rather
// than a user.
func isChannel(target string) bool {
	return strings.HasPrefix(target, "#") || strings.HasPrefix(target, "&")
}

// sender builds the canonical user for a message source.
func sender(e ircmsg.Message) event.User {
	u := event.User{Nick: e.Nick()}
	if nuh, err := e.NUH(); err == nil {
		u.Ident = nuh.User
		u.Host = nuh.Host
	}
	return u
}

func newEvent(t event.Type, e ircmsg.Message) event.Event {
	ev := event.New(t)
	ev.Sender = sender(e)
	if len(e.Params) > 0 && isChannel(e.Params[0]) {
		ev.Channel = e.Params[0]
	}
	if len(e.Params) > 1 {
		ev.Content = e.Params[len(e.Params)-1]
	}
	return ev
}

func (c *Client) onConnect(e ircmsg.Message) {
	c.log.Info("connected to IRC server")

	if c.cfg.NickPass != "" {
		c.conn.Privmsg("NickServ", fmt.Sprintf("IDENTIFY %s %s", c.cfg.Nick, c.cfg.NickPass))
	}

	for _, ch := range c.cfg.HomeChannels {
		if err := c.conn.Send("JOIN", ch); err != nil {
			c.log.WithError(err).WithField("channel", ch).Warn("join failed")
		}
	}

	ev := event.New(event.Connected)
	c.emit(&ev)
}

// onPrivMsg rewrites the wire-level privmsg classification to a
// concrete type: channel message, private query, or emote. No raw
// classification ever reaches dispatch.
func (c *Client) onPrivMsg(e ircmsg.Message) {
	if len(e.Params) < 2 {
		return
	}
	target := e.Params[0]
	text := e.Params[1]

	t := event.PrivateMessage
	channel := ""
	if isChannel(target) {
		t = event.ChannelMessage
		channel = target
	}
	if strings.HasPrefix(text, "\x01ACTION ") && strings.HasSuffix(text, "\x01") {
		t = event.Emote
		text = strings.TrimSuffix(strings.TrimPrefix(text, "\x01ACTION "), "\x01")
	}

	ev := event.New(t)
	ev.Sender = sender(e)
	ev.Channel = channel
	ev.Content = text
	ev.Raw = text
	c.emit(&ev)
}

// onWhisper maps a Twitch whisper to a private query.
func (c *Client) onWhisper(e ircmsg.Message) {
	if len(e.Params) < 2 {
		return
	}
	ev := event.New(event.PrivateMessage)
	ev.Sender = sender(e)
	ev.Content = e.Params[1]
	ev.Raw = e.Params[1]
	c.emit(&ev)
}

func (c *Client) onNotice(e ircmsg.Message) {
	if len(e.Params) < 2 {
		return
	}
	ev := newEvent(event.Notice, e)
	c.emit(&ev)
}

func (c *Client) onSimple(t event.Type) func(ircmsg.Message) {
	return func(e ircmsg.Message) {
		ev := newEvent(t, e)
		c.emit(&ev)
	}
}

func (c *Client) onQuit(e ircmsg.Message) {
	ev := event.New(event.Quit)
	ev.Sender = sender(e)
	if len(e.Params) > 0 {
		ev.Content = e.Params[len(e.Params)-1]
	}
	c.emit(&ev)
}

func (c *Client) onNick(e ircmsg.Message) {
	if len(e.Params) < 1 {
		return
	}
	ev := event.New(event.NickChange)
	ev.Sender = sender(e)
	ev.Content = e.Params[0]
	c.emit(&ev)
}

func (c *Client) onMode(e ircmsg.Message) {
	// MODE <target> <modes> [args...]
	if len(e.Params) < 2 || !isChannel(e.Params[0]) {
		return
	}
	ev := event.New(event.Mode)
	ev.Sender = sender(e)
	ev.Channel = e.Params[0]
	ev.Content = e.Params[1]
	ev.Aux = strings.Join(e.Params[2:], " ")
	c.emit(&ev)
}

func (c *Client) onKick(e ircmsg.Message) {
	// KICK <channel> <nick> [:reason]
	if len(e.Params) < 2 {
		return
	}
	ev := event.New(event.Kick)
	ev.Sender = sender(e)
	ev.Channel = e.Params[0]
	ev.Target = event.User{Nick: e.Params[1]}
	if len(e.Params) > 2 {
		ev.Content = e.Params[2]
	}
	c.emit(&ev)
}

func (c *Client) onInvite(e ircmsg.Message) {
	// INVITE <nick> <channel>
	if len(e.Params) < 2 {
		return
	}
	ev := event.New(event.Invite)
	ev.Sender = sender(e)
	ev.Target = event.User{Nick: e.Params[0]}
	ev.Channel = e.Params[1]
	c.emit(&ev)
}

func (c *Client) onNames(e ircmsg.Message) {
	// 353 <me> <symbol> <channel> :<prefixed nicks>
	if len(e.Params) < 4 {
		return
	}
	ev := event.New(event.Names)
	ev.Channel = e.Params[2]
	ev.Content = e.Params[3]
	c.emit(&ev)
}

func (c *Client) onWhoisAccount(e ircmsg.Message) {
	// 330 <me> <nick> <account> :is logged in as
	if len(e.Params) < 3 {
		return
	}
	ev := event.New(event.WhoisAccount)
	ev.Target = event.User{Nick: e.Params[1], Account: e.Params[2]}
	c.emit(&ev)
}

func (c *Client) onWhoisEnd(e ircmsg.Message) {
	// 318 <me> <nick> :End of /WHOIS list
	if len(e.Params) < 2 {
		return
	}
	ev := event.New(event.WhoisEnd)
	ev.Target = event.User{Nick: e.Params[1]}
	c.emit(&ev)
}

func (c *Client) onUnknownCommand(e ircmsg.Message) {
	// 421 <me> <command> :Unknown command
	if len(e.Params) < 2 {
		return
	}
	ev := event.New(event.UnknownCommand)
	ev.Content = e.Params[1]
	c.emit(&ev)
}

func (c *Client) onNickHeld(e ircmsg.Message) {
	if c.conn.CurrentNick() == c.cfg.Alternate || c.cfg.Alternate == "" {
		return
	}
	c.log.WithField("alternate", c.cfg.Alternate).Info("nick is held, switching to alternate")
	c.conn.SetNick(c.cfg.Alternate)

	// Schedule nick recovery
	go func() {
		time.Sleep(15 * time.Second)
		if c.cfg.NickPass != "" {
			c.conn.Privmsg("NickServ", fmt.Sprintf("RELEASE %s %s", c.cfg.Nick, c.cfg.NickPass))
		}
		time.Sleep(2 * time.Second)
		c.conn.SetNick(c.cfg.Nick)
	}()
}

func (c *Client) onNickInUse(e ircmsg.Message) {
	if c.conn.CurrentNick() == c.cfg.Alternate || c.cfg.Alternate == "" {
		return
	}
	c.log.WithField("alternate", c.cfg.Alternate).Info("nick in use, switching to alternate")
	c.conn.SetNick(c.cfg.Alternate)

	// Schedule nick recovery
	go func() {
		time.Sleep(15 * time.Second)
		if c.cfg.NickPass != "" {
			c.conn.Privmsg("NickServ", fmt.Sprintf("GHOST %s %s", c.cfg.Nick, c.cfg.NickPass))
		}
		time.Sleep(2 * time.Second)
		c.conn.SetNick(c.cfg.Nick)
	}()
}

func (c *Client) onCtcpVersion(e ircmsg.Message) {
	nick := e.Nick()
	reply := fmt.Sprintf("corvid %s (built %s, commit %s)", Version, BuildDate, GitCommit)
	c.conn.SendRaw(fmt.Sprintf("NOTICE %s :\x01VERSION %s\x01", nick, reply))
}
