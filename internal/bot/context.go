package bot

import (
	"github.com/sirupsen/logrus"

	"github.com/corvid-irc/corvid/internal/access"
	"github.com/corvid-irc/corvid/internal/config"
	"github.com/corvid-irc/corvid/internal/event"
)

// Conn is the narrow surface of the connection layer the engine and
// handlers depend on. The connection layer is the only writer to the
// outbound stream and serializes sends from all plugins.
type Conn interface {
	// Send serializes an outgoing event to wire format and transmits it.
	Send(ev *event.Event) error
	// Whois asks the server for authoritative identity information
	// about a nickname.
	Whois(nick string) error
	// Quit disconnects from the server with a parting message.
	Quit(message string) error
	// Nick returns the bot's current nickname.
	Nick() string
}

// A Context carries everything dispatch and handlers need: the loaded
// configuration, the logger, the access list and the connection. It is
// constructed once at startup and passed down explicitly; nothing in
// the engine reaches for globals.
type Context struct {
	Config *config.Config
	Log    *logrus.Logger
	Access *access.List
	Conn   Conn
}
