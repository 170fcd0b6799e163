package bot

import (
	"strings"

	"github.com/corvid-irc/corvid/internal/event"
)

// Egress helpers. Each packages an outgoing command into the canonical
// event representation and forwards it to the connection layer, which
// owns serialization to the wire.

// SendChannelMessage says something in a channel.
func SendChannelMessage(ctx *Context, channel, text string) error {
	ev := event.New(event.ChannelMessage)
	ev.Channel = channel
	ev.Content = text
	return ctx.Conn.Send(&ev)
}

// SendPrivateMessage messages a user directly.
func SendPrivateMessage(ctx *Context, nick, text string) error {
	ev := event.New(event.PrivateMessage)
	ev.Target = event.User{Nick: nick}
	ev.Content = text
	return ctx.Conn.Send(&ev)
}

// SendEmote sends a CTCP ACTION to a channel or user.
func SendEmote(ctx *Context, target, text string) error {
	ev := event.New(event.Emote)
	if strings.HasPrefix(target, "#") {
		ev.Channel = target
	} else {
		ev.Target = event.User{Nick: target}
	}
	ev.Content = text
	return ctx.Conn.Send(&ev)
}

// SendNotice sends a notice.
func SendNotice(ctx *Context, nick, text string) error {
	ev := event.New(event.Notice)
	ev.Target = event.User{Nick: nick}
	ev.Content = text
	return ctx.Conn.Send(&ev)
}

// SendRaw transmits a raw protocol line as-is.
func SendRaw(ctx *Context, line string) error {
	ev := event.New(event.RawLine)
	ev.Content = line
	return ctx.Conn.Send(&ev)
}

// RequestDirectoryLookup issues a WHOIS query with no replay attached.
func RequestDirectoryLookup(ctx *Context, nick string) error {
	return ctx.Conn.Whois(nick)
}

// SetMode changes modes on a channel.
func SetMode(ctx *Context, channel, modes string, args ...string) error {
	ev := event.New(event.Mode)
	ev.Channel = channel
	ev.Content = modes
	ev.Aux = strings.Join(args, " ")
	return ctx.Conn.Send(&ev)
}

// SetTopic sets a channel topic.
func SetTopic(ctx *Context, channel, topic string) error {
	ev := event.New(event.Topic)
	ev.Channel = channel
	ev.Content = topic
	return ctx.Conn.Send(&ev)
}

// JoinChannel joins a channel.
func JoinChannel(ctx *Context, channel string) error {
	ev := event.New(event.Join)
	ev.Channel = channel
	return ctx.Conn.Send(&ev)
}

// PartChannel leaves a channel.
func PartChannel(ctx *Context, channel, reason string) error {
	ev := event.New(event.Part)
	ev.Channel = channel
	ev.Content = reason
	return ctx.Conn.Send(&ev)
}

// KickUser removes a user from a channel.
func KickUser(ctx *Context, channel, nick, reason string) error {
	ev := event.New(event.Kick)
	ev.Channel = channel
	ev.Target = event.User{Nick: nick}
	ev.Content = reason
	return ctx.Conn.Send(&ev)
}

// InviteUser invites a user to a channel.
func InviteUser(ctx *Context, nick, channel string) error {
	ev := event.New(event.Invite)
	ev.Channel = channel
	ev.Target = event.User{Nick: nick}
	return ctx.Conn.Send(&ev)
}

// QuitServer disconnects with a parting message.
func QuitServer(ctx *Context, message string) error {
	return ctx.Conn.Quit(message)
}
