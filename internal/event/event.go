package event

import "time"

// Type identifies the kind of protocol occurrence an Event describes.
type Type int8

const (
	// Any matches every dispatchable type when used in a handler
	// declaration. It is never carried by a real event.
	Any Type = iota

	// RawPrivmsg and RawWhisper are the wire-level classifications the
	// parser starts from. They must be rewritten to ChannelMessage,
	// PrivateMessage or Emote before dispatch and are rejected in
	// handler declarations.
	RawPrivmsg
	RawWhisper

	ChannelMessage
	PrivateMessage
	Emote
	Notice
	Join
	Part
	Quit
	NickChange
	Mode
	Topic
	Kick
	Invite
	Names
	WhoisAccount
	WhoisEnd
	UnknownCommand
	Connected
	Disconnected
	RawLine

	numTypes
)

var typeNames = map[Type]string{
	Any:            "any",
	RawPrivmsg:     "raw-privmsg",
	RawWhisper:     "raw-whisper",
	ChannelMessage: "channel-message",
	PrivateMessage: "private-message",
	Emote:          "emote",
	Notice:         "notice",
	Join:           "join",
	Part:           "part",
	Quit:           "quit",
	NickChange:     "nick-change",
	Mode:           "mode",
	Topic:          "topic",
	Kick:           "kick",
	Invite:         "invite",
	Names:          "names",
	WhoisAccount:   "whois-account",
	WhoisEnd:       "whois-end",
	UnknownCommand: "unknown-command",
	Connected:      "connected",
	Disconnected:   "disconnected",
	RawLine:        "raw-line",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "invalid"
}

// Meta reports whether t is one of the wire-level classifications that
// may never reach dispatch or appear in a handler declaration.
func (t Type) Meta() bool {
	return t == RawPrivmsg || t == RawWhisper
}

// Types returns every concrete dispatchable type, in declaration order.
// Any and the two meta types are excluded.
func Types() []Type {
	out := make([]Type, 0, int(numTypes))
	for t := ChannelMessage; t < numTypes; t++ {
		out = append(out, t)
	}
	return out
}

// An Event is one parsed protocol occurrence. The parser constructs it
// once; the dispatcher hands each handler its own copy, so handlers are
// free to rewrite Content (prefix stripping and the like) without
// affecting anyone else.
type Event struct {
	Type    Type
	Time    int64
	Sender  User
	Target  User
	Channel string
	Content string
	Aux     string
	Raw     string
}

// New makes an event of the given type stamped with the current time.
func New(t Type) Event {
	return Event{Type: t, Time: time.Now().Unix()}
}
