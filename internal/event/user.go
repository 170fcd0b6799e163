package event

// Level is a trust tier. It does double duty: a user's classification
// as known to a plugin, and the minimum tier a handler requires of the
// triggering user. The ordering Ignore < Anyone < Registered <
// Whitelist < Operator < Admin is significant; Unset and Blacklist sit
// outside the ordering and never satisfy a requirement.
type Level int8

const (
	Unset Level = iota
	Blacklist
	Ignore
	Anyone
	Registered
	Whitelist
	Operator
	Admin
)

var levelNames = map[Level]string{
	Unset:      "unset",
	Blacklist:  "blacklist",
	Ignore:     "ignore",
	Anyone:     "anyone",
	Registered: "registered",
	Whitelist:  "whitelist",
	Operator:   "operator",
	Admin:      "admin",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "invalid"
}

// ParseLevel maps a level name back to its value.
func ParseLevel(s string) (Level, bool) {
	for l, name := range levelNames {
		if name == s {
			return l, true
		}
	}
	return Unset, false
}

// A User is what a plugin knows about one nickname. Nick is the
// natural key in a plugin's user table.
type User struct {
	Nick       string
	Ident      string
	Host       string
	Account    string
	Class      Level
	LastLookup int64
}

// Meld merges partial information from other into u without discarding
// what u already knows. Non-empty fields win; a later lookup timestamp
// wins; a concrete classification replaces Unset but an Unset one never
// clears a concrete classification.
func (u *User) Meld(other *User) {
	if other.Nick != "" {
		u.Nick = other.Nick
	}
	if other.Ident != "" {
		u.Ident = other.Ident
	}
	if other.Host != "" {
		u.Host = other.Host
	}
	if other.Account != "" {
		u.Account = other.Account
	}
	if other.Class != Unset {
		u.Class = other.Class
	}
	if other.LastLookup > u.LastLookup {
		u.LastLookup = other.LastLookup
	}
}

// A Member is one occupant of a tracked channel.
type Member struct {
	Nick     string
	Prefixes string
}

// A Channel is one channel the bot has joined, with whatever state has
// been observed for it so far.
type Channel struct {
	Name      string
	Topic     string
	CreatedAt int64
	Modes     map[string]string
	Members   map[string]*Member
}

// NewChannel makes an empty channel record.
func NewChannel(name string, createdAt int64) *Channel {
	return &Channel{
		Name:      name,
		CreatedAt: createdAt,
		Modes:     make(map[string]string),
		Members:   make(map[string]*Member),
	}
}
