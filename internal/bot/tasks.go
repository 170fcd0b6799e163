package bot

import (
	"sort"

	"github.com/corvid-irc/corvid/internal/event"
)

// A Continuation is a suspended piece of handler logic waiting to be
// resumed by the deferred-task engine. The event argument is whatever
// woke it, or nil for a pure timer. Continuations are cancelled by
// identity, so callers keep the pointer they registered.
type Continuation struct {
	Fn func(ctx *Context, p *Plugin, ev *event.Event)
}

// A PendingReplay is a handler invocation that could not be authorized
// immediately and waits for a directory lookup on the sender. Replays
// older than the retry window at resolution time are dropped, not
// fired.
type PendingReplay struct {
	Event   event.Event
	Level   event.Level
	Created int64
	Resume  func(ev *event.Event)
}

type timedEntry struct {
	c      *Continuation
	fireAt int64
}

// State is the per-plugin mutable bag: user and channel tables plus
// the three deferred-work queues. It is owned exclusively by its
// plugin; only dispatch, the deferred-task engine and the plugin's own
// handlers touch it, always on the same logical stream of control.
type State struct {
	Users    map[string]*event.User
	Channels map[string]*event.Channel

	pendingLookups map[string][]*PendingReplay
	outstanding    map[string]bool

	waiting map[event.Type][]*Continuation

	timed     []timedEntry
	nextTimed int64

	nextPeriodic int64
}

func newState() *State {
	return &State{
		Users:          make(map[string]*event.User),
		Channels:       make(map[string]*event.Channel),
		pendingLookups: make(map[string][]*PendingReplay),
		outstanding:    make(map[string]bool),
		waiting:        make(map[event.Type][]*Continuation),
	}
}

// User returns the table entry for nick, creating it if absent.
func (s *State) User(nick string) *event.User {
	u := s.Users[nick]
	if u == nil {
		u = &event.User{Nick: nick}
		s.Users[nick] = u
	}
	return u
}

// Rehash rebuilds the user and channel tables into fresh maps. Long
// running tables accumulate deleted-bucket overhead; rebuilding them
// on the periodic tick keeps lookups cheap.
func (s *State) Rehash() {
	users := make(map[string]*event.User, len(s.Users))
	for k, v := range s.Users {
		users[k] = v
	}
	s.Users = users

	channels := make(map[string]*event.Channel, len(s.Channels))
	for k, v := range s.Channels {
		channels[k] = v
	}
	s.Channels = channels
}

// --- directory-lookup queue ---

// QueueLookup appends a replay under nick and reports whether the
// caller should issue a directory query: true only for the first
// replay queued while none is outstanding, so duplicate requests for
// one nickname share a single query.
func (s *State) QueueLookup(nick string, r *PendingReplay) (issue bool) {
	s.pendingLookups[nick] = append(s.pendingLookups[nick], r)
	if s.outstanding[nick] {
		return false
	}
	s.outstanding[nick] = true
	return true
}

// PendingFor returns the replays queued under nick.
func (s *State) PendingFor(nick string) []*PendingReplay {
	return s.pendingLookups[nick]
}

// ResolveLookups fires or drops every replay queued under nick, then
// clears the nickname's queue entirely. A replay older than retry
// seconds is dropped; otherwise it fires only if the user's refreshed
// classification now clears its required level. Replays fire in FIFO
// order of registration.
func (s *State) ResolveLookups(nick string, u *event.User, now, retry int64) {
	replays := s.pendingLookups[nick]
	delete(s.pendingLookups, nick)
	delete(s.outstanding, nick)

	for _, r := range replays {
		if now-r.Created >= retry {
			continue
		}
		if Clears(u, r.Level) {
			ev := r.Event
			r.Resume(&ev)
		}
	}
}

// FlushLookups fires every queued replay across all nicknames and
// empties the queues. Used when the server signals it cannot perform
// directory lookups at all: with no lookup ever coming, every replay
// is treated as anyone-cleared.
func (s *State) FlushLookups() {
	nicks := make([]string, 0, len(s.pendingLookups))
	for nick := range s.pendingLookups {
		nicks = append(nicks, nick)
	}
	sort.Strings(nicks)

	for _, nick := range nicks {
		for _, r := range s.pendingLookups[nick] {
			ev := r.Event
			r.Resume(&ev)
		}
		delete(s.pendingLookups, nick)
		delete(s.outstanding, nick)
	}
}

// LookupCount returns how many replays are queued in total.
func (s *State) LookupCount() int {
	n := 0
	for _, q := range s.pendingLookups {
		n += len(q)
	}
	return n
}

// --- timed-continuation queue ---

// ScheduleAt inserts a continuation to fire at an absolute unix time.
// The queue stays sorted by fire time; entries with equal times keep
// insertion order.
func (s *State) ScheduleAt(c *Continuation, at int64) {
	i := sort.Search(len(s.timed), func(i int) bool {
		return s.timed[i].fireAt > at
	})
	s.timed = append(s.timed, timedEntry{})
	copy(s.timed[i+1:], s.timed[i:])
	s.timed[i] = timedEntry{c: c, fireAt: at}
	s.recomputeNextTimed()
}

// ScheduleAfter inserts a continuation to fire seconds from now.
func (s *State) ScheduleAfter(c *Continuation, seconds, now int64) {
	s.ScheduleAt(c, now+seconds)
}

// CancelTimed removes a scheduled continuation by identity. Reports
// whether it was found.
func (s *State) CancelTimed(c *Continuation) bool {
	for i := range s.timed {
		if s.timed[i].c == c {
			s.timed = append(s.timed[:i], s.timed[i+1:]...)
			s.recomputeNextTimed()
			return true
		}
	}
	return false
}

// NextTimed returns the cached earliest fire time, or 0 when the queue
// is empty. The main loop checks this before draining so an idle tick
// costs one comparison.
func (s *State) NextTimed() int64 {
	return s.nextTimed
}

func (s *State) recomputeNextTimed() {
	if len(s.timed) == 0 {
		s.nextTimed = 0
		return
	}
	s.nextTimed = s.timed[0].fireAt
}

// dueTimed removes and returns every continuation due at now, in
// non-decreasing fire-time order.
func (s *State) dueTimed(now int64) []*Continuation {
	if s.nextTimed == 0 || s.nextTimed > now {
		return nil
	}
	n := sort.Search(len(s.timed), func(i int) bool {
		return s.timed[i].fireAt > now
	})
	due := make([]*Continuation, n)
	for i := 0; i < n; i++ {
		due[i] = s.timed[i].c
	}
	s.timed = s.timed[n:]
	s.recomputeNextTimed()
	return due
}

// --- event-triggered continuation queue ---

// WaitFor registers a continuation to resume on the next event of any
// of the given types. event.Any fans out to every concrete type, so
// removal works uniformly no matter which type fires first.
func (s *State) WaitFor(c *Continuation, types ...event.Type) {
	for _, t := range types {
		if t == event.Any {
			for _, ct := range event.Types() {
				s.waiting[ct] = append(s.waiting[ct], c)
			}
			continue
		}
		s.waiting[t] = append(s.waiting[t], c)
	}
}

// CancelWait removes a waiting continuation by identity. With no types
// given it is removed everywhere.
func (s *State) CancelWait(c *Continuation, types ...event.Type) bool {
	if len(types) == 0 {
		found := false
		for t := range s.waiting {
			if s.removeWait(t, c) {
				found = true
			}
		}
		return found
	}
	found := false
	for _, t := range types {
		if s.removeWait(t, c) {
			found = true
		}
	}
	return found
}

func (s *State) removeWait(t event.Type, c *Continuation) bool {
	q := s.waiting[t]
	for i := range q {
		if q[i] == c {
			s.waiting[t] = append(q[:i], q[i+1:]...)
			return true
		}
	}
	return false
}

// takeWaiting removes and returns every continuation registered for t.
// Each returned continuation is also deregistered from every other
// type, so an Any-registered one resumes exactly once.
func (s *State) takeWaiting(t event.Type) []*Continuation {
	q := s.waiting[t]
	if len(q) == 0 {
		return nil
	}
	delete(s.waiting, t)
	for _, c := range q {
		s.CancelWait(c)
	}
	return q
}
