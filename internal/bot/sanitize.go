package bot

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/corvid-irc/corvid/internal/event"
)

// sanitizeEvent replaces invalid byte sequences in the event's text
// fields. IRC predates any encoding agreement, so content that is not
// valid UTF-8 is almost always Latin-1; reinterpreting it that way
// keeps the text readable instead of littering replacement runes.
func sanitizeEvent(ev *event.Event) {
	ev.Content = sanitizeText(ev.Content)
	ev.Aux = sanitizeText(ev.Aux)
	ev.Raw = sanitizeText(ev.Raw)
}

func sanitizeText(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	if out, err := charmap.ISO8859_1.NewDecoder().String(s); err == nil {
		return out
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}
