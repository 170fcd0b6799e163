package bot

import (
	"fmt"
	"time"

	"github.com/corvid-irc/corvid/internal/event"
	"github.com/corvid-irc/corvid/internal/storage"
)

// auditable reports whether running this handler belongs in the audit
// log: command invocations above what ordinary registered users can
// reach.
func (h *Handler) auditable() bool {
	return len(h.Commands) > 0 && h.Level >= event.Whitelist
}

// runCommand runs a handler that cleared dispatch's checks and records
// privileged command invocations. Both the direct path and resumed
// replays go through here so a deferred invocation is audited the same
// as an immediate one.
func (b *Bot) runCommand(p *Plugin, h *Handler, ev *event.Event) {
	b.runHandler(p, h, ev)
	if h.auditable() {
		b.auditCommand(ev)
	}
}

func (b *Bot) auditCommand(ev *event.Event) {
	timestamp := time.Unix(ev.Time, 0).UTC().Format("Mon Jan 02, 2006 at 15:04:05 GMT")
	hostmask := ev.Sender.Nick
	if ev.Sender.Ident != "" || ev.Sender.Host != "" {
		hostmask = fmt.Sprintf("%s!%s@%s", ev.Sender.Nick, ev.Sender.Ident, ev.Sender.Host)
	}
	entry := fmt.Sprintf("%s: %s -> %s", timestamp, hostmask, ev.Content)

	b.audit = storage.AddAudit(b.audit, entry)
	if err := storage.SaveAudit(b.ctx.Config.DataDir, b.audit); err != nil {
		b.ctx.Log.WithError(err).Error("audit log save failed")
	}
}
