// Package help provides the built-in help plugin, which lists every
// enabled plugin's commands over notice.
package help

import (
	"fmt"
	"strings"

	"github.com/corvid-irc/corvid/internal/bot"
	"github.com/corvid-irc/corvid/internal/event"
)

// New builds the help plugin against a bot's registry.
func New(b *bot.Bot, homeChannels []string) (*bot.Plugin, error) {
	p := bot.NewPlugin("help", homeChannels)

	err := p.Handle(&bot.Handler{
		Types:    []event.Type{event.ChannelMessage, event.PrivateMessage},
		Phase:    bot.Normal,
		Scope:    bot.HomeOnly,
		Prefix:   bot.Prefixed,
		Commands: []string{"help", "commands"},
		Level:    event.Ignore,
		Fn: func(ctx *bot.Context, p *bot.Plugin, ev *event.Event) error {
			target := ev.Sender.Nick
			for _, pl := range b.Plugins() {
				if !pl.Enabled() {
					continue
				}
				cmds := pl.Commands()
				if len(cmds) == 0 {
					continue
				}
				line := fmt.Sprintf("%s: %s%s", pl.Name(),
					ctx.Config.Prefix, strings.Join(cmds, " "+ctx.Config.Prefix))
				if err := bot.SendNotice(ctx, target, line); err != nil {
					return err
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}
