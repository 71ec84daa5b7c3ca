package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/crystal-mush/tinymud/pkg/gameerr"
)

// Help topics that filter the listing.
const (
	helpCommands   = "-c"
	helpProperties = "-p"
)

func validateHelp(_ context.Context, g *Game, c *Call) error {
	words := strings.Fields(c.Arg(0))
	switch {
	case len(words) == 0:
		return nil
	case len(words) > 1:
		return gameerr.Input("incorrectArgs", "command", "help")
	}
	topic := words[0]
	if topic == helpCommands || topic == helpProperties {
		c.Params = []string{topic}
		return nil
	}
	if _, ok := g.Commands.Lookup(topic); !ok {
		return gameerr.Input("incorrectArgs", "command", "help")
	}
	c.Params = []string{topic}
	return nil
}

func cmdHelp(_ context.Context, g *Game, c *Call) error {
	if len(c.Params) == 0 {
		g.tell(c.Conn, "help", "command", helpListing(g.Commands.All(), nil))
		return nil
	}
	switch topic := c.Params[0]; topic {
	case helpCommands:
		g.tell(c.Conn, "help", "command", helpListing(g.Commands.All(), func(cmd *Command) bool {
			return !strings.HasPrefix(cmd.Name, "@")
		}))
	case helpProperties:
		g.tell(c.Conn, "help", "command", helpListing(g.Commands.All(), func(cmd *Command) bool {
			return strings.HasPrefix(cmd.Name, "@")
		}))
	default:
		cmd, _ := g.Commands.Lookup(topic)
		g.tell(c.Conn, "help", "command", fmt.Sprintf("%s\n%s", cmd.Desc, cmd.Usage))
	}
	return nil
}

// helpListing formats one "name<pad>\tdesc" line per command that keep
// accepts (all of them when keep is nil). Names are padded to the longest.
func helpListing(cmds []*Command, keep func(*Command) bool) string {
	var shown []*Command
	width := 0
	for _, cmd := range cmds {
		if keep != nil && !keep(cmd) {
			continue
		}
		shown = append(shown, cmd)
		width = max(width, len(cmd.Name))
	}
	var b strings.Builder
	for _, cmd := range shown {
		fmt.Fprintf(&b, "%-*s\t%s\n", width, cmd.Name, cmd.Desc)
	}
	return b.String()
}
