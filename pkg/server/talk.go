package server

import (
	"context"
	"strings"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
	"github.com/crystal-mush/tinymud/pkg/gameerr"
	"github.com/crystal-mush/tinymud/pkg/session"
)

func cmdSay(_ context.Context, g *Game, c *Call) error {
	msg := c.Arg(0)
	g.tell(c.Conn, "youSay", "message", msg)
	g.tellRoom(c.Player.Location, c.Player.ID, "says", "name", c.Player.Name, "message", msg)
	return nil
}

func validatePage(_ context.Context, _ *Game, c *Call) error {
	if !isUsernameValid(c.Arg(0)) {
		return gameerr.Input("unknownCommand")
	}
	return nil
}

func cmdPage(ctx context.Context, g *Game, c *Call) error {
	room, err := g.load(ctx, c.Player.Location, "dontSeeThat")
	if err != nil {
		return err
	}
	target := g.Sessions.ByPlayerName(c.Arg(0))
	if target == nil {
		return gameerr.Missing("isNotAvailable")
	}
	g.Sessions.SendToPlayer(target.ID, g.text("page", "name", c.Player.Name, "location", room.Name))
	g.tell(c.Conn, "pageOK")
	return nil
}

// validateWhisper splits "user=message" and finds the listener, who must
// be a connected player in the same room.
func validateWhisper(ctx context.Context, g *Game, c *Call) error {
	user, msg, ok := strings.Cut(c.Arg(0), "=")
	user = strings.TrimSpace(user)
	if !ok || !isUsernameValid(user) {
		return gameerr.Input("unknownCommand")
	}
	target, err := g.findOne(ctx, playerNamed(user).And(
		gamedb.Eq(gamedb.FieldLocation, c.Player.Location),
	))
	if err != nil {
		return err
	}
	if target == nil {
		return gameerr.Missing("notInRoom")
	}
	if g.Sessions.ConnectionOf(target.ID) == nil {
		return gameerr.Input("notConnected", "name", target.Name)
	}
	c.Target = target
	c.Params = []string{user, msg}
	return nil
}

func cmdWhisper(_ context.Context, g *Game, c *Call) error {
	user, msg := c.Params[0], c.Params[1]
	target := c.Target
	from := c.Player.Name

	g.tell(c.Conn, "youWhisper", "message", msg, "name", user)
	g.Sessions.SendToPlayer(target.ID, g.text("toWhisper", "name", from, "message", msg))

	g.Sessions.ForEach(func(conn session.Conn, other *gamedb.Object) bool {
		if other.Name == from || other.Name == target.Name {
			return true
		}
		if g.Roll() < g.Conf.OverhearPercent {
			g.tell(conn, "overheard", "fromName", from, "message", msg, "toName", target.Name)
		} else {
			g.tell(conn, "whisper", "fromName", from, "toName", target.Name)
		}
		return true
	})
	return nil
}
