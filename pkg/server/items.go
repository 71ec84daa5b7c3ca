package server

import (
	"context"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
	"github.com/crystal-mush/tinymud/pkg/gameerr"
	"github.com/crystal-mush/tinymud/pkg/resolve"
)

// --- drop ---

func validateDrop(ctx context.Context, g *Game, c *Call) error {
	things, err := g.findAll(ctx, gamedb.Where(
		gamedb.Eq(gamedb.FieldName, c.Arg(0)),
		gamedb.Eq(gamedb.FieldType, gamedb.TypeThing),
		gamedb.Eq(gamedb.FieldLocation, c.Player.ID),
	))
	if err != nil {
		return err
	}
	if len(things) == 0 {
		return gameerr.Missing("dontHave")
	}
	c.Targets = things
	return nil
}

// cmdDrop leaves things in the room, unless the room is a temple: then
// they go to the room's drop-to, or to their own homes.
func cmdDrop(ctx context.Context, g *Game, c *Call) error {
	room, err := g.load(ctx, c.Player.Location, "dontSeeThat")
	if err != nil {
		return err
	}
	for _, thing := range c.Targets {
		err := g.update(ctx, thing, func(t *gamedb.Object) error {
			if t.Location != c.Player.ID {
				return gameerr.Missing("dontHave")
			}
			switch {
			case !room.HasFlag(gamedb.FlagTemple):
				t.Location = room.ID
			case room.Target.Valid():
				t.Location = room.Target
			default:
				t.Location = g.homeOf(t)
			}
			return nil
		})
		if err != nil {
			return err
		}
		g.tell(c.Conn, "dropped")
	}
	return nil
}

// --- get ---

func validateGet(ctx context.Context, g *Game, c *Call) error {
	things, err := g.findAll(ctx, gamedb.Where(
		gamedb.Eq(gamedb.FieldName, c.Arg(0)),
		gamedb.Eq(gamedb.FieldType, gamedb.TypeThing),
	).Or(
		gamedb.Eq(gamedb.FieldLocation, c.Player.Location),
		gamedb.Eq(gamedb.FieldLocation, c.Player.ID),
	))
	if err != nil {
		return err
	}
	switch len(things) {
	case 0:
		return gameerr.Missing("takeUnknown")
	case 1:
		c.Target = things[0]
		return nil
	default:
		return gameerr.Ambig("ambigSet")
	}
}

func cmdGet(ctx context.Context, g *Game, c *Call) error {
	thing := c.Target
	ok, err := g.Perms.CanDoIt(ctx, c.Player, thing, g.text("cantTakeThat"))
	if err != nil {
		return err
	}
	if !ok {
		return gameerr.Handled()
	}
	// The thing may have moved since it was found; only one taker wins.
	err = g.update(ctx, thing, func(t *gamedb.Object) error {
		switch t.Location {
		case c.Player.ID:
			return gameerr.Input("alreadyHaveThat")
		case c.Player.Location:
			t.Location = c.Player.ID
			return nil
		default:
			return gameerr.Missing("takeUnknown")
		}
	})
	if err != nil {
		return err
	}
	g.tell(c.Conn, "taken")
	return nil
}

// --- inventory ---

func cmdInventory(ctx context.Context, g *Game, c *Call) error {
	things, err := g.findAll(ctx, gamedb.Where(
		gamedb.Eq(gamedb.FieldType, gamedb.TypeThing),
		gamedb.Eq(gamedb.FieldLocation, c.Player.ID),
	))
	if err != nil {
		return err
	}
	if len(things) == 0 {
		g.tell(c.Conn, "carryingNothing")
		return nil
	}
	g.tell(c.Conn, "youAreCarrying")
	for _, t := range things {
		c.Conn.Send(t.Name)
	}
	return nil
}

// --- examine ---

func validateExamine(ctx context.Context, g *Game, c *Call) error {
	name := c.Arg(0)
	if !isNameValid(name) {
		return gameerr.Input("invalidName")
	}
	found, err := g.Resolver.Many(ctx, c.Player, resolve.Query{Name: name, AllowMe: true, AllowHere: true})
	if err != nil {
		return err
	}
	if name == "me" || name == "here" {
		if len(found) == 0 {
			return gameerr.Missing("examineUnknown")
		}
		c.Target = found[0]
		return nil
	}

	var exact []*gamedb.Object
	for _, o := range found {
		if o.Name == name && inScope(c.Player, o) {
			exact = append(exact, o)
		}
	}
	switch len(exact) {
	case 0:
		return gameerr.Missing("examineUnknown")
	case 1:
	default:
		return gameerr.Ambig("ambigSet")
	}
	obj := exact[0]
	if obj.Owner != c.Player.ID && obj.ID != c.Player.Location {
		return gameerr.Denied("permissionDenied")
	}
	c.Target = obj
	return nil
}

func cmdExamine(ctx context.Context, g *Game, c *Call) error {
	obj := c.Target
	g.tell(c.Conn, "examine",
		"name", obj.Name,
		"id", idString(obj.ID),
		"type", obj.Type.String(),
		"owner", refString(obj.Owner),
		"flags", flagString(obj),
		"location", refString(obj.Location),
		"target", refString(obj.Target),
		"key", refString(obj.Key),
		"description", obj.Description,
		"successMessage", obj.SuccessMessage,
		"othersSuccessMessage", obj.OthersSuccessMessage,
		"failureMessage", obj.FailureMessage,
		"othersFailureMessage", obj.OthersFailureMessage,
	)

	contents, err := g.findAll(ctx, gamedb.Where(gamedb.Eq(gamedb.FieldLocation, obj.ID)))
	if err != nil {
		return err
	}
	if len(contents) == 0 {
		return nil
	}
	g.tell(c.Conn, "contents")
	for _, o := range contents {
		g.tell(c.Conn, "examineContentsName", "name", o.Name, "id", idString(o.ID))
	}
	return nil
}
