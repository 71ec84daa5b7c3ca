package server

import (
	"context"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
	"github.com/crystal-mush/tinymud/pkg/gameerr"
	"github.com/crystal-mush/tinymud/pkg/perms"
	"github.com/crystal-mush/tinymud/pkg/resolve"
)

// --- go ---

func validateGo(ctx context.Context, g *Game, c *Call) error {
	if c.Arg(0) == "home" {
		return nil
	}
	exit, err := g.Resolver.One(ctx, c.Player, resolve.Query{
		Name:         c.Arg(0),
		Type:         gamedb.TypeExit,
		AmbiguousKey: "ambigGo",
		NotFoundKey:  "noGo",
	})
	if err != nil {
		return err
	}
	c.Target = exit
	return nil
}

func cmdGo(ctx context.Context, g *Game, c *Call) error {
	if c.Target == nil {
		return g.goHome(ctx, c)
	}
	player, exit := c.Player, c.Target

	ok, err := g.Perms.CanDoIt(ctx, player, exit, g.text("noGo"))
	if err != nil || !ok || !exit.Target.Valid() {
		return err
	}
	room, err := g.load(ctx, exit.Target, "noGo")
	if err != nil {
		return err
	}
	if room.ID != player.Location {
		g.tellRoom(player.Location, player.ID, "leaves", "name", player.Name)
		g.tellRoom(room.ID, player.ID, "enters", "name", player.Name)
		if err := g.update(ctx, player, func(p *gamedb.Object) error {
			p.Location = room.ID
			return nil
		}); err != nil {
			return err
		}
	}
	return g.lookRoom(ctx, c, room)
}

// goHome takes the player home. Everything they carry goes to its own home.
func (g *Game) goHome(ctx context.Context, c *Call) error {
	player := c.Player
	home, err := g.load(ctx, g.homeOf(player), "dontSeeThat")
	if err != nil {
		return err
	}
	g.tellRoom(home.ID, player.ID, "goesHome", "name", player.Name)

	carried, err := g.findAll(ctx, gamedb.Where(gamedb.Eq(gamedb.FieldLocation, player.ID)))
	if err != nil {
		return err
	}
	for _, thing := range carried {
		if err := g.update(ctx, thing, func(t *gamedb.Object) error {
			if t.Location == player.ID {
				t.Location = g.homeOf(t)
			}
			return nil
		}); err != nil {
			return err
		}
	}

	for i := 0; i < 3; i++ {
		g.tell(c.Conn, "noPlaceLikeHome")
	}
	if err := g.update(ctx, player, func(p *gamedb.Object) error {
		p.Location = home.ID
		return nil
	}); err != nil {
		return err
	}
	g.tell(c.Conn, "goneHome")
	return g.lookRoom(ctx, c, home)
}

// homeOf returns obj's home, falling back to the default room.
func (g *Game) homeOf(obj *gamedb.Object) gamedb.DBRef {
	if obj.Target.Valid() {
		return obj.Target
	}
	return g.DefaultRoom
}

// --- look ---

func validateLook(ctx context.Context, g *Game, c *Call) error {
	if len(c.Args) > 1 {
		return gameerr.Input("unknownCommand")
	}
	if c.Arg(0) == "" {
		return nil
	}
	obj, err := g.Resolver.One(ctx, c.Player, resolve.Query{
		Name:            c.Arg(0),
		AllowMe:         true,
		AllowHere:       true,
		PreferDescribed: true,
	})
	if err != nil {
		return err
	}
	c.Target = obj
	return nil
}

func cmdLook(ctx context.Context, g *Game, c *Call) error {
	if c.Target == nil {
		return g.lookHere(ctx, c)
	}
	obj := c.Target
	switch obj.Type {
	case gamedb.TypeRoom:
		return g.lookRoom(ctx, c, obj)
	case gamedb.TypePlayer:
		g.lookSimple(c, obj)
		return g.lookContents(ctx, c, obj, "carrying")
	default:
		g.lookSimple(c, obj)
		return nil
	}
}

func (g *Game) lookHere(ctx context.Context, c *Call) error {
	room, err := g.load(ctx, c.Player.Location, "dontSeeThat")
	if err != nil {
		return err
	}
	return g.lookRoom(ctx, c, room)
}

func (g *Game) lookRoom(ctx context.Context, c *Call, room *gamedb.Object) error {
	id := idString(room.ID)
	if perms.IsLinkable(room, c.Player) {
		g.tell(c.Conn, "roomNameOwner", "name", room.Name, "id", id)
	} else {
		g.tell(c.Conn, "roomName", "name", room.Name, "id", id)
	}
	if room.HasDescription() {
		c.Conn.Send(room.Description)
	}
	// The room's lock only decides which message is shown.
	if _, err := g.Perms.CanDoIt(ctx, c.Player, room, ""); err != nil {
		return err
	}
	return g.lookContents(ctx, c, room, "contents")
}

func (g *Game) lookSimple(c *Call, obj *gamedb.Object) {
	if obj.HasDescription() {
		c.Conn.Send(obj.Description)
		return
	}
	g.tell(c.Conn, "nothingSpecial")
}

// lookContents lists what the viewer can see inside obj under header.
func (g *Game) lookContents(ctx context.Context, c *Call, obj *gamedb.Object, header string) error {
	contents, err := g.findAll(ctx, gamedb.Where(gamedb.Eq(gamedb.FieldLocation, obj.ID)))
	if err != nil {
		return err
	}
	var visible []*gamedb.Object
	for _, o := range contents {
		if perms.CanSee(c.Player, o) {
			visible = append(visible, o)
		}
	}
	if len(visible) == 0 {
		return nil
	}
	g.tell(c.Conn, header)
	for _, o := range visible {
		c.Conn.Send(o.Name)
	}
	return nil
}
