package server

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/crystal-mush/tinymud/pkg/crypt"
	"github.com/crystal-mush/tinymud/pkg/gamedb"
	"github.com/crystal-mush/tinymud/pkg/gameerr"
	"github.com/crystal-mush/tinymud/pkg/pathfind"
	"github.com/crystal-mush/tinymud/pkg/perms"
	"github.com/crystal-mush/tinymud/pkg/resolve"
)

// --- @create, @dig, @open ---

func cmdCreateThing(ctx context.Context, g *Game, c *Call) error {
	thing := gamedb.NewObject(gamedb.TypeThing, c.Arg(0))
	thing.Location = c.Player.ID
	thing.Target = c.Player.Target
	thing.Owner = c.Player.ID
	if _, err := g.create(ctx, thing); err != nil {
		return err
	}
	g.tell(c.Conn, "created")
	return nil
}

func cmdDig(ctx context.Context, g *Game, c *Call) error {
	room := gamedb.NewObject(gamedb.TypeRoom, c.Arg(0))
	room.Owner = c.Player.ID
	room, err := g.create(ctx, room)
	if err != nil {
		return err
	}
	g.tell(c.Conn, "roomCreated", "name", room.Name, "id", idString(room.ID))
	return nil
}

func cmdOpen(ctx context.Context, g *Game, c *Call) error {
	here, err := g.load(ctx, c.Player.Location, "dontSeeThat")
	if err != nil {
		return err
	}
	if !perms.Controls(c.Player, here) {
		return gameerr.Denied("permissionDenied")
	}
	exit := gamedb.NewObject(gamedb.TypeExit, c.Arg(0))
	exit.Location = here.ID
	exit.Owner = c.Player.ID
	if _, err := g.create(ctx, exit); err != nil {
		return err
	}
	g.tell(c.Conn, "opened")
	return nil
}

// --- @password ---

// Passwords are not trimmed; spaces may be part of them.
func validatePassword(_ context.Context, _ *Game, c *Call) error {
	oldPass, newPass, _ := strings.Cut(c.Arg(0), "=")
	c.Params = []string{oldPass, newPass}
	return nil
}

func cmdPassword(ctx context.Context, g *Game, c *Call) error {
	oldPass, newPass := c.Params[0], c.Params[1]
	if !crypt.CheckPassword(oldPass, c.Player.Password) || !isPasswordValid(newPass) {
		return gameerr.Input("changePasswordFail")
	}
	stored, err := g.storedPassword(newPass)
	if err != nil {
		return err
	}
	if err := g.update(ctx, c.Player, func(p *gamedb.Object) error {
		p.Password = stored
		return nil
	}); err != nil {
		return err
	}
	g.tell(c.Conn, "changePasswordSuccess")
	return nil
}

// --- @find ---

func cmdFind(ctx context.Context, g *Game, c *Call) error {
	found, err := g.findAll(ctx, gamedb.Where(
		gamedb.Like(gamedb.FieldName, c.Arg(0)),
		gamedb.Eq(gamedb.FieldOwner, c.Player.ID),
		gamedb.Ne(gamedb.FieldType, gamedb.TypePlayer),
	))
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return gameerr.Missing("notFound")
	}
	for _, o := range found {
		g.tell(c.Conn, "roomNameOwner", "name", o.Name, "id", idString(o.ID))
	}
	return nil
}

// --- @set ---

func validateSet(_ context.Context, _ *Game, c *Call) error {
	name, flag, err := splitAssign(c.Arg(0))
	if err != nil {
		return err
	}
	if _, ok := perms.FlagByName(strings.TrimPrefix(flag, "!")); !ok {
		return gameerr.Input("unknownCommand")
	}
	c.Params = []string{name, flag}
	return nil
}

// cmdSet matches by exact name anywhere in the world, not just nearby.
func cmdSet(ctx context.Context, g *Game, c *Call) error {
	name, flag := c.Params[0], c.Params[1]
	found, err := g.findAll(ctx, gamedb.Where(gamedb.Eq(gamedb.FieldName, name)))
	if err != nil {
		return err
	}
	switch len(found) {
	case 0:
		return gameerr.Missing("setUnknown")
	case 1:
		return g.applyFlag(ctx, c, found[0], flag)
	default:
		return gameerr.Ambig("ambigSet")
	}
}

// applyFlag sets "flag" or resets "!flag" on obj, which the player must own.
func (g *Game) applyFlag(ctx context.Context, c *Call, obj *gamedb.Object, flag string) error {
	if !perms.Controls(c.Player, obj) {
		return gameerr.Denied("permissionDenied")
	}
	name := strings.TrimPrefix(flag, "!")
	bit, _ := perms.FlagByName(name)
	label := propertyLabel(name)
	reset := strings.HasPrefix(flag, "!")
	if err := g.withObject(ctx, obj, func(fresh *gamedb.Object) error {
		if reset {
			return g.Perms.ResetFlag(ctx, fresh, bit)
		}
		return g.Perms.SetFlag(ctx, fresh, bit)
	}); err != nil {
		return err
	}
	if reset {
		g.tell(c.Conn, "reset", "property", label)
	} else {
		g.tell(c.Conn, "set", "property", label)
	}
	if obj.IsPlayer() {
		g.Sessions.Update(obj)
	}
	return nil
}

// --- @link, @unlink ---

func validateLink(ctx context.Context, g *Game, c *Call) error {
	name, dest, err := splitAssign(c.Arg(0))
	if err != nil {
		return err
	}
	if dest != "here" && dest != "home" {
		id, err := strconv.Atoi(strings.TrimPrefix(dest, "#"))
		if err != nil {
			return gameerr.Input("notARoom")
		}
		room, err := g.findOne(ctx, gamedb.ByID(gamedb.DBRef(id)).And(
			gamedb.Eq(gamedb.FieldType, gamedb.TypeRoom),
		))
		if err != nil {
			return err
		}
		if room == nil {
			return gameerr.Input("notARoom")
		}
	}

	found, err := g.Resolver.Many(ctx, c.Player, resolve.Query{Name: name, AllowMe: true, AllowHere: true})
	if err != nil {
		return err
	}
	switch len(found) {
	case 0:
		return gameerr.Input("unknownCommand")
	case 1:
	default:
		return gameerr.Ambig("ambigSet")
	}
	c.Target = found[0]
	c.Params = []string{name, dest}
	return nil
}

// linkDest resolves the right-hand side of @link to a room id.
func linkDest(player *gamedb.Object, dest string) gamedb.DBRef {
	switch dest {
	case "home":
		return player.Target
	case "here":
		return player.Location
	}
	id, _ := strconv.Atoi(strings.TrimPrefix(dest, "#"))
	return gamedb.DBRef(id)
}

func cmdLink(ctx context.Context, g *Game, c *Call) error {
	obj, name, dest := c.Target, c.Params[0], c.Params[1]
	player := c.Player

	switch {
	case obj.IsExit():
		room, err := g.load(ctx, linkDest(player, dest), "notARoom")
		if err != nil {
			return err
		}
		if !perms.IsLinkable(room, player) {
			return gameerr.Denied("permissionDenied")
		}
		// Someone else may have linked it since it was found.
		if err := g.update(ctx, obj, func(exit *gamedb.Object) error {
			if exit.Target.Valid() {
				return gameerr.Denied("permissionDenied")
			}
			exit.Target = room.ID
			exit.Owner = player.ID
			return nil
		}); err != nil {
			return err
		}
		g.tell(c.Conn, "linked")

	case obj.IsThing() || name == "me":
		room, err := g.load(ctx, linkDest(player, dest), "notARoom")
		if err != nil {
			return err
		}
		if !perms.Controls(player, obj) || !perms.IsLinkable(room, player) {
			return gameerr.Denied("permissionDenied")
		}
		if err := g.update(ctx, obj, func(o *gamedb.Object) error {
			o.Target = room.ID
			return nil
		}); err != nil {
			return err
		}
		g.tell(c.Conn, "homeSet")

	case obj.IsRoom() || name == "here":
		if !perms.Controls(player, obj) {
			return gameerr.Denied("permissionDenied")
		}
		// Linking a room to "home" makes it a temple.
		if dest == "home" {
			return g.applyFlag(ctx, c, obj, "temple")
		}
		room, err := g.load(ctx, linkDest(player, dest), "notARoom")
		if err != nil {
			return err
		}
		if !perms.IsLinkable(room, player) {
			return gameerr.Denied("permissionDenied")
		}
		if err := g.update(ctx, obj, func(o *gamedb.Object) error {
			o.Target = room.ID
			return nil
		}); err != nil {
			return err
		}
		g.tell(c.Conn, "linked")

	default:
		return gameerr.Input("unknownCommand")
	}
	return nil
}

func cmdUnlink(ctx context.Context, g *Game, c *Call) error {
	name := c.Arg(0)
	found, err := g.Resolver.Many(ctx, c.Player, resolve.Query{Name: name, AllowHere: true})
	if err != nil {
		return err
	}
	var matches []*gamedb.Object
	for _, o := range found {
		if (o.IsExit() && o.Name == name) || o.IsRoom() {
			matches = append(matches, o)
		}
	}
	switch len(matches) {
	case 0:
		return gameerr.Missing("unlinkUnknown")
	case 1:
	default:
		return gameerr.Ambig("ambigSet")
	}
	obj := matches[0]
	if !perms.Controls(c.Player, obj) {
		return gameerr.Denied("permissionDenied")
	}
	if err := g.update(ctx, obj, func(o *gamedb.Object) error {
		o.Target = gamedb.Nothing
		return nil
	}); err != nil {
		return err
	}
	g.tell(c.Conn, "unlinked")
	return nil
}

// --- @lock, @unlock ---

func validateLock(_ context.Context, _ *Game, c *Call) error {
	lock, key, err := splitAssign(c.Arg(0))
	if err != nil {
		return err
	}
	c.Params = []string{lock, key}
	return nil
}

// exactInScope resolves name to objects named exactly name near player.
// "me" and "here" stand for the player and the room.
func (g *Game) exactInScope(ctx context.Context, player *gamedb.Object, name string) ([]*gamedb.Object, error) {
	found, err := g.Resolver.Many(ctx, player, resolve.Query{Name: name, AllowMe: true, AllowHere: true})
	if err != nil {
		return nil, err
	}
	special := name == "me" || name == "here"
	var out []*gamedb.Object
	for _, o := range found {
		if (special || o.Name == name) && inScope(player, o) {
			out = append(out, o)
		}
	}
	return out, nil
}

func cmdLock(ctx context.Context, g *Game, c *Call) error {
	lockName, keyName := c.Params[0], c.Params[1]

	locks, err := g.exactInScope(ctx, c.Player, lockName)
	if err != nil {
		return err
	}
	switch len(locks) {
	case 0:
		return gameerr.Missing("lockUnknown")
	case 1:
	default:
		return gameerr.Ambig("ambigSet")
	}
	lock := locks[0]
	if !perms.Controls(c.Player, lock) {
		return gameerr.Denied("permissionDenied")
	}

	keys, err := g.exactInScope(ctx, c.Player, keyName)
	if err != nil {
		return err
	}
	switch len(keys) {
	case 0:
		return gameerr.Missing("keyUnknown")
	case 1:
	default:
		return gameerr.Ambig("ambigSet")
	}

	key := keys[0].ID
	if err := g.update(ctx, lock, func(o *gamedb.Object) error {
		o.Key = key
		return nil
	}); err != nil {
		return err
	}
	g.tell(c.Conn, "locked")
	return nil
}

func cmdUnlock(ctx context.Context, g *Game, c *Call) error {
	found, err := g.findAll(ctx, gamedb.Where(gamedb.Eq(gamedb.FieldName, c.Arg(0))).Or(
		gamedb.Eq(gamedb.FieldLocation, c.Player.Location),
		gamedb.Eq(gamedb.FieldLocation, c.Player.ID),
	))
	if err != nil {
		return err
	}
	switch len(found) {
	case 0:
		return gameerr.Missing("unlockUnknown")
	case 1:
	default:
		return gameerr.Ambig("ambigSet")
	}
	obj := found[0]
	if !perms.Controls(c.Player, obj) {
		return gameerr.Denied("permissionDenied")
	}
	if err := g.update(ctx, obj, func(o *gamedb.Object) error {
		o.Key = gamedb.Nothing
		return nil
	}); err != nil {
		return err
	}
	g.tell(c.Conn, "unlocked")
	return nil
}

// --- @path ---

func validatePath(ctx context.Context, g *Game, c *Call) error {
	dest, err := g.findOne(ctx, gamedb.Where(
		gamedb.Eq(gamedb.FieldName, c.Arg(0)),
		gamedb.Eq(gamedb.FieldType, gamedb.TypeRoom),
	))
	if err != nil {
		return err
	}
	if dest == nil {
		return gameerr.Missing("notFound")
	}
	c.Target = dest
	return nil
}

func cmdPath(ctx context.Context, g *Game, c *Call) error {
	dest := c.Target
	g.Metrics.pathSearches.Inc()
	path, err := g.Paths.FindPath(ctx, c.Player.Location, dest.ID)
	if errors.Is(err, pathfind.ErrNoPath) {
		return gameerr.Missing("notFound")
	}
	if err != nil {
		return gameerr.Store("find path", err)
	}
	g.Metrics.pathLength.Observe(float64(len(path)))
	if len(path) == 1 {
		return gameerr.Input("alreadyThere")
	}

	steps, err := g.Paths.Route(ctx, path)
	if err != nil {
		return gameerr.Store("route", err)
	}
	g.tell(c.Conn, "pathHeader", "from", steps[0].Room.Name, "to", dest.Name)
	for _, s := range steps {
		c.Conn.Send(s.Room.Name)
		if s.Via != nil {
			g.tell(c.Conn, "via", "name", s.Via.Name)
		}
	}
	return nil
}
