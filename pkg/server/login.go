package server

import (
	"context"

	"github.com/crystal-mush/tinymud/pkg/crypt"
	"github.com/crystal-mush/tinymud/pkg/gamedb"
	"github.com/crystal-mush/tinymud/pkg/gameerr"
	"github.com/crystal-mush/tinymud/pkg/session"
)

func playerNamed(name string) gamedb.Predicate {
	return gamedb.Where(
		gamedb.Eq(gamedb.FieldType, gamedb.TypePlayer),
		gamedb.Eq(gamedb.FieldName, name),
	)
}

// storedPassword returns what to persist for a new password. A password
// that looks like a hash is always hashed, so it is never compared as one.
func (g *Game) storedPassword(password string) (string, error) {
	if !g.Conf.HashPasswords && !crypt.IsHashed(password) {
		return password, nil
	}
	hash, err := crypt.HashPassword(password)
	if err != nil {
		return "", gameerr.Store("hash password", err)
	}
	return hash, nil
}

func validateCreate(ctx context.Context, g *Game, c *Call) error {
	name, password := c.Arg(0), c.Arg(1)
	if !isUsernameValid(name) {
		return gameerr.Input("badUsername")
	}
	if !isPasswordValid(password) {
		return gameerr.Input("badPassword")
	}
	existing, err := g.findOne(ctx, playerNamed(name))
	if err != nil {
		return err
	}
	if existing != nil {
		return gameerr.Input("usernameInUse")
	}
	return nil
}

func cmdCreate(ctx context.Context, g *Game, c *Call) error {
	password, err := g.storedPassword(c.Arg(1))
	if err != nil {
		return err
	}
	player, err := g.createPlayer(ctx, c.Arg(0), password)
	if err != nil {
		return err
	}
	return g.login(ctx, c, player)
}

// createPlayer makes a player that owns itself. The name is checked again
// here: another connection may have taken it since validation.
func (g *Game) createPlayer(ctx context.Context, name, password string) (*gamedb.Object, error) {
	g.names.Lock()
	defer g.names.Unlock()
	existing, err := g.findOne(ctx, playerNamed(name))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, gameerr.Input("usernameInUse")
	}

	p := gamedb.NewObject(gamedb.TypePlayer, name)
	p.Password = password
	p.Location = g.DefaultRoom
	p.Target = g.DefaultRoom
	player, err := g.create(ctx, p)
	if err != nil {
		return nil, err
	}
	// A player owns itself, which needs its id first.
	player.Owner = player.ID
	if err := g.save(ctx, player); err != nil {
		return nil, err
	}
	return player, nil
}

func validateConnect(ctx context.Context, g *Game, c *Call) error {
	player, err := g.findOne(ctx, playerNamed(c.Arg(0)))
	if err != nil {
		return err
	}
	if player == nil {
		return gameerr.Missing("playerNotFound")
	}
	if !crypt.CheckPassword(c.Arg(1), player.Password) {
		return gameerr.Input("incorrectPassword")
	}
	c.Target = player
	return nil
}

func cmdConnect(ctx context.Context, g *Game, c *Call) error {
	player := c.Target
	// Only one session per player: kick the old one.
	g.Sessions.ForEach(func(conn session.Conn, active *gamedb.Object) bool {
		if active.Name == player.Name {
			g.deactivate(conn)
			conn.Close()
			return false
		}
		return true
	})
	return g.login(ctx, c, player)
}

func cmdQuit(_ context.Context, _ *Game, c *Call) error {
	c.Conn.Close()
	return nil
}

func cmdWho(_ context.Context, g *Game, c *Call) error {
	g.Sessions.ForEach(func(conn session.Conn, p *gamedb.Object) bool {
		if conn != c.Conn {
			c.Conn.Send(p.Name)
		}
		return true
	})
	return nil
}
