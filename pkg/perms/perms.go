// Package perms decides whether a player may use, link or edit an object.
package perms

import (
	"context"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
	"github.com/crystal-mush/tinymud/pkg/gameerr"
	"github.com/crystal-mush/tinymud/pkg/session"
)

// Engine evaluates locks against the store and delivers the lock
// messages of the object being used.
type Engine struct {
	store    gamedb.Store
	sessions *session.Registry
}

// New creates an Engine.
func New(store gamedb.Store, sessions *session.Registry) *Engine {
	return &Engine{store: store, sessions: sessions}
}

// CouldDoIt evaluates thing's lock for player without any side effects.
func (e *Engine) CouldDoIt(ctx context.Context, player, thing *gamedb.Object) (bool, error) {
	// Only rooms may float free; anything else without a location is gone.
	if !thing.IsRoom() && !thing.Location.Valid() {
		return false, nil
	}
	if thing.IsExit() && !thing.Target.Valid() {
		return false, nil
	}
	if !thing.Key.Valid() {
		return true, nil
	}
	anti := thing.HasFlag(gamedb.FlagAntiLock)
	if player.ID == thing.Key {
		return !anti, nil
	}
	carried, err := e.carries(ctx, player, thing.Key)
	if err != nil {
		return false, err
	}
	return carried != anti, nil
}

func (e *Engine) carries(ctx context.Context, player *gamedb.Object, key gamedb.DBRef) (bool, error) {
	obj, err := e.store.FindOne(ctx, gamedb.Where(
		gamedb.Eq(gamedb.FieldLocation, player.ID),
		gamedb.Eq(gamedb.FieldID, key),
	))
	if err != nil {
		return false, gameerr.Store("perms: key lookup", err)
	}
	return obj != nil, nil
}

// CanDoIt runs CouldDoIt and sends thing's success or failure messages to
// player and the others in the room. defaultFail is used when thing has no
// failure message of its own. A player with no live session can do nothing.
func (e *Engine) CanDoIt(ctx context.Context, player, thing *gamedb.Object, defaultFail string) (bool, error) {
	conn := e.sessions.ConnectionOf(player.ID)
	if conn == nil {
		return false, nil
	}
	ok, err := e.CouldDoIt(ctx, player, thing)
	if err != nil {
		return false, err
	}

	mine, others := thing.SuccessMessage, thing.OthersSuccessMessage
	if !ok {
		mine, others = thing.FailureMessage, thing.OthersFailureMessage
		if mine == "" {
			mine = defaultFail
		}
	}
	if mine != "" {
		conn.Send(mine)
	}
	if others != "" {
		e.sessions.SendToRoom(player.Location, player.ID, player.Name+" "+others)
	}
	return ok, nil
}

// SetFlag sets flag on obj and saves it.
func (e *Engine) SetFlag(ctx context.Context, obj *gamedb.Object, flag int) error {
	obj.SetFlag(flag)
	if err := e.store.Save(ctx, obj); err != nil {
		return gameerr.Store("perms: set flag", err)
	}
	return nil
}

// ResetFlag clears flag on obj and saves it.
func (e *Engine) ResetFlag(ctx context.Context, obj *gamedb.Object, flag int) error {
	obj.ResetFlag(flag)
	if err := e.store.Save(ctx, obj); err != nil {
		return gameerr.Store("perms: reset flag", err)
	}
	return nil
}

// IsLinkable reports whether player may point something at room.
func IsLinkable(room, player *gamedb.Object) bool {
	return Controls(player, room) || room.HasFlag(gamedb.FlagLinkOK)
}

// Controls reports whether player owns obj.
func Controls(player, obj *gamedb.Object) bool {
	return obj.Owner == player.ID
}

// CanSee reports whether thing shows up in player's contents listings.
// Exits and the viewer are never listed.
func CanSee(player, thing *gamedb.Object) bool {
	return !thing.IsExit() && thing.ID != player.ID
}

// FlagByName maps the names accepted by @set to flag bits.
func FlagByName(name string) (int, bool) {
	switch name {
	case "link_ok":
		return gamedb.FlagLinkOK, true
	case "anti_lock":
		return gamedb.FlagAntiLock, true
	case "temple":
		return gamedb.FlagTemple, true
	}
	return 0, false
}
