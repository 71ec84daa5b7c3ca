package server

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/tinymud/pkg/fixture"
	"github.com/crystal-mush/tinymud/pkg/gamedb"
	"github.com/crystal-mush/tinymud/pkg/gameerr"
	"github.com/crystal-mush/tinymud/pkg/messages"
	"github.com/crystal-mush/tinymud/pkg/pathfind"
	"github.com/crystal-mush/tinymud/pkg/perms"
	"github.com/crystal-mush/tinymud/pkg/resolve"
	"github.com/crystal-mush/tinymud/pkg/session"
)

// Game holds the world and everything a command needs to act on it.
type Game struct {
	Store    gamedb.Store
	Sessions *session.Registry
	Resolver *resolve.Resolver
	Perms    *perms.Engine
	Paths    *pathfind.ExitGraph
	Msgs     *messages.Catalog
	Conf     *GameConf
	Commands *CommandTable
	Metrics  *Metrics

	DefaultRoom gamedb.DBRef

	// Roll returns a number in [0, 100). Tests replace it.
	Roll func() int

	// objects guards each object's load-modify-save in update. Commands
	// otherwise run concurrently across connections.
	objects *refLocks
	// names makes checking a new player name and creating it one step.
	names sync.Mutex
}

// NewGame wires a game around store. conf may be nil for defaults.
func NewGame(store gamedb.Store, conf *GameConf) *Game {
	if conf == nil {
		conf = DefaultGameConf()
	}
	sessions := session.NewRegistry()
	g := &Game{
		Store:       store,
		Sessions:    sessions,
		Resolver:    resolve.New(store),
		Perms:       perms.New(store, sessions),
		Paths:       pathfind.NewExitGraph(store),
		Msgs:        messages.New(),
		Conf:        conf,
		Commands:    InitCommands(),
		DefaultRoom: gamedb.DBRef(conf.DefaultRoom),
		Roll:        func() int { return rand.IntN(100) },
		objects:     newRefLocks(),
	}
	g.Metrics = NewMetrics(g, time.Now())
	return g
}

// Init finds the default room, seeding the built-in world when the store
// does not have one yet.
func (g *Game) Init(ctx context.Context) error {
	room, err := g.Store.FindOne(ctx, gamedb.ByID(g.DefaultRoom))
	if err != nil {
		return fmt.Errorf("server: load default room: %w", err)
	}
	if room == nil {
		n, err := fixture.Load(ctx, g.Store, fixture.Default())
		if err != nil {
			return fmt.Errorf("server: seed default world: %w", err)
		}
		log.Printf("server: seeded %d objects from the default world", n)
		if room, err = g.Store.FindOne(ctx, gamedb.ByID(g.DefaultRoom)); err != nil {
			return fmt.Errorf("server: load default room: %w", err)
		}
	}
	if room == nil || !room.IsRoom() {
		return fmt.Errorf("server: default room #%d is missing or not a room", g.DefaultRoom)
	}
	log.Printf("server: default room is #%d (%s)", room.ID, room.Name)
	return nil
}

// --- Output helpers ---

func pairs(kv []string) map[string]string {
	if len(kv) == 0 {
		return nil
	}
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return m
}

// text renders a catalog entry. kv holds alternating names and values.
func (g *Game) text(key string, kv ...string) string {
	return g.Msgs.Render(key, pairs(kv))
}

func (g *Game) tell(c session.Conn, key string, kv ...string) {
	c.Send(g.text(key, kv...))
}

// tellRoom sends to every active player in room except the given player.
func (g *Game) tellRoom(room, except gamedb.DBRef, key string, kv ...string) {
	g.Sessions.SendToRoom(room, except, g.text(key, kv...))
}

// broadcastExcept sends to every active session but conn.
func (g *Game) broadcastExcept(conn session.Conn, key string, kv ...string) {
	msg := g.text(key, kv...)
	g.Sessions.ForEach(func(other session.Conn, _ *gamedb.Object) bool {
		if other != conn {
			other.Send(msg)
		}
		return true
	})
}

// Splash shows the login screen.
func (g *Game) Splash(c session.Conn) {
	g.tell(c, "loginPrompt", "mudName", g.Conf.MudName)
}

func (g *Game) clearScreen(c session.Conn) {
	for i := 0; i < g.Conf.ClearScreenLines; i++ {
		c.Send("")
	}
}

// --- Store helpers ---

// load fetches an object by id. A missing object is a NotFound failure
// with the given message key.
func (g *Game) load(ctx context.Context, ref gamedb.DBRef, missingKey string) (*gamedb.Object, error) {
	obj, err := g.Store.FindOne(ctx, gamedb.ByID(ref))
	if err != nil {
		return nil, gameerr.Store(fmt.Sprintf("load #%d", ref), err)
	}
	if obj == nil {
		return nil, gameerr.Missing(missingKey)
	}
	return obj, nil
}

func (g *Game) findAll(ctx context.Context, p gamedb.Predicate) ([]*gamedb.Object, error) {
	objs, err := g.Store.FindAll(ctx, p)
	if err != nil {
		return nil, gameerr.Store("find", err)
	}
	return objs, nil
}

func (g *Game) findOne(ctx context.Context, p gamedb.Predicate) (*gamedb.Object, error) {
	obj, err := g.Store.FindOne(ctx, p)
	if err != nil {
		return nil, gameerr.Store("find", err)
	}
	return obj, nil
}

func (g *Game) create(ctx context.Context, obj *gamedb.Object) (*gamedb.Object, error) {
	created, err := g.Store.Create(ctx, obj)
	if err != nil {
		return nil, gameerr.Store("create "+obj.Type.String(), err)
	}
	return created, nil
}

// save writes obj back and refreshes the session cache when obj is a
// logged-in player.
func (g *Game) save(ctx context.Context, obj *gamedb.Object) error {
	if err := g.Store.Save(ctx, obj); err != nil {
		return gameerr.Store(fmt.Sprintf("save #%d", obj.ID), err)
	}
	if obj.IsPlayer() {
		g.Sessions.Update(obj)
	}
	return nil
}

// update applies change to the freshly stored copy of obj while holding
// obj's lock, then saves it. Other fields written concurrently survive, and
// change can check that the object is still where the command saw it. obj
// is refreshed with what was saved. A change error saves nothing.
func (g *Game) update(ctx context.Context, obj *gamedb.Object, change func(fresh *gamedb.Object) error) error {
	return g.withObject(ctx, obj, func(fresh *gamedb.Object) error {
		if err := change(fresh); err != nil {
			return err
		}
		return g.save(ctx, fresh)
	})
}

// withObject runs fn on a fresh copy of obj under obj's lock and copies
// the result back into obj when fn succeeds.
func (g *Game) withObject(ctx context.Context, obj *gamedb.Object, fn func(fresh *gamedb.Object) error) error {
	unlock := g.objects.lock(obj.ID)
	defer unlock()

	fresh, err := g.Store.FindOne(ctx, gamedb.ByID(obj.ID))
	if err != nil {
		return gameerr.Store(fmt.Sprintf("load #%d", obj.ID), err)
	}
	if fresh == nil {
		fresh = obj.Clone()
	}
	if err := fn(fresh); err != nil {
		return err
	}
	*obj = *fresh
	return nil
}

// --- Sessions ---

// login activates player on conn and shows them where they are.
func (g *Game) login(ctx context.Context, c *Call, player *gamedb.Object) error {
	g.Sessions.Activate(c.Conn, player)
	c.Player = player
	g.broadcastExcept(c.Conn, "hasConnected", "name", player.Name)
	g.clearScreen(c.Conn)
	if d, ok := c.Conn.(*Descriptor); ok {
		log.Printf("[%d] %s connected as #%d (%s)", d.ID, d.SessionID, player.ID, player.Name)
	}
	g.Metrics.playersConnected.Set(float64(g.Sessions.Len()))
	return g.lookHere(ctx, c)
}

// deactivate removes conn's session and tells everyone else.
func (g *Game) deactivate(conn session.Conn) {
	player, ok := g.Sessions.Deactivate(conn)
	if !ok {
		return
	}
	g.broadcastExcept(conn, "hasDisconnected", "name", player.Name)
	g.Metrics.playersConnected.Set(float64(g.Sessions.Len()))
}

// Disconnect is called by transports when a connection ends.
func (g *Game) Disconnect(conn session.Conn) {
	g.deactivate(conn)
}

// sameName reports whether all objs share one name.
func sameName(objs []*gamedb.Object) bool {
	for _, o := range objs[1:] {
		if o.Name != objs[0].Name {
			return false
		}
	}
	return true
}

// inScope reports whether obj is the player's room, in it, or carried.
func inScope(player, obj *gamedb.Object) bool {
	return obj.Location == player.ID || obj.Location == player.Location || obj.ID == player.Location
}

func idString(r gamedb.DBRef) string { return strconv.Itoa(int(r)) }

func refString(r gamedb.DBRef) string {
	if !r.Valid() {
		return "none"
	}
	return fmt.Sprintf("#%d", r)
}

func flagString(o *gamedb.Object) string {
	var names []string
	for _, n := range []string{"link_ok", "anti_lock", "temple"} {
		if bit, _ := perms.FlagByName(n); o.HasFlag(bit) {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, " ")
}
