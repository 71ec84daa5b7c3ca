package server

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
)

// testEnv holds the shared test infrastructure.
type testEnv struct {
	t    *testing.T
	game *Game
	db   *gamedb.Database

	lobby, garden gamedb.DBRef
}

// client is an in-process connection that records everything sent to it.
type client struct {
	d   *Descriptor
	mu  sync.Mutex
	out []string
}

type envOption func(*GameConf, *gamedb.Store)

func withConf(fn func(*GameConf)) envOption {
	return func(c *GameConf, _ *gamedb.Store) { fn(c) }
}

func withStore(wrap func(gamedb.Store) gamedb.Store) envOption {
	return func(_ *GameConf, s *gamedb.Store) { *s = wrap(*s) }
}

// newTestEnv creates a minimal world:
//   - Room #1 (Lobby), described
//   - Room #2 (Garden)
//   - Exit #3 (north) from Lobby to Garden
//   - Exit #4 (south) from Garden to Lobby
//
// None of them has an owner. Players are created through the create command.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	db := gamedb.NewDatabase()

	lobby := gamedb.NewObject(gamedb.TypeRoom, "Lobby")
	lobby.ID = 1
	lobby.Description = "A plain lobby."
	db.Put(lobby)

	garden := gamedb.NewObject(gamedb.TypeRoom, "Garden")
	garden.ID = 2
	db.Put(garden)

	north := gamedb.NewObject(gamedb.TypeExit, "north")
	north.ID = 3
	north.Location = 1
	north.Target = 2
	db.Put(north)

	south := gamedb.NewObject(gamedb.TypeExit, "south")
	south.ID = 4
	south.Location = 2
	south.Target = 1
	db.Put(south)

	conf := DefaultGameConf()
	conf.ClearScreenLines = 0
	var store gamedb.Store = db
	for _, o := range opts {
		o(conf, &store)
	}

	g := NewGame(store, conf)
	if err := g.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return &testEnv{t: t, game: g, db: db, lobby: 1, garden: 2}
}

// connect opens an anonymous connection.
func (e *testEnv) connect() *client {
	c := &client{}
	c.d = newDescriptor(TransportInternal, "test")
	c.d.SendFunc = func(msg string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.out = append(c.out, msg)
	}
	return c
}

// login creates a player with password "secret" and drains the login output.
func (e *testEnv) login(name string) *client {
	e.t.Helper()
	c := e.connect()
	e.do(c, "create "+name+" secret")
	if e.game.Sessions.ByConnection(c.d) == nil {
		e.t.Fatalf("create %s did not log in: %q", name, c.output())
	}
	c.output()
	return c
}

// do dispatches one line and fails the test on a store failure.
func (e *testEnv) do(c *client, line string) {
	e.t.Helper()
	if err := e.game.DispatchCommand(context.Background(), c.d, line); err != nil {
		e.t.Fatalf("DispatchCommand(%q): %v", line, err)
	}
}

// run dispatches line and returns what c received.
func (e *testEnv) run(c *client, line string) string {
	e.t.Helper()
	c.output()
	e.do(c, line)
	return c.output()
}

// output returns and clears everything c has received, one line per send.
func (c *client) output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := strings.Join(c.out, "\n")
	c.out = nil
	return s
}

// player returns the stored copy of the player logged in on c.
func (e *testEnv) player(c *client) *gamedb.Object {
	e.t.Helper()
	cached := e.game.Sessions.ByConnection(c.d)
	if cached == nil {
		e.t.Fatal("client is not logged in")
	}
	return e.get(cached.ID)
}

func (e *testEnv) get(ref gamedb.DBRef) *gamedb.Object {
	e.t.Helper()
	obj, ok := e.db.Get(ref)
	if !ok {
		e.t.Fatalf("object #%d not found", ref)
	}
	return obj
}

// named returns the only object called name.
func (e *testEnv) named(name string) *gamedb.Object {
	e.t.Helper()
	found, err := e.db.FindAll(context.Background(), gamedb.Where(gamedb.Eq(gamedb.FieldName, name)))
	if err != nil {
		e.t.Fatal(err)
	}
	if len(found) != 1 {
		e.t.Fatalf("expected one object named %q, found %d", name, len(found))
	}
	return found[0]
}

// put stores obj with the next free id and returns it.
func (e *testEnv) put(obj *gamedb.Object) *gamedb.Object {
	e.t.Helper()
	created, err := e.db.Create(context.Background(), obj)
	if err != nil {
		e.t.Fatal(err)
	}
	return created
}

// save writes obj straight to the store, bypassing the game.
func (e *testEnv) save(obj *gamedb.Object) {
	e.t.Helper()
	if err := e.db.Save(context.Background(), obj); err != nil {
		e.t.Fatal(err)
	}
}

// metricValue sums every sample of the named metric.
func metricValue(t *testing.T, m *Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var sum float64
		for _, s := range f.GetMetric() {
			if c := s.GetCounter(); c != nil {
				sum += c.GetValue()
			}
			if g := s.GetGauge(); g != nil {
				sum += g.GetValue()
			}
		}
		return sum
	}
	return 0
}
