package perms

import (
	"context"
	"testing"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
	"github.com/crystal-mush/tinymud/pkg/session"
)

type recConn struct{ sent []string }

func (c *recConn) Send(msg string) { c.sent = append(c.sent, msg) }
func (c *recConn) Close()          {}

type testEnv struct {
	db       *gamedb.Database
	sessions *session.Registry
	eng      *Engine
	room     *gamedb.Object
	player   *gamedb.Object
	conn     *recConn
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := gamedb.NewDatabase()
	reg := session.NewRegistry()
	env := &testEnv{db: db, sessions: reg, eng: New(db, reg), conn: &recConn{}}
	env.room = env.add(t, gamedb.TypeRoom, "Hall", gamedb.Nothing)
	env.player = env.add(t, gamedb.TypePlayer, "Ann", env.room.ID)
	reg.Activate(env.conn, env.player)
	return env
}

func (e *testEnv) add(t *testing.T, typ gamedb.ObjectType, name string, loc gamedb.DBRef) *gamedb.Object {
	t.Helper()
	o := gamedb.NewObject(typ, name)
	o.Location = loc
	created, err := e.db.Create(context.Background(), o)
	if err != nil {
		t.Fatal(err)
	}
	return created
}

func TestCouldDoItTruthTable(t *testing.T) {
	tests := []struct {
		name string
		key  string // "", "player", "carried", "elsewhere"
		anti bool
		want bool
	}{
		{"no key", "", false, true},
		{"player is key", "player", false, true},
		{"player is key anti", "player", true, false},
		{"key carried", "carried", false, true},
		{"key carried anti", "carried", true, false},
		{"key not carried", "elsewhere", false, false},
		{"key not carried anti", "elsewhere", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			door := env.add(t, gamedb.TypeThing, "door", env.room.ID)
			switch tt.key {
			case "player":
				door.Key = env.player.ID
			case "carried":
				door.Key = env.add(t, gamedb.TypeThing, "key", env.player.ID).ID
			case "elsewhere":
				door.Key = env.add(t, gamedb.TypeThing, "key", env.room.ID).ID
			}
			if tt.anti {
				door.SetFlag(gamedb.FlagAntiLock)
			}
			got, err := env.eng.CouldDoIt(ctx, env.player, door)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("CouldDoIt = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCouldDoItUnplacedAndUnlinked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ghost := env.add(t, gamedb.TypeThing, "ghost", gamedb.Nothing)
	if ok, _ := env.eng.CouldDoIt(ctx, env.player, ghost); ok {
		t.Error("thing with no location should be denied")
	}
	if ok, _ := env.eng.CouldDoIt(ctx, env.player, env.room); !ok {
		t.Error("top-level room should be allowed")
	}
	exit := env.add(t, gamedb.TypeExit, "out", env.room.ID)
	if ok, _ := env.eng.CouldDoIt(ctx, env.player, exit); ok {
		t.Error("unlinked exit should be denied")
	}
	exit.Target = env.room.ID
	if ok, _ := env.eng.CouldDoIt(ctx, env.player, exit); !ok {
		t.Error("linked unlocked exit should be allowed")
	}
}

func TestCanDoItMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	other := env.add(t, gamedb.TypePlayer, "Bob", env.room.ID)
	otherConn := &recConn{}
	env.sessions.Activate(otherConn, other)

	door := env.add(t, gamedb.TypeThing, "door", env.room.ID)
	door.Key = env.add(t, gamedb.TypeThing, "key", env.room.ID).ID
	door.OthersFailureMessage = "rattles the door."

	ok, err := env.eng.CanDoIt(ctx, env.player, door, "It's locked.")
	if err != nil || ok {
		t.Fatalf("CanDoIt = %v, %v; want false", ok, err)
	}
	if len(env.conn.sent) != 1 || env.conn.sent[0] != "It's locked." {
		t.Errorf("actor got %v", env.conn.sent)
	}
	if len(otherConn.sent) != 1 || otherConn.sent[0] != "Ann rattles the door." {
		t.Errorf("bystander got %v", otherConn.sent)
	}

	env.conn.sent, otherConn.sent = nil, nil
	door.Key = gamedb.Nothing
	door.SuccessMessage = "You open the door."
	ok, _ = env.eng.CanDoIt(ctx, env.player, door, "It's locked.")
	if !ok {
		t.Fatal("unlocked door should pass")
	}
	if len(env.conn.sent) != 1 || env.conn.sent[0] != "You open the door." {
		t.Errorf("actor got %v", env.conn.sent)
	}
	if len(otherConn.sent) != 0 {
		t.Errorf("no others-success message configured, bystander got %v", otherConn.sent)
	}
}

func TestCanDoItOffline(t *testing.T) {
	env := newTestEnv(t)
	offline := env.add(t, gamedb.TypePlayer, "Zed", env.room.ID)
	ok, err := env.eng.CanDoIt(context.Background(), offline, env.room, "no")
	if err != nil || ok {
		t.Errorf("offline player = %v, %v", ok, err)
	}
}

func TestSetResetFlagPersists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.room.Clone()
	if err := env.eng.SetFlag(ctx, room, gamedb.FlagLinkOK); err != nil {
		t.Fatal(err)
	}
	stored, _ := env.db.FindOne(ctx, gamedb.ByID(room.ID))
	if !stored.HasFlag(gamedb.FlagLinkOK) {
		t.Error("SetFlag should persist")
	}
	if err := env.eng.ResetFlag(ctx, room, gamedb.FlagLinkOK); err != nil {
		t.Fatal(err)
	}
	stored, _ = env.db.FindOne(ctx, gamedb.ByID(room.ID))
	if stored.HasFlag(gamedb.FlagLinkOK) {
		t.Error("ResetFlag should persist")
	}
}

func TestIsLinkable(t *testing.T) {
	owner := gamedb.NewObject(gamedb.TypePlayer, "O")
	owner.ID = 2
	stranger := gamedb.NewObject(gamedb.TypePlayer, "S")
	stranger.ID = 3
	room := gamedb.NewObject(gamedb.TypeRoom, "R")
	room.ID = 1
	room.Owner = owner.ID

	if !IsLinkable(room, owner) {
		t.Error("owner can always link")
	}
	if IsLinkable(room, stranger) {
		t.Error("stranger cannot link without link_ok")
	}
	room.SetFlag(gamedb.FlagLinkOK)
	if !IsLinkable(room, stranger) {
		t.Error("link_ok lets anyone link")
	}
}

func TestFlagByName(t *testing.T) {
	if f, ok := FlagByName("temple"); !ok || f != gamedb.FlagTemple {
		t.Errorf("temple = %d, %v", f, ok)
	}
	if _, ok := FlagByName("wizard"); ok {
		t.Error("unknown flag accepted")
	}
}
