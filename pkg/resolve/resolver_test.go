package resolve

import (
	"context"
	"testing"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
	"github.com/crystal-mush/tinymud/pkg/gameerr"
)

type testEnv struct {
	db     *gamedb.Database
	r      *Resolver
	room   *gamedb.Object
	player *gamedb.Object
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := gamedb.NewDatabase()
	env := &testEnv{db: db, r: New(db)}
	env.room = env.add(t, gamedb.TypeRoom, "Zepler Foyer", gamedb.Nothing)
	env.player = env.add(t, gamedb.TypePlayer, "Wizard", env.room.ID)
	return env
}

func (e *testEnv) add(t *testing.T, typ gamedb.ObjectType, name string, loc gamedb.DBRef) *gamedb.Object {
	t.Helper()
	o := gamedb.NewObject(typ, name)
	o.Location = loc
	created, err := e.db.Create(context.Background(), o)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return created
}

func TestManyMeAndHere(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	got, err := env.r.Many(ctx, env.player, Query{Name: "me", AllowMe: true})
	if err != nil || len(got) != 1 || got[0].ID != env.player.ID {
		t.Errorf("me = %v, %v", got, err)
	}
	got, err = env.r.Many(ctx, env.player, Query{Name: "here", AllowHere: true})
	if err != nil || len(got) != 1 || got[0].ID != env.room.ID {
		t.Errorf("here = %v, %v", got, err)
	}
	// Without AllowMe, "me" is an ordinary name.
	got, _ = env.r.Many(ctx, env.player, Query{Name: "me"})
	if len(got) != 0 {
		t.Errorf("me without AllowMe = %v", got)
	}
}

func TestManyScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	elsewhere := env.add(t, gamedb.TypeRoom, "Cellar", gamedb.Nothing)
	env.add(t, gamedb.TypeThing, "red ball", env.room.ID)
	env.add(t, gamedb.TypeThing, "blue ball", env.player.ID)
	env.add(t, gamedb.TypeThing, "green ball", elsewhere.ID)

	got, err := env.r.Many(ctx, env.player, Query{Name: "ball"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want room + inventory only", len(got))
	}

	// The room itself is matchable by name.
	got, _ = env.r.Many(ctx, env.player, Query{Name: "zepler foyer"})
	if len(got) != 1 || got[0].ID != env.room.ID {
		t.Errorf("room by name = %v", got)
	}
}

func TestManyTypeFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.add(t, gamedb.TypeThing, "north", env.room.ID)
	exit := env.add(t, gamedb.TypeExit, "out;north", env.room.ID)

	got, err := env.r.Many(ctx, env.player, Query{Name: "north", Type: gamedb.TypeExit})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != exit.ID {
		t.Errorf("exit filter = %v", got)
	}
}

func TestOneExactNameAlwaysCandidate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	odd := env.add(t, gamedb.TypeThing, "Key;;Ring", env.room.ID)

	got, err := env.r.One(ctx, env.player, Query{Name: "key;;ring"})
	if err != nil || got.ID != odd.ID {
		t.Errorf("exact name lookup = %v, %v", got, err)
	}
}

func TestOneExactTiebreak(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	key := env.add(t, gamedb.TypeThing, "key", env.room.ID)
	env.add(t, gamedb.TypeThing, "key ring", env.room.ID)

	got, err := env.r.One(ctx, env.player, Query{Name: "Key"})
	if err != nil || got.ID != key.ID {
		t.Errorf("tiebreak = %v, %v", got, err)
	}
}

func TestOneIdenticalNamesAmbiguous(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.add(t, gamedb.TypeThing, "coin", env.room.ID)
	env.add(t, gamedb.TypeThing, "coin", env.player.ID)

	for i := 0; i < 5; i++ {
		_, err := env.r.One(ctx, env.player, Query{Name: "coin", AmbiguousKey: "ambigGo"})
		ge, ok := gameerr.As(err)
		if !ok || ge.Kind != gameerr.Ambiguous || ge.Key != "ambigGo" {
			t.Fatalf("identical names = %v, want ambiguous ambigGo", err)
		}
	}
}

func TestOneNotFoundDefaults(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.r.One(context.Background(), env.player, Query{Name: "unicorn"})
	ge, ok := gameerr.As(err)
	if !ok || ge.Kind != gameerr.NotFound || ge.Key != "dontSeeThat" {
		t.Errorf("not found = %v", err)
	}
}

func TestOnePreferDescribed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.add(t, gamedb.TypeThing, "painting", env.room.ID)
	described := env.add(t, gamedb.TypeThing, "painting", env.room.ID)
	described.Description = "A portrait of the founder."
	if err := env.db.Save(ctx, described); err != nil {
		t.Fatal(err)
	}

	got, err := env.r.One(ctx, env.player, Query{Name: "painting", PreferDescribed: true})
	if err != nil || got.ID != described.ID {
		t.Errorf("prefer described = %v, %v", got, err)
	}
	if _, err := env.r.One(ctx, env.player, Query{Name: "painting"}); !gameerr.IsAmbiguous(err) {
		t.Errorf("without preference = %v, want ambiguous", err)
	}
}
