package boltstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
	bbolt "go.etcd.io/bbolt"
)

func playerNamed(name string) gamedb.Predicate {
	return gamedb.Where(
		gamedb.Eq(gamedb.FieldType, gamedb.TypePlayer),
		gamedb.Eq(gamedb.FieldName, name),
	)
}

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)

	room, err := s.Create(ctx, gamedb.NewObject(gamedb.TypeRoom, "Foyer"))
	if err != nil {
		t.Fatal(err)
	}
	p := gamedb.NewObject(gamedb.TypePlayer, "Ann")
	p.Location = room.ID
	p.Password = "secret"
	ann, err := s.Create(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	room.SetFlag(gamedb.FlagLinkOK)
	room.Description = "A bright hall."
	if err := s.Save(ctx, room); err != nil {
		t.Fatal(err)
	}
	if !s.HasData() {
		t.Error("HasData should be true after writes")
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if err := s2.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	got, _ := s2.FindOne(ctx, gamedb.ByID(room.ID))
	if got == nil || got.Description != "A bright hall." || !got.HasFlag(gamedb.FlagLinkOK) {
		t.Errorf("reloaded room = %+v", got)
	}
	next, _ := s2.Create(ctx, gamedb.NewObject(gamedb.TypeThing, "ball"))
	if next.ID != ann.ID+1 {
		t.Errorf("id after reload = %d, want %d", next.ID, ann.ID+1)
	}
}

func TestStorePlayerIndex(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	p, _ := s.Create(ctx, gamedb.NewObject(gamedb.TypePlayer, "Ann"))
	byName := gamedb.Where(
		gamedb.Eq(gamedb.FieldType, gamedb.TypePlayer),
		gamedb.Eq(gamedb.FieldName, "Ann"),
	)
	got, err := s.FindOne(ctx, byName)
	if err != nil || got == nil || got.ID != p.ID {
		t.Fatalf("index lookup = %v, %v", got, err)
	}

	p.Name = "Anna"
	if err := s.Save(ctx, p); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.FindOne(ctx, byName); got != nil {
		t.Errorf("old name still resolves to %v", got)
	}
	if ref, _ := s.PlayerRef("Anna"); ref != p.ID {
		t.Errorf("PlayerRef(Anna) = %d", ref)
	}
	lower := gamedb.Where(
		gamedb.Eq(gamedb.FieldType, gamedb.TypePlayer),
		gamedb.Eq(gamedb.FieldName, "anna"),
	)
	if got, _ := s.FindOne(ctx, lower); got != nil {
		t.Errorf("case-sensitive equality matched %v", got)
	}
}

func TestStoreSaveUnknown(t *testing.T) {
	s, _ := openTemp(t)
	o := gamedb.NewObject(gamedb.TypeThing, "ghost")
	o.ID = 99
	if err := s.Save(context.Background(), o); !errors.Is(err, gamedb.ErrNotFound) {
		t.Errorf("Save unknown = %v", err)
	}
}

func TestStoreBackup(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	s.Create(ctx, gamedb.NewObject(gamedb.TypeRoom, "Foyer"))

	backup := filepath.Join(t.TempDir(), "backup.db")
	if err := s.Backup(backup); err != nil {
		t.Fatal(err)
	}
	b, err := Open(backup)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if !b.HasData() {
		t.Error("backup has no objects")
	}
}

func TestStorePlayerNamesDifferingInCase(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)

	upper, _ := s.Create(ctx, gamedb.NewObject(gamedb.TypePlayer, "Bob"))
	lower, _ := s.Create(ctx, gamedb.NewObject(gamedb.TypePlayer, "bob"))

	check := func(s *Store) {
		t.Helper()
		for _, want := range []*gamedb.Object{upper, lower} {
			got, err := s.FindOne(ctx, playerNamed(want.Name))
			if err != nil || got == nil || got.ID != want.ID {
				t.Errorf("FindOne(%q) = %v, %v; want #%d", want.Name, got, err, want.ID)
			}
		}
	}
	check(s)

	s.Close()
	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if err := s2.LoadAll(); err != nil {
		t.Fatal(err)
	}
	check(s2)
}

func TestStoreRebuildsFoldedIndex(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)
	bob, _ := s.Create(ctx, gamedb.NewObject(gamedb.TypePlayer, "Bob"))

	// Rewrite the index the way version 1 stored it.
	err := s.bolt.Update(func(tx *bbolt.Tx) error {
		players := tx.Bucket(bucketPlayers)
		if err := players.Delete([]byte("Bob")); err != nil {
			return err
		}
		if err := players.Put([]byte("bob"), refToKey(bob.ID)); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyVersion, intToKey(1))
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if err := s2.LoadAll(); err != nil {
		t.Fatal(err)
	}
	if ref, _ := s2.PlayerRef("Bob"); ref != bob.ID {
		t.Errorf("PlayerRef(Bob) = %d after upgrade", ref)
	}
	if ref, _ := s2.PlayerRef("bob"); ref != gamedb.Nothing {
		t.Errorf("folded key survived the upgrade: #%d", ref)
	}
}

func TestStoreStaleIndexFallsBack(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	bob, _ := s.Create(ctx, gamedb.NewObject(gamedb.TypePlayer, "Bob"))
	thing, _ := s.Create(ctx, gamedb.NewObject(gamedb.TypeThing, "rock"))

	// Point the entry at an object that does not match.
	err := s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPlayers).Put([]byte("Bob"), refToKey(thing.ID))
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.FindOne(ctx, playerNamed("Bob"))
	if err != nil || got == nil || got.ID != bob.ID {
		t.Errorf("FindOne = %v, %v; want #%d", got, err, bob.ID)
	}
}
