package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crystal-mush/tinymud/pkg/fixture"
	"github.com/crystal-mush/tinymud/pkg/gamedb"
)

func index(objs []*gamedb.Object) map[gamedb.DBRef]*gamedb.Object {
	m := make(map[gamedb.DBRef]*gamedb.Object, len(objs))
	for _, o := range objs {
		m[o.ID] = o
	}
	return m
}

func TestValidateDefaultWorld(t *testing.T) {
	db := gamedb.NewDatabase()
	if _, err := fixture.Load(t.Context(), db, fixture.Default()); err != nil {
		t.Fatal(err)
	}
	objs, err := db.FindAll(t.Context(), gamedb.Where())
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if n := runValidation(&out, objs, index(objs)); n != 0 {
		t.Errorf("built-in world has %d errors:\n%s", n, out.String())
	}
}

func TestValidateReportsBadRefs(t *testing.T) {
	room := gamedb.NewObject(gamedb.TypeRoom, "Hall")
	room.ID = 1
	exit := gamedb.NewObject(gamedb.TypeExit, "up")
	exit.ID = 2
	exit.Location = 1
	exit.Target = 9
	thing := gamedb.NewObject(gamedb.TypeThing, "rock")
	thing.ID = 3
	thing.Location = 2
	thing.Owner = 1
	objs := []*gamedb.Object{room, exit, thing}

	var out bytes.Buffer
	n := runValidation(&out, objs, index(objs))
	if n != 3 {
		t.Errorf("errors = %d, want 3:\n%s", n, out.String())
	}
	for _, want := range []string{
		"#2 destination #9 does not exist",
		"#3 location #2 is a EXIT",
		"#3 owner #1 is a ROOM",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output is missing %q", want)
		}
	}
}

func TestPrintSummary(t *testing.T) {
	room := gamedb.NewObject(gamedb.TypeRoom, "Hall")
	player := gamedb.NewObject(gamedb.TypePlayer, "alice")
	var out bytes.Buffer
	printSummary(&out, []*gamedb.Object{room, player})
	if !strings.Contains(out.String(), "Objects: 2") || !strings.Contains(out.String(), "PLAYER     1") {
		t.Errorf("summary:\n%s", out.String())
	}
}

func TestBackup(t *testing.T) {
	for _, driver := range []string{"bolt", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			dir := t.TempDir()
			store, closer, err := open(driver, filepath.Join(dir, "world.db"))
			if err != nil {
				t.Fatal(err)
			}
			n, err := fixture.Load(t.Context(), store, fixture.Default())
			if err != nil {
				t.Fatal(err)
			}
			snapshot := filepath.Join(dir, "snapshot.db")
			if err := backup(store, snapshot); err != nil {
				t.Fatalf("backup: %v", err)
			}
			closer.Close()

			copied, closer, err := open(driver, snapshot)
			if err != nil {
				t.Fatal(err)
			}
			defer closer.Close()
			objs, err := copied.FindAll(t.Context(), gamedb.Where())
			if err != nil {
				t.Fatal(err)
			}
			if len(objs) != n {
				t.Errorf("snapshot has %d objects, want %d", len(objs), n)
			}
		})
	}
}

func TestBackupUnsupported(t *testing.T) {
	if err := backup(gamedb.NewDatabase(), filepath.Join(t.TempDir(), "x")); err == nil {
		t.Error("the memory store has nothing to back up")
	}
}
