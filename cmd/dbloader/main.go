package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/crystal-mush/tinymud/pkg/boltstore"
	"github.com/crystal-mush/tinymud/pkg/fixture"
	"github.com/crystal-mush/tinymud/pkg/gamedb"
	"github.com/crystal-mush/tinymud/pkg/sqlstore"
	"github.com/joho/godotenv"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	driver := flag.String("store", envDefault("MUD_STORE", "bolt"), "Store driver: bolt or sqlite (env: MUD_STORE)")
	dbPath := flag.String("db", envDefault("MUD_DB", ""), "Path to the database file (env: MUD_DB)")
	worldPath := flag.String("world", "", "YAML world to load; the built-in world when empty")
	load := flag.Bool("load", false, "Load the world into the store")
	fresh := flag.Bool("fresh", false, "Remove the database file before loading")
	showPlayers := flag.Bool("players", false, "List all players")
	showRooms := flag.Bool("rooms", false, "List rooms with their exits")
	validate := flag.Bool("validate", false, "Run referential integrity checks")
	backupPath := flag.String("backup", "", "Write a snapshot of the database to this path")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: dbloader -db <path> [-store bolt|sqlite] [options]")
		fmt.Fprintln(os.Stderr, "  -load          Load the world (-world, or the built-in one)")
		fmt.Fprintln(os.Stderr, "  -fresh         Start from an empty database")
		fmt.Fprintln(os.Stderr, "  -players       List all players")
		fmt.Fprintln(os.Stderr, "  -rooms         List rooms summary")
		fmt.Fprintln(os.Stderr, "  -validate      Run integrity checks")
		fmt.Fprintln(os.Stderr, "  -backup <path> Snapshot the database after loading")
		os.Exit(1)
	}

	if *fresh {
		if err := os.Remove(*dbPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			fatal(err)
		}
	}

	store, closer, err := open(*driver, *dbPath)
	if err != nil {
		fatal(err)
	}
	defer closer.Close()

	ctx := context.Background()
	if *load {
		world := fixture.Default()
		if *worldPath != "" {
			f, err := os.Open(*worldPath)
			if err != nil {
				fatal(err)
			}
			world, err = fixture.Parse(f)
			f.Close()
			if err != nil {
				fatal(err)
			}
		}
		start := time.Now()
		n, err := fixture.Load(ctx, store, world)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Loaded %d objects into %s in %v\n\n", n, *dbPath, time.Since(start))
	}

	if *backupPath != "" {
		if err := backup(store, *backupPath); err != nil {
			fatal(err)
		}
		fmt.Printf("Backup written to %s\n\n", *backupPath)
	}

	objs, err := store.FindAll(ctx, gamedb.Where())
	if err != nil {
		fatal(err)
	}
	byID := make(map[gamedb.DBRef]*gamedb.Object, len(objs))
	for _, o := range objs {
		byID[o.ID] = o
	}

	// Always print summary
	printSummary(os.Stdout, objs)

	if *showPlayers {
		fmt.Println()
		printPlayers(os.Stdout, objs, byID)
	}
	if *showRooms {
		fmt.Println()
		printRooms(os.Stdout, objs)
	}
	if *validate {
		fmt.Println()
		if problems := runValidation(os.Stdout, objs, byID); problems > 0 {
			os.Exit(2)
		}
	}
}

func open(driver, path string) (gamedb.Store, io.Closer, error) {
	switch driver {
	case "bolt":
		store, err := boltstore.Open(path)
		if err != nil {
			return nil, nil, err
		}
		if err := store.LoadAll(); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store, nil
	case "sqlite":
		store, err := sqlstore.Open(path, 5*time.Second)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", driver)
}

// backup snapshots store to path when the driver supports it.
func backup(store gamedb.Store, path string) error {
	b, ok := store.(interface{ Backup(path string) error })
	if !ok {
		return fmt.Errorf("%T does not support backups", store)
	}
	return b.Backup(path)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}

func printSummary(w io.Writer, objs []*gamedb.Object) {
	fmt.Fprintln(w, "=== DATABASE SUMMARY ===")
	fmt.Fprintf(w, "Objects: %d\n", len(objs))

	counts := make(map[gamedb.ObjectType]int)
	for _, o := range objs {
		counts[o.Type]++
	}
	fmt.Fprintln(w, "\n--- Object Counts by Type ---")
	for _, t := range []gamedb.ObjectType{gamedb.TypeRoom, gamedb.TypeThing, gamedb.TypeExit, gamedb.TypePlayer} {
		fmt.Fprintf(w, "  %-10s %d\n", t.String(), counts[t])
	}
}

func printPlayers(w io.Writer, objs []*gamedb.Object, byID map[gamedb.DBRef]*gamedb.Object) {
	fmt.Fprintln(w, "=== PLAYERS ===")
	fmt.Fprintf(w, "%-8s %-25s %s\n", "DBRef", "Name", "Location")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	n := 0
	for _, o := range objs {
		if !o.IsPlayer() {
			continue
		}
		loc := "(nowhere)"
		if room, ok := byID[o.Location]; ok {
			loc = fmt.Sprintf("%s (#%d)", room.Name, room.ID)
		}
		fmt.Fprintf(w, "#%-7d %-25s %s\n", o.ID, truncate(o.Name, 25), loc)
		n++
	}
	fmt.Fprintf(w, "\nTotal players: %d\n", n)
}

func printRooms(w io.Writer, objs []*gamedb.Object) {
	fmt.Fprintln(w, "=== ROOMS ===")
	exits := make(map[gamedb.DBRef][]string)
	contents := make(map[gamedb.DBRef]int)
	for _, o := range objs {
		if o.IsExit() {
			exits[o.Location] = append(exits[o.Location], o.Name)
		} else if !o.IsRoom() {
			contents[o.Location]++
		}
	}
	fmt.Fprintf(w, "%-8s %-25s %-9s %s\n", "DBRef", "Name", "Contents", "Exits")
	fmt.Fprintln(w, strings.Repeat("-", 75))
	for _, o := range objs {
		if !o.IsRoom() {
			continue
		}
		names := exits[o.ID]
		sort.Strings(names)
		fmt.Fprintf(w, "#%-7d %-25s %-9d %s\n", o.ID, truncate(o.Name, 25), contents[o.ID], strings.Join(names, ", "))
	}
}

// runValidation reports dangling and mistyped references. It returns the
// number of errors found.
func runValidation(w io.Writer, objs []*gamedb.Object, byID map[gamedb.DBRef]*gamedb.Object) int {
	fmt.Fprintln(w, "=== VALIDATION ===")
	errs, warnings := 0, 0
	check := func(o *gamedb.Object, field string, ref gamedb.DBRef, want ...gamedb.ObjectType) {
		if !ref.Valid() {
			return
		}
		target, ok := byID[ref]
		if !ok {
			fmt.Fprintf(w, "ERROR: #%d %s #%d does not exist\n", o.ID, field, ref)
			errs++
			return
		}
		if len(want) > 0 && !containsType(want, target.Type) {
			fmt.Fprintf(w, "ERROR: #%d %s #%d is a %s\n", o.ID, field, ref, target.Type)
			errs++
		}
	}

	for _, o := range objs {
		switch o.Type {
		case gamedb.TypeExit:
			check(o, "location", o.Location, gamedb.TypeRoom)
			check(o, "destination", o.Target, gamedb.TypeRoom)
			if !o.Target.Valid() {
				fmt.Fprintf(w, "WARN: exit #%d (%s) is unlinked\n", o.ID, o.Name)
				warnings++
			}
		case gamedb.TypeRoom:
			check(o, "drop-to", o.Target, gamedb.TypeRoom)
		case gamedb.TypePlayer, gamedb.TypeThing:
			check(o, "location", o.Location, gamedb.TypeRoom, gamedb.TypePlayer)
			check(o, "home", o.Target, gamedb.TypeRoom)
		}
		check(o, "owner", o.Owner, gamedb.TypePlayer)
		check(o, "key", o.Key)
	}

	fmt.Fprintf(w, "\nValidation complete: %d errors, %d warnings\n", errs, warnings)
	return errs
}

func containsType(types []gamedb.ObjectType, t gamedb.ObjectType) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
