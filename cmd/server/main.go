package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/crystal-mush/tinymud/pkg/boltstore"
	"github.com/crystal-mush/tinymud/pkg/gamedb"
	"github.com/crystal-mush/tinymud/pkg/server"
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
	// A .env file next to the binary is optional.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: .env not loaded: %v", err)
	}

	confFile := flag.String("conf", envDefault("MUD_CONF", ""), "Path to game config file (env: MUD_CONF)")
	driver := flag.String("store", envDefault("MUD_STORE", ""), "Store driver: memory, bolt or sqlite, overrides config (env: MUD_STORE)")
	storePath := flag.String("db", envDefault("MUD_DB", ""), "Path to the bolt or sqlite database, overrides config (env: MUD_DB)")
	port := flag.Int("port", 0, "TCP port to listen on, overrides config (env: MUD_PORT)")
	messages := flag.String("messages", envDefault("MUD_MESSAGES", ""), "Path to a YAML message override file (env: MUD_MESSAGES)")
	web := flag.Bool("web", os.Getenv("MUD_WEB") == "true", "Enable the WebSocket listener (env: MUD_WEB)")
	flag.Usage = usage
	flag.Parse()

	log.Printf("Welcome to %s", server.VersionString())

	if *port == 0 {
		if envPort := os.Getenv("MUD_PORT"); envPort != "" {
			if p, err := strconv.Atoi(envPort); err == nil {
				*port = p
			}
		}
	}

	// Load game config if specified, otherwise use defaults
	var gc *server.GameConf
	if *confFile != "" {
		var err error
		gc, err = server.LoadGameConf(*confFile)
		if err != nil {
			log.Fatalf("Error loading game config: %v", err)
		}
		log.Printf("Loaded game config from %s", *confFile)
	} else {
		gc = server.DefaultGameConf()
	}

	// Command-line flags override config file values
	if *port != 0 {
		gc.Port = *port
	}
	if *driver != "" {
		gc.StoreDriver = *driver
	}
	if *storePath != "" {
		gc.StorePath = *storePath
	}
	if *messages != "" {
		gc.MessagesPath = *messages
	}
	if *web {
		gc.WebEnabled = true
	}
	if v := os.Getenv("MUD_CLEARTEXT"); v != "" {
		b := strings.EqualFold(v, "true")
		gc.Cleartext = &b
	}
	if err := gc.Validate(); err != nil {
		log.Fatal(err)
	}

	store, closer, err := openStore(gc)
	if err != nil {
		log.Fatalf("Error opening store: %v", err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(store, gc)

	if gc.MessagesPath != "" {
		n, err := srv.Game.Msgs.LoadFile(gc.MessagesPath)
		if err != nil {
			log.Fatalf("Error loading messages: %v", err)
		}
		log.Printf("Loaded %d message overrides from %s", n, gc.MessagesPath)
		if gc.WatchMessages {
			if err := srv.Game.Msgs.Watch(ctx, gc.MessagesPath); err != nil {
				log.Printf("WARNING: not watching %s: %v", gc.MessagesPath, err)
			}
		}
	}

	log.Printf("Starting %s on port %d (store: %s)...", gc.MudName, gc.Port, gc.StoreDriver)
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Printf("Shutdown complete")
}

// openStore opens the configured store. The closer releases its file.
func openStore(gc *server.GameConf) (gamedb.Store, io.Closer, error) {
	switch gc.StoreDriver {
	case "bolt":
		store, err := boltstore.Open(gc.StorePath)
		if err != nil {
			return nil, nil, err
		}
		if store.HasData() {
			if err := store.LoadAll(); err != nil {
				store.Close()
				return nil, nil, err
			}
		}
		return store, store, nil
	case "sqlite":
		store, err := sqlstore.Open(gc.StorePath, time.Duration(gc.StoreTimeout)*time.Second)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		log.Printf("Using the in-memory store; the world is lost on exit")
		return gamedb.NewDatabase(), io.NopCloser(nil), nil
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: tinymud [-conf <config>] [-store memory|bolt|sqlite] [-db <path>] [-port 4201]")
	fmt.Fprintln(os.Stderr, "")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Environment variables (used as defaults when flags are not set):")
	fmt.Fprintln(os.Stderr, "  MUD_CONF      Path to game config file (.yaml)")
	fmt.Fprintln(os.Stderr, "  MUD_STORE     Store driver")
	fmt.Fprintln(os.Stderr, "  MUD_DB        Path to the store database")
	fmt.Fprintln(os.Stderr, "  MUD_PORT      TCP port to listen on")
	fmt.Fprintln(os.Stderr, "  MUD_MESSAGES  Path to message overrides")
	fmt.Fprintln(os.Stderr, "  MUD_WEB       Set to 'true' to enable the WebSocket listener")
	fmt.Fprintln(os.Stderr, "  MUD_CLEARTEXT Set to 'false' to disable the telnet listener")
	fmt.Fprintln(os.Stderr, "Values can also be placed in a .env file in the working directory.")
}
