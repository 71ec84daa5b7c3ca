package boltstore

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
	bbolt "go.etcd.io/bbolt"
)

// Store wraps a bbolt database and an in-memory cache. Reads are served
// from the cache; every write goes to bbolt first and then to the cache.
type Store struct {
	bolt  *bbolt.DB
	cache *gamedb.Database
	wmu   sync.Mutex // serializes writers so id allocation is stable
}

var _ gamedb.Store = (*Store)(nil)

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketObjects, bucketPlayers} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(keyVersion); v != nil && keyToInt(v) < schemaVersion {
			if err := rebuildPlayerIndex(tx); err != nil {
				return err
			}
		}
		return meta.Put(keyVersion, intToKey(schemaVersion))
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}

	return &Store{
		bolt:  db,
		cache: gamedb.NewDatabase(),
	}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the underlying bbolt database.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// Create implements gamedb.Store.
func (s *Store) Create(ctx context.Context, obj *gamedb.Object) (*gamedb.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	stored := obj.Clone()
	if !stored.ID.Valid() {
		stored.ID = s.cache.NextID()
	} else if _, exists := s.cache.Get(stored.ID); exists {
		return nil, fmt.Errorf("boltstore: create #%d: id already in use", stored.ID)
	}
	if err := s.put(stored, ""); err != nil {
		return nil, err
	}
	s.cache.Put(stored)
	return stored.Clone(), nil
}

// Save implements gamedb.Store.
func (s *Store) Save(ctx context.Context, obj *gamedb.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	old, ok := s.cache.Get(obj.ID)
	if !ok {
		return fmt.Errorf("boltstore: save #%d: %w", obj.ID, gamedb.ErrNotFound)
	}
	oldName := ""
	if old.IsPlayer() && old.Name != obj.Name {
		oldName = old.Name
	}
	if err := s.put(obj, oldName); err != nil {
		return err
	}
	return s.cache.Save(ctx, obj)
}

// put writes obj, the next-ref counter and the player index in one
// transaction.
func (s *Store) put(obj *gamedb.Object, oldName string) error {
	data, err := encodeObject(obj)
	if err != nil {
		return fmt.Errorf("boltstore: encode object #%d: %w", obj.ID, err)
	}
	err = s.bolt.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketObjects).Put(refToKey(obj.ID), data); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMeta)
		next := obj.ID + 1
		if v := meta.Get(keyNextRef); v == nil || gamedb.DBRef(keyToInt(v)) < next {
			if err := meta.Put(keyNextRef, intToKey(int(next))); err != nil {
				return err
			}
		}
		players := tx.Bucket(bucketPlayers)
		if oldName != "" {
			if err := players.Delete([]byte(oldName)); err != nil {
				return err
			}
		}
		if obj.IsPlayer() {
			return players.Put([]byte(obj.Name), refToKey(obj.ID))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("boltstore: put #%d: %w", obj.ID, err)
	}
	return nil
}

// FindOne implements gamedb.Store. Player-by-name lookups use the name
// index instead of scanning. An index entry that no longer matches falls
// back to the scan.
func (s *Store) FindOne(ctx context.Context, p gamedb.Predicate) (*gamedb.Object, error) {
	if name, ok := playerNameLookup(p); ok {
		ref, err := s.PlayerRef(name)
		if err != nil {
			return nil, err
		}
		if !ref.Valid() {
			return nil, nil
		}
		if obj, ok := s.cache.Get(ref); ok && p.Match(obj) {
			return obj, nil
		}
		log.Printf("boltstore: stale player index entry %q -> #%d", name, ref)
	}
	return s.cache.FindOne(ctx, p)
}

// FindAll implements gamedb.Store.
func (s *Store) FindAll(ctx context.Context, p gamedb.Predicate) ([]*gamedb.Object, error) {
	return s.cache.FindAll(ctx, p)
}

// playerNameLookup recognizes the predicate type = PLAYER AND name = x.
func playerNameLookup(p gamedb.Predicate) (string, bool) {
	if len(p.Any) != 0 || len(p.All) != 2 {
		return "", false
	}
	var name string
	var isPlayer, hasName bool
	for _, c := range p.All {
		if c.Op != gamedb.OpEq {
			return "", false
		}
		switch c.Field {
		case gamedb.FieldType:
			isPlayer = c.Value == gamedb.TypePlayer
		case gamedb.FieldName:
			name, hasName = c.Value.(string)
		}
	}
	return name, isPlayer && hasName
}

// PlayerRef returns the ref indexed under the exact name, or Nothing.
func (s *Store) PlayerRef(name string) (gamedb.DBRef, error) {
	ref := gamedb.Nothing
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketPlayers).Get([]byte(name)); v != nil {
			ref = keyToRef(v)
		}
		return nil
	})
	if err != nil {
		return gamedb.Nothing, fmt.Errorf("boltstore: player index: %w", err)
	}
	return ref, nil
}

// rebuildPlayerIndex rewrites the name index from the stored players.
// Version 1 databases keyed it by lower-cased name.
func rebuildPlayerIndex(tx *bbolt.Tx) error {
	if err := tx.DeleteBucket(bucketPlayers); err != nil {
		return err
	}
	players, err := tx.CreateBucket(bucketPlayers)
	if err != nil {
		return err
	}
	n := 0
	err = tx.Bucket(bucketObjects).ForEach(func(k, v []byte) error {
		obj, err := decodeObject(v)
		if err != nil {
			return fmt.Errorf("decode object #%d: %w", keyToRef(k), err)
		}
		if !obj.IsPlayer() {
			return nil
		}
		n++
		return players.Put([]byte(obj.Name), k)
	})
	if err != nil {
		return err
	}
	log.Printf("boltstore: rebuilt player index (%d players)", n)
	return nil
}

// LoadAll reads the entire bbolt database into the in-memory cache.
func (s *Store) LoadAll() error {
	count := 0
	next := 1
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keyNextRef); v != nil {
			next = keyToInt(v)
		}
		return tx.Bucket(bucketObjects).ForEach(func(k, v []byte) error {
			obj, err := decodeObject(v)
			if err != nil {
				return fmt.Errorf("decode object #%d: %w", keyToRef(k), err)
			}
			s.cache.Put(obj)
			count++
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("boltstore: load objects: %w", err)
	}
	s.cache.AdvanceNextID(gamedb.DBRef(next))

	log.Printf("boltstore: loaded %d objects from %s", count, s.Path())
	return nil
}

// HasData returns true if the bbolt database contains any objects.
func (s *Store) HasData() bool {
	hasData := false
	s.bolt.View(func(tx *bbolt.Tx) error {
		hasData = tx.Bucket(bucketObjects).Stats().KeyN > 0
		return nil
	})
	return hasData
}

// Backup creates a hot snapshot of the bbolt database using tx.WriteTo().
func (s *Store) Backup(path string) error {
	return s.bolt.View(func(tx *bbolt.Tx) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("boltstore: create backup %s: %w", path, err)
		}
		defer f.Close()
		if _, err := tx.WriteTo(f); err != nil {
			return fmt.Errorf("boltstore: write backup: %w", err)
		}
		log.Printf("boltstore: backup written to %s", path)
		return nil
	})
}
