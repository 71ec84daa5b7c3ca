package gamedb

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Database is the in-memory object table. It satisfies Store on its own
// (tests, ephemeral games) and doubles as the read cache of boltstore.
type Database struct {
	mu      sync.RWMutex
	Objects map[DBRef]*Object
	NextRef DBRef
}

// NewDatabase creates an empty database whose first allocated id is #1.
func NewDatabase() *Database {
	return &Database{
		Objects: make(map[DBRef]*Object),
		NextRef: 1,
	}
}

var _ Store = (*Database)(nil)

// Create implements Store.
func (db *Database) Create(_ context.Context, obj *Object) (*Object, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.insert(obj)
}

// Put stores obj as-is, keeping its id. Used when warming a cache.
func (db *Database) Put(obj *Object) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.Objects[obj.ID] = obj.Clone()
	if obj.ID >= db.NextRef {
		db.NextRef = obj.ID + 1
	}
}

func (db *Database) insert(obj *Object) (*Object, error) {
	stored := obj.Clone()
	if !stored.ID.Valid() {
		stored.ID = db.NextRef
	} else if _, exists := db.Objects[stored.ID]; exists {
		return nil, fmt.Errorf("gamedb: create #%d: id already in use", stored.ID)
	}
	if stored.ID >= db.NextRef {
		db.NextRef = stored.ID + 1
	}
	db.Objects[stored.ID] = stored
	return stored.Clone(), nil
}

// FindOne implements Store.
func (db *Database) FindOne(ctx context.Context, p Predicate) (*Object, error) {
	objs, err := db.FindAll(ctx, p)
	if err != nil || len(objs) == 0 {
		return nil, err
	}
	return objs[0], nil
}

// FindAll implements Store.
func (db *Database) FindAll(ctx context.Context, p Predicate) ([]*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []*Object
	for _, obj := range db.Objects {
		if p.Match(obj) {
			out = append(out, obj.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Save implements Store.
func (db *Database) Save(_ context.Context, obj *Object) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.Objects[obj.ID]; !ok {
		return fmt.Errorf("gamedb: save #%d: %w", obj.ID, ErrNotFound)
	}
	db.Objects[obj.ID] = obj.Clone()
	return nil
}

// NextID returns the id Create would allocate next.
func (db *Database) NextID() DBRef {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.NextRef
}

// AdvanceNextID raises the allocation counter to at least next.
func (db *Database) AdvanceNextID(next DBRef) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if next > db.NextRef {
		db.NextRef = next
	}
}

// Get returns a copy of the object with the given id.
func (db *Database) Get(ref DBRef) (*Object, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	o, ok := db.Objects[ref]
	return o.Clone(), ok
}

// Len returns the number of stored objects.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.Objects)
}

// Snapshot returns copies of every object in id order.
func (db *Database) Snapshot() []*Object {
	objs, _ := db.FindAll(context.Background(), Predicate{})
	return objs
}
