package gamedb

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Save when the object has no stored row.
var ErrNotFound = errors.New("gamedb: object not found")

// Store is durable entity storage reached through predicates. All methods
// return detached copies; mutations become visible to others only on Save.
type Store interface {
	// Create stores obj and returns the stored copy. A non-positive ID asks
	// the store to allocate the next one.
	Create(ctx context.Context, obj *Object) (*Object, error)
	// FindOne returns the lowest-id match, or nil with no error.
	FindOne(ctx context.Context, p Predicate) (*Object, error)
	// FindAll returns every match in id order.
	FindAll(ctx context.Context, p Predicate) ([]*Object, error)
	// Save persists the current field values of obj.
	Save(ctx context.Context, obj *Object) error
}
