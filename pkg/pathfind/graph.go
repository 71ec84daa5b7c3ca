package pathfind

import (
	"context"
	"fmt"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
)

// Step is one room on a route together with the exit leading on to the
// next room. Via is nil on the last step.
type Step struct {
	Room *gamedb.Object
	Via  *gamedb.Object
}

// ExitGraph exposes the rooms in a store as a directed graph whose edges
// are linked exits.
type ExitGraph struct {
	store gamedb.Store
}

// NewExitGraph creates a graph view over store.
func NewExitGraph(store gamedb.Store) *ExitGraph {
	return &ExitGraph{store: store}
}

func (g *ExitGraph) exits(ctx context.Context, room gamedb.DBRef) ([]*gamedb.Object, error) {
	return g.store.FindAll(ctx, gamedb.Where(
		gamedb.Eq(gamedb.FieldType, gamedb.TypeExit),
		gamedb.Eq(gamedb.FieldLocation, room),
	))
}

// Neighbors returns the targets of the linked exits in room.
func (g *ExitGraph) Neighbors(ctx context.Context, room gamedb.DBRef) ([]gamedb.DBRef, error) {
	exits, err := g.exits(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("pathfind: exits of #%d: %w", room, err)
	}
	out := make([]gamedb.DBRef, 0, len(exits))
	for _, e := range exits {
		if e.Target.Valid() {
			out = append(out, e.Target)
		}
	}
	return out, nil
}

// FindPath returns the room ids of a shortest route from start to goal.
func (g *ExitGraph) FindPath(ctx context.Context, start, goal gamedb.DBRef) ([]gamedb.DBRef, error) {
	return Search(ctx, start, g.Neighbors, func(r gamedb.DBRef) bool { return r == goal })
}

// Route resolves a path of room ids into rooms and the exits between them.
func (g *ExitGraph) Route(ctx context.Context, path []gamedb.DBRef) ([]Step, error) {
	steps := make([]Step, 0, len(path))
	for i, id := range path {
		room, err := g.store.FindOne(ctx, gamedb.ByID(id))
		if err != nil {
			return nil, fmt.Errorf("pathfind: room #%d: %w", id, err)
		}
		if room == nil {
			return nil, fmt.Errorf("pathfind: room #%d: %w", id, gamedb.ErrNotFound)
		}
		step := Step{Room: room}
		if i+1 < len(path) {
			exits, err := g.exits(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("pathfind: exits of #%d: %w", id, err)
			}
			for _, e := range exits {
				if e.Target == path[i+1] {
					step.Via = e
					break
				}
			}
		}
		steps = append(steps, step)
	}
	return steps, nil
}
