// Package resolve turns the names players type into world objects.
//
// Resolution is two-stage: a forgiving search gathers every nearby object
// whose name contains the typed words, then an exact-name tiebreak picks a
// single winner when near-duplicates remain.
package resolve

import (
	"context"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
	"github.com/crystal-mush/tinymud/pkg/gameerr"
)

// Query describes one lookup.
type Query struct {
	Name      string
	AllowMe   bool              // "me" means the searching player
	AllowHere bool              // "here" means the player's room
	Type      gamedb.ObjectType // TypeAny for no restriction

	// One only.
	PreferDescribed bool   // break ties in favour of the only described match
	AmbiguousKey    string // defaults to "ambigSet"
	NotFoundKey     string // defaults to "dontSeeThat"
}

// Resolver looks up objects visible to a player.
type Resolver struct {
	store gamedb.Store
}

// New creates a Resolver over store.
func New(store gamedb.Store) *Resolver {
	return &Resolver{store: store}
}

// Many returns every object in the player's room or inventory (or the room
// itself) whose name matches q.Name word by word.
func (r *Resolver) Many(ctx context.Context, player *gamedb.Object, q Query) ([]*gamedb.Object, error) {
	if q.AllowMe && q.Name == "me" {
		return []*gamedb.Object{player}, nil
	}
	if q.AllowHere && q.Name == "here" {
		room, err := r.store.FindOne(ctx, gamedb.ByID(player.Location))
		if err != nil {
			return nil, gameerr.Store("resolve here", err)
		}
		if room == nil {
			return nil, nil
		}
		return []*gamedb.Object{room}, nil
	}

	p := gamedb.Predicate{}.Or(
		gamedb.Eq(gamedb.FieldLocation, player.Location),
		gamedb.Eq(gamedb.FieldLocation, player.ID),
		gamedb.Eq(gamedb.FieldID, player.Location),
	)
	if q.Type != gamedb.TypeAny {
		p = p.And(
			gamedb.Eq(gamedb.FieldType, q.Type),
			gamedb.Like(gamedb.FieldName, q.Name),
		)
	}
	candidates, err := r.store.FindAll(ctx, p)
	if err != nil {
		return nil, gameerr.Store("resolve", err)
	}

	var out []*gamedb.Object
	for _, c := range candidates {
		if WholeWordMatch(c.Name, q.Name) {
			out = append(out, c)
		}
	}
	return out, nil
}

// One narrows Many to a single object. It fails with a NotFound or
// Ambiguous game error carrying the query's message keys.
func (r *Resolver) One(ctx context.Context, player *gamedb.Object, q Query) (*gamedb.Object, error) {
	found, err := r.Many(ctx, player, q)
	if err != nil {
		return nil, err
	}
	return pick(found, q)
}

func pick(found []*gamedb.Object, q Query) (*gamedb.Object, error) {
	if len(found) == 0 {
		return nil, gameerr.Missing(orDefault(q.NotFoundKey, "dontSeeThat"))
	}
	if q.PreferDescribed && len(found) > 1 {
		var described []*gamedb.Object
		for _, o := range found {
			if o.HasDescription() {
				described = append(described, o)
			}
		}
		if len(described) == 1 {
			return described[0], nil
		}
	}
	if len(found) == 1 {
		return found[0], nil
	}

	var exact *gamedb.Object
	n := 0
	for _, o := range found {
		if SameName(o.Name, q.Name) {
			exact = o
			n++
		}
	}
	if n == 1 {
		return exact, nil
	}
	return nil, gameerr.Ambig(orDefault(q.AmbiguousKey, "ambigSet"))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
