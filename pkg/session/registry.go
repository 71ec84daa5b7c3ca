// Package session tracks which player is logged in on which connection.
package session

import (
	"sync"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
)

// Conn is the transport side of a session.
type Conn interface {
	Send(msg string)
	Close()
}

// Entry pairs a live connection with the player using it.
type Entry struct {
	Conn   Conn
	Player *gamedb.Object
}

// Registry is the set of active sessions, kept in login order. That order
// is also the broadcast order.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Activate records that player is logged in on conn. Callers make sure a
// connection is activated at most once.
func (r *Registry) Activate(conn Conn, player *gamedb.Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Conn: conn, Player: player})
}

// Deactivate removes the entry for conn and returns its player.
func (r *Registry) Deactivate(conn Conn) (*gamedb.Object, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.Conn == conn {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return e.Player, true
		}
	}
	return nil, false
}

// ForEach calls fn for every session in login order over a snapshot, so fn
// may itself activate or deactivate. Returning false stops the walk.
func (r *Registry) ForEach(fn func(conn Conn, player *gamedb.Object) bool) {
	for _, e := range r.Snapshot() {
		if !fn(e.Conn, e.Player) {
			return
		}
	}
}

// Snapshot copies the current entries.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Entry(nil), r.entries...)
}

// ByConnection returns the player logged in on conn, or nil.
func (r *Registry) ByConnection(conn Conn) *gamedb.Object {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Conn == conn {
			return e.Player
		}
	}
	return nil
}

// ByPlayerName returns the first active player whose name is exactly name.
func (r *Registry) ByPlayerName(name string) *gamedb.Object {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Player.Name == name {
			return e.Player
		}
	}
	return nil
}

// ConnectionOf returns the connection a player is using, or nil.
func (r *Registry) ConnectionOf(player gamedb.DBRef) Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Player.ID == player {
			return e.Conn
		}
	}
	return nil
}

// Update replaces the cached player record for every session of p.ID.
// Commands call it after saving the acting player so later lookups see
// the new location or name.
func (r *Registry) Update(p *gamedb.Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].Player.ID == p.ID {
			r.entries[i].Player = p.Clone()
		}
	}
}

// SendToRoom sends msg to every active player located in room other than
// except. Pass gamedb.Nothing to exclude no one.
func (r *Registry) SendToRoom(room, except gamedb.DBRef, msg string) {
	r.ForEach(func(c Conn, p *gamedb.Object) bool {
		if p.Location == room && p.ID != except {
			c.Send(msg)
		}
		return true
	})
}

// SendToPlayer sends msg to player's connection if they are logged in.
func (r *Registry) SendToPlayer(player gamedb.DBRef, msg string) bool {
	c := r.ConnectionOf(player)
	if c == nil {
		return false
	}
	c.Send(msg)
	return true
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
