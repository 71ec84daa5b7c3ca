package gamedb

import "strings"

// DBRef is the fundamental object reference type. Valid references are
// positive; Nothing stands in for an absent weak reference.
type DBRef int

const Nothing DBRef = -1

// Valid reports whether the reference points at something.
func (r DBRef) Valid() bool { return r > 0 }

// ObjectType represents the kind of a world object.
type ObjectType int

const (
	TypeAny ObjectType = iota // query wildcard, never stored
	TypeRoom
	TypeThing
	TypeExit
	TypePlayer
)

func (t ObjectType) String() string {
	switch t {
	case TypeRoom:
		return "ROOM"
	case TypeThing:
		return "THING"
	case TypeExit:
		return "EXIT"
	case TypePlayer:
		return "PLAYER"
	default:
		return "UNKNOWN"
	}
}

// ParseObjectType maps "ROOM", "thing", ... back to an ObjectType.
func ParseObjectType(s string) (ObjectType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ROOM":
		return TypeRoom, true
	case "THING":
		return TypeThing, true
	case "EXIT":
		return TypeExit, true
	case "PLAYER":
		return TypePlayer, true
	}
	return TypeAny, false
}

// Flag bits. These values are persisted; do not renumber.
const (
	FlagLinkOK   = 1 << 0 // anyone may link to this room
	FlagAntiLock = 1 << 1 // invert the lock result
	FlagTemple   = 1 << 2 // room sends dropped things home
)

// Object is a single world entity. Rooms, things, exits and players share
// this one schema; Type says which fields are meaningful.
type Object struct {
	ID          DBRef
	Type        ObjectType
	Name        string
	Description string

	SuccessMessage       string
	FailureMessage       string
	OthersSuccessMessage string
	OthersFailureMessage string

	Flags int

	Location DBRef // container; Nothing for top-level rooms
	Target   DBRef // exit destination, thing/player home, room drop-to
	Owner    DBRef
	Key      DBRef // lock key; Nothing means unlocked

	Password string // players only
}

// NewObject returns an object of the given type with all references unset.
func NewObject(typ ObjectType, name string) *Object {
	return &Object{
		ID:       Nothing,
		Type:     typ,
		Name:     name,
		Location: Nothing,
		Target:   Nothing,
		Owner:    Nothing,
		Key:      Nothing,
	}
}

// Clone returns a detached copy. Stores hand out clones so callers can
// mutate freely until they Save.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	cp := *o
	return &cp
}

// HasFlag checks whether a flag bit is set.
func (o *Object) HasFlag(flag int) bool {
	return o.Flags&flag != 0
}

// SetFlag sets a flag bit in memory. Callers persist.
func (o *Object) SetFlag(flag int) {
	o.Flags |= flag
}

// ResetFlag clears a flag bit in memory. Callers persist.
func (o *Object) ResetFlag(flag int) {
	o.Flags &^= flag
}

func (o *Object) IsRoom() bool   { return o.Type == TypeRoom }
func (o *Object) IsThing() bool  { return o.Type == TypeThing }
func (o *Object) IsExit() bool   { return o.Type == TypeExit }
func (o *Object) IsPlayer() bool { return o.Type == TypePlayer }

// HasDescription reports whether a description has been set.
func (o *Object) HasDescription() bool { return o.Description != "" }
