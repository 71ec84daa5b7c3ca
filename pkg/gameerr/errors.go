// Package gameerr is the error taxonomy of the command pipeline. Every
// recoverable failure carries the message catalog key that explains it to
// the player; anything else reaching the dispatcher is a store failure.
package gameerr

import (
	"errors"
	"fmt"
)

// Kind classifies a command failure.
type Kind int

const (
	UserInput Kind = iota
	Ambiguous
	NotFound
	PermissionDenied
	StoreFailure
)

func (k Kind) String() string {
	switch k {
	case UserInput:
		return "user_input"
	case Ambiguous:
		return "ambiguous"
	case NotFound:
		return "not_found"
	case PermissionDenied:
		return "permission_denied"
	case StoreFailure:
		return "store_failure"
	default:
		return "unknown"
	}
}

// Error is a command failure with player-facing feedback.
type Error struct {
	Kind   Kind
	Key    string            // message catalog key
	Values map[string]string // template values, may be nil
	Err    error             // optional cause

	// Silent marks failures whose feedback has already been delivered,
	// e.g. a lock failure message sent by the permission engine.
	Silent bool
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Key)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error. vals are alternating key/value pairs.
func New(kind Kind, key string, vals ...string) *Error {
	e := &Error{Kind: kind, Key: key}
	if len(vals) > 0 {
		e.Values = make(map[string]string, len(vals)/2)
		for i := 0; i+1 < len(vals); i += 2 {
			e.Values[vals[i]] = vals[i+1]
		}
	}
	return e
}

func Input(key string, vals ...string) *Error   { return New(UserInput, key, vals...) }
func Ambig(key string) *Error                   { return New(Ambiguous, key) }
func Missing(key string, vals ...string) *Error { return New(NotFound, key, vals...) }
func Denied(key string) *Error                  { return New(PermissionDenied, key) }

// Handled is a permission failure whose messages were already sent.
func Handled() *Error {
	return &Error{Kind: PermissionDenied, Silent: true}
}

// Store wraps an unrecoverable store error.
func Store(op string, err error) *Error {
	return &Error{Kind: StoreFailure, Key: "fatalError", Err: fmt.Errorf("%s: %w", op, err)}
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// KindOf returns the failure kind. Errors outside the taxonomy are store
// failures.
func KindOf(err error) Kind {
	if ge, ok := As(err); ok {
		return ge.Kind
	}
	return StoreFailure
}

// IsFatal reports whether err must end the connection.
func IsFatal(err error) bool {
	return err != nil && KindOf(err) == StoreFailure
}

func IsAmbiguous(err error) bool { return err != nil && KindOf(err) == Ambiguous }
func IsNotFound(err error) bool  { return err != nil && KindOf(err) == NotFound }
func IsDenied(err error) bool    { return err != nil && KindOf(err) == PermissionDenied }
