package server

import (
	"context"
	"strings"

	"github.com/crystal-mush/tinymud/pkg/gameerr"
)

// Printable ASCII runs from ' ' to '~'.
func hasAnyIn(s string, lo, hi byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= lo && s[i] <= hi {
			return true
		}
	}
	return false
}

// isPasswordValid requires at least one visible ASCII character.
func isPasswordValid(s string) bool { return hasAnyIn(s, '!', '~') }

// isUsernameValid is isPasswordValid without '='.
func isUsernameValid(s string) bool {
	return hasAnyIn(s, '!', '~') && !strings.Contains(s, "=")
}

// isNameValid requires at least one printable ASCII character.
func isNameValid(s string) bool { return hasAnyIn(s, ' ', '~') }

func validName(_ context.Context, _ *Game, c *Call) error {
	if !isNameValid(c.Arg(0)) {
		return gameerr.Input("invalidName")
	}
	return nil
}

// splitAssign splits "lhs=rhs" at the first '=' and trims both sides.
// A missing '=' is an unknown command.
func splitAssign(arg string) (string, string, error) {
	lhs, rhs, ok := strings.Cut(arg, "=")
	if !ok {
		return "", "", gameerr.Input("unknownCommand")
	}
	return strings.TrimSpace(lhs), strings.TrimSpace(rhs), nil
}
