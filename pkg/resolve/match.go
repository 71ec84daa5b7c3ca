package resolve

import (
	"strings"

	"golang.org/x/text/cases"
)

// tokens splits a name on runs of spaces and semicolons. Exit names use
// semicolons to list aliases, e.g. "out;north".
func tokens(s string) []string {
	return strings.FieldsFunc(fold(s), func(r rune) bool {
		return r == ' ' || r == ';'
	})
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// SameName reports whether two names are equal ignoring case and
// surrounding whitespace.
func SameName(a, b string) bool {
	return fold(strings.TrimSpace(a)) == fold(strings.TrimSpace(b))
}

// WholeWordMatch reports whether every token of query occurs among the
// tokens of name, in order, with no name token used twice. A full-name
// match always succeeds.
func WholeWordMatch(name, query string) bool {
	if SameName(name, query) {
		return true
	}
	want := tokens(query)
	if len(want) == 0 {
		return false
	}
	have := tokens(name)
	next := 0
	for _, w := range want {
		found := -1
		for i := next; i < len(have); i++ {
			if have[i] == w {
				found = i
				break
			}
		}
		if found < 0 {
			return false
		}
		next = found + 1
	}
	return true
}
