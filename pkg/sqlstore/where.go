package sqlstore

import (
	"strings"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
)

// Where renders a predicate as a parameterised SQL condition. Clauses whose
// value has the wrong Go type can never match, as in Predicate.Match.
//
// LIKE clauses render as "1": SQLite only folds ASCII case, so the rows are
// narrowed by the other clauses and then filtered with Predicate.Match.
func Where(p gamedb.Predicate) (string, []any) {
	var parts []string
	var args []any
	for _, c := range p.All {
		sql, a := clause(c)
		parts = append(parts, sql)
		args = append(args, a...)
	}
	if len(p.Any) > 0 {
		var alts []string
		for _, c := range p.Any {
			sql, a := clause(c)
			alts = append(alts, sql)
			args = append(args, a...)
		}
		parts = append(parts, "("+strings.Join(alts, " OR ")+")")
	}
	if len(parts) == 0 {
		return "1", nil
	}
	return strings.Join(parts, " AND "), args
}

func clause(c gamedb.Clause) (string, []any) {
	col := column(c.Field)
	switch c.Op {
	case gamedb.OpLike:
		if _, ok := c.Value.(string); !ok {
			return "0", nil
		}
		return "1", nil
	case gamedb.OpEq, gamedb.OpNe:
		v, ok := value(c)
		neg := c.Op == gamedb.OpNe
		if !ok {
			if neg {
				return "1", nil
			}
			return "0", nil
		}
		if v == nil {
			if neg {
				return col + " IS NOT NULL", nil
			}
			return col + " IS NULL", nil
		}
		if neg {
			return "(" + col + " IS NULL OR " + col + " <> ?)", []any{v}
		}
		return col + " = ?", []any{v}
	}
	return "0", nil
}

// value converts a clause value to its column representation. A nil result
// stands for SQL NULL.
func value(c gamedb.Clause) (any, bool) {
	switch c.Field {
	case gamedb.FieldType:
		t, ok := c.Value.(gamedb.ObjectType)
		return t.String(), ok
	case gamedb.FieldName:
		s, ok := c.Value.(string)
		return s, ok
	case gamedb.FieldPassword:
		s, ok := c.Value.(string)
		return nullString(s), ok
	default:
		r, ok := c.Value.(gamedb.DBRef)
		if !ok {
			return nil, false
		}
		return nullRef(r), true
	}
}

func column(f gamedb.Field) string {
	switch f {
	case gamedb.FieldID:
		return "id"
	case gamedb.FieldType:
		return "type"
	case gamedb.FieldName:
		return "name"
	case gamedb.FieldLocation:
		return "locationId"
	case gamedb.FieldTarget:
		return "targetId"
	case gamedb.FieldOwner:
		return "ownerId"
	case gamedb.FieldKey:
		return "keyId"
	case gamedb.FieldPassword:
		return "password"
	}
	return "NULL"
}

// needsMatch reports whether rows found for p must still pass p.Match.
func needsMatch(p gamedb.Predicate) bool {
	for _, cs := range [][]gamedb.Clause{p.All, p.Any} {
		for _, c := range cs {
			if c.Op == gamedb.OpLike {
				return true
			}
		}
	}
	return false
}
