// Package sqlstore keeps the world in a SQLite database.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS mud_objects (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	type                 TEXT NOT NULL,
	name                 TEXT NOT NULL,
	description          TEXT,
	successMessage       TEXT,
	failureMessage       TEXT,
	othersSuccessMessage TEXT,
	othersFailureMessage TEXT,
	flags                INTEGER NOT NULL DEFAULT 0,
	password             TEXT,
	locationId           INTEGER,
	targetId             INTEGER,
	ownerId              INTEGER,
	keyId                INTEGER
);
CREATE INDEX IF NOT EXISTS mud_objects_location ON mud_objects(locationId);
CREATE INDEX IF NOT EXISTS mud_objects_name ON mud_objects(name);`

const columns = `id, type, name, description, successMessage, failureMessage,
	othersSuccessMessage, othersFailureMessage, flags, password,
	locationId, targetId, ownerId, keyId`

// Store is a gamedb.Store over database/sql and modernc.org/sqlite.
type Store struct {
	db      *sql.DB
	path    string
	timeout time.Duration
}

var _ gamedb.Store = (*Store)(nil)

// Open opens a SQLite database, sets WAL mode and busy timeout, and creates
// the object table if needed.
func Open(path string, timeout time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", path, err)
	}
	// One connection keeps in-memory databases coherent and writes ordered.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: setting WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", timeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: create schema: %w", err)
	}
	return &Store{db: db, path: path, timeout: timeout}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the filesystem path of the SQLite database.
func (s *Store) Path() string { return s.path }

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Create implements gamedb.Store.
func (s *Store) Create(ctx context.Context, obj *gamedb.Object) (*gamedb.Object, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	stored := obj.Clone()
	var id any
	if stored.ID.Valid() {
		id = int64(stored.ID)
	}
	args := append([]any{id}, values(stored)...)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO mud_objects (`+columns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: create %q: %w", stored.Name, err)
	}
	last, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: create %q: %w", stored.Name, err)
	}
	stored.ID = gamedb.DBRef(last)
	return stored, nil
}

// Save implements gamedb.Store.
func (s *Store) Save(ctx context.Context, obj *gamedb.Object) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	args := append(values(obj), int64(obj.ID))
	res, err := s.db.ExecContext(ctx, `UPDATE mud_objects SET
		type = ?, name = ?, description = ?, successMessage = ?, failureMessage = ?,
		othersSuccessMessage = ?, othersFailureMessage = ?, flags = ?, password = ?,
		locationId = ?, targetId = ?, ownerId = ?, keyId = ?
		WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("sqlstore: save #%d: %w", obj.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("sqlstore: save #%d: %w", obj.ID, gamedb.ErrNotFound)
	}
	return nil
}

// FindOne implements gamedb.Store.
func (s *Store) FindOne(ctx context.Context, p gamedb.Predicate) (*gamedb.Object, error) {
	objs, err := s.find(ctx, p, 1)
	if err != nil || len(objs) == 0 {
		return nil, err
	}
	return objs[0], nil
}

// FindAll implements gamedb.Store.
func (s *Store) FindAll(ctx context.Context, p gamedb.Predicate) ([]*gamedb.Object, error) {
	return s.find(ctx, p, 0)
}

func (s *Store) find(ctx context.Context, p gamedb.Predicate, limit int) ([]*gamedb.Object, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	where, args := Where(p)
	filter := needsMatch(p)
	query := `SELECT ` + columns + ` FROM mud_objects WHERE ` + where + ` ORDER BY id`
	if limit > 0 && !filter {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: find: %w", err)
	}
	defer rows.Close()

	var out []*gamedb.Object
	for rows.Next() {
		obj, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scan: %w", err)
		}
		if filter && !p.Match(obj) {
			continue
		}
		out = append(out, obj)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: find: %w", err)
	}
	return out, nil
}

// Backup writes a consistent copy of the database to path, which must not
// exist yet.
func (s *Store) Backup(path string) error {
	if _, err := s.db.Exec(`VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("sqlstore: backup to %s: %w", path, err)
	}
	log.Printf("sqlstore: backup written to %s", path)
	return nil
}

// Count returns the number of stored objects.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mud_objects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlstore: count: %w", err)
	}
	return n, nil
}

// values returns the non-id columns of obj in schema order.
func values(o *gamedb.Object) []any {
	return []any{
		o.Type.String(), o.Name,
		nullString(o.Description), nullString(o.SuccessMessage), nullString(o.FailureMessage),
		nullString(o.OthersSuccessMessage), nullString(o.OthersFailureMessage),
		o.Flags, nullString(o.Password),
		nullRef(o.Location), nullRef(o.Target), nullRef(o.Owner), nullRef(o.Key),
	}
}

func scan(rows *sql.Rows) (*gamedb.Object, error) {
	var (
		id                                 int64
		typ, name                          string
		desc, succ, fail, osucc, ofail, pw sql.NullString
		flags                              int
		loc, target, owner, key            sql.NullInt64
	)
	if err := rows.Scan(&id, &typ, &name, &desc, &succ, &fail, &osucc, &ofail,
		&flags, &pw, &loc, &target, &owner, &key); err != nil {
		return nil, err
	}
	t, ok := gamedb.ParseObjectType(typ)
	if !ok {
		return nil, errors.New("unknown object type " + typ)
	}
	return &gamedb.Object{
		ID:                   gamedb.DBRef(id),
		Type:                 t,
		Name:                 name,
		Description:          desc.String,
		SuccessMessage:       succ.String,
		FailureMessage:       fail.String,
		OthersSuccessMessage: osucc.String,
		OthersFailureMessage: ofail.String,
		Flags:                flags,
		Password:             pw.String,
		Location:             refOf(loc),
		Target:               refOf(target),
		Owner:                refOf(owner),
		Key:                  refOf(key),
	}, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRef(r gamedb.DBRef) any {
	if !r.Valid() {
		return nil
	}
	return int64(r)
}

func refOf(n sql.NullInt64) gamedb.DBRef {
	if !n.Valid {
		return gamedb.Nothing
	}
	return gamedb.DBRef(n.Int64)
}

