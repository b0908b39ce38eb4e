// Package sqlite provides a strata.Store backed by an embedded SQLite database.
//
// Each collection is a table of (id, doc) rows where doc is the document's
// JSON text. Secondary indexes are SQLite expression indexes over
// json_extract, recorded in a metadata table so they can be listed and
// queried by name.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/zoobzio/strata"
)

// ErrInvalidName is returned for collection, index or field names that
// cannot be used as SQL identifiers or JSON paths.
var ErrInvalidName = errors.New("invalid name")

var (
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	pathRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS _strata_indexes (
	collection TEXT NOT NULL,
	name       TEXT NOT NULL,
	fields     TEXT NOT NULL,
	PRIMARY KEY (collection, name)
);
`

// Store is a SQLite-backed strata.Store.
type Store struct {
	db *sql.DB

	mu          sync.Mutex
	collections map[string]*Collection
}

// Open opens (creating if needed) the database at path. Use ":memory:" for a
// private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Writes serialize on one connection; an in-memory database only
	// exists on the connection that created it.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Store{db: db, collections: make(map[string]*Collection)}, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Collection implements strata.Store.
func (s *Store) Collection(ctx context.Context, name string) (strata.Collection, error) {
	if !identRe.MatchString(name) || strings.HasPrefix(name, "_strata") {
		return nil, fmt.Errorf("collection %q: %w", name, ErrInvalidName)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (id TEXT PRIMARY KEY, doc TEXT NOT NULL)`, name)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	c := &Collection{db: s.db, name: name}
	s.collections[name] = c
	return c, nil
}

// Close implements strata.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Collection is a SQLite-backed strata.Collection.
type Collection struct {
	db   *sql.DB
	name string
}

// Get implements strata.Collection.
func (c *Collection) Get(ctx context.Context, key string) (strata.Document, error) {
	var raw string
	err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM %q WHERE id = ?`, c.name), key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", c.name, key, strata.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

// Put implements strata.Collection. Replacing a document keeps its position.
func (c *Collection) Put(ctx context.Context, key string, doc strata.Document) (string, error) {
	if key == "" {
		key = strata.NewKey()
	}
	raw, err := encode(doc)
	if err != nil {
		return "", err
	}
	stmt := fmt.Sprintf(`INSERT INTO %q (id, doc) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`, c.name)
	if _, err := c.db.ExecContext(ctx, stmt, key, raw); err != nil {
		return "", fmt.Errorf("put %s/%s: %w", c.name, key, err)
	}
	return key, nil
}

// Update implements strata.Collection.
func (c *Collection) Update(ctx context.Context, key string, partial strata.Document) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM %q WHERE id = ?`, c.name), key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", c.name, key, strata.ErrNotFound)
	}
	if err != nil {
		return err
	}
	doc, err := decode(raw)
	if err != nil {
		return err
	}
	for k, v := range partial {
		doc[k] = v
	}
	merged, err := encode(doc)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %q SET doc = ? WHERE id = ?`, c.name), merged, key); err != nil {
		return fmt.Errorf("update %s/%s: %w", c.name, key, err)
	}
	return tx.Commit()
}

// Delete implements strata.Collection.
func (c *Collection) Delete(ctx context.Context, key string) error {
	res, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, c.name), key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", c.name, key, strata.ErrNotFound)
	}
	return nil
}

// ListIndexes implements strata.Collection.
func (c *Collection) ListIndexes(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name FROM _strata_indexes WHERE collection = ? ORDER BY name`, c.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CreateIndex implements strata.Collection. Fields are dotted paths into
// the document.
func (c *Collection) CreateIndex(ctx context.Context, name string, fields ...string) error {
	if !identRe.MatchString(name) || len(fields) == 0 {
		return fmt.Errorf("index %q: %w", name, ErrInvalidName)
	}
	exprs := make([]string, len(fields))
	for i, f := range fields {
		if !pathRe.MatchString(f) {
			return fmt.Errorf("index field %q: %w", f, ErrInvalidName)
		}
		exprs[i] = extract(f)
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q (%s)`,
		c.name+"_"+name, c.name, strings.Join(exprs, ", "))
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create index %s.%s: %w", c.name, name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO _strata_indexes (collection, name, fields) VALUES (?, ?, ?)`,
		c.name, name, string(encoded)); err != nil {
		return err
	}
	return tx.Commit()
}

// Find implements strata.Collection. Documents are returned in insertion order.
func (c *Collection) Find(ctx context.Context, index string, keys ...any) ([]strata.Document, error) {
	query := fmt.Sprintf(`SELECT doc FROM %q`, c.name)
	var args []any

	if index == "" && len(keys) > 0 {
		return nil, fmt.Errorf("%s: %d keys without an index: %w", c.name, len(keys), strata.ErrIndexKeys)
	}
	if index != "" {
		fields, err := c.indexFields(ctx, index)
		if err != nil {
			return nil, err
		}
		if len(keys) > len(fields) {
			return nil, fmt.Errorf("%s.%s: %d keys for %d fields: %w", c.name, index, len(keys), len(fields), strata.ErrIndexKeys)
		}
		conds := make([]string, len(keys))
		for i, k := range keys {
			conds[i] = extract(fields[i]) + " = ?"
			args = append(args, k)
		}
		if len(conds) > 0 {
			query += " WHERE " + strings.Join(conds, " AND ")
		}
	}
	query += " ORDER BY rowid"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []strata.Document
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (c *Collection) indexFields(ctx context.Context, index string) ([]string, error) {
	var raw string
	err := c.db.QueryRowContext(ctx,
		`SELECT fields FROM _strata_indexes WHERE collection = ? AND name = ?`, c.name, index).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s.%s: %w", c.name, index, strata.ErrIndexNotFound)
	}
	if err != nil {
		return nil, err
	}
	var fields []string
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("index %s.%s fields: %w", c.name, index, err)
	}
	return fields, nil
}

// extract returns the json_extract expression for a validated dotted path.
func extract(path string) string {
	return fmt.Sprintf("json_extract(doc, '$.%s')", path)
}

func encode(doc strata.Document) (string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", &strata.CodecError{Err: strata.ErrMarshal, Cause: err}
	}
	return string(raw), nil
}

func decode(raw string) (strata.Document, error) {
	var doc strata.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, &strata.CodecError{Err: strata.ErrUnmarshal, Cause: err}
	}
	return doc, nil
}
