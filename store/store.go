// Copyright 2025 Ian Lewis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store implements the per-dictionary entry store. Each dictionary's
// entries are kept in a single SQLite file built once from the dictionary's
// markup and opened read-only afterwards.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"iter"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/k3a/html2text"
	_ "modernc.org/sqlite" // SQLite driver
)

// SchemaVersion is the version of the entry store file format. Files with a
// different version must be rebuilt.
const SchemaVersion = 2

//go:embed schema.sql
var schema string

var (
	// ErrNotFound indicates that an entry id is not in the store.
	ErrNotFound = errors.New("entry not found")

	// ErrInvalidSchema indicates that a store file is missing its schema
	// information or was written with a different schema version.
	ErrInvalidSchema = errors.New("invalid store schema")

	// ErrInvalidEntry indicates that an entry could not be added to a store.
	ErrInvalidEntry = errors.New("invalid entry")
)

// Entry is a single record in the store. Keys and values are in the
// dictionary's storage scheme.
type Entry struct {
	// ID is the entry id. Primary entries have a bare numeric id and
	// sub-entries have an id of the form "<base>.<sub>".
	ID string

	// Base is the id of the primary entry.
	Base int64

	// Sub is the sub-entry index. It is zero for primary entries.
	Sub int64

	// Key is the headword.
	Key string

	// AltKey is the alternate spelling of the headword, if any.
	AltKey string

	// Value is the gloss body. Value searches match its plain text with
	// the markup removed.
	Value string

	// Data is the raw markup the entry was built from.
	Data string

	// Page is the page and column reference of the entry in the print
	// edition.
	Page string
}

// FormatID returns the entry id for the given base and sub-entry index.
func FormatID(base, sub int64) string {
	if sub == 0 {
		return strconv.FormatInt(base, 10)
	}
	return strconv.FormatInt(base, 10) + "." + strconv.FormatInt(sub, 10)
}

// ParseID parses an entry id into its base and sub-entry index.
func ParseID(id string) (int64, int64, error) {
	baseStr, subStr, hasSub := strings.Cut(id, ".")
	base, err := strconv.ParseInt(baseStr, 10, 64)
	if err != nil || base <= 0 || baseStr[0] == '+' {
		return 0, 0, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if !hasSub {
		return base, 0, nil
	}
	sub, err := strconv.ParseInt(subStr, 10, 64)
	if err != nil || sub <= 0 || subStr[0] == '+' {
		return 0, 0, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return base, sub, nil
}

// Store is an opened entry store. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string

	statsMu sync.Mutex
	stats   map[int]*Stats
}

// Open opens the store file at path read-only. It returns an error wrapping
// [ErrInvalidSchema] if the file is not a store of the current schema
// version.
func Open(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	var version string
	err = db.QueryRowContext(ctx, `SELECT value FROM info WHERE name = 'schema_version'`).Scan(&version)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, path, err)
	}
	if version != strconv.Itoa(SchemaVersion) {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s: version %s", ErrInvalidSchema, path, version)
	}

	return &Store{
		db:    db,
		path:  path,
		stats: map[int]*Stats{},
	}, nil
}

// Build creates a new store file at path holding the given entries. Any
// existing file at path is replaced. On error the partially written file is
// removed.
func Build(ctx context.Context, path string, entries iter.Seq2[*Entry, error]) (err error) {
	if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return fmt.Errorf("building store: %w", rmErr)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(OFF)&_pragma=synchronous(OFF)")
	if err != nil {
		return fmt.Errorf("building store: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("building store: %w", closeErr)
		}
	}()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("building store: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (base, sub, key, alt_key, value, text, data, page)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("building store: %w", err)
	}
	defer stmt.Close()

	var count int
	for e, iterErr := range entries {
		if iterErr != nil {
			return iterErr
		}
		if e.Base <= 0 || e.Sub < 0 {
			return fmt.Errorf("%w: id %s", ErrInvalidEntry, FormatID(e.Base, e.Sub))
		}
		if _, err := stmt.ExecContext(ctx, e.Base, e.Sub, e.Key, e.AltKey, e.Value, plainText(e.Value), e.Data, e.Page); err != nil {
			return fmt.Errorf("%w: id %s: %v", ErrInvalidEntry, FormatID(e.Base, e.Sub), err)
		}
		count++
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO info (name, value) VALUES ('schema_version', ?), ('entry_count', ?)`,
		strconv.Itoa(SchemaVersion), strconv.Itoa(count))
	if err != nil {
		return fmt.Errorf("building store: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("building store: %w", err)
	}
	return nil
}

// plainText returns the gloss body without markup.
func plainText(value string) string {
	return strings.TrimSpace(html2text.HTML2TextWithOptions(value, html2text.WithUnixLineBreaks()))
}

// Path returns the path of the store file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

const entryColumns = `base, sub, key, alt_key, value, data, page`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	if err := row.Scan(&e.Base, &e.Sub, &e.Key, &e.AltKey, &e.Value, &e.Data, &e.Page); err != nil {
		return nil, err
	}
	e.ID = FormatID(e.Base, e.Sub)
	return &e, nil
}

// Entry returns the entry with the given id. It returns an error wrapping
// [ErrNotFound] if there is no such entry.
func (s *Store) Entry(ctx context.Context, id string) (*Entry, error) {
	base, sub, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE base = ? AND sub = ?`, base, sub)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading entry %q: %w", id, err)
	}
	return e, nil
}

// All returns every entry in canonical order.
func (s *Store) All(ctx context.Context) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM entries ORDER BY base, sub`)
		if err != nil {
			yield(nil, fmt.Errorf("reading entries: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				yield(nil, fmt.Errorf("reading entries: %w", err))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("reading entries: %w", err))
		}
	}
}

// Count returns the number of entries recorded when the store was built.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM info WHERE name = 'entry_count'`).Scan(&count); err != nil {
		return 0, fmt.Errorf("reading entry count: %w", err)
	}
	n, err := strconv.Atoi(count)
	if err != nil {
		return 0, fmt.Errorf("%w: entry count %q", ErrInvalidSchema, count)
	}
	return n, nil
}
