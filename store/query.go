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

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// NoLimit is the limit value that returns every match.
const NoLimit = 0

// Wildcard matches any run of characters in a search pattern.
const Wildcard = "*"

var (
	// ErrInvalidMode indicates an unrecognized search mode.
	ErrInvalidMode = errors.New("invalid search mode")

	// ErrInvalidPattern indicates an empty or malformed search pattern.
	ErrInvalidPattern = errors.New("invalid search pattern")

	// ErrInvalidLimit indicates a negative limit or offset.
	ErrInvalidLimit = errors.New("invalid limit or offset")
)

// Mode selects the columns a search pattern is matched against.
type Mode string

const (
	// ModeKey matches headwords.
	ModeKey Mode = "key"

	// ModeValue matches gloss bodies.
	ModeValue Mode = "value"

	// ModeBoth matches entries whose headword or gloss body matches.
	ModeBoth Mode = "both"
)

// Modes returns all search modes.
func Modes() []Mode {
	return []Mode{ModeKey, ModeValue, ModeBoth}
}

// ParseMode parses a search mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if err := m.Validate(); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}

// Validate returns an error wrapping [ErrInvalidMode] if m is not a known
// mode.
func (m Mode) Validate() error {
	switch m {
	case ModeKey, ModeValue, ModeBoth:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidMode, string(m))
}

// String implements [fmt.Stringer].
func (m Mode) String() string {
	return string(m)
}

// ValidatePattern returns an error wrapping [ErrInvalidPattern] if the
// pattern is empty or contains control characters.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	for _, r := range pattern {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains control character %U", ErrInvalidPattern, pattern, r)
		}
	}
	return nil
}

// globEscaper escapes GLOB metacharacters other than the wildcard.
var globEscaper = strings.NewReplacer("[", "[[]", "?", "[?]")

// predicate returns the SQL condition and argument matching pattern against
// the given column. Case folding only applies to ASCII letters.
func predicate(column, pattern string, ignoreCase bool) (string, string) {
	op, arg := " = ", pattern
	if strings.Contains(pattern, Wildcard) {
		op, arg = " GLOB ", globEscaper.Replace(pattern)
	}
	if ignoreCase {
		return "lower(" + column + ")" + op + "lower(?)", arg
	}
	return column + op + "?", arg
}

// SearchOptions are options for [Store.Search].
type SearchOptions struct {
	// Mode selects the columns the pattern is matched against. Key mode
	// matches headwords and value mode matches the plain text of gloss
	// bodies.
	Mode Mode

	// Limit is the maximum number of results. [NoLimit] returns all
	// matches.
	Limit int

	// Offset is the number of matches skipped.
	Offset int

	// IgnoreCase matches ASCII letters regardless of case.
	IgnoreCase bool
}

// Search returns the entries matching pattern in canonical order. The
// pattern must be in the storage scheme. A pattern without wildcards matches
// exactly. Limit and offset select a window of the full ordered match set.
// Nil options search headwords without a limit.
func (s *Store) Search(ctx context.Context, pattern string, opts *SearchOptions) ([]*Entry, error) {
	if opts == nil {
		opts = &SearchOptions{Mode: ModeKey}
	}
	mode, limit, offset := opts.Mode, opts.Limit, opts.Offset
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit %d, offset %d", ErrInvalidLimit, limit, offset)
	}

	for strings.Contains(pattern, Wildcard+Wildcard) {
		pattern = strings.ReplaceAll(pattern, Wildcard+Wildcard, Wildcard)
	}

	var (
		where string
		args  []any
	)
	switch mode {
	case ModeKey:
		cond, arg := predicate("key", pattern, opts.IgnoreCase)
		where, args = cond, []any{arg}
	case ModeValue:
		cond, arg := predicate("text", pattern, opts.IgnoreCase)
		where, args = cond, []any{arg}
	case ModeBoth:
		keyCond, keyArg := predicate("key", pattern, opts.IgnoreCase)
		valCond, valArg := predicate("text", pattern, opts.IgnoreCase)
		where, args = keyCond+" OR "+valCond, []any{keyArg, valArg}
	}

	sqlLimit := limit
	if limit == NoLimit {
		sqlLimit = -1
	}
	args = append(args, sqlLimit, offset)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE `+where+` ORDER BY base, sub LIMIT ? OFFSET ?`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", pattern, err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("searching %q: %w", pattern, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("searching %q: %w", pattern, err)
	}
	return entries, nil
}

// KeyCount is a headword and the number of entries that share it.
type KeyCount struct {
	Key   string
	Count int
}

// Stats holds derived statistics about a store.
type Stats struct {
	// Total is the number of entries including sub-entries.
	Total int

	// Distinct is the number of distinct headwords of primary entries.
	Distinct int

	// Top lists the most frequent headwords of primary entries, most
	// frequent first. Ties are ordered by key.
	Top []KeyCount
}

// Stats returns statistics about the store with up to top most frequent
// headwords. Results are cached for the lifetime of the store.
func (s *Store) Stats(ctx context.Context, top int) (*Stats, error) {
	if top < 0 {
		return nil, fmt.Errorf("%w: top %d", ErrInvalidLimit, top)
	}

	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	if st, ok := s.stats[top]; ok {
		return st, nil
	}

	st := &Stats{Top: []KeyCount{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), (SELECT COUNT(DISTINCT key) FROM entries WHERE sub = 0) FROM entries
	`).Scan(&st.Total, &st.Distinct)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, COUNT(*) AS n FROM entries
		WHERE sub = 0
		GROUP BY key
		ORDER BY n DESC, key ASC
		LIMIT ?
	`, top)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kc KeyCount
		if err := rows.Scan(&kc.Key, &kc.Count); err != nil {
			return nil, fmt.Errorf("reading stats: %w", err)
		}
		st.Top = append(st.Top, kc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}

	s.stats[top] = st
	return st, nil
}
