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
	"iter"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var testEntries = []*Entry{
	{Base: 1, Key: "rAma", Value: "<s>rAma</s> name", Page: "1,1"},
	{Base: 2, Key: "kfzRa", Value: "<ab n=\"1\">dark</ab>"},
	{Base: 3, Key: "rAma", Value: "pleasing"},
	{Base: 3, Sub: 1, Key: "Rama", Value: "rAma"},
	{Base: 4, Key: "a[b]", Value: "x"},
	{Base: 5, Key: "kf?a", Value: "rAma"},
}

func seq(entries []*Entry) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func newTestStore(t *testing.T, entries []*Entry) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "entries.db")
	if err := Build(context.Background(), path, seq(entries)); err != nil {
		t.Fatalf("Build: %v", err)
	}
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func ids(entries []*Entry) []string {
	out := []string{}
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestStore_Search(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, testEntries)

	tests := []struct {
		name       string
		pattern    string
		mode       Mode
		limit      int
		offset     int
		ignoreCase bool

		expected []string
		err      error
	}{
		{
			name:     "key exact",
			pattern:  "rAma",
			mode:     ModeKey,
			expected: []string{"1", "3"},
		},
		{
			name:     "value exact",
			pattern:  "rAma",
			mode:     ModeValue,
			expected: []string{"3.1", "5"},
		},
		{
			name:     "both is a union in order",
			pattern:  "rAma",
			mode:     ModeBoth,
			expected: []string{"1", "3", "3.1", "5"},
		},
		{
			name:     "no wildcard does not match substrings",
			pattern:  "Ama",
			mode:     ModeBoth,
			expected: []string{},
		},
		{
			name:     "value matches text without markup",
			pattern:  "dark",
			mode:     ModeValue,
			expected: []string{"2"},
		},
		{
			name:     "tag names are not matched",
			pattern:  "*ab*",
			mode:     ModeValue,
			expected: []string{},
		},
		{
			name:     "attributes are not matched",
			pattern:  "*n=*",
			mode:     ModeBoth,
			expected: []string{},
		},
		{
			name:     "case sensitive",
			pattern:  "rama",
			mode:     ModeKey,
			expected: []string{},
		},
		{
			name:       "ignore case",
			pattern:    "rama",
			mode:       ModeKey,
			ignoreCase: true,
			expected:   []string{"1", "3", "3.1"},
		},
		{
			name:       "ignore case with wildcard",
			pattern:    "RA*",
			mode:       ModeBoth,
			ignoreCase: true,
			expected:   []string{"1", "3", "3.1", "5"},
		},
		{
			name:     "prefix",
			pattern:  "kf*",
			mode:     ModeKey,
			expected: []string{"2", "5"},
		},
		{
			name:     "contains",
			pattern:  "*rAma*",
			mode:     ModeValue,
			expected: []string{"1", "3.1", "5"},
		},
		{
			name:     "collapsed wildcards",
			pattern:  "kf**",
			mode:     ModeKey,
			expected: []string{"2", "5"},
		},
		{
			name:     "question mark is literal",
			pattern:  "kf?*",
			mode:     ModeKey,
			expected: []string{"5"},
		},
		{
			name:     "bracket is literal",
			pattern:  "a[b]*",
			mode:     ModeKey,
			expected: []string{"4"},
		},
		{
			name:     "limit",
			pattern:  "*",
			mode:     ModeKey,
			limit:    2,
			expected: []string{"1", "2"},
		},
		{
			name:     "limit and offset",
			pattern:  "*",
			mode:     ModeKey,
			limit:    2,
			offset:   2,
			expected: []string{"3", "3.1"},
		},
		{
			name:     "offset without limit",
			pattern:  "*",
			mode:     ModeKey,
			offset:   4,
			expected: []string{"4", "5"},
		},
		{
			name:     "offset past end",
			pattern:  "*",
			mode:     ModeKey,
			offset:   100,
			expected: []string{},
		},
		{
			name:    "invalid mode",
			pattern: "rAma",
			mode:    Mode("head"),
			err:     ErrInvalidMode,
		},
		{
			name:    "empty pattern",
			pattern: "",
			mode:    ModeKey,
			err:     ErrInvalidPattern,
		},
		{
			name:    "control character",
			pattern: "rA\x00ma",
			mode:    ModeKey,
			err:     ErrInvalidPattern,
		},
		{
			name:    "negative limit",
			pattern: "rAma",
			mode:    ModeKey,
			limit:   -1,
			err:     ErrInvalidLimit,
		},
		{
			name:    "negative offset",
			pattern: "rAma",
			mode:    ModeKey,
			offset:  -1,
			err:     ErrInvalidLimit,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := s.Search(context.Background(), tc.pattern, &SearchOptions{
				Mode:       tc.mode,
				Limit:      tc.limit,
				Offset:     tc.offset,
				IgnoreCase: tc.ignoreCase,
			})
			if !errors.Is(err, tc.err) {
				t.Fatalf("Search: expected error %v, got %v", tc.err, err)
			}
			if err != nil {
				return
			}
			if diff := cmp.Diff(tc.expected, ids(got)); diff != "" {
				t.Errorf("Search (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestStore_Search_laws(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, testEntries)
	ctx := context.Background()

	for _, pattern := range []string{"rAma", "*a*", "kf*", "*"} {
		key, err := s.Search(ctx, pattern, &SearchOptions{Mode: ModeKey})
		if err != nil {
			t.Fatalf("Search key: %v", err)
		}
		value, err := s.Search(ctx, pattern, &SearchOptions{Mode: ModeValue})
		if err != nil {
			t.Fatalf("Search value: %v", err)
		}
		both, err := s.Search(ctx, pattern, &SearchOptions{Mode: ModeBoth})
		if err != nil {
			t.Fatalf("Search both: %v", err)
		}

		union := ids(key)
		for _, id := range ids(value) {
			if !slices.Contains(union, id) {
				union = append(union, id)
			}
		}
		if got, want := len(both), len(union); got != want {
			t.Errorf("%q: |both| = %d, |key ∪ value| = %d", pattern, got, want)
		}

		for i := 1; i < len(both); i++ {
			prev, cur := both[i-1], both[i]
			if prev.Base > cur.Base || (prev.Base == cur.Base && prev.Sub >= cur.Sub) {
				t.Errorf("%q: %s sorts before %s", pattern, prev.ID, cur.ID)
			}
		}

		for offset := range len(both) + 2 {
			for limit := 1; limit <= len(both)+1; limit++ {
				got, err := s.Search(ctx, pattern, &SearchOptions{Mode: ModeBoth, Limit: limit, Offset: offset})
				if err != nil {
					t.Fatalf("Search: %v", err)
				}
				lo := min(offset, len(both))
				hi := min(offset+limit, len(both))
				if diff := cmp.Diff(ids(both[lo:hi]), ids(got)); diff != "" {
					t.Errorf("%q limit %d offset %d (-want, +got):\n%s", pattern, limit, offset, diff)
				}
			}
		}
	}
}

func TestStore_Entry(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, testEntries)

	tests := []struct {
		id string

		expected *Entry
		err      error
	}{
		{
			id:       "1",
			expected: &Entry{ID: "1", Base: 1, Key: "rAma", Value: "<s>rAma</s> name", Page: "1,1"},
		},
		{
			id:       "3.1",
			expected: &Entry{ID: "3.1", Base: 3, Sub: 1, Key: "Rama", Value: "rAma"},
		},
		{id: "99", err: ErrNotFound},
		{id: "3.2", err: ErrNotFound},
		{id: "3.0", err: ErrNotFound},
		{id: "-1", err: ErrNotFound},
		{id: "abc", err: ErrNotFound},
		{id: "", err: ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			t.Parallel()

			got, err := s.Entry(context.Background(), tc.id)
			if !errors.Is(err, tc.err) {
				t.Fatalf("Entry: expected error %v, got %v", tc.err, err)
			}
			if diff := cmp.Diff(tc.expected, got); diff != "" {
				t.Errorf("Entry (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestStore_Stats(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, testEntries)

	got, err := s.Stats(context.Background(), 2)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := &Stats{
		Total:    6,
		Distinct: 4,
		Top: []KeyCount{
			{Key: "rAma", Count: 2},
			{Key: "a[b]", Count: 1},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stats (-want, +got):\n%s", diff)
	}

	again, err := s.Stats(context.Background(), 2)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if again != got {
		t.Errorf("Stats: expected cached result")
	}
}

func TestStore_All(t *testing.T) {
	t.Parallel()

	// Build accepts entries in any order.
	shuffled := slices.Clone(testEntries)
	slices.Reverse(shuffled)
	s := newTestStore(t, shuffled)

	var got []string
	for e, err := range s.All(context.Background()) {
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		got = append(got, e.ID)
	}
	if diff := cmp.Diff([]string{"1", "2", "3", "3.1", "4", "5"}, got); diff != "" {
		t.Errorf("All (-want, +got):\n%s", diff)
	}

	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != len(testEntries) {
		t.Errorf("Count: expected %d, got %d", len(testEntries), n)
	}
}

func TestBuild_invalidEntry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "entries.db")
	err := Build(context.Background(), path, seq([]*Entry{
		{Base: 1, Key: "a", Value: "a"},
		{Base: 1, Key: "b", Value: "b"},
	}))
	if !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("Build: expected %v, got %v", ErrInvalidEntry, err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Build: expected partial store to be removed, got %v", err)
	}
}

func TestOpen_invalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	if _, err := Open(context.Background(), filepath.Join(dir, "missing.db")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open missing: expected %v, got %v", os.ErrNotExist, err)
	}

	garbage := filepath.Join(dir, "garbage.db")
	if err := os.WriteFile(garbage, []byte("not a database"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(context.Background(), garbage); !errors.Is(err, ErrInvalidSchema) {
		t.Errorf("Open garbage: expected %v, got %v", ErrInvalidSchema, err)
	}
}

func TestParseID(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"1", "263938", "263938.1", "5.12"} {
		base, sub, err := ParseID(id)
		if err != nil {
			t.Fatalf("ParseID(%q): %v", id, err)
		}
		if got := FormatID(base, sub); got != id {
			t.Errorf("FormatID(ParseID(%q)) = %q", id, got)
		}
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for _, m := range Modes() {
		got, err := ParseMode(" " + string(m) + " ")
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", m, err)
		}
		if got != m {
			t.Errorf("ParseMode(%q): got %q", m, got)
		}
	}
	if _, err := ParseMode("KEYS"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("ParseMode: expected %v, got %v", ErrInvalidMode, err)
	}
}
