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

package cdsl

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ianlewis/go-cdsl/internal/testutil"
	"github.com/ianlewis/go-cdsl/remote"
	"github.com/ianlewis/go-cdsl/store"
	"github.com/ianlewis/go-cdsl/translit"
)

var englishRecords = []*testutil.Record{
	{ID: 1, Key: "fire", Body: "<s>agni</s>, <s>vahni</s>", Page: "1,1"},
	{ID: 2, Key: "king", Body: "<s>rAjan</s>", Page: "2,1"},
}

func newTestServer(t *testing.T) *testutil.Server {
	t.Helper()
	return testutil.NewServer(t,
		testutil.NewDict("WIL", testutil.SmallRecords),
		testutil.NewDict("MW", testutil.HrsikesaRecords),
		testutil.NewDict("AP90", testutil.SmallRecords),
		testutil.NewDict("MWE", englishRecords),
		testutil.NewDict("AE", englishRecords),
	)
}

func newTestCorpus(t *testing.T, s *testutil.Server, dir string) *Corpus {
	t.Helper()

	client, err := remote.NewClient(&remote.Options{
		ServerURL:  s.URL,
		HTTPClient: s.Client(),
		Logger:     slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("remote.NewClient: %v", err)
	}
	c, err := New(context.Background(), &Options{
		DataDir:   dir,
		Registry:  client,
		Transport: client,
		Logger:    slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c
}

// newInstalledCorpus returns a corpus with the dictionaries ids installed.
func newInstalledCorpus(t *testing.T, s *testutil.Server, ids ...string) *Corpus {
	t.Helper()

	c := newTestCorpus(t, s, t.TempDir())
	if err := c.Setup(context.Background(), ids, false); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	return c
}

func entryIDs(entries []*Entry) []string {
	ids := []string{}
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

// hashDir returns the SHA-256 digest of every file under dir.
func hashDir(t *testing.T, dir string) map[string][sha256.Size]byte {
	t.Helper()

	hashes := map[string][sha256.Size]byte{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		hashes[rel] = sha256.Sum256(b)
		return nil
	})
	if err != nil {
		t.Fatalf("hashing %s: %v", dir, err)
	}
	return hashes
}

func stagingEntries(t *testing.T, c *Corpus) []string {
	t.Helper()

	entries, err := os.ReadDir(c.stagingDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatalf("reading staging: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCorpus_SearchSubEntry(t *testing.T) {
	t.Parallel()

	c := newInstalledCorpus(t, newTestServer(t), "MW")
	d, err := c.Dictionary("mw")
	if err != nil {
		t.Fatalf("Dictionary: %v", err)
	}

	tests := []struct {
		mode Mode
		want []string
	}{
		{
			mode: ModeKey,
			want: testutil.HrsikesaKeyIDs,
		},
		{
			mode: ModeValue,
			want: []string{"263938.1"},
		},
		{
			mode: ModeBoth,
			want: append(slices.Clone(testutil.HrsikesaKeyIDs), "263938.1"),
		},
	}

	for _, tc := range tests {
		t.Run(string(tc.mode), func(t *testing.T) {
			t.Parallel()

			got, err := d.Search(context.Background(), "हृषीकेश", &Query{
				InputScheme: translit.Devanagari,
				Mode:        tc.mode,
			})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if diff := cmp.Diff(tc.want, entryIDs(got)); diff != "" {
				t.Errorf("Search (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestDictionary_SearchOutput(t *testing.T) {
	t.Parallel()

	c := newInstalledCorpus(t, newTestServer(t), "MW")
	d, err := c.Dictionary("MW")
	if err != nil {
		t.Fatalf("Dictionary: %v", err)
	}

	got, err := d.Search(context.Background(), "hfzIkeSa", &Query{
		InputScheme:  translit.SLP1,
		OutputScheme: translit.IAST,
		Mode:         ModeBoth,
		Limit:        1,
		Offset:       6,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []*Entry{{
		DictID: "MW",
		ID:     "263938.1",
		Base:   263938,
		Sub:    1,
		Key:    "Hṛṣīkeśa",
		Value:  "hṛṣīkeśa",
		Data:   `<s1 slp1="hfzIkeSa">Hṛṣīkeśa</s1>`,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Search (-want, +got):\n%s", diff)
	}

	got, err = d.Search(context.Background(), "hfzIkeSa", &Query{
		InputScheme:  translit.SLP1,
		OutputScheme: translit.IAST,
		Limit:        1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Search: got %d entries, want 1", len(got))
	}
	if diff := cmp.Diff("hṛṣīkeśa", got[0].Key); diff != "" {
		t.Errorf("Key (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff("hṛṣīkeśa m. lord of the senses, N. of viṣṇu", got[0].Meaning()); diff != "" {
		t.Errorf("Meaning (-want, +got):\n%s", diff)
	}
}

func TestDictionary_SearchLimit(t *testing.T) {
	t.Parallel()

	c := newInstalledCorpus(t, newTestServer(t), "MW")
	d, err := c.Dictionary("MW")
	if err != nil {
		t.Fatalf("Dictionary: %v", err)
	}
	q := &Query{InputScheme: translit.SLP1, Limit: 2}

	got, err := d.Search(context.Background(), "hfzIkeSa", q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff(testutil.HrsikesaKeyIDs[:2], entryIDs(got)); diff != "" {
		t.Errorf("Search limit 2 (-want, +got):\n%s", diff)
	}

	q.Limit = NoLimit
	got, err = d.Search(context.Background(), "hfzIkeSa", q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff(testutil.HrsikesaKeyIDs, entryIDs(got)); diff != "" {
		t.Errorf("Search no limit (-want, +got):\n%s", diff)
	}

	q.Limit = -1
	if _, err := d.Search(context.Background(), "hfzIkeSa", q); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("Search limit -1: got %v, want %v", err, ErrInvalidLimit)
	}
}

func TestDictionary_SearchModes(t *testing.T) {
	t.Parallel()

	c := newInstalledCorpus(t, newTestServer(t), "AP90")
	d, err := c.Dictionary("AP90")
	if err != nil {
		t.Fatalf("Dictionary: %v", err)
	}
	if err := d.SetInputScheme("slp1"); err != nil {
		t.Fatalf("SetInputScheme: %v", err)
	}

	search := func(pattern string, mode Mode, limit, offset int) []string {
		t.Helper()
		got, err := d.Search(context.Background(), pattern, &Query{Mode: mode, Limit: limit, Offset: offset})
		if err != nil {
			t.Fatalf("Search(%q, %s): %v", pattern, mode, err)
		}
		return entryIDs(got)
	}

	for _, pattern := range []string{"agni", "rAma", "*a*", "daSa*"} {
		key := search(pattern, ModeKey, NoLimit, 0)
		value := search(pattern, ModeValue, NoLimit, 0)
		both := search(pattern, ModeBoth, NoLimit, 0)

		union := append(slices.Clone(key), value...)
		slices.SortFunc(union, compareIDs)
		union = slices.Compact(union)
		if diff := cmp.Diff(union, both); diff != "" {
			t.Errorf("%q: both is not the union of key and value (-want, +got):\n%s", pattern, diff)
		}

		var paged []string
		for i := range len(both) + 1 {
			paged = append(paged, search(pattern, ModeBoth, 1, i)...)
		}
		if diff := cmp.Diff(both, paged); diff != "" {
			t.Errorf("%q: pages (-want, +got):\n%s", pattern, diff)
		}
	}

	if diff := cmp.Diff([]string{"2", "3", "3.1"}, search("agni", ModeBoth, NoLimit, 0)); diff != "" {
		t.Errorf("agni (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"5.2"}, search("daSa*", ModeValue, NoLimit, 0)); diff != "" {
		t.Errorf("daSa* (-want, +got):\n%s", diff)
	}
}

// compareIDs orders entry ids by base then sub-entry index.
func compareIDs(a, b string) int {
	aBase, aSub, _ := store.ParseID(a)
	bBase, bSub, _ := store.ParseID(b)
	switch {
	case aBase != bBase:
		return int(aBase - bBase)
	default:
		return int(aSub - bSub)
	}
}

func TestCorpus_Use(t *testing.T) {
	t.Parallel()

	c := newTestCorpus(t, newTestServer(t), t.TempDir())
	ctx := context.Background()

	if err := c.Use(ctx, "WIL", "MW"); err != nil {
		t.Fatalf("Use: %v", err)
	}
	if diff := cmp.Diff([]string{"WIL", "MW"}, c.Active()); diff != "" {
		t.Errorf("Active (-want, +got):\n%s", diff)
	}

	if err := c.Use(ctx, "MW", "AP90", "MWE", "AE"); err != nil {
		t.Fatalf("Use: %v", err)
	}
	if diff := cmp.Diff([]string{"MW", "AP90", "MWE", "AE"}, c.Active()); diff != "" {
		t.Errorf("Active (-want, +got):\n%s", diff)
	}

	if err := c.Use(ctx, UseNone); err != nil {
		t.Fatalf("Use: %v", err)
	}
	if diff := cmp.Diff([]string{}, c.Active()); diff != "" {
		t.Errorf("Active after %s (-want, +got):\n%s", UseNone, diff)
	}

	if err := c.Use(ctx, UseAll); err != nil {
		t.Fatalf("Use: %v", err)
	}
	if diff := cmp.Diff([]string{"WIL", "MW", "AP90", "MWE", "AE"}, c.Active()); diff != "" {
		t.Errorf("Active after %s (-want, +got):\n%s", UseAll, diff)
	}
}

func TestCorpus_UseFailure(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.Fail("AP90", testutil.FailStatus)
	c := newTestCorpus(t, s, t.TempDir())

	err := c.Use(context.Background(), "MW", "AP90")
	var dictErr *DictError
	if !errors.As(err, &dictErr) {
		t.Fatalf("Use: got %v, want a *DictError", err)
	}
	if diff := cmp.Diff("AP90", dictErr.ID); diff != "" {
		t.Errorf("DictError.ID (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"MW"}, c.Active()); diff != "" {
		t.Errorf("Active (-want, +got):\n%s", diff)
	}
}

func TestCorpus_Search(t *testing.T) {
	t.Parallel()

	c := newInstalledCorpus(t, newTestServer(t), "MW", "AP90")
	ctx := context.Background()

	if _, err := c.Search(ctx, "agni", nil); !errors.Is(err, ErrNoActiveDictionaries) {
		t.Errorf("Search with no active dictionaries: got %v, want %v", err, ErrNoActiveDictionaries)
	}

	if err := c.Use(ctx, "MW", "AP90"); err != nil {
		t.Fatalf("Use: %v", err)
	}

	q := &Query{InputScheme: translit.SLP1}
	results, err := c.Search(ctx, "agni", q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got := map[string][]string{}
	var order []string
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("Search %s: %v", r.DictID, r.Err)
		}
		order = append(order, r.DictID)
		got[r.DictID] = entryIDs(r.Entries)
	}
	if diff := cmp.Diff([]string{"MW", "AP90"}, order); diff != "" {
		t.Errorf("Search order (-want, +got):\n%s", diff)
	}
	want := map[string][]string{
		"MW":   {},
		"AP90": {"2", "3"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Search (-want, +got):\n%s", diff)
	}

	q.OmitEmpty = true
	results, err = c.Search(ctx, "agni", q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].DictID != "AP90" {
		t.Errorf("Search with OmitEmpty: got %d results, want AP90 only", len(results))
	}

	results, err = c.Search(ctx, "agni", &Query{InputScheme: translit.SLP1, DictIDs: []string{"ap90", "WIL"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search: got %d results, want 2", len(results))
	}
	if diff := cmp.Diff([]string{"2", "3"}, entryIDs(results[0].Entries)); diff != "" {
		t.Errorf("Search AP90 (-want, +got):\n%s", diff)
	}
	if !errors.Is(results[1].Err, ErrDictionaryNotInstalled) {
		t.Errorf("Search WIL: got %v, want %v", results[1].Err, ErrDictionaryNotInstalled)
	}

	for _, q := range []*Query{
		{InputScheme: "klingon"},
		{Mode: "sideways"},
		{Limit: -1},
	} {
		if _, err := c.Search(ctx, "agni", q); err == nil {
			t.Errorf("Search(%+v): expected error", q)
		}
	}
}

func TestCorpus_EnglishKeys(t *testing.T) {
	t.Parallel()

	c := newInstalledCorpus(t, newTestServer(t), "MWE")
	d, err := c.Dictionary("MWE")
	if err != nil {
		t.Fatalf("Dictionary: %v", err)
	}
	if d.Settings().TransliterateKeys {
		t.Errorf("MWE: TransliterateKeys is true")
	}

	got, err := d.Search(context.Background(), "fire", &Query{
		InputScheme:  translit.Devanagari,
		OutputScheme: translit.Devanagari,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Search: got %d entries, want 1", len(got))
	}
	if diff := cmp.Diff("fire", got[0].Key); diff != "" {
		t.Errorf("Key (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff("<s>अग्नि</s>, <s>वह्नि</s>", got[0].Value); diff != "" {
		t.Errorf("Value (-want, +got):\n%s", diff)
	}

	tests := []struct {
		pattern    string
		ignoreCase bool
		want       []string
	}{
		{pattern: "FIRE", want: []string{}},
		{pattern: "FIRE", ignoreCase: true, want: []string{"1"}},
		{pattern: "K*", ignoreCase: true, want: []string{"2"}},
		{pattern: "*I*", ignoreCase: true, want: []string{"1", "2"}},
	}
	for _, tc := range tests {
		got, err := d.Search(context.Background(), tc.pattern, &Query{IgnoreCase: tc.ignoreCase})
		if err != nil {
			t.Fatalf("Search(%q): %v", tc.pattern, err)
		}
		if diff := cmp.Diff(tc.want, entryIDs(got)); diff != "" {
			t.Errorf("Search(%q, ignoreCase=%v) (-want, +got):\n%s", tc.pattern, tc.ignoreCase, diff)
		}
	}
}

func TestCorpus_TransliterateKeys(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		opts Options
		want map[string]bool
	}{
		{
			name: "default",
			want: map[string]bool{"MW": true, "MWE": false, "AE": false},
		},
		{
			name: "english dictionaries",
			opts: Options{EnglishDictionaries: []string{"mw"}},
			want: map[string]bool{"MW": false, "MWE": true, "AE": true},
		},
		{
			name: "keep keys",
			opts: Options{KeepKeys: true},
			want: map[string]bool{"MW": false, "MWE": false, "AE": false},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client, err := remote.NewClient(&remote.Options{
				ServerURL:  s.URL,
				HTTPClient: s.Client(),
				Logger:     slog.New(slog.DiscardHandler),
			})
			if err != nil {
				t.Fatalf("remote.NewClient: %v", err)
			}
			opts := tc.opts
			opts.DataDir = t.TempDir()
			opts.Registry = client
			opts.Transport = client
			opts.Logger = slog.New(slog.DiscardHandler)
			c, err := New(ctx, &opts)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			t.Cleanup(func() {
				_ = c.Close()
			})
			if err := c.Setup(ctx, []string{"MW", "MWE", "AE"}, false); err != nil {
				t.Fatalf("Setup: %v", err)
			}

			got := map[string]bool{}
			for id := range tc.want {
				d, err := c.Dictionary(id)
				if err != nil {
					t.Fatalf("Dictionary(%s): %v", id, err)
				}
				got[id] = d.Settings().TransliterateKeys
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("TransliterateKeys (-want, +got):\n%s", diff)
			}

			// Keys that are not transliterated are searched and returned as
			// stored.
			if tc.want["MW"] {
				return
			}
			d, err := c.Dictionary("MW")
			if err != nil {
				t.Fatalf("Dictionary: %v", err)
			}
			entries, err := d.Search(ctx, "hfzIkeSa", &Query{
				InputScheme:  translit.Devanagari,
				OutputScheme: translit.Devanagari,
			})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if diff := cmp.Diff(testutil.HrsikesaKeyIDs, entryIDs(entries)); diff != "" {
				t.Errorf("Search (-want, +got):\n%s", diff)
			}
			if len(entries) > 0 && entries[0].Key != "hfzIkeSa" {
				t.Errorf("Key: got %q, want %q", entries[0].Key, "hfzIkeSa")
			}
		})
	}
}

func TestDictionary_Entry(t *testing.T) {
	t.Parallel()

	c := newInstalledCorpus(t, newTestServer(t), "MW")
	d, err := c.Dictionary("MW")
	if err != nil {
		t.Fatalf("Dictionary: %v", err)
	}
	ctx := context.Background()

	e, err := d.Get(ctx, "263938.1", translit.SLP1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff("hfzIkeSa", e.Value); diff != "" {
		t.Errorf("Get value (-want, +got):\n%s", diff)
	}
	if !e.IsSubEntry() {
		t.Errorf("Get: %s is not a sub-entry", e.ID)
	}

	for _, id := range []string{"999", "263938.9", "not-an-id"} {
		if _, err := d.Get(ctx, id, ""); !errors.Is(err, ErrEntryNotFound) {
			t.Errorf("Get(%q): got %v, want %v", id, err, ErrEntryNotFound)
		}
		if e := d.Entry(ctx, id, ""); e != nil {
			t.Errorf("Entry(%q): got %v, want nil", id, e)
		}
	}
	if e := d.Entry(ctx, "263922", translit.HK); e == nil || e.Key != "hRSIkeza" {
		t.Errorf("Entry(263922): got %v", e)
	}
	if _, err := d.Get(ctx, "263922", "klingon"); !errors.Is(err, ErrInvalidScheme) {
		t.Errorf("Get with invalid scheme: got %v, want %v", err, ErrInvalidScheme)
	}
}

func TestDictionary_Stats(t *testing.T) {
	t.Parallel()

	c := newInstalledCorpus(t, newTestServer(t), "MW")
	d, err := c.Dictionary("MW")
	if err != nil {
		t.Fatalf("Dictionary: %v", err)
	}

	got, err := d.Stats(context.Background(), 1, translit.IAST)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := &Stats{
		Total:    9,
		Distinct: 3,
		Top:      []store.KeyCount{{Key: "hṛṣīkeśa", Count: 6}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stats (-want, +got):\n%s", diff)
	}
}

func TestDictionary_Dump(t *testing.T) {
	t.Parallel()

	c := newInstalledCorpus(t, newTestServer(t), "AP90")
	d, err := c.Dictionary("AP90")
	if err != nil {
		t.Fatalf("Dictionary: %v", err)
	}

	var buf bytes.Buffer
	if err := d.Dump(context.Background(), &buf, translit.SLP1); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	var got []dumpEntry
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decoding dump: %v\n%s", err, buf.String())
	}
	var ids []string
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	if diff := cmp.Diff([]string{"1", "2", "3", "3.1", "4", "5", "5.1", "5.2"}, ids); diff != "" {
		t.Errorf("Dump ids (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff("agni m. fire", got[1].Text); diff != "" {
		t.Errorf("Dump text (-want, +got):\n%s", diff)
	}
}

func TestCorpus_SetupUnknown(t *testing.T) {
	t.Parallel()

	c := newTestCorpus(t, newTestServer(t), t.TempDir())
	err := c.Setup(context.Background(), []string{"NOPE", "MW"}, false)

	var dictErr *DictError
	if !errors.As(err, &dictErr) {
		t.Fatalf("Setup: got %v, want a *DictError", err)
	}
	if diff := cmp.Diff("NOPE", dictErr.ID); diff != "" {
		t.Errorf("DictError.ID (-want, +got):\n%s", diff)
	}
	if !errors.Is(err, ErrUnknownDictionary) {
		t.Errorf("Setup: got %v, want %v", err, ErrUnknownDictionary)
	}
	if diff := cmp.Diff(StateInstalled, c.State("MW")); diff != "" {
		t.Errorf("State(MW) (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(StateUnknown, c.State("NOPE")); diff != "" {
		t.Errorf("State(NOPE) (-want, +got):\n%s", diff)
	}
}

func TestCorpus_InstallFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		failure testutil.Failure
		want    error
	}{
		{name: "truncated", failure: testutil.FailTruncate, want: ErrDownloadFailed},
		{name: "status", failure: testutil.FailStatus, want: ErrDownloadFailed},
		{name: "corrupt", failure: testutil.FailCorrupt, want: ErrCorruptArchive},
		{name: "size", failure: testutil.FailSize, want: ErrCorruptArchive},
		{name: "malformed", failure: testutil.FailMalformed, want: ErrBuildFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(t)
			s.Fail("AP90", tc.failure)
			c := newTestCorpus(t, s, t.TempDir())

			err := c.Setup(context.Background(), []string{"AP90"}, false)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Setup: got %v, want %v", err, tc.want)
			}
			var dictErr *DictError
			if !errors.As(err, &dictErr) || dictErr.Op != "install" {
				t.Errorf("Setup: got %v, want an install *DictError", err)
			}

			if diff := cmp.Diff(StateAvailable, c.State("AP90")); diff != "" {
				t.Errorf("State (-want, +got):\n%s", diff)
			}
			if _, err := os.Stat(filepath.Join(c.dictDir(), "AP90")); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("installation directory: got %v, want %v", err, os.ErrNotExist)
			}
			if got := stagingEntries(t, c); len(got) != 0 {
				t.Errorf("staging: got %v, want empty", got)
			}
		})
	}
}

func TestCorpus_Update(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	c := newInstalledCorpus(t, s, "MW")
	ctx := context.Background()
	q := &Query{InputScheme: translit.SLP1}

	// Up to date.
	if err := c.Setup(ctx, []string{"MW"}, true); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if diff := cmp.Diff(1, s.Downloads("MW")); diff != "" {
		t.Errorf("Downloads (-want, +got):\n%s", diff)
	}
	if ok, err := c.CheckUpdate(ctx, "MW"); err != nil || ok {
		t.Errorf("CheckUpdate: got %v, %v, want false", ok, err)
	}

	newer := testutil.NewDict("MW", testutil.SmallRecords)
	newer.LastModified = "2025-06-01 00:00:00"
	s.Set(newer)
	if ok, err := c.CheckUpdate(ctx, "MW"); err != nil || !ok {
		t.Errorf("CheckUpdate: got %v, %v, want true", ok, err)
	}

	// A failed update leaves the installation untouched.
	dir := filepath.Join(c.dictDir(), "MW")
	before := hashDir(t, dir)
	s.Fail("MW", testutil.FailTruncate)
	if err := c.Setup(ctx, []string{"MW"}, true); !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("Setup: got %v, want %v", err, ErrDownloadFailed)
	}
	if diff := cmp.Diff(before, hashDir(t, dir)); diff != "" {
		t.Errorf("installation changed (-want, +got):\n%s", diff)
	}
	if got := stagingEntries(t, c); len(got) != 0 {
		t.Errorf("staging: got %v, want empty", got)
	}
	d, err := c.Dictionary("MW")
	if err != nil {
		t.Fatalf("Dictionary: %v", err)
	}
	got, err := d.Search(ctx, "hfzIkeSa", q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff(testutil.HrsikesaKeyIDs, entryIDs(got)); diff != "" {
		t.Errorf("Search after failed update (-want, +got):\n%s", diff)
	}

	s.Fail("MW", testutil.FailNone)
	if err := c.Setup(ctx, []string{"MW"}, true); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	got, err = d.Search(ctx, "agni", q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff([]string{"2", "3"}, entryIDs(got)); diff != "" {
		t.Errorf("Search after update (-want, +got):\n%s", diff)
	}
	if marker := d.Metadata().BuildMarker; !strings.HasPrefix(marker, newer.LastModified+"|") {
		t.Errorf("BuildMarker: got %q, want the new release", marker)
	}
	if got := stagingEntries(t, c); len(got) != 0 {
		t.Errorf("staging: got %v, want empty", got)
	}
}

func TestCorpus_SetupConcurrent(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	c := newTestCorpus(t, s, t.TempDir())

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Setup(context.Background(), []string{"MW", "mw"}, false)
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if diff := cmp.Diff(1, s.Downloads("MW")); diff != "" {
		t.Errorf("Downloads (-want, +got):\n%s", diff)
	}
}

func TestCorpus_Reload(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	dir := t.TempDir()
	c := newTestCorpus(t, s, dir)
	if err := c.Setup(context.Background(), []string{"MW", "AP90"}, false); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Leftovers of an interrupted install and a broken installation.
	if err := os.MkdirAll(filepath.Join(dir, stagingDirName, "WIL-leftover"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, dictDirName, "AE"), 0o755); err != nil {
		t.Fatal(err)
	}

	c = newTestCorpus(t, s, dir)
	if diff := cmp.Diff([]string{"MW", "AP90"}, c.Installed()); diff != "" {
		t.Errorf("Installed (-want, +got):\n%s", diff)
	}
	var ids []string
	for _, m := range c.Available() {
		ids = append(ids, m.ID)
	}
	if diff := cmp.Diff([]string{"WIL", "MW", "AP90", "MWE", "AE"}, ids); diff != "" {
		t.Errorf("Available (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(StateAvailable, c.State("AE")); diff != "" {
		t.Errorf("State(AE) (-want, +got):\n%s", diff)
	}
	if got := stagingEntries(t, c); len(got) != 0 {
		t.Errorf("staging: got %v, want empty", got)
	}

	d, err := c.Dictionary("AP90")
	if err != nil {
		t.Fatalf("Dictionary: %v", err)
	}
	if e := d.Entry(context.Background(), "5.2", translit.IAST); e == nil || e.Value != "daśaratha" {
		t.Errorf("Entry(5.2): got %v", e)
	}
}

func TestCorpus_RecoverBackup(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	c := newInstalledCorpus(t, s, "AP90")
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// An update interrupted after the installation was moved aside.
	backup := filepath.Join(c.stagingDir(), "AP90-0000"+backupSuffix)
	if err := os.MkdirAll(c.stagingDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(filepath.Join(c.dictDir(), "AP90"), backup); err != nil {
		t.Fatal(err)
	}

	c = newTestCorpus(t, s, c.opts.DataDir)
	if diff := cmp.Diff(StateInstalled, c.State("AP90")); diff != "" {
		t.Errorf("State (-want, +got):\n%s", diff)
	}
	if got := stagingEntries(t, c); len(got) != 0 {
		t.Errorf("staging: got %v, want empty", got)
	}
}

func TestCorpus_Rebuild(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	c := newInstalledCorpus(t, s, "MW")
	ctx := context.Background()
	d, err := c.Dictionary("MW")
	if err != nil {
		t.Fatalf("Dictionary: %v", err)
	}
	marker := d.Metadata().BuildMarker

	if err := c.Rebuild(ctx, "MW"); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if diff := cmp.Diff(1, s.Downloads("MW")); diff != "" {
		t.Errorf("Downloads (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(marker, d.Metadata().BuildMarker); diff != "" {
		t.Errorf("BuildMarker (-want, +got):\n%s", diff)
	}
	got, err := d.Search(ctx, "hfzIkeSa", &Query{InputScheme: translit.SLP1, Mode: ModeBoth})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff(7, len(got)); diff != "" {
		t.Errorf("Search (-want, +got):\n%s", diff)
	}

	if err := c.Rebuild(ctx, "AP90"); !errors.Is(err, ErrDictionaryNotInstalled) {
		t.Errorf("Rebuild(AP90): got %v, want %v", err, ErrDictionaryNotInstalled)
	}
}

func TestCorpus_UpdateDuringIteration(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	c := newInstalledCorpus(t, s, "MW")
	ctx := context.Background()
	d, err := c.Dictionary("MW")
	if err != nil {
		t.Fatalf("Dictionary: %v", err)
	}
	marker := d.Metadata().BuildMarker

	newer := testutil.NewDict("MW", testutil.HrsikesaRecords)
	newer.LastModified = "2025-06-01 00:00:00"
	s.Set(newer)

	// The update runs in the iterating goroutine and must not wait for the
	// iteration to finish.
	var got []string
	for e, err := range d.Entries(ctx, translit.SLP1) {
		if err != nil {
			t.Errorf("Entries: %v", err)
			break
		}
		if len(got) == 0 {
			if err := c.Setup(ctx, []string{"MW"}, true); err != nil {
				t.Errorf("Setup: %v", err)
				break
			}
		}
		if _, err := d.Get(ctx, e.ID, translit.SLP1); err != nil {
			t.Errorf("Get(%s): %v", e.ID, err)
		}
		got = append(got, e.ID)
	}

	var want []string
	for e, err := range d.Entries(ctx, translit.SLP1) {
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		want = append(want, e.ID)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Entries (-want, +got):\n%s", diff)
	}
	if d.Metadata().BuildMarker == marker {
		t.Errorf("BuildMarker: got %q, want the new release", marker)
	}
	if diff := cmp.Diff(2, s.Downloads("MW")); diff != "" {
		t.Errorf("Downloads (-want, +got):\n%s", diff)
	}
	if got := stagingEntries(t, c); len(got) != 0 {
		t.Errorf("staging: got %v, want empty", got)
	}
}

// cancelTransport cancels the download context once the archive starts
// arriving.
type cancelTransport struct {
	Transport
	cancel context.CancelFunc
}

func (t *cancelTransport) Fetch(ctx context.Context, url string, size int64, w io.Writer) error {
	return t.Transport.Fetch(ctx, url, size, &cancelWriter{ctx: ctx, cancel: t.cancel})
}

type cancelWriter struct {
	ctx    context.Context //nolint:containedctx // canceled by Write
	cancel context.CancelFunc
}

func (w *cancelWriter) Write([]byte) (int, error) {
	w.cancel()
	return 0, w.ctx.Err()
}

func TestCorpus_UpdateCanceled(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	dir := t.TempDir()
	c := newTestCorpus(t, s, dir)
	if err := c.Setup(context.Background(), []string{"MW"}, false); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	client, err := remote.NewClient(&remote.Options{
		ServerURL:  s.URL,
		HTTPClient: s.Client(),
		Logger:     slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("remote.NewClient: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, err = New(context.Background(), &Options{
		DataDir:   dir,
		Registry:  client,
		Transport: &cancelTransport{Transport: client, cancel: cancel},
		Logger:    slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Close()
	})

	newer := testutil.NewDict("MW", testutil.SmallRecords)
	newer.LastModified = "2025-06-01 00:00:00"
	s.Set(newer)

	installDir := filepath.Join(c.dictDir(), "MW")
	before := hashDir(t, installDir)
	err = c.Setup(ctx, []string{"MW"}, true)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Setup: got %v, want %v", err, context.Canceled)
	}
	if !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("Setup: got %v, want %v", err, ErrDownloadFailed)
	}

	if diff := cmp.Diff(before, hashDir(t, installDir)); diff != "" {
		t.Errorf("installation changed (-want, +got):\n%s", diff)
	}
	if got := stagingEntries(t, c); len(got) != 0 {
		t.Errorf("staging: got %v, want empty", got)
	}
	if diff := cmp.Diff(StateInstalled, c.State("MW")); diff != "" {
		t.Errorf("State (-want, +got):\n%s", diff)
	}
	d, err := c.Dictionary("MW")
	if err != nil {
		t.Fatalf("Dictionary: %v", err)
	}
	got, err := d.Search(context.Background(), "hfzIkeSa", &Query{InputScheme: translit.SLP1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff(testutil.HrsikesaKeyIDs, entryIDs(got)); diff != "" {
		t.Errorf("Search after canceled update (-want, +got):\n%s", diff)
	}
}
