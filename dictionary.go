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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ianlewis/go-cdsl/internal/folding"
	"github.com/ianlewis/go-cdsl/store"
	"github.com/ianlewis/go-cdsl/translit"
)

// Files in a dictionary's installation directory.
const (
	storeFile   = "entries.db"
	markerFile  = "marker.yaml"
	sourceFile  = "source.xml.dz"
	archiveFile = "archive.zip"
)

// Dictionary is an installed dictionary. It is safe for concurrent use.
type Dictionary struct {
	dir string
	log *slog.Logger

	// mu guards cur, which is replaced when the dictionary is updated.
	mu  sync.RWMutex
	cur *installation

	settingsMu sync.RWMutex
	settings   Settings
}

// installation is an opened entry store and the metadata it was built from.
// A replaced installation stays open until its last reader releases it.
type installation struct {
	st   *store.Store
	meta *Metadata

	mu      sync.Mutex
	readers int
	retired bool
}

func (in *installation) acquire() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.readers++
}

func (in *installation) release() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.readers--
	if in.retired && in.readers == 0 {
		//nolint:wrapcheck // error should not be wrapped
		return in.st.Close()
	}
	return nil
}

// retire marks the installation as replaced and closes its store if there
// are no readers.
func (in *installation) retire() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.retired {
		return nil
	}
	in.retired = true
	if in.readers == 0 {
		//nolint:wrapcheck // error should not be wrapped
		return in.st.Close()
	}
	return nil
}

// openDictionary opens the installation in dir. The directory must hold a
// valid build marker and entry store.
func openDictionary(ctx context.Context, dir string, settings Settings, log *slog.Logger) (*Dictionary, error) {
	in, err := loadInstallation(ctx, dir)
	if err != nil {
		return nil, err
	}
	return &Dictionary{
		dir:      dir,
		log:      log.With("dict", in.meta.ID),
		cur:      in,
		settings: settings,
	}, nil
}

func loadInstallation(ctx context.Context, dir string) (*installation, error) {
	meta, err := readMarker(filepath.Join(dir, markerFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDictionaryNotInstalled, err)
	}
	st, err := store.Open(ctx, filepath.Join(dir, storeFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDictionaryNotInstalled, meta.ID, err)
	}
	return &installation{st: st, meta: meta}, nil
}

// acquire returns the current installation. The caller must pass it to
// release when done. Holding an installation never blocks an update.
func (d *Dictionary) acquire() *installation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	d.cur.acquire()
	return d.cur
}

func (d *Dictionary) release(ctx context.Context, in *installation) {
	if err := in.release(); err != nil {
		d.log.WarnContext(ctx, "closing replaced store", "error", err)
	}
}

// ID returns the dictionary id.
func (d *Dictionary) ID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cur.meta.ID
}

// Metadata returns a copy of the dictionary's metadata.
func (d *Dictionary) Metadata() Metadata {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return *d.cur.meta
}

// Settings returns the dictionary's current search settings.
func (d *Dictionary) Settings() Settings {
	d.settingsMu.RLock()
	defer d.settingsMu.RUnlock()
	return d.settings
}

// SetInputScheme sets the scheme patterns are written in by default.
func (d *Dictionary) SetInputScheme(name string) error {
	s, err := translit.Validate(name)
	if err != nil {
		return err
	}
	d.settingsMu.Lock()
	defer d.settingsMu.Unlock()
	d.settings.InputScheme = s
	return nil
}

// SetOutputScheme sets the scheme results are written in by default.
func (d *Dictionary) SetOutputScheme(name string) error {
	s, err := translit.Validate(name)
	if err != nil {
		return err
	}
	d.settingsMu.Lock()
	defer d.settingsMu.Unlock()
	d.settings.OutputScheme = s
	return nil
}

// SetMode sets the default search mode.
func (d *Dictionary) SetMode(m Mode) error {
	if err := m.Validate(); err != nil {
		return err
	}
	d.settingsMu.Lock()
	defer d.settingsMu.Unlock()
	d.settings.Mode = m
	return nil
}

// SetTransliterateKeys sets whether headwords and search patterns are
// transliterated. Dictionaries with English headwords keep their keys as
// they are.
func (d *Dictionary) SetTransliterateKeys(b bool) {
	d.settingsMu.Lock()
	defer d.settingsMu.Unlock()
	d.settings.TransliterateKeys = b
}

// resolved is a query with every setting filled in.
type resolved struct {
	Query
	transliterateKeys bool
}

// resolve fills the empty fields of q from the current settings and
// validates the schemes.
func (d *Dictionary) resolve(q *Query) (resolved, error) {
	var r resolved
	if q != nil {
		r.Query = *q
	}
	s := d.Settings()
	r.transliterateKeys = s.TransliterateKeys
	if r.InputScheme == "" {
		r.InputScheme = s.InputScheme
	}
	if r.OutputScheme == "" {
		r.OutputScheme = s.OutputScheme
	}
	if r.Mode == "" {
		r.Mode = s.Mode
	}

	var err error
	if r.InputScheme, err = translit.Validate(string(r.InputScheme)); err != nil {
		return r, err
	}
	if r.OutputScheme, err = translit.Validate(string(r.OutputScheme)); err != nil {
		return r, err
	}
	return r, nil
}

// Search returns the entries matching pattern. The pattern is written in
// the query's input scheme and may contain the wildcard "*". Without a
// wildcard the pattern must match a key or value exactly. Values are
// matched without their markup. Results are in ascending id order and
// written in the query's output scheme.
func (d *Dictionary) Search(ctx context.Context, pattern string, q *Query) ([]*Entry, error) {
	r, err := d.resolve(q)
	if err != nil {
		return nil, fmt.Errorf("searching %s for %q: %w", d.ID(), pattern, err)
	}

	in := d.acquire()
	defer d.release(ctx, in)

	p := folding.Pattern(pattern)
	if r.transliterateKeys {
		p, err = translit.ConvertPattern(p, r.InputScheme, StorageScheme)
		if err != nil {
			return nil, fmt.Errorf("searching %s for %q: %w", in.meta.ID, pattern, err)
		}
	}

	results, err := in.st.Search(ctx, p, &store.SearchOptions{
		Mode:       r.Mode,
		Limit:      r.Limit,
		Offset:     r.Offset,
		IgnoreCase: r.IgnoreCase,
	})
	if err != nil {
		return nil, fmt.Errorf("searching %s for %q (%s, %s): %w", in.meta.ID, pattern, r.InputScheme, r.Mode, err)
	}

	entries := make([]*Entry, 0, len(results))
	for _, e := range results {
		entries = append(entries, convert(in.meta.ID, e, &r))
	}
	return entries, nil
}

// convert converts a stored entry to the output scheme. Sub-entry keys are
// print forms and are never converted.
func convert(dictID string, e *store.Entry, r *resolved) *Entry {
	out := &Entry{
		DictID: dictID,
		ID:     e.ID,
		Base:   e.Base,
		Sub:    e.Sub,
		Key:    e.Key,
		AltKey: e.AltKey,
		Value:  e.Value,
		Data:   e.Data,
		Page:   e.Page,
	}
	// Both schemes are validated by the callers so conversions cannot fail.
	if e.Sub != 0 {
		out.Value = translit.MustConvert(e.Value, StorageScheme, r.OutputScheme)
		return out
	}
	if r.transliterateKeys {
		out.Key = translit.MustConvert(e.Key, StorageScheme, r.OutputScheme)
		out.AltKey = translit.MustConvert(e.AltKey, StorageScheme, r.OutputScheme)
	}
	if v, err := translit.ConvertMarkup(e.Value, StorageScheme, r.OutputScheme); err == nil {
		out.Value = v
	}
	return out
}

// Get returns the entry with the given id written in scheme, or the
// current output scheme if scheme is empty. It returns an error wrapping
// [ErrEntryNotFound] if there is no such entry.
func (d *Dictionary) Get(ctx context.Context, id string, scheme translit.Scheme) (*Entry, error) {
	r, err := d.resolve(&Query{OutputScheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("getting %s entry %q: %w", d.ID(), id, err)
	}

	in := d.acquire()
	defer d.release(ctx, in)

	e, err := in.st.Entry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting %s entry %q: %w", in.meta.ID, id, err)
	}
	return convert(in.meta.ID, e, &r), nil
}

// Entry returns the entry with the given id like [Dictionary.Get] but
// returns nil, after logging the error, if the entry cannot be read.
func (d *Dictionary) Entry(ctx context.Context, id string, scheme translit.Scheme) *Entry {
	e, err := d.Get(ctx, id, scheme)
	if err != nil {
		d.log.ErrorContext(ctx, "entry lookup failed", "id", id, "error", err)
		return nil
	}
	return e
}

// Stats returns statistics about the dictionary with up to top most
// frequent headwords written in scheme.
func (d *Dictionary) Stats(ctx context.Context, top int, scheme translit.Scheme) (*Stats, error) {
	r, err := d.resolve(&Query{OutputScheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("stats for %s: %w", d.ID(), err)
	}

	in := d.acquire()
	defer d.release(ctx, in)

	st, err := in.st.Stats(ctx, top)
	if err != nil {
		return nil, fmt.Errorf("stats for %s: %w", in.meta.ID, err)
	}

	stats := &Stats{
		Total:    st.Total,
		Distinct: st.Distinct,
		Top:      make([]store.KeyCount, 0, len(st.Top)),
	}
	for _, kc := range st.Top {
		if r.transliterateKeys {
			kc.Key = translit.MustConvert(kc.Key, StorageScheme, r.OutputScheme)
		}
		stats.Top = append(stats.Top, kc)
	}
	return stats, nil
}

// Entries returns every entry of the dictionary in ascending id order,
// written in scheme. An iteration in progress reads the installation it
// started with even if the dictionary is updated meanwhile.
func (d *Dictionary) Entries(ctx context.Context, scheme translit.Scheme) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		r, err := d.resolve(&Query{OutputScheme: scheme})
		if err != nil {
			yield(nil, err)
			return
		}

		in := d.acquire()
		defer d.release(ctx, in)

		for e, err := range in.st.All(ctx) {
			if err != nil {
				yield(nil, fmt.Errorf("reading %s: %w", in.meta.ID, err))
				return
			}
			if !yield(convert(in.meta.ID, e, &r), nil) {
				return
			}
		}
	}
}

type dumpEntry struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Data string `json:"data"`
	Text string `json:"text"`
}

// Dump writes every entry of the dictionary to w as a JSON array.
func (d *Dictionary) Dump(ctx context.Context, w io.Writer, scheme translit.Scheme) error {
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return fmt.Errorf("dumping %s: %w", d.ID(), err)
	}
	first := true
	for e, err := range d.Entries(ctx, scheme) {
		if err != nil {
			return fmt.Errorf("dumping: %w", err)
		}
		b, err := json.Marshal(&dumpEntry{
			ID:   e.ID,
			Key:  e.Key,
			Data: e.Data,
			Text: e.Meaning(),
		})
		if err != nil {
			return fmt.Errorf("dumping %s: %w", e.DictID, err)
		}
		if !first {
			if _, err := io.WriteString(w, ",\n"); err != nil {
				return fmt.Errorf("dumping %s: %w", e.DictID, err)
			}
		}
		first = false
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("dumping %s: %w", e.DictID, err)
		}
	}
	if _, err := io.WriteString(w, "\n]\n"); err != nil {
		return fmt.Errorf("dumping %s: %w", d.ID(), err)
	}
	return nil
}

// replace swaps the installation with the one staged in staging. Readers
// holding the old installation finish against it and later readers see the
// new one. On failure the old installation is restored.
func (d *Dictionary) replace(ctx context.Context, staging, backup string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.cur.retire(); err != nil {
		d.log.WarnContext(ctx, "closing store", "error", err)
	}

	restore := func(cause error) error {
		in, err := loadInstallation(ctx, d.dir)
		if err != nil {
			return errors.Join(cause, fmt.Errorf("restoring %s: %w", d.dir, err))
		}
		d.cur = in
		return cause
	}

	if err := os.Rename(d.dir, backup); err != nil {
		return restore(fmt.Errorf("moving %s aside: %w", d.dir, err))
	}
	if err := os.Rename(staging, d.dir); err != nil {
		if rbErr := os.Rename(backup, d.dir); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return restore(fmt.Errorf("installing %s: %w", staging, err))
	}

	in, err := loadInstallation(ctx, d.dir)
	if err != nil {
		rbErr := errors.Join(os.RemoveAll(d.dir), os.Rename(backup, d.dir))
		if rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return restore(err)
	}
	d.cur = in

	if err := os.RemoveAll(backup); err != nil {
		d.log.WarnContext(ctx, "removing backup", "path", backup, "error", err)
	}
	return nil
}

// Close closes the dictionary's store. Readers in progress finish first.
func (d *Dictionary) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cur.retire()
}
