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
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ianlewis/go-cdsl/translit"
)

const (
	// UseAll selects every installed dictionary in [Corpus.Use].
	UseAll = "--all"

	// UseNone clears the active dictionaries in [Corpus.Use].
	UseNone = "--none"
)

const (
	registryFileName = "registry.yaml"
	dictDirName      = "dict"
	stagingDirName   = "staging"
	backupSuffix     = ".bak"
)

// State is the installation state of a dictionary.
type State int

const (
	// StateUnknown is the state of ids not in the registry.
	StateUnknown State = iota

	// StateAvailable is the state of dictionaries that can be installed.
	StateAvailable

	// StateInstalled is the state of installed dictionaries.
	StateInstalled
)

// String implements [fmt.Stringer].
func (s State) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateInstalled:
		return "installed"
	default:
		return "unknown"
	}
}

// Corpus manages a collection of dictionaries: the registry of dictionaries
// available for download, the installed dictionaries and the active
// dictionaries searched by default. It is safe for concurrent use.
type Corpus struct {
	opts *Options
	log  *slog.Logger

	// flight collapses concurrent installs of the same dictionary.
	flight singleflight.Group

	// mu guards the fields below.
	mu        sync.RWMutex
	registry  []*Metadata
	installed map[string]*Dictionary
	active    []string
}

// New returns a corpus for the data directory in opts. The cached registry
// and every valid installation in the data directory are loaded. Invalid
// installations are skipped with a warning.
func New(ctx context.Context, opts *Options) (*Corpus, error) {
	o, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	c := &Corpus{
		opts:      o,
		log:       o.Logger.With("component", "corpus"),
		installed: map[string]*Dictionary{},
	}

	if err := os.MkdirAll(c.dictDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	c.recover(ctx)

	var reg registryFile
	err = readYAML(c.registryPath(), &reg)
	switch {
	case err == nil:
		for _, m := range reg.Dictionaries {
			if m != nil && m.ID != "" {
				c.registry = append(c.registry, m)
			}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		c.log.WarnContext(ctx, "ignoring registry cache", "error", err)
	}

	dirs, err := os.ReadDir(c.dictDir())
	if err != nil {
		return nil, fmt.Errorf("reading installed dictionaries: %w", err)
	}
	for _, e := range dirs {
		if !e.IsDir() {
			continue
		}
		d, err := openDictionary(ctx, filepath.Join(c.dictDir(), e.Name()), c.defaultSettings(e.Name()), o.Logger)
		if err != nil {
			c.log.WarnContext(ctx, "skipping invalid installation", "dict", e.Name(), "error", err)
			continue
		}
		meta := d.Metadata()
		if meta.ID != e.Name() {
			c.log.WarnContext(ctx, "skipping misplaced installation", "dict", e.Name(), "marker", meta.ID)
			_ = d.Close()
			continue
		}
		c.installed[meta.ID] = d
		c.mergeLocked(&meta)
	}
	return c, nil
}

func (c *Corpus) dictDir() string {
	return filepath.Join(c.opts.DataDir, dictDirName)
}

func (c *Corpus) stagingDir() string {
	return filepath.Join(c.opts.DataDir, stagingDirName)
}

func (c *Corpus) registryPath() string {
	return filepath.Join(c.opts.DataDir, registryFileName)
}

// defaultSettings returns the initial search settings of the dictionary
// with the given id.
func (c *Corpus) defaultSettings(id string) Settings {
	return Settings{
		InputScheme:  c.opts.InputScheme,
		OutputScheme: c.opts.OutputScheme,
		Mode:         c.opts.Mode,
		TransliterateKeys: !c.opts.KeepKeys &&
			!slices.ContainsFunc(c.opts.EnglishDictionaries, func(e string) bool {
				return strings.EqualFold(e, id)
			}),
	}
}

// recover restores installations left moved aside by an interrupted update
// and removes leftover staging directories.
func (c *Corpus) recover(ctx context.Context) {
	entries, err := os.ReadDir(c.stagingDir())
	if err != nil {
		return
	}
	for _, e := range entries {
		path := filepath.Join(c.stagingDir(), e.Name())
		if id, ok := strings.CutSuffix(e.Name(), backupSuffix); ok {
			id, _, _ = strings.Cut(id, "-")
			target := filepath.Join(c.dictDir(), id)
			if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
				c.log.WarnContext(ctx, "restoring interrupted update", "dict", id)
				if err := os.Rename(path, target); err == nil {
					continue
				}
			}
		}
		if err := os.RemoveAll(path); err != nil {
			c.log.WarnContext(ctx, "removing staging directory", "path", path, "error", err)
		}
	}
}

// mergeLocked adds or updates m in the registry. c.mu must be held for
// writing or the corpus must not yet be shared.
func (c *Corpus) mergeLocked(m *Metadata) {
	for i, r := range c.registry {
		if r.ID == m.ID {
			c.registry[i] = m.clone()
			return
		}
	}
	c.registry = append(c.registry, m.clone())
}

func (c *Corpus) lookupLocked(id string) *Metadata {
	for _, m := range c.registry {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// writeRegistryLocked writes the registry cache. c.mu must be held.
func (c *Corpus) writeRegistryLocked() error {
	return writeYAML(c.registryPath(), &registryFile{
		Updated:      time.Now().UTC(),
		Dictionaries: c.registry,
	})
}

// normalizeIDs upper cases ids and removes duplicates, keeping the first
// occurrence.
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToUpper(strings.TrimSpace(id))
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Refresh fetches the list of available dictionaries and merges it into the
// registry. Remote dictionaries come first in the order they are listed.
func (c *Corpus) Refresh(ctx context.Context) error {
	_, err, _ := c.flight.Do("\x00refresh", func() (any, error) {
		listings, err := c.opts.Registry.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("refreshing registry: %w", err)
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		registry := make([]*Metadata, 0, len(listings)+len(c.registry))
		for _, l := range listings {
			m := newMetadata(l)
			if old := c.lookupLocked(l.ID); old != nil && old.BuildMarker != "" {
				// Keep the details of the installed release.
				m.ArchiveURL = old.ArchiveURL
				m.Size = old.Size
				m.BuildMarker = old.BuildMarker
				m.Installed = old.Installed
			}
			registry = append(registry, m)
		}
		for _, old := range c.registry {
			if !slices.ContainsFunc(registry, func(m *Metadata) bool { return m.ID == old.ID }) {
				registry = append(registry, old)
			}
		}
		c.registry = registry
		c.log.InfoContext(ctx, "refreshed registry", "count", len(listings))
		return nil, c.writeRegistryLocked()
	})
	//nolint:wrapcheck // error is already wrapped
	return err
}

// Setup installs the dictionaries with the given ids. Dictionaries that are
// already installed are checked for updates if update is true. With no ids
// the default dictionaries and every installed dictionary are set up.
//
// Dictionaries are set up concurrently and independently. The returned
// error joins a [*DictError] for each dictionary that failed; a failure
// leaves that dictionary's prior state untouched.
func (c *Corpus) Setup(ctx context.Context, ids []string, update bool) error {
	if len(ids) == 0 {
		ids = append(slices.Clone(c.opts.DefaultDictionaries), c.Installed()...)
	}
	ids = normalizeIDs(ids)

	c.mu.RLock()
	var unknown bool
	for _, id := range ids {
		if c.lookupLocked(id) == nil {
			unknown = true
			break
		}
	}
	c.mu.RUnlock()

	var refreshErr error
	if unknown {
		refreshErr = c.Refresh(ctx)
		if refreshErr != nil {
			c.log.WarnContext(ctx, "registry refresh failed", "error", refreshErr)
		}
	}

	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(c.opts.Workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := c.setupOne(ctx, id, update, refreshErr); err != nil {
				errs[i] = err
			}
			// Failures are isolated per dictionary.
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (c *Corpus) setupOne(ctx context.Context, id string, update bool, refreshErr error) error {
	c.mu.RLock()
	meta := c.lookupLocked(id)
	d := c.installed[id]
	c.mu.RUnlock()

	if meta == nil {
		err := fmt.Errorf("%w: %s", ErrUnknownDictionary, id)
		if refreshErr != nil {
			err = errors.Join(err, refreshErr)
		}
		return &DictError{ID: id, Op: "setup", Err: err}
	}
	if d != nil && !update {
		return nil
	}

	op := "install"
	if d != nil {
		op = "update"
	}
	_, err, _ := c.flight.Do(id, func() (any, error) {
		ctx := ctx
		if c.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
			defer cancel()
		}
		// Another caller may have finished installing in the meantime.
		c.mu.RLock()
		d := c.installed[id]
		c.mu.RUnlock()
		switch {
		case d == nil:
			return nil, c.install(ctx, meta.clone())
		case update:
			return nil, c.update(ctx, d)
		default:
			return nil, nil
		}
	})
	if err != nil {
		return &DictError{ID: id, Op: op, Err: err}
	}
	return nil
}

// CheckUpdate returns true if a newer release of an installed dictionary is
// available.
func (c *Corpus) CheckUpdate(ctx context.Context, id string) (bool, error) {
	d, err := c.Dictionary(id)
	if err != nil {
		return false, err
	}
	meta := d.Metadata()
	rel, err := c.opts.Registry.Release(ctx, meta.URL)
	if err != nil {
		return false, fmt.Errorf("%w: checking %s for updates: %v", ErrDownloadFailed, meta.ID, err)
	}
	return rel.Marker() != meta.BuildMarker, nil
}

// Use replaces the active dictionaries with ids, in the given order. [UseAll]
// activates every installed dictionary and [UseNone] clears the active
// dictionaries. Dictionaries that are not installed are installed first;
// those that fail to install are left out and reported in the returned
// error.
func (c *Corpus) Use(ctx context.Context, ids ...string) error {
	switch {
	case slices.Contains(ids, UseAll):
		installed := c.Installed()
		c.mu.Lock()
		c.active = installed
		c.mu.Unlock()
		return nil
	case slices.Contains(ids, UseNone):
		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()
		return nil
	}

	ids = normalizeIDs(ids)
	var missing []string
	c.mu.RLock()
	for _, id := range ids {
		if _, ok := c.installed[id]; !ok {
			missing = append(missing, id)
		}
	}
	c.mu.RUnlock()

	var err error
	if len(missing) > 0 {
		err = c.Setup(ctx, missing, false)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	active := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := c.installed[id]; ok {
			active = append(active, id)
		}
	}
	c.active = active
	return err
}

// Search sends the query to each target dictionary concurrently and returns
// the results in target order. The targets are q.DictIDs or else the active
// dictionaries. Limit and offset apply to each dictionary separately. A
// failure in one dictionary is reported in its [Result] and does not affect
// the others.
func (c *Corpus) Search(ctx context.Context, pattern string, q *Query) ([]*Result, error) {
	var query Query
	if q != nil {
		query = *q
	}
	if err := validateQuery(&query); err != nil {
		return nil, fmt.Errorf("searching for %q: %w", pattern, err)
	}

	c.mu.RLock()
	targets := normalizeIDs(query.DictIDs)
	if len(targets) == 0 {
		targets = slices.Clone(c.active)
	}
	dicts := make([]*Dictionary, len(targets))
	for i, id := range targets {
		dicts[i] = c.installed[id]
	}
	c.mu.RUnlock()

	if len(targets) == 0 {
		return nil, ErrNoActiveDictionaries
	}

	results := make([]*Result, len(targets))
	var wg sync.WaitGroup
	for i, id := range targets {
		results[i] = &Result{DictID: id}
		if dicts[i] == nil {
			results[i].Err = fmt.Errorf("%w: %s", ErrDictionaryNotInstalled, id)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i].Entries, results[i].Err = dicts[i].Search(ctx, pattern, &query)
		}()
	}
	wg.Wait()

	if query.OmitEmpty {
		results = slices.DeleteFunc(results, func(r *Result) bool {
			return r.Err == nil && len(r.Entries) == 0
		})
	}
	return results, nil
}

// validateQuery checks the query fields shared by all dictionaries.
func validateQuery(q *Query) error {
	if q.InputScheme != "" {
		if _, err := translit.Validate(string(q.InputScheme)); err != nil {
			return err
		}
	}
	if q.OutputScheme != "" {
		if _, err := translit.Validate(string(q.OutputScheme)); err != nil {
			return err
		}
	}
	if q.Mode != "" {
		if err := q.Mode.Validate(); err != nil {
			return err
		}
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("%w: limit %d, offset %d", ErrInvalidLimit, q.Limit, q.Offset)
	}
	return nil
}

// Dictionary returns the installed dictionary with the given id.
func (c *Corpus) Dictionary(id string) (*Dictionary, error) {
	id = strings.ToUpper(strings.TrimSpace(id))

	c.mu.RLock()
	defer c.mu.RUnlock()
	if d, ok := c.installed[id]; ok {
		return d, nil
	}
	if c.lookupLocked(id) != nil {
		return nil, fmt.Errorf("%w: %s", ErrDictionaryNotInstalled, id)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownDictionary, id)
}

// Dictionaries returns the installed dictionaries in registry order.
func (c *Corpus) Dictionaries() iter.Seq[*Dictionary] {
	c.mu.RLock()
	var dicts []*Dictionary
	for _, m := range c.registry {
		if d, ok := c.installed[m.ID]; ok {
			dicts = append(dicts, d)
		}
	}
	c.mu.RUnlock()
	return slices.Values(dicts)
}

// Installed returns the ids of the installed dictionaries in registry order.
func (c *Corpus) Installed() []string {
	ids := []string{}
	for d := range c.Dictionaries() {
		ids = append(ids, d.ID())
	}
	return ids
}

// Active returns the ids of the active dictionaries.
func (c *Corpus) Active() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string{}, c.active...)
}

// Available returns the metadata of every dictionary in the registry.
func (c *Corpus) Available() []*Metadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Metadata, 0, len(c.registry))
	for _, m := range c.registry {
		out = append(out, m.clone())
	}
	return out
}

// State returns the installation state of the dictionary with the given id.
func (c *Corpus) State(id string) State {
	id = strings.ToUpper(strings.TrimSpace(id))

	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.installed[id]; ok {
		return StateInstalled
	}
	if c.lookupLocked(id) != nil {
		return StateAvailable
	}
	return StateUnknown
}

// Close closes every installed dictionary.
func (c *Corpus) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for id, d := range c.installed {
		if err := d.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", id, err))
		}
	}
	c.installed = map[string]*Dictionary{}
	c.active = nil
	return errors.Join(errs...)
}
