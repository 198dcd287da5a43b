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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ianlewis/go-cdsl/remote"
	"github.com/ianlewis/go-cdsl/translit"
)

// StorageScheme is the scheme every CDSL dictionary stores its entries in.
const StorageScheme = translit.SLP1

// DefaultScheme is the default input and output scheme.
const DefaultScheme = translit.Devanagari

// Registry lists the dictionaries available for download and their current
// releases.
type Registry interface {
	// List returns the available dictionaries.
	List(ctx context.Context) ([]*remote.Listing, error)

	// Release returns the current release on a dictionary's download page.
	Release(ctx context.Context, pageURL string) (*remote.Release, error)
}

// Transport downloads dictionary archives.
type Transport interface {
	// Fetch writes the resource at url to w. If size is positive the
	// resource must be exactly size bytes long.
	Fetch(ctx context.Context, url string, size int64, w io.Writer) error
}

// Options are options for a [Corpus].
type Options struct {
	// DataDir is the directory holding installed dictionaries. Defaults to
	// [DefaultDataDir].
	DataDir string

	// DefaultDictionaries are set up when [Corpus.Setup] is given no ids.
	DefaultDictionaries []string

	// InputScheme is the initial input scheme of each dictionary.
	InputScheme translit.Scheme

	// OutputScheme is the initial output scheme of each dictionary.
	OutputScheme translit.Scheme

	// Mode is the initial search mode of each dictionary.
	Mode Mode

	// EnglishDictionaries are the ids of dictionaries with English
	// headwords. Their keys and search patterns are never transliterated.
	EnglishDictionaries []string

	// KeepKeys disables transliteration of keys and search patterns in
	// every dictionary.
	KeepKeys bool

	// Workers is the maximum number of concurrent installs.
	Workers int

	// Timeout bounds each install or update. Zero means no timeout.
	Timeout time.Duration

	// Registry lists available dictionaries. Defaults to a [remote.Client].
	Registry Registry

	// Transport downloads archives. Defaults to a [remote.Client].
	Transport Transport

	// Logger is the logger. Defaults to [slog.Default].
	Logger *slog.Logger
}

// DefaultOptions are the default options for a [Corpus].
var DefaultOptions = &Options{
	DefaultDictionaries: []string{"MW", "AP90", "MWE", "AE"},
	InputScheme:         DefaultScheme,
	OutputScheme:        DefaultScheme,
	Mode:                ModeKey,
	EnglishDictionaries: []string{"MWE", "BOR", "AE"},
	Workers:             4,
	Timeout:             30 * time.Minute,
}

// DefaultDataDir returns the default data directory, cdsl_data in the
// user's home directory.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, "cdsl_data"), nil
}

// withDefaults returns a copy of opts with empty fields set from
// DefaultOptions.
func (o *Options) withDefaults() (*Options, error) {
	opts := *DefaultOptions
	if o != nil {
		opts = *o
	}

	if opts.DataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		opts.DataDir = dir
	}
	if opts.DefaultDictionaries == nil {
		opts.DefaultDictionaries = DefaultOptions.DefaultDictionaries
	}
	if opts.EnglishDictionaries == nil {
		opts.EnglishDictionaries = DefaultOptions.EnglishDictionaries
	}

	var err error
	if opts.InputScheme == "" {
		opts.InputScheme = DefaultScheme
	}
	if opts.InputScheme, err = translit.Validate(string(opts.InputScheme)); err != nil {
		return nil, err
	}
	if opts.OutputScheme == "" {
		opts.OutputScheme = DefaultScheme
	}
	if opts.OutputScheme, err = translit.Validate(string(opts.OutputScheme)); err != nil {
		return nil, err
	}
	if opts.Mode == "" {
		opts.Mode = ModeKey
	}
	if err := opts.Mode.Validate(); err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions.Workers
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil || opts.Transport == nil {
		client, err := remote.NewClient(&remote.Options{
			ServerURL:         remote.DefaultServerURL,
			ArchiveSuffix:     remote.DefaultArchiveSuffix,
			RequestsPerSecond: remote.DefaultOptions.RequestsPerSecond,
			UserAgent:         remote.DefaultOptions.UserAgent,
			Logger:            opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		if opts.Registry == nil {
			opts.Registry = client
		}
		if opts.Transport == nil {
			opts.Transport = client
		}
	}
	return &opts, nil
}
