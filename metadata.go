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
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ianlewis/go-cdsl/remote"
)

// Metadata describes a dictionary.
type Metadata struct {
	// ID is the dictionary's short code, e.g. MW.
	ID string `yaml:"id"`

	// Name is the dictionary's full name.
	Name string `yaml:"name"`

	// Date is the publication date of the print edition.
	Date string `yaml:"date"`

	// URL is the dictionary's download page.
	URL string `yaml:"url"`

	// ArchiveURL is the URL of the installed archive.
	ArchiveURL string `yaml:"archive_url,omitempty"`

	// Size is the size of the installed archive in bytes.
	Size int64 `yaml:"size,omitempty"`

	// BuildMarker identifies the installed release. It is empty if the
	// dictionary is not installed.
	BuildMarker string `yaml:"build_marker,omitempty"`

	// Installed is the time the dictionary was installed or last updated.
	Installed time.Time `yaml:"installed,omitempty"`
}

func newMetadata(l *remote.Listing) *Metadata {
	return &Metadata{
		ID:   l.ID,
		Name: l.Name,
		Date: l.Date,
		URL:  l.URL,
	}
}

func (m *Metadata) clone() *Metadata {
	c := *m
	return &c
}

// readYAML reads the YAML file at path into v.
func readYAML(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// writeYAML writes v to path, replacing the file atomically.
func writeYAML(path string, v any) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Join(fmt.Errorf("writing %s: %w", path, err), os.Remove(tmp))
	}
	return nil
}

// readMarker reads and validates a dictionary's build marker file.
func readMarker(path string) (*Metadata, error) {
	var m Metadata
	if err := readYAML(path, &m); err != nil {
		return nil, err
	}
	if m.ID == "" || m.BuildMarker == "" {
		return nil, fmt.Errorf("%w: %s: incomplete build marker", ErrDictionaryNotInstalled, path)
	}
	return &m, nil
}

// registryFile is the cached registry.
type registryFile struct {
	Updated      time.Time   `yaml:"updated"`
	Dictionaries []*Metadata `yaml:"dictionaries"`
}
