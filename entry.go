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
	"fmt"
	"strings"

	"github.com/k3a/html2text"

	"github.com/ianlewis/go-cdsl/store"
	"github.com/ianlewis/go-cdsl/translit"
)

// Mode selects the columns a search pattern is matched against.
type Mode = store.Mode

const (
	// ModeKey matches headwords.
	ModeKey = store.ModeKey

	// ModeValue matches gloss bodies.
	ModeValue = store.ModeValue

	// ModeBoth matches headwords or gloss bodies.
	ModeBoth = store.ModeBoth
)

// NoLimit is the search limit that returns all matches.
const NoLimit = store.NoLimit

// ParseMode parses a search mode name.
func ParseMode(s string) (Mode, error) {
	//nolint:wrapcheck // error should not be wrapped
	return store.ParseMode(s)
}

// Query holds the parameters of a search. Empty fields take the value of
// the dictionary's current settings.
type Query struct {
	// InputScheme is the scheme the pattern is written in.
	InputScheme translit.Scheme

	// OutputScheme is the scheme results are written in.
	OutputScheme translit.Scheme

	// Mode selects the columns the pattern is matched against.
	Mode Mode

	// Limit is the maximum number of results per dictionary. [NoLimit]
	// returns all results.
	Limit int

	// Offset is the number of results skipped per dictionary.
	Offset int

	// DictIDs are the dictionaries a corpus search is sent to. Defaults to
	// the active dictionaries.
	DictIDs []string

	// OmitEmpty drops dictionaries without results from corpus searches.
	OmitEmpty bool

	// IgnoreCase matches ASCII letters regardless of case. Case is
	// significant in the storage scheme, so this is mostly useful for
	// dictionaries with English headwords.
	IgnoreCase bool
}

// Settings are a dictionary's current search settings.
type Settings struct {
	InputScheme  translit.Scheme
	OutputScheme translit.Scheme
	Mode         Mode

	// TransliterateKeys is false if headwords and search patterns are
	// used as stored.
	TransliterateKeys bool
}

// Entry is a dictionary entry with its key and value in an output scheme.
type Entry struct {
	// DictID is the id of the dictionary the entry belongs to.
	DictID string

	// ID is the entry id. Sub-entries have an id of the form
	// "<base>.<sub>".
	ID string

	// Base is the id of the primary entry.
	Base int64

	// Sub is the sub-entry index, zero for primary entries.
	Sub int64

	// Key is the headword.
	Key string

	// AltKey is the alternate headword spelling.
	AltKey string

	// Value is the gloss markup.
	Value string

	// Data is the raw markup of the entry in the storage scheme.
	Data string

	// Page is the page and column reference in the print edition.
	Page string
}

// IsSubEntry returns true if the entry was derived from markup in another
// entry's body.
func (e *Entry) IsSubEntry() bool {
	return e.Sub != 0
}

// Meaning returns the gloss as plain text.
func (e *Entry) Meaning() string {
	return strings.TrimSpace(html2text.HTML2Text(e.Value))
}

// String implements [fmt.Stringer].
func (e *Entry) String() string {
	return fmt.Sprintf("%s: %s = %s", e.ID, e.Key, e.Meaning())
}

// Stats holds statistics about a dictionary.
type Stats struct {
	// Total is the number of entries including sub-entries.
	Total int

	// Distinct is the number of distinct headwords.
	Distinct int

	// Top lists the most frequent headwords, most frequent first.
	Top []store.KeyCount
}

// Result holds the results of a corpus search in a single dictionary.
type Result struct {
	// DictID is the dictionary id.
	DictID string

	// Entries are the matching entries.
	Entries []*Entry

	// Err is set if the search failed in this dictionary.
	Err error
}
