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

	"github.com/ianlewis/go-cdsl/store"
	"github.com/ianlewis/go-cdsl/translit"
)

var (
	// ErrInvalidScheme indicates an unregistered transliteration scheme.
	ErrInvalidScheme = translit.ErrInvalidScheme

	// ErrInvalidMode indicates an unrecognized search mode.
	ErrInvalidMode = store.ErrInvalidMode

	// ErrInvalidPattern indicates an empty or malformed search pattern.
	ErrInvalidPattern = store.ErrInvalidPattern

	// ErrInvalidLimit indicates a negative limit or offset.
	ErrInvalidLimit = store.ErrInvalidLimit

	// ErrEntryNotFound indicates that an entry id is not in a dictionary.
	ErrEntryNotFound = store.ErrNotFound

	// ErrDictionaryNotInstalled indicates that a dictionary is known but has
	// no valid local installation.
	ErrDictionaryNotInstalled = errors.New("dictionary not installed")

	// ErrUnknownDictionary indicates a dictionary id that is not in the
	// registry.
	ErrUnknownDictionary = errors.New("unknown dictionary")

	// ErrNoActiveDictionaries indicates a search with no target
	// dictionaries.
	ErrNoActiveDictionaries = errors.New("no active dictionaries")

	// ErrDownloadFailed indicates that a dictionary archive could not be
	// downloaded.
	ErrDownloadFailed = errors.New("download failed")

	// ErrCorruptArchive indicates that a downloaded archive failed
	// verification.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrBuildFailed indicates that a dictionary's entry store could not be
	// built from its markup.
	ErrBuildFailed = errors.New("build failed")
)

// DictError is an error for a single dictionary in a batch operation.
type DictError struct {
	// ID is the dictionary id.
	ID string

	// Op is the operation that failed, e.g. "install".
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements [error].
func (e *DictError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *DictError) Unwrap() error {
	return e.Err
}
