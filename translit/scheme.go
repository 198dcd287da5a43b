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

package translit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ianlewis/go-cdsl/internal/index"
)

// ErrInvalidScheme indicates that a scheme name is not registered.
var ErrInvalidScheme = errors.New("invalid transliteration scheme")

// Scheme is the name of a registered transliteration scheme.
type Scheme string

const (
	// Devanagari is the native Devanagari script.
	Devanagari Scheme = "devanagari"

	// IAST is the International Alphabet of Sanskrit Transliteration.
	IAST Scheme = "iast"

	// ITRANS is the ITRANS ASCII scheme.
	ITRANS Scheme = "itrans"

	// HK is the Harvard-Kyoto ASCII scheme.
	HK Scheme = "hk"

	// SLP1 is the Sanskrit Library Phonetic scheme. Every CDSL dictionary
	// stores its entries in SLP1.
	SLP1 Scheme = "slp1"

	// Velthuis is the Velthuis ASCII scheme.
	Velthuis Scheme = "velthuis"

	// WX is the WX ASCII scheme.
	WX Scheme = "wx"
)

// String implements [fmt.Stringer].
func (s Scheme) String() string {
	return string(s)
}

type schemeName struct {
	name   string
	scheme Scheme
}

var (
	schemes = []Scheme{Devanagari, IAST, ITRANS, HK, SLP1, Velthuis, WX}

	aliases = []schemeName{
		{"deva", Devanagari},
		{"harvard-kyoto", HK},
		{"harvardkyoto", HK},
		{"kh", HK},
		{"kyoto-harvard", HK},
	}

	names = func() *index.Index[schemeName] {
		all := append([]schemeName(nil), aliases...)
		for _, s := range schemes {
			all = append(all, schemeName{string(s), s})
		}
		return index.NewIndex(all, func(n schemeName) string { return n.name }, strings.Compare)
	}()
)

// Schemes returns all registered schemes.
func Schemes() []Scheme {
	return append([]Scheme(nil), schemes...)
}

// Validate returns the registered scheme for name. Names are matched case
// insensitively and may be aliases.
func Validate(name string) (Scheme, error) {
	n, ok := names.Lookup(strings.ToLower(strings.TrimSpace(name)))
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidScheme, name)
	}
	return n.scheme, nil
}

// IsRoman returns true if the scheme writes Sanskrit with Latin letters.
func IsRoman(s Scheme) bool {
	_, ok := romanTables[s]
	return ok
}
