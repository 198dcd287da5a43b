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

// Package folding normalizes user supplied search text before it is
// transliterated and matched against dictionary keys.
package folding

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// spaceFolder trims leading and trailing whitespace and collapses internal
// whitespace spans to a single ASCII space.
type spaceFolder struct {
	started bool
	inSpan  bool
}

// Transform implements [transform.Transformer.Transform].
func (f *spaceFolder) Transform(dst, src []byte, atEOF bool) (int, int, error) {
	var nDst, nSrc int
	for nSrc < len(src) {
		if !atEOF && !utf8.FullRune(src[nSrc:]) {
			return nDst, nSrc, transform.ErrShortSrc
		}
		c, size := utf8.DecodeRune(src[nSrc:])

		if unicode.IsSpace(c) {
			nSrc += size
			if f.started {
				f.inSpan = true
			}
			continue
		}

		n := utf8.RuneLen(c)
		if f.inSpan {
			n++
		}
		if nDst+n > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		if f.inSpan {
			dst[nDst] = ' '
			nDst++
			f.inSpan = false
		}
		f.started = true
		nDst += utf8.EncodeRune(dst[nDst:], c)
		nSrc += size
	}
	return nDst, nSrc, nil
}

// Reset implements [transform.Transformer.Reset].
func (f *spaceFolder) Reset() {
	*f = spaceFolder{}
}

// Whitespace returns a transformer that folds whitespace.
func Whitespace() transform.Transformer {
	return &spaceFolder{}
}

// Text returns s NFC normalized with folded whitespace.
func Text(s string) string {
	out, _, err := transform.String(transform.Chain(norm.NFC, Whitespace()), s)
	if err != nil {
		// Neither transformer returns a terminal error.
		return strings.TrimSpace(s)
	}
	return out
}

// Pattern returns the canonical form of a search pattern: the [Text] form
// with runs of wildcards collapsed to one.
func Pattern(s string) string {
	out := Text(s)
	for strings.Contains(out, "**") {
		out = strings.ReplaceAll(out, "**", "*")
	}
	return out
}
