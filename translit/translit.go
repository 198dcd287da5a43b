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
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Wildcard matches any run of characters in a search pattern. It is never
// transliterated.
const Wildcard = "*"

var (
	readersMu sync.Mutex
	readers   = map[Scheme]*romanReader{}
)

func readerFor(s Scheme) *romanReader {
	readersMu.Lock()
	defer readersMu.Unlock()
	r, ok := readers[s]
	if !ok {
		r = newRomanReader(romanTables[s])
		readers[s] = r
	}
	return r
}

func read(text string, s Scheme) []token {
	if s == Devanagari {
		return readDevanagari(text)
	}
	return readerFor(s).read(text)
}

func write(toks []token, s Scheme) string {
	if s == Devanagari {
		return writeDevanagari(toks)
	}
	return writeRoman(romanTables[s], toks)
}

func resolve(from, to Scheme) (Scheme, Scheme, error) {
	f, err := Validate(string(from))
	if err != nil {
		return "", "", err
	}
	t, err := Validate(string(to))
	if err != nil {
		return "", "", err
	}
	return f, t, nil
}

// Convert transliterates text from one scheme to another. Characters that
// are not part of the source scheme are copied unchanged. Converting to the
// same scheme returns the text as is.
func Convert(text string, from, to Scheme) (string, error) {
	from, to, err := resolve(from, to)
	if err != nil {
		return "", err
	}
	if from == to {
		return text, nil
	}
	return write(read(norm.NFC.String(text), from), to), nil
}

// MustConvert is like [Convert] but panics if either scheme is invalid.
func MustConvert(text string, from, to Scheme) string {
	s, err := Convert(text, from, to)
	if err != nil {
		panic(err)
	}
	return s
}

// ConvertPattern transliterates a search pattern. Wildcards are preserved in
// place and the text between them is converted independently.
func ConvertPattern(pattern string, from, to Scheme) (string, error) {
	parts := strings.Split(pattern, Wildcard)
	for i, p := range parts {
		c, err := Convert(p, from, to)
		if err != nil {
			return "", err
		}
		parts[i] = c
	}
	return strings.Join(parts, Wildcard), nil
}

// sanskritSpan matches the <s> elements used by CDSL markup to delimit
// Sanskrit text.
var sanskritSpan = regexp.MustCompile(`(?s)(<s>)(.*?)(</s>)`)

// ConvertMarkup transliterates only the Sanskrit spans of CDSL markup,
// those enclosed in <s>...</s>. Everything else is copied unchanged.
func ConvertMarkup(markup string, from, to Scheme) (string, error) {
	from, to, err := resolve(from, to)
	if err != nil {
		return "", err
	}
	if from == to {
		return markup, nil
	}
	return sanskritSpan.ReplaceAllStringFunc(markup, func(m string) string {
		sub := sanskritSpan.FindStringSubmatch(m)
		return sub[1] + write(read(norm.NFC.String(sub[2]), from), to) + sub[3]
	}), nil
}
