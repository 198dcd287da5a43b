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
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

type kind uint8

const (
	kindOther kind = iota
	kindVowel
	kindConsonant
	kindMark
	kindPunct
	kindDigit
)

// token is a scheme independent unit of text. Consonants never carry an
// inherent vowel; a following vowel token is always explicit.
type token struct {
	kind kind
	id   int

	// text holds the original text of kindOther tokens.
	text string
}

// romanReader reads a Roman scheme by greedy longest match.
type romanReader struct {
	letters map[string]token
	maxLen  int
}

func newRomanReader(t *romanTable) *romanReader {
	r := &romanReader{letters: map[string]token{}}
	add := func(spellings []string, tok token) {
		for _, s := range spellings {
			s = norm.NFC.String(s)
			r.letters[s] = tok
			if n := utf8.RuneCountInString(s); n > r.maxLen {
				r.maxLen = n
			}
		}
	}
	for i, s := range t.vowels {
		add(s, token{kind: kindVowel, id: i})
	}
	for i, s := range t.consonants {
		add(s, token{kind: kindConsonant, id: i})
	}
	for i, s := range t.marks {
		add(s, token{kind: kindMark, id: i})
	}
	for i, s := range romanPuncts {
		add(s, token{kind: kindPunct, id: i})
	}
	for i, s := range romanDigits {
		add([]string{s}, token{kind: kindDigit, id: i})
	}
	return r
}

func (r *romanReader) read(text string) []token {
	rs := []rune(text)
	toks := make([]token, 0, len(rs))
	for i := 0; i < len(rs); {
		n := min(r.maxLen, len(rs)-i)
		for ; n > 0; n-- {
			if tok, ok := r.letters[string(rs[i:i+n])]; ok {
				toks = append(toks, tok)
				break
			}
		}
		if n == 0 {
			toks = append(toks, token{kind: kindOther, text: string(rs[i])})
			n = 1
		}
		i += n
	}
	return toks
}

func writeRoman(t *romanTable, toks []token) string {
	var b strings.Builder
	for _, tok := range toks {
		switch tok.kind {
		case kindVowel:
			b.WriteString(t.vowels[tok.id][0])
		case kindConsonant:
			b.WriteString(t.consonants[tok.id][0])
		case kindMark:
			b.WriteString(t.marks[tok.id][0])
		case kindPunct:
			b.WriteString(romanPuncts[tok.id][0])
		case kindDigit:
			b.WriteString(romanDigits[tok.id])
		default:
			b.WriteString(tok.text)
		}
	}
	return b.String()
}

var (
	devaConsonantIDs = runeIDs(devaConsonants[:])
	devaVowelIDs     = runeIDs(devaVowels[:])
	devaMarkIDs      = runeIDs(devaMarks[:])
	devaPunctIDs     = runeIDs(devaPuncts[:])
	devaDigitIDs     = runeIDs(devaDigits[:])
	devaSignIDs      = func() map[rune]int {
		m := map[rune]int{}
		for i, s := range devaSigns {
			if s != "" {
				r, _ := utf8.DecodeRuneInString(s)
				m[r] = i
			}
		}
		return m
	}()
)

func runeIDs(rs []rune) map[rune]int {
	m := make(map[rune]int, len(rs))
	for i, r := range rs {
		m[r] = i
	}
	return m
}

func readDevanagari(text string) []token {
	rs := []rune(text)
	toks := make([]token, 0, len(rs)+len(rs)/2)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		if id, ok := devaConsonantIDs[r]; ok {
			toks = append(toks, token{kind: kindConsonant, id: id})
			if i+1 < len(rs) {
				next := rs[i+1]
				if next == devaVirama {
					i++
					continue
				}
				if v, ok := devaSignIDs[next]; ok {
					toks = append(toks, token{kind: kindVowel, id: v})
					i++
					continue
				}
			}
			// Inherent "a".
			toks = append(toks, token{kind: kindVowel, id: 0})
			continue
		}
		switch {
		case hasID(devaVowelIDs, r):
			toks = append(toks, token{kind: kindVowel, id: devaVowelIDs[r]})
		case hasID(devaMarkIDs, r):
			toks = append(toks, token{kind: kindMark, id: devaMarkIDs[r]})
		case hasID(devaPunctIDs, r):
			toks = append(toks, token{kind: kindPunct, id: devaPunctIDs[r]})
		case hasID(devaDigitIDs, r):
			toks = append(toks, token{kind: kindDigit, id: devaDigitIDs[r]})
		default:
			toks = append(toks, token{kind: kindOther, text: string(r)})
		}
	}
	return toks
}

func hasID(m map[rune]int, r rune) bool {
	_, ok := m[r]
	return ok
}

func writeDevanagari(toks []token) string {
	var b strings.Builder
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		switch tok.kind {
		case kindConsonant:
			b.WriteRune(devaConsonants[tok.id])
			if i+1 < len(toks) && toks[i+1].kind == kindVowel {
				b.WriteString(devaSigns[toks[i+1].id])
				i++
			} else {
				b.WriteRune(devaVirama)
			}
		case kindVowel:
			b.WriteRune(devaVowels[tok.id])
		case kindMark:
			b.WriteRune(devaMarks[tok.id])
		case kindPunct:
			b.WriteRune(devaPuncts[tok.id])
		case kindDigit:
			b.WriteRune(devaDigits[tok.id])
		default:
			b.WriteString(tok.text)
		}
	}
	return b.String()
}
