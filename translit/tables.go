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

// The phoneme inventory shared by all schemes. Tables below list their
// letters in this order.
//
//	vowels:     a ā i ī u ū ṛ ṝ ḷ ḹ e ai o au
//	consonants: k kh g gh ṅ c ch j jh ñ ṭ ṭh ḍ ḍh ṇ t th d dh n p ph b bh m
//	            y r l v ś ṣ s h
//	marks:      anusvāra visarga candrabindu avagraha
//	punctuation: daṇḍa, double daṇḍa
const (
	numVowels     = 14
	numConsonants = 33
	numMarks      = 4
	numPuncts     = 2
	numDigits     = 10
)

// romanTable lists the letters of a Roman scheme. The first spelling of each
// phoneme is written on output; every spelling is accepted on input.
type romanTable struct {
	vowels     [numVowels][]string
	consonants [numConsonants][]string
	marks      [numMarks][]string
}

var romanPuncts = [numPuncts][]string{{"|"}, {"||"}}

var romanDigits = [numDigits]string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}

var romanTables = map[Scheme]*romanTable{
	SLP1: {
		vowels: [numVowels][]string{
			{"a"}, {"A"}, {"i"}, {"I"}, {"u"}, {"U"}, {"f"}, {"F"}, {"x"}, {"X"},
			{"e"}, {"E"}, {"o"}, {"O"},
		},
		consonants: [numConsonants][]string{
			{"k"}, {"K"}, {"g"}, {"G"}, {"N"},
			{"c"}, {"C"}, {"j"}, {"J"}, {"Y"},
			{"w"}, {"W"}, {"q"}, {"Q"}, {"R"},
			{"t"}, {"T"}, {"d"}, {"D"}, {"n"},
			{"p"}, {"P"}, {"b"}, {"B"}, {"m"},
			{"y"}, {"r"}, {"l"}, {"v"}, {"S"}, {"z"}, {"s"}, {"h"},
		},
		marks: [numMarks][]string{{"M"}, {"H"}, {"~"}, {"'"}},
	},
	IAST: {
		vowels: [numVowels][]string{
			{"a"}, {"ā"}, {"i"}, {"ī"}, {"u"}, {"ū"},
			{"ṛ", "r̥"}, {"ṝ", "r̥̄"}, {"ḷ", "l̥"}, {"ḹ", "l̥̄"},
			{"e"}, {"ai"}, {"o"}, {"au"},
		},
		consonants: [numConsonants][]string{
			{"k"}, {"kh"}, {"g"}, {"gh"}, {"ṅ"},
			{"c"}, {"ch"}, {"j"}, {"jh"}, {"ñ"},
			{"ṭ"}, {"ṭh"}, {"ḍ"}, {"ḍh"}, {"ṇ"},
			{"t"}, {"th"}, {"d"}, {"dh"}, {"n"},
			{"p"}, {"ph"}, {"b"}, {"bh"}, {"m"},
			{"y"}, {"r"}, {"l"}, {"v"}, {"ś"}, {"ṣ"}, {"s"}, {"h"},
		},
		marks: [numMarks][]string{{"ṃ", "ṁ"}, {"ḥ"}, {"m̐"}, {"'"}},
	},
	ITRANS: {
		vowels: [numVowels][]string{
			{"a"}, {"A", "aa"}, {"i"}, {"I", "ii"}, {"u"}, {"U", "uu"},
			{"RRi", "R^i"}, {"RRI", "R^I"}, {"LLi", "L^i"}, {"LLI", "L^I"},
			{"e"}, {"ai"}, {"o"}, {"au"},
		},
		consonants: [numConsonants][]string{
			{"k"}, {"kh"}, {"g"}, {"gh"}, {"~N", "N^"},
			{"ch"}, {"Ch", "chh"}, {"j"}, {"jh"}, {"~n", "JN"},
			{"T"}, {"Th"}, {"D"}, {"Dh"}, {"N"},
			{"t"}, {"th"}, {"d"}, {"dh"}, {"n"},
			{"p"}, {"ph"}, {"b"}, {"bh"}, {"m"},
			{"y"}, {"r"}, {"l"}, {"v", "w"}, {"sh"}, {"Sh", "shh"}, {"s"}, {"h"},
		},
		marks: [numMarks][]string{{"M", ".n", ".m"}, {"H"}, {".N"}, {".a"}},
	},
	HK: {
		vowels: [numVowels][]string{
			{"a"}, {"A"}, {"i"}, {"I"}, {"u"}, {"U"}, {"R"}, {"RR"}, {"lR"}, {"lRR"},
			{"e"}, {"ai"}, {"o"}, {"au"},
		},
		consonants: [numConsonants][]string{
			{"k"}, {"kh"}, {"g"}, {"gh"}, {"G"},
			{"c"}, {"ch"}, {"j"}, {"jh"}, {"J"},
			{"T"}, {"Th"}, {"D"}, {"Dh"}, {"N"},
			{"t"}, {"th"}, {"d"}, {"dh"}, {"n"},
			{"p"}, {"ph"}, {"b"}, {"bh"}, {"m"},
			{"y"}, {"r"}, {"l"}, {"v"}, {"z"}, {"S"}, {"s"}, {"h"},
		},
		marks: [numMarks][]string{{"M"}, {"H"}, {"~"}, {"'"}},
	},
	Velthuis: {
		vowels: [numVowels][]string{
			{"a"}, {"aa"}, {"i"}, {"ii"}, {"u"}, {"uu"}, {".r"}, {".rr"}, {".l"}, {".ll"},
			{"e"}, {"ai"}, {"o"}, {"au"},
		},
		consonants: [numConsonants][]string{
			{"k"}, {"kh"}, {"g"}, {"gh"}, {"\"n"},
			{"c"}, {"ch"}, {"j"}, {"jh"}, {"~n"},
			{".t"}, {".th"}, {".d"}, {".dh"}, {".n"},
			{"t"}, {"th"}, {"d"}, {"dh"}, {"n"},
			{"p"}, {"ph"}, {"b"}, {"bh"}, {"m"},
			{"y"}, {"r"}, {"l"}, {"v"}, {"\"s"}, {".s"}, {"s"}, {"h"},
		},
		marks: [numMarks][]string{{".m"}, {".h"}, {"/"}, {".a"}},
	},
	WX: {
		vowels: [numVowels][]string{
			{"a"}, {"A"}, {"i"}, {"I"}, {"u"}, {"U"}, {"q"}, {"Q"}, {"L"}, {"LL"},
			{"e"}, {"E"}, {"o"}, {"O"},
		},
		consonants: [numConsonants][]string{
			{"k"}, {"K"}, {"g"}, {"G"}, {"f"},
			{"c"}, {"C"}, {"j"}, {"J"}, {"F"},
			{"t"}, {"T"}, {"d"}, {"D"}, {"N"},
			{"w"}, {"W"}, {"x"}, {"X"}, {"n"},
			{"p"}, {"P"}, {"b"}, {"B"}, {"m"},
			{"y"}, {"r"}, {"l"}, {"v"}, {"S"}, {"R"}, {"s"}, {"h"},
		},
		marks: [numMarks][]string{{"M"}, {"H"}, {"z"}, {"Z"}},
	},
}

// Devanagari letters in inventory order.
var (
	devaVowels = [numVowels]rune{
		'अ', 'आ', 'इ', 'ई', 'उ', 'ऊ', 'ऋ', 'ॠ', 'ऌ', 'ॡ', 'ए', 'ऐ', 'ओ', 'औ',
	}

	// devaSigns are the dependent vowel signs. The inherent "a" has none.
	devaSigns = [numVowels]string{
		"", "ा", "ि", "ी", "ु", "ू", "ृ", "ॄ", "ॢ", "ॣ", "े", "ै", "ो", "ौ",
	}

	devaConsonants = [numConsonants]rune{
		'क', 'ख', 'ग', 'घ', 'ङ',
		'च', 'छ', 'ज', 'झ', 'ञ',
		'ट', 'ठ', 'ड', 'ढ', 'ण',
		'त', 'थ', 'द', 'ध', 'न',
		'प', 'फ', 'ब', 'भ', 'म',
		'य', 'र', 'ल', 'व', 'श', 'ष', 'स', 'ह',
	}

	devaMarks  = [numMarks]rune{'ं', 'ः', 'ँ', 'ऽ'}
	devaPuncts = [numPuncts]rune{'।', '॥'}
	devaDigits = [numDigits]rune{'०', '१', '२', '३', '४', '५', '६', '७', '८', '९'}
)

const devaVirama = '्'
