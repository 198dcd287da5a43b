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

// Package cdsl implements a search engine and corpus manager for the Cologne
// Digital Sanskrit Dictionaries (CDSL) in pure Go.
//
// A [Corpus] manages a data directory of installed dictionaries:
//  1. [Corpus.Refresh] lists the dictionaries published on the CDSL web site.
//  2. [Corpus.Setup] downloads a dictionary's XML archive and builds a local
//     SQLite entry store from it. Installs and updates are atomic: a failed
//     download or build leaves the previous installation untouched.
//  3. [Corpus.Use] selects the active dictionaries that [Corpus.Search]
//     queries concurrently.
//
// Entries are stored in SLP1. Search patterns and results are converted
// between SLP1 and the transliteration scheme of the caller's choice, e.g.
// Devanagari, IAST or Harvard-Kyoto. A pattern matches keys, values or both
// exactly unless it contains the wildcard "*".
//
// More info on the dictionaries can be found at this URL:
// https://www.sanskrit-lexicon.uni-koeln.de/
package cdsl
