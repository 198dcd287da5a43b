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

// Package translit converts Sanskrit text between transliteration schemes.
//
// Text is read into scheme independent phonemic tokens and written back out
// in the target scheme. Roman schemes are read by greedy longest match over
// their letter tables. Devanagari is read and written with the inherent "a",
// dependent vowel signs and the virama.
//
// Conversion between some pairs of schemes loses information (for example a
// Roman "ai" diphthong and the vowel sequence "a i"), so callers should not
// assume that converting to a scheme and back returns the original text.
//
// Search patterns may contain the wildcard [Wildcard]. [ConvertPattern]
// converts the literal text around each wildcard independently so that the
// wildcard is never fed through a letter table.
package translit
