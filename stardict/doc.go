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

// Package stardict writes dictionaries in the StarDict format read by
// GoldenDict, KOReader and other dictionary programs.
//
// A StarDict dictionary is a set of files sharing a base name:
//
//   - The .ifo file holds the dictionary's metadata as key=value lines.
//   - The .dict.dz file holds the article data, compressed with dictzip.
//   - The .idx file lists the headwords in sorted order. Each entry is the
//     headword terminated by a null byte, then the offset and size of the
//     article in the .dict data as 32 or 64 bit (offset) and 32 bit (size)
//     integers in network byte order.
//   - The optional .syn file lists synonyms in sorted order. Each entry is
//     the synonym terminated by a null byte, then the 32 bit index of the
//     headword in the .idx file in network byte order.
//
// More info on the dictionary format can be found at this URL:
// https://github.com/huzheng001/stardict-3/blob/master/dict/doc/StarDictFileFormat
package stardict
