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

package stardict

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	// ErrInvalidOffsetBits indicates that idxoffsetbits is neither 32 nor 64.
	ErrInvalidOffsetBits = errors.New("invalid idxoffsetbits")

	// ErrInvalidInfo indicates that an .ifo file is malformed.
	ErrInvalidInfo = errors.New("invalid ifo file")
)

var keyRegex = regexp.MustCompile("^[a-zA-Z0-9-_]+$")

// IndexEntry is an .idx or .syn file entry. Synonyms have no offset or size
// and Index is the position of their headword in the .idx file.
type IndexEntry struct {
	Word   string
	Offset uint64
	Size   uint32
	Index  uint32
}

// Scanner scans an .idx or .syn file from start to end.
type Scanner struct {
	s *bufio.Scanner

	// tail is the size of the integers following each word.
	tail       int
	offsetBits int
	syn        bool
}

// NewIndexScanner returns a scanner over the .idx data in r.
func NewIndexScanner(r io.Reader, offsetBits int) (*Scanner, error) {
	if offsetBits != 32 && offsetBits != 64 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOffsetBits, offsetBits)
	}
	return newScanner(r, offsetBits/8+4, offsetBits, false), nil
}

// NewSynScanner returns a scanner over the .syn data in r.
func NewSynScanner(r io.Reader) *Scanner {
	return newScanner(r, 4, 0, true)
}

func newScanner(r io.Reader, tail, offsetBits int, syn bool) *Scanner {
	s := &Scanner{
		s:          bufio.NewScanner(r),
		tail:       tail,
		offsetBits: offsetBits,
		syn:        syn,
	}
	s.s.Split(s.split)
	return s
}

// Scan advances the scanner to the next entry. It returns false if the
// scan stops either by reaching the end of the data or an error.
func (s *Scanner) Scan() bool {
	return s.s.Scan()
}

// Err returns the first error encountered.
func (s *Scanner) Err() error {
	//nolint:wrapcheck // error should not be wrapped
	return s.s.Err()
}

// Entry returns the current entry.
func (s *Scanner) Entry() *IndexEntry {
	b := s.s.Bytes()
	i := bytes.IndexByte(b, 0)
	e := &IndexEntry{Word: string(b[:i])}
	b = b[i+1:]
	switch {
	case s.syn:
		e.Index = binary.BigEndian.Uint32(b)
	case s.offsetBits == 64:
		e.Offset = binary.BigEndian.Uint64(b)
		e.Size = binary.BigEndian.Uint32(b[8:])
	default:
		e.Offset = uint64(binary.BigEndian.Uint32(b))
		e.Size = binary.BigEndian.Uint32(b[4:])
	}
	return e
}

func (s *Scanner) split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		n := i + 1 + s.tail
		if len(data) >= n {
			return n, data[:n], nil
		}
	}
	if atEOF {
		return 0, nil, io.ErrUnexpectedEOF
	}
	// Request more data.
	return 0, nil, nil
}

// ReadInfo reads the key=value pairs of an .ifo file.
func ReadInfo(r io.Reader) (map[string]string, error) {
	s := bufio.NewScanner(r)
	if !s.Scan() || s.Text() != magic {
		return nil, fmt.Errorf("%w: bad magic data", ErrInvalidInfo)
	}

	info := map[string]string{}
	for i := 0; s.Scan(); {
		line := s.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimRight(key, " ")
		if !ok || !keyRegex.MatchString(key) {
			return nil, fmt.Errorf("%w: invalid line %q", ErrInvalidInfo, line)
		}
		if i == 0 && key != "version" {
			return nil, fmt.Errorf("%w: missing version", ErrInvalidInfo)
		}
		info[key] = strings.TrimLeft(value, " ")
		i++
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInfo, err)
	}
	return info, nil
}
