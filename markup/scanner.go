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

package markup

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// maxRecordSize is the largest record the scanner accepts.
const maxRecordSize = 16 << 20

// Scanner scans a markup dump one record at a time. Text outside of records,
// such as the XML prolog and the root element, is skipped.
type Scanner struct {
	s      *bufio.Scanner
	offset int64
}

// NewScanner returns a new Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	s := &Scanner{
		s: bufio.NewScanner(r),
	}
	s.s.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	s.s.Split(s.splitRecord)
	return s
}

// Scan advances to the next record. It returns false when the scan stops
// either by reaching the end of the input or an error.
func (s *Scanner) Scan() bool {
	return s.s.Scan()
}

// Err returns the first error encountered.
func (s *Scanner) Err() error {
	//nolint:wrapcheck // error should not be wrapped
	return s.s.Err()
}

// Bytes returns the raw markup of the current record. The underlying array
// may be overwritten by a subsequent call to Scan.
func (s *Scanner) Bytes() []byte {
	return s.s.Bytes()
}

// Record parses the current record.
func (s *Scanner) Record() (*Record, error) {
	return Parse(s.s.Bytes())
}

// recordStart returns the index of the next record start tag in data and
// the tag's name, or -1 if data contains no complete start tag.
func recordStart(data []byte) (int, []byte, bool) {
	for i := 0; ; {
		j := bytes.Index(data[i:], []byte("<H"))
		if j < 0 {
			return -1, nil, false
		}
		start := i + j
		k := bytes.IndexByte(data[start:], '>')
		if k < 0 {
			// The tag may be completed by more data.
			return start, nil, false
		}
		name := data[start+1 : start+k]
		if isRecordName(name) {
			return start, name, true
		}
		i = start + 2
	}
}

// isRecordName returns true for record element names such as H1 or H3A.
func isRecordName(name []byte) bool {
	if len(name) < 2 || name[0] != 'H' {
		return false
	}
	if name[1] < '0' || name[1] > '9' {
		return false
	}
	for _, c := range name[2:] {
		if !('0' <= c && c <= '9' || 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z') {
			return false
		}
	}
	return true
}

// splitRecord splits the input into records.
func (s *Scanner) splitRecord(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	start, name, ok := recordStart(data)
	switch {
	case start < 0:
		if atEOF {
			// Trailing text after the last record.
			return s.skip(len(data)), nil, nil
		}
		// Keep a byte in case it begins a start tag.
		return s.skip(max(len(data)-1, 0)), nil, nil
	case !ok:
		if atEOF {
			return 0, nil, fmt.Errorf("%w: truncated start tag at offset %d", ErrMalformedRecord, s.offset+int64(start))
		}
		return s.skip(start), nil, nil
	}

	end := []byte("</" + string(name) + ">")
	i := bytes.Index(data[start:], end)
	if i < 0 {
		if atEOF {
			return 0, nil, fmt.Errorf("%w: unterminated <%s> at offset %d", ErrMalformedRecord, name, s.offset+int64(start))
		}
		// Request more data, discarding any text before the record.
		return s.skip(start), nil, nil
	}

	advance = start + i + len(end)
	return s.skip(advance), data[start:advance], nil
}

// skip records that n bytes of input were consumed.
func (s *Scanner) skip(n int) int {
	s.offset += int64(n)
	return n
}
