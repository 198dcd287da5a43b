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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ianlewis/go-dictzip"
)

// ErrInvalidDictionary indicates that the files of a dictionary do not agree
// with each other.
var ErrInvalidDictionary = errors.New("invalid dictionary")

// Summary describes a dictionary checked by [Verify].
type Summary struct {
	BookName     string
	WordCount    int
	SynWordCount int
}

// Verify reads back the dictionary named name in dir. It checks that the
// counts and sizes in the .ifo file match the index and synonym files, that
// both are sorted and that every article can be read from the .dict.dz
// file.
func Verify(dir, name string) (*Summary, error) {
	base := filepath.Join(dir, name)

	info, err := readInfoFile(base + ".ifo")
	if err != nil {
		return nil, err
	}
	wordCount, err := infoInt(info, "wordcount", -1)
	if err != nil {
		return nil, err
	}
	synCount, err := infoInt(info, "synwordcount", 0)
	if err != nil {
		return nil, err
	}
	idxSize, err := infoInt(info, "idxfilesize", -1)
	if err != nil {
		return nil, err
	}
	offsetBits, err := infoInt(info, "idxoffsetbits", 32)
	if err != nil {
		return nil, err
	}

	dict, err := os.Open(base + ".dict.dz")
	if err != nil {
		return nil, fmt.Errorf("verifying %s: %w", name, err)
	}
	defer dict.Close()
	z, err := dictzip.NewReader(dict)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.dict.dz: %w", ErrInvalidDictionary, name, err)
	}
	defer z.Close()

	n, size, err := verifyIdx(base+".idx", offsetBits, z)
	if err != nil {
		return nil, err
	}
	if n != wordCount {
		return nil, fmt.Errorf("%w: wordcount is %d, index has %d words", ErrInvalidDictionary, wordCount, n)
	}
	if size != int64(idxSize) {
		return nil, fmt.Errorf("%w: idxfilesize is %d, index is %d bytes", ErrInvalidDictionary, idxSize, size)
	}

	syns, err := verifySyn(base+".syn", wordCount)
	if err != nil {
		return nil, err
	}
	if syns != synCount {
		return nil, fmt.Errorf("%w: synwordcount is %d, synonym file has %d words", ErrInvalidDictionary, synCount, syns)
	}

	return &Summary{
		BookName:     info["bookname"],
		WordCount:    wordCount,
		SynWordCount: synCount,
	}, nil
}

func readInfoFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("verifying %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return ReadInfo(f)
}

// infoInt returns the integer value of key. If def is negative the key is
// required.
func infoInt(info map[string]string, key string, def int) (int, error) {
	v, ok := info[key]
	if !ok {
		if def < 0 {
			return 0, fmt.Errorf("%w: missing %s", ErrInvalidInfo, key)
		}
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrInvalidInfo, key, v)
	}
	return n, nil
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	//nolint:wrapcheck // error should not be wrapped
	return n, err
}

// verifyIdx returns the number of words in the index and its size.
func verifyIdx(path string, offsetBits int, dict io.ReaderAt) (int, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("verifying %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	r := &countingReader{r: f}
	s, err := NewIndexScanner(r, offsetBits)
	if err != nil {
		return 0, 0, err
	}
	var (
		n    int
		prev *IndexEntry
	)
	for s.Scan() {
		e := s.Entry()
		if prev != nil && Compare(prev.Word, e.Word) > 0 {
			return 0, 0, fmt.Errorf("%w: %q sorted after %q", ErrInvalidDictionary, prev.Word, e.Word)
		}
		if e.Size > 0 {
			buf := make([]byte, e.Size)
			if m, err := dict.ReadAt(buf, int64(e.Offset)); m != len(buf) {
				return 0, 0, fmt.Errorf("%w: reading article %q: %v", ErrInvalidDictionary, e.Word, err)
			}
		}
		prev = e
		n++
	}
	if err := s.Err(); err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %w", ErrInvalidDictionary, filepath.Base(path), err)
	}
	return n, r.n, nil
}

// verifySyn returns the number of synonyms. A missing synonym file has none.
func verifySyn(path string, wordCount int) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("verifying %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	s := NewSynScanner(f)
	var (
		n    int
		prev *IndexEntry
	)
	for s.Scan() {
		e := s.Entry()
		if prev != nil && Compare(prev.Word, e.Word) > 0 {
			return 0, fmt.Errorf("%w: synonym %q sorted after %q", ErrInvalidDictionary, prev.Word, e.Word)
		}
		if int(e.Index) >= wordCount {
			return 0, fmt.Errorf("%w: synonym %q refers to word %d of %d", ErrInvalidDictionary, e.Word, e.Index, wordCount)
		}
		prev = e
		n++
	}
	if err := s.Err(); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidDictionary, filepath.Base(path), err)
	}
	return n, nil
}
