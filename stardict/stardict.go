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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/ianlewis/go-dictzip"
)

const magic = "StarDict's dict ifo file"

// ErrInvalidWord indicates that a word cannot be written.
var ErrInvalidWord = errors.New("invalid word")

// Info is the metadata written to the .ifo file.
type Info struct {
	BookName    string
	Author      string
	Email       string
	Website     string
	Description string
	Date        string
}

// Word is a dictionary article.
type Word struct {
	// Word is the headword.
	Word string

	// Synonyms are other words the article is found by.
	Synonyms []string

	// Data is the article text.
	Data string
}

type idxEntry struct {
	word   string
	offset uint64
	size   uint32
}

type synEntry struct {
	word  string
	index int
}

// Compare orders words the way StarDict programs expect: ASCII case
// insensitively first, then bytewise.
func Compare(a, b string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		ca, cb := lower(a[i]), lower(b[i])
		if ca != cb {
			return int(ca) - int(cb)
		}
	}
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

func lower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

// Write writes the words to a StarDict dictionary named name in dir. Words
// may be given in any order. Articles are written as plain text
// (sametypesequence=m). Files already written are removed on failure.
func Write(dir, name string, info *Info, words iter.Seq2[*Word, error]) (err error) {
	if info == nil {
		info = &Info{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	base := filepath.Join(dir, name)
	paths := []string{base + ".dict.dz", base + ".idx", base + ".syn", base + ".ifo"}
	defer func() {
		if err != nil {
			for _, p := range paths {
				_ = os.Remove(p)
			}
		}
	}()

	entries, syns, err := writeDict(paths[0], words)
	if err != nil {
		return err
	}

	// Sort the index and remap synonyms to the sorted positions.
	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return Compare(entries[a].word, entries[b].word)
	})
	pos := make([]int, len(entries))
	sorted := make([]*idxEntry, len(entries))
	for i, o := range order {
		pos[o] = i
		sorted[i] = entries[o]
	}
	for _, s := range syns {
		s.index = pos[s.index]
	}
	slices.SortStableFunc(syns, func(a, b *synEntry) int {
		return Compare(a.word, b.word)
	})

	offsetBits := 32
	for _, e := range sorted {
		if e.offset > math.MaxUint32 {
			offsetBits = 64
			break
		}
	}

	idxSize, err := writeFile(paths[1], func(w *bufio.Writer) error {
		return writeIdx(w, sorted, offsetBits)
	})
	if err != nil {
		return err
	}

	if len(syns) == 0 {
		if err := os.Remove(paths[2]); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", paths[2], err)
		}
	} else {
		if _, err := writeFile(paths[2], func(w *bufio.Writer) error {
			return writeSyn(w, syns)
		}); err != nil {
			return err
		}
	}

	_, err = writeFile(paths[3], func(w *bufio.Writer) error {
		return writeIfo(w, info, len(sorted), len(syns), idxSize, offsetBits)
	})
	return err
}

// writeDict writes the article data and returns the unsorted index and
// synonyms. Synonym indexes refer to the unsorted index.
func writeDict(path string, words iter.Seq2[*Word, error]) (entries []*idxEntry, syns []*synEntry, err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("writing %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("writing %s: %w", path, closeErr)
		}
	}()

	z, err := dictzip.NewWriter(f)
	if err != nil {
		return nil, nil, fmt.Errorf("writing %s: %w", path, err)
	}

	var offset uint64
	for w, err := range words {
		if err != nil {
			_ = z.Close()
			return nil, nil, err
		}
		if err := validWord(w.Word); err != nil {
			_ = z.Close()
			return nil, nil, err
		}
		if uint64(len(w.Data)) > math.MaxUint32 {
			_ = z.Close()
			return nil, nil, fmt.Errorf("%w: %q: article too large", ErrInvalidWord, w.Word)
		}
		if _, err := io.WriteString(z, w.Data); err != nil {
			_ = z.Close()
			return nil, nil, fmt.Errorf("writing %s: %w", path, err)
		}

		for _, s := range w.Synonyms {
			if s == w.Word || validWord(s) != nil {
				continue
			}
			syns = append(syns, &synEntry{word: s, index: len(entries)})
		}
		entries = append(entries, &idxEntry{
			word:   w.Word,
			offset: offset,
			size:   uint32(len(w.Data)),
		})
		offset += uint64(len(w.Data))
	}

	if err := z.Close(); err != nil {
		return nil, nil, fmt.Errorf("writing %s: %w", path, err)
	}
	return entries, syns, nil
}

// validWord checks that a word can be written to an index. Index words are
// null terminated and limited to 256 bytes.
func validWord(w string) error {
	switch {
	case w == "":
		return fmt.Errorf("%w: empty word", ErrInvalidWord)
	case len(w) >= 256:
		return fmt.Errorf("%w: %q: longer than 255 bytes", ErrInvalidWord, w)
	case strings.IndexByte(w, 0) >= 0:
		return fmt.Errorf("%w: %q: contains a null byte", ErrInvalidWord, w)
	}
	return nil
}

// writeFile writes a file with fn and returns its size.
func writeFile(path string, fn func(*bufio.Writer) error) (size int64, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("writing %s: %w", path, closeErr)
		}
	}()

	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return fi.Size(), nil
}

func writeIdx(w *bufio.Writer, entries []*idxEntry, offsetBits int) error {
	buf := make([]byte, 12)
	for _, e := range entries {
		if _, err := w.WriteString(e.word); err != nil {
			//nolint:wrapcheck // error is wrapped by writeFile
			return err
		}
		if err := w.WriteByte(0); err != nil {
			//nolint:wrapcheck // error is wrapped by writeFile
			return err
		}
		n := 4
		if offsetBits == 64 {
			binary.BigEndian.PutUint64(buf, e.offset)
			n = 8
		} else {
			binary.BigEndian.PutUint32(buf, uint32(e.offset))
		}
		binary.BigEndian.PutUint32(buf[n:], e.size)
		if _, err := w.Write(buf[:n+4]); err != nil {
			//nolint:wrapcheck // error is wrapped by writeFile
			return err
		}
	}
	return nil
}

func writeSyn(w *bufio.Writer, syns []*synEntry) error {
	buf := make([]byte, 4)
	for _, s := range syns {
		if _, err := w.WriteString(s.word); err != nil {
			//nolint:wrapcheck // error is wrapped by writeFile
			return err
		}
		if err := w.WriteByte(0); err != nil {
			//nolint:wrapcheck // error is wrapped by writeFile
			return err
		}
		binary.BigEndian.PutUint32(buf, uint32(s.index))
		if _, err := w.Write(buf); err != nil {
			//nolint:wrapcheck // error is wrapped by writeFile
			return err
		}
	}
	return nil
}

func writeIfo(w *bufio.Writer, info *Info, wordCount, synCount int, idxSize int64, offsetBits int) error {
	lines := []string{
		magic,
		"version=3.0.0",
		"bookname=" + ifoValue(info.BookName),
		"wordcount=" + strconv.Itoa(wordCount),
	}
	if synCount > 0 {
		lines = append(lines, "synwordcount="+strconv.Itoa(synCount))
	}
	lines = append(lines, "idxfilesize="+strconv.FormatInt(idxSize, 10))
	if offsetBits == 64 {
		lines = append(lines, "idxoffsetbits=64")
	}
	for _, kv := range [][2]string{
		{"author", info.Author},
		{"email", info.Email},
		{"website", info.Website},
		{"description", info.Description},
		{"date", info.Date},
	} {
		if kv[1] != "" {
			lines = append(lines, kv[0]+"="+ifoValue(kv[1]))
		}
	}
	lines = append(lines, "sametypesequence=m")

	for _, l := range lines {
		if _, err := w.WriteString(l + "\n"); err != nil {
			//nolint:wrapcheck // error is wrapped by writeFile
			return err
		}
	}
	return nil
}

// ifoValue returns s on a single line.
func ifoValue(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
