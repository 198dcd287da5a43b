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

// Package markup reads the native markup dumps CDSL dictionaries are
// published in and turns their records into store entries.
//
// A dump is a sequence of records such as:
//
//	<H1><h><key1>agni</key1><key2>agni/</key2></h><body>...</body>
//	<tail><L>1234</L><pc>5,1</pc></tail></H1>
//
// The record element name varies between H1, H1A, H2, H3A and so on. Sanskrit
// text in the body is written in SLP1.
package markup

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ianlewis/go-dictzip"

	"github.com/ianlewis/go-cdsl/internal/folding"
	"github.com/ianlewis/go-cdsl/store"
)

// ErrMalformedRecord indicates that a record could not be parsed.
var ErrMalformedRecord = errors.New("malformed record")

// Record is a single parsed record.
type Record struct {
	// ID is the numeric record id from the <L> tail element.
	ID int64

	// Key is the headword.
	Key string

	// AltKey is the alternate spelling of the headword.
	AltKey string

	// Body is the inner markup of the <body> element with folded
	// whitespace.
	Body string

	// Page is the page and column reference from the <pc> tail element.
	Page string

	// Data is the raw markup of the record.
	Data string
}

type xmlRecord struct {
	XMLName xml.Name
	Head    struct {
		Key1 string `xml:"key1"`
		Key2 string `xml:"key2"`
	} `xml:"h"`
	Body struct {
		Inner []byte `xml:",innerxml"`
	} `xml:"body"`
	Tail struct {
		L  string `xml:"L"`
		PC string `xml:"pc"`
	} `xml:"tail"`
}

// Parse parses the raw markup of a single record.
func Parse(data []byte) (*Record, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = false
	d.AutoClose = xml.HTMLAutoClose
	d.Entity = xml.HTMLEntity

	var x xmlRecord
	if err := d.Decode(&x); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	l := strings.TrimSpace(x.Tail.L)
	id, err := strconv.ParseInt(l, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: invalid id %q", ErrMalformedRecord, l)
	}

	key := strings.TrimSpace(x.Head.Key1)
	if key == "" {
		return nil, fmt.Errorf("%w: record %d has no key", ErrMalformedRecord, id)
	}

	return &Record{
		ID:     id,
		Key:    key,
		AltKey: strings.TrimSpace(x.Head.Key2),
		Body:   folding.Text(string(x.Body.Inner)),
		Page:   strings.TrimSpace(x.Tail.PC),
		Data:   string(data),
	}, nil
}

// Entries returns the primary entry for the record followed by its
// sub-entries.
func (r *Record) Entries() []*store.Entry {
	entries := []*store.Entry{{
		ID:     store.FormatID(r.ID, 0),
		Base:   r.ID,
		Key:    r.Key,
		AltKey: r.AltKey,
		Value:  r.Body,
		Data:   r.Data,
		Page:   r.Page,
	}}
	return append(entries, SubEntries(r.ID, r.Body)...)
}

var (
	subEntryRE = regexp.MustCompile(`(?s)<s1\b([^>]*)>(.*?)</s1>`)
	slp1AttrRE = regexp.MustCompile(`\bslp1\s*=\s*"([^"]*)"`)
)

// SubEntries returns the sub-entries embedded in a record body. Each
// <s1 slp1="NAME">PRINT</s1> construct yields a sub-entry numbered from 1 in
// order of appearance, keyed by its print form with NAME, in SLP1, as its
// value. Constructs without an slp1 attribute are ignored.
func SubEntries(base int64, body string) []*store.Entry {
	var entries []*store.Entry
	for _, m := range subEntryRE.FindAllStringSubmatch(body, -1) {
		attr := slp1AttrRE.FindStringSubmatch(m[1])
		if attr == nil {
			continue
		}
		sub := int64(len(entries) + 1)
		entries = append(entries, &store.Entry{
			ID:    store.FormatID(base, sub),
			Base:  base,
			Sub:   sub,
			Key:   strings.TrimSpace(m[2]),
			Value: attr[1],
			Data:  m[0],
		})
	}
	return entries
}

// Entries returns every entry in the dump read from r, in the order the
// records appear.
func Entries(r io.Reader) iter.Seq2[*store.Entry, error] {
	return func(yield func(*store.Entry, error) bool) {
		s := NewScanner(r)
		for s.Scan() {
			rec, err := s.Record()
			if err != nil {
				yield(nil, err)
				return
			}
			for _, e := range rec.Entries() {
				if !yield(e, nil) {
					return
				}
			}
		}
		if err := s.Err(); err != nil {
			yield(nil, err)
		}
	}
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Open opens a markup dump. Files with a .dz or .gz extension are
// decompressed transparently.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening markup: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".dz" && ext != ".gz" {
		return f, nil
	}

	z, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("opening markup: %w", err)
	}
	return &readCloser{
		Reader:  z,
		closers: []io.Closer{z, f},
	}, nil
}

// WriteDictzip writes the contents of r to a dictzip compressed file at path.
func WriteDictzip(path string, r io.Reader) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing dictzip: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("writing dictzip: %w", closeErr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	z, err := dictzip.NewWriter(f)
	if err != nil {
		return fmt.Errorf("writing dictzip: %w", err)
	}
	if _, err := io.Copy(z, r); err != nil {
		_ = z.Close()
		return fmt.Errorf("writing dictzip: %w", err)
	}
	if err := z.Close(); err != nil {
		return fmt.Errorf("writing dictzip: %w", err)
	}
	return nil
}
