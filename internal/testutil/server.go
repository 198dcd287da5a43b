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

package testutil

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Failure is a failure the fake server injects into archive downloads.
type Failure int

const (
	// FailNone serves archives normally.
	FailNone Failure = iota

	// FailTruncate closes the connection halfway through the archive.
	FailTruncate

	// FailStatus responds with an internal server error.
	FailStatus

	// FailCorrupt serves bytes that are not a zip archive.
	FailCorrupt

	// FailSize serves more bytes than the size the server advertises.
	FailSize

	// FailMalformed serves a valid archive whose markup holds a record
	// that cannot be parsed.
	FailMalformed
)

// malformedRecord is a record whose id is not a number.
const malformedRecord = "<H1><h><key1>a</key1></h><body>x</body><tail><L>x</L></tail></H1>\n"

// ServerDict is a dictionary published by the fake server.
type ServerDict struct {
	ID           string
	Name         string
	Date         string
	LastModified string

	// Files are the contents of the dictionary's archive.
	Files []File
}

// Server is a fake CDSL web site.
type Server struct {
	*httptest.Server

	t *testing.T

	mu        sync.Mutex
	dicts     []*ServerDict
	archives  map[string][]byte
	malformed map[string][]byte
	failures  map[string]Failure
	downloads map[string]int
}

// NewServer starts a fake CDSL web site publishing dicts. The server is
// closed when the test ends.
func NewServer(t *testing.T, dicts ...*ServerDict) *Server {
	t.Helper()

	s := &Server{
		t:         t,
		archives:  map[string][]byte{},
		malformed: map[string][]byte{},
		failures:  map[string]Failure{},
		downloads: map[string]int{},
	}
	for _, d := range dicts {
		s.Set(d)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.home)
	mux.HandleFunc("GET /dicts/{id}/download.html", s.downloadPage)
	mux.HandleFunc("GET /dicts/{id}/{file}", s.archive)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// NewDict returns a dictionary whose archive holds a markup dump of records.
func NewDict(id string, records []*Record) *ServerDict {
	return &ServerDict{
		ID:           id,
		Name:         id + " Sanskrit Dictionary",
		Date:         "1899",
		LastModified: "2024-01-01 00:00:00",
		Files: []File{
			{Name: "README.txt", Data: []byte("CDSL " + id + "\n")},
			{Name: strings.ToLower(id) + ".xml", Data: Markup(id, records)},
		},
	}
}

// Set publishes d, replacing any dictionary with the same id.
func (s *Server) Set(d *ServerDict) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.archives[d.ID] = Zip(s.t, d.Files)
	s.malformed[d.ID] = Zip(s.t, malformedFiles(d.Files))
	for i, old := range s.dicts {
		if old.ID == d.ID {
			s.dicts[i] = d
			return
		}
	}
	s.dicts = append(s.dicts, d)
}

// malformedFiles returns files with a malformed record added to the markup.
func malformedFiles(files []File) []File {
	out := make([]File, 0, len(files))
	for _, f := range files {
		if strings.HasSuffix(f.Name, ".xml") {
			f.Data = bytes.Replace(f.Data, []byte("<H1>"), []byte(malformedRecord+"<H1>"), 1)
		}
		out = append(out, f)
	}
	return out
}

// Fail injects f into downloads of the archive of id.
func (s *Server) Fail(id string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id] = f
}

// Downloads returns the number of archive downloads of id.
func (s *Server) Downloads(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads[id]
}

// Archive returns the archive served for id.
func (s *Server) Archive(id string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archives[id]
}

func (s *Server) lookup(id string) *ServerDict {
	for _, d := range s.dicts {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (s *Server) home(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString("<html><head><title>Cologne Digital Sanskrit Dictionaries</title></head><body>\n")
	b.WriteString("<table>\n<tr><th>Code</th><th>Date</th><th>Dictionary</th><th>Downloads</th></tr>\n")
	for _, d := range s.dicts {
		fmt.Fprintf(&b,
			"<tr><td>%s <a href=\"/dicts/%s/\">scan</a></td><td>%s</td><td><a href=\"/dicts/%s/\">%s</a></td>"+
				"<td><a title=\"Downloads\" href=\"/dicts/%s/download.html\">&#8659;</a></td></tr>\n",
			html.EscapeString(d.ID), d.ID, html.EscapeString(d.Date), d.ID, html.EscapeString(d.Name), d.ID)
	}
	b.WriteString("</table>\n</body></html>\n")
	_, _ = w.Write([]byte(b.String()))
}

func (s *Server) downloadPage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.lookup(r.PathValue("id"))
	if d == nil {
		http.NotFound(w, r)
		return
	}

	lower := strings.ToLower(d.ID)
	fmt.Fprintf(w, `<html><body>
<ul>
<li>Directory 'web' containing displays: <a href="%swebtc.zip">%swebtc.zip</a></li>
<li>Digitization in xml form: <a href="%sxml.zip">%sxml.zip</a></li>
</ul>
<div id="footer"><p>Last modified: %s</p></div>
</body></html>
`, lower, lower, lower, lower, html.EscapeString(d.LastModified))
}

func (s *Server) archive(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	id := r.PathValue("id")
	data, ok := s.archives[id]
	failure := s.failures[id]
	if failure == FailMalformed {
		data = s.malformed[id]
	}
	if ok && r.PathValue("file") != strings.ToLower(id)+"xml.zip" {
		ok = false
	}
	if ok && r.Method == http.MethodGet {
		s.downloads[id]++
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	size := len(data)
	switch failure {
	case FailStatus:
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	case FailCorrupt:
		data = bytes.Repeat([]byte{0}, size)
	case FailSize:
		if r.Method == http.MethodGet {
			data = append(bytes.Clone(data), bytes.Repeat([]byte{0}, 16)...)
		}
	case FailNone, FailTruncate, FailMalformed:
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if r.Method == http.MethodHead {
		return
	}
	if failure == FailTruncate {
		data = data[:len(data)/2]
	}
	_, _ = w.Write(data)
}
