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

package remote

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// walk calls fn for n and each of its descendants in document order until
// fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var nodes []*html.Node
	walk(n, func(c *html.Node) bool {
		if match(c) {
			nodes = append(nodes, c)
		}
		return true
	})
	return nodes
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if match(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

func isElement(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	}
}

func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		return true
	})
	return normalizeText(b.String())
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

func parent(n *html.Node, a atom.Atom) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == a {
			return p
		}
	}
	return nil
}

func resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("%w: invalid link %q: %v", ErrMalformedPage, href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// parseListings parses the home page. Each dictionary is a table row with
// the id, date, name and a link titled "Downloads" to its download page.
func parseListings(r io.Reader, base *url.URL) ([]*Listing, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	downloads := findAll(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.A {
			return false
		}
		title, _ := attr(n, "title")
		return title == "Downloads"
	})

	listings := []*Listing{}
	seen := map[string]bool{}
	for _, a := range downloads {
		row := parent(a, atom.Tr)
		if row == nil {
			continue
		}
		var cells []*html.Node
		for c := row.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Td {
				cells = append(cells, c)
			}
		}
		if len(cells) < 4 {
			continue
		}

		id := strings.ToUpper(firstWord(text(cells[0])))
		if id == "" || seen[id] {
			continue
		}
		name := text(cells[2])
		if link := findFirst(cells[2], isElement(atom.A)); link != nil {
			name = text(link)
		}
		href, _ := attr(a, "href")
		pageURL, err := resolve(base, href)
		if err != nil {
			return nil, err
		}

		seen[id] = true
		listings = append(listings, &Listing{
			ID:   id,
			Name: name,
			Date: firstWord(text(cells[1])),
			URL:  pageURL,
		})
	}
	if len(listings) == 0 {
		return nil, fmt.Errorf("%w: no dictionaries listed", ErrMalformedPage)
	}
	return listings, nil
}

// parseRelease parses a download page. The modification date is in the
// footer and the archive is the first link ending with suffix.
func parseRelease(r io.Reader, base *url.URL, suffix string) (*Release, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	var rel Release
	footer := findFirst(doc, func(n *html.Node) bool {
		id, _ := attr(n, "id")
		return n.Type == html.ElementNode && n.DataAtom == atom.Div && id == "footer"
	})
	if footer != nil {
		p := findFirst(footer, isElement(atom.P))
		if p == nil {
			p = footer
		}
		t := text(p)
		if _, after, ok := strings.Cut(t, ":"); ok {
			t = after
		}
		rel.LastModified = strings.TrimSpace(t)
	}
	if rel.LastModified == "" {
		return nil, fmt.Errorf("%w: no modification date", ErrMalformedPage)
	}

	link := findFirst(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.A {
			return false
		}
		href, _ := attr(n, "href")
		return strings.HasSuffix(strings.TrimSpace(href), suffix)
	})
	if link == nil {
		return nil, fmt.Errorf("%w: suffix %q", ErrNoArchive, suffix)
	}
	href, _ := attr(link, "href")
	if rel.ArchiveURL, err = resolve(base, href); err != nil {
		return nil, err
	}
	return &rel, nil
}
