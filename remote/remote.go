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

// Package remote implements access to the CDSL web site: the listing of
// published dictionaries, the release details on each dictionary's download
// page and the archive downloads themselves.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

// DefaultServerURL is the home page of the CDSL project.
const DefaultServerURL = "https://www.sanskrit-lexicon.uni-koeln.de"

// DefaultArchiveSuffix is the suffix of the archive link on a download page
// holding the dictionary's markup.
const DefaultArchiveSuffix = "xml.zip"

var (
	// ErrUnexpectedStatus indicates an HTTP response with a non-success
	// status code.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrSizeMismatch indicates that a download did not have the expected
	// size.
	ErrSizeMismatch = errors.New("size mismatch")

	// ErrNoArchive indicates that a download page has no archive link.
	ErrNoArchive = errors.New("no archive link")

	// ErrMalformedPage indicates that a page could not be parsed.
	ErrMalformedPage = errors.New("malformed page")
)

// Listing is a dictionary published on the CDSL home page.
type Listing struct {
	// ID is the dictionary's short code, e.g. MW.
	ID string

	// Name is the dictionary's full name.
	Name string

	// Date is the publication date of the print edition.
	Date string

	// URL is the dictionary's download page.
	URL string
}

// Release describes the current archive on a dictionary's download page.
type Release struct {
	// ArchiveURL is the URL of the archive.
	ArchiveURL string

	// Size is the archive size in bytes, or zero if unknown.
	Size int64

	// LastModified is the modification date shown on the download page.
	LastModified string
}

// Marker returns the build marker identifying the release.
func (r *Release) Marker() string {
	return r.LastModified + "|" + strconv.FormatInt(r.Size, 10)
}

// ProgressFunc is called as a download progresses. total is zero if the size
// is unknown.
type ProgressFunc func(url string, written, total int64)

// Options are options for a [Client].
type Options struct {
	// ServerURL is the CDSL home page.
	ServerURL string

	// ArchiveSuffix is the suffix used to find the archive link on download
	// pages.
	ArchiveSuffix string

	// RequestsPerSecond limits the rate of requests to the server. Zero or
	// less disables limiting.
	RequestsPerSecond float64

	// UserAgent is sent with every request.
	UserAgent string

	// HTTPClient is the client used for requests. Defaults to
	// [http.DefaultClient].
	HTTPClient *http.Client

	// Progress, if set, is called as downloads progress.
	Progress ProgressFunc

	// Logger is the logger used by the client. Defaults to [slog.Default].
	Logger *slog.Logger
}

// DefaultOptions are the default options for a [Client].
var DefaultOptions = &Options{
	ServerURL:         DefaultServerURL,
	ArchiveSuffix:     DefaultArchiveSuffix,
	RequestsPerSecond: 2,
	UserAgent:         "go-cdsl",
}

// Client accesses the CDSL web site. It is safe for concurrent use.
type Client struct {
	server   *url.URL
	suffix   string
	agent    string
	http     *http.Client
	limiter  *rate.Limiter
	progress ProgressFunc
	log      *slog.Logger
}

// NewClient returns a new client.
func NewClient(opts *Options) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions
	}

	serverURL := opts.ServerURL
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	server, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server URL: %w", err)
	}

	c := &Client{
		server:   server,
		suffix:   opts.ArchiveSuffix,
		agent:    opts.UserAgent,
		http:     opts.HTTPClient,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		progress: opts.Progress,
		log:      opts.Logger,
	}
	if c.suffix == "" {
		c.suffix = DefaultArchiveSuffix
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	c.log = c.log.With("component", "remote")
	return c, nil
}

// do sends a request after waiting for the rate limiter. Responses with a
// non-success status are closed and returned as an error.
func (c *Client) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}

	c.log.Debug("request", "method", method, "url", rawURL)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s: %s", ErrUnexpectedStatus, method, rawURL, resp.Status)
	}
	return resp, nil
}

// List returns the dictionaries published on the home page in the order
// they are listed.
func (c *Client) List(ctx context.Context) ([]*Listing, error) {
	resp, err := c.do(ctx, http.MethodGet, c.server.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	listings, err := parseListings(resp.Body, resp.Request.URL)
	if err != nil {
		return nil, err
	}
	c.log.Debug("listed dictionaries", "count", len(listings))
	return listings, nil
}

// Release returns the current release on the download page at pageURL.
func (c *Client) Release(ctx context.Context, pageURL string) (*Release, error) {
	resp, err := c.do(ctx, http.MethodGet, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rel, err := parseRelease(resp.Body, resp.Request.URL, c.suffix)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pageURL, err)
	}

	head, err := c.do(ctx, http.MethodHead, rel.ArchiveURL)
	if err != nil {
		c.log.Warn("archive size unavailable", "url", rel.ArchiveURL, "error", err)
		return rel, nil
	}
	_ = head.Body.Close()
	if head.ContentLength > 0 {
		rel.Size = head.ContentLength
	}
	return rel, nil
}

// Fetch downloads url into w. If size is positive the download must be
// exactly size bytes long or an error wrapping [ErrSizeMismatch] is
// returned.
func (c *Client) Fetch(ctx context.Context, rawURL string, size int64, w io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if size > 0 && resp.ContentLength >= 0 && resp.ContentLength != size {
		return fmt.Errorf("%w: %s: expected %d bytes, server sent %d", ErrSizeMismatch, rawURL, size, resp.ContentLength)
	}

	total := size
	if total <= 0 && resp.ContentLength > 0 {
		total = resp.ContentLength
	}
	pw := &progressWriter{
		w:     w,
		url:   rawURL,
		total: total,
		fn:    c.progress,
	}
	n, err := io.Copy(pw, resp.Body)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	if size > 0 && n != size {
		return fmt.Errorf("%w: %s: expected %d bytes, got %d", ErrSizeMismatch, rawURL, size, n)
	}
	c.log.Debug("downloaded", "url", rawURL, "bytes", n)
	return nil
}

type progressWriter struct {
	w       io.Writer
	url     string
	written int64
	total   int64
	fn      ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.fn != nil {
		p.fn(p.url, p.written, p.total)
	}
	//nolint:wrapcheck // error should not be wrapped
	return n, err
}

// normalizeText collapses whitespace in page text.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
