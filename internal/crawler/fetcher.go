package crawler

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/crypto/sha3"
	"golang.org/x/net/html/charset"
)

// Fetcher retrieves a single page.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

// Response is a fetched page.
type Response struct {
	// StatusCode is the final HTTP status after redirects.
	StatusCode int

	// ContentType is the Content-Type response header.
	ContentType string

	// FinalURL is the URL of the last request in the redirect chain.
	FinalURL *url.URL

	// Body is the decompressed body. HTML bodies are converted to UTF-8.
	Body []byte

	// ContentHash is the hex-encoded SHA3-256 of Body.
	ContentHash string
}

const (
	// DefaultPageTimeout bounds a single page request including redirects.
	DefaultPageTimeout = 30 * time.Second

	// DefaultMaxRedirects is the redirect limit for page and link requests.
	DefaultMaxRedirects = 10

	// DefaultMaxBodySize caps how many decoded bytes of a page are kept.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024
)

// HTTPFetcher implements Fetcher with net/http.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	headers      map[string]string
	origin       *url.URL
	maxBodySize  int64
	timeout      time.Duration
	maxRedirects int
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithFetcherTimeout sets the per-request timeout.
func WithFetcherTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		f.timeout = d
	}
}

// WithFetcherMaxRedirects sets how many redirects are followed.
func WithFetcherMaxRedirects(n int) FetcherOption {
	return func(f *HTTPFetcher) {
		f.maxRedirects = n
	}
}

// WithFetcherMaxBodySize sets the maximum number of decoded body bytes kept.
// Larger bodies are truncated.
func WithFetcherMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		f.maxBodySize = size
	}
}

// WithFetcherUserAgent sets the User-Agent header.
func WithFetcherUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithFetcherHeaders adds request headers. They override the defaults,
// including User-Agent.
func WithFetcherHeaders(headers map[string]string) FetcherOption {
	return func(f *HTTPFetcher) {
		for k, v := range headers {
			f.headers[k] = v
		}
	}
}

// WithFetcherOrigin scopes the headers set with WithFetcherHeaders to one
// origin. Requests to other hosts or ports, including redirects that leave
// the origin, are sent without them. Without an origin the headers go to
// every request.
func WithFetcherOrigin(origin *url.URL) FetcherOption {
	return func(f *HTTPFetcher) {
		f.origin = origin
	}
}

// WithFetcherClient replaces the HTTP client. Timeout and redirect options
// are not applied to a client supplied this way.
func WithFetcherClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// NewHTTPFetcher creates a fetcher with browser-like defaults.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		headers:      make(map[string]string),
		maxBodySize:  DefaultMaxBodySize,
		timeout:      DefaultPageTimeout,
		maxRedirects: DefaultMaxRedirects,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		f.client = NewHTTPClient(f.timeout, f.maxRedirects)
	}
	if f.origin != nil && len(f.headers) > 0 {
		f.client = f.scopedClient(f.client)
	}

	return f
}

// scopedClient returns a copy of client that strips the site headers from
// redirects leaving the origin.
func (f *HTTPFetcher) scopedClient(client *http.Client) *http.Client {
	scoped := *client
	next := client.CheckRedirect
	scoped.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if IsExternal(req.URL, f.origin) {
			for k := range f.headers {
				req.Header.Del(k)
			}
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= DefaultMaxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}
	return &scoped
}

// sendsHeadersTo reports whether the site headers belong on a request to u.
func (f *HTTPFetcher) sendsHeadersTo(u *url.URL) bool {
	return f.origin == nil || !IsExternal(u, f.origin)
}

// NewHTTPClient returns a client with a total request timeout and a
// redirect limit. When the limit is reached the last redirect response is
// returned as-is.
//
// Design decision: We return the 3xx response instead of an error because
// a redirect loop is still an HTTP answer worth recording; turning it into
// a transport error would hide the status from reports.
func NewHTTPClient(timeout time.Duration, maxRedirects int) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// Client exposes the underlying HTTP client.
func (f *HTTPFetcher) Client() *http.Client {
	return f.client
}

// Fetch downloads rawURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	// Setting Accept-Encoding disables the transport's transparent gzip,
	// so every advertised encoding is decoded in readBody.
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if f.sendsHeadersTo(req.URL) {
		for k, v := range f.headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := f.readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if isHTML(contentType, body) {
		body = toUTF8(body, contentType)
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		FinalURL:    finalURL,
		Body:        body,
		ContentHash: ContentHash(body),
	}, nil
}

// readBody decompresses the response body and reads at most maxBodySize bytes.
func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodySize))
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// isHTML reports whether a body should be treated as an HTML document.
func isHTML(contentType string, body []byte) bool {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// toUTF8 converts an HTML body to UTF-8 using the declared or sniffed
// charset. The body is returned unchanged when no conversion is possible.
func toUTF8(body []byte, contentType string) []byte {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return body
	}
	return decoded
}

// ContentHash returns the hex-encoded SHA3-256 digest of data.
func ContentHash(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
