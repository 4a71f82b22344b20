package crawler

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	t.Run("sends headers and returns response", func(t *testing.T) {
		t.Parallel()

		headers := make(chan http.Header, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers <- r.Header.Clone()
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<title>Hello</title>"))
		}))
		defer srv.Close()

		f := NewHTTPFetcher(
			WithFetcherUserAgent("Scoutly/test"),
			WithFetcherHeaders(map[string]string{"X-Test": "yes"}),
		)
		resp, err := f.Fetch(context.Background(), srv.URL+"/page")
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}

		if resp.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d", resp.StatusCode)
		}
		if !strings.HasPrefix(resp.ContentType, "text/html") {
			t.Errorf("ContentType = %q", resp.ContentType)
		}
		if string(resp.Body) != "<title>Hello</title>" {
			t.Errorf("Body = %q", resp.Body)
		}
		if resp.ContentHash != ContentHash([]byte("<title>Hello</title>")) {
			t.Errorf("ContentHash = %q", resp.ContentHash)
		}
		got := <-headers
		gotUA, gotCustom, gotAccept := got.Get("User-Agent"), got.Get("X-Test"), got.Get("Accept")
		if gotUA != "Scoutly/test" {
			t.Errorf("User-Agent = %q", gotUA)
		}
		if gotCustom != "yes" {
			t.Errorf("X-Test = %q", gotCustom)
		}
		if !strings.Contains(gotAccept, "text/html") {
			t.Errorf("Accept = %q", gotAccept)
		}
	})

	t.Run("follows redirects and reports final URL", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
		})
		mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		resp, err := NewHTTPFetcher().Fetch(context.Background(), srv.URL+"/old")
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if resp.FinalURL.Path != "/new" {
			t.Errorf("FinalURL = %s, want path /new", resp.FinalURL)
		}
	})

	t.Run("stops after max redirects", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/loop", http.StatusFound)
		}))
		defer srv.Close()

		resp, err := NewHTTPFetcher(WithFetcherMaxRedirects(3)).Fetch(context.Background(), srv.URL+"/loop")
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if resp.StatusCode != http.StatusFound {
			t.Errorf("StatusCode = %d, want 302", resp.StatusCode)
		}
	})

	t.Run("decodes gzip and brotli", func(t *testing.T) {
		t.Parallel()

		const content = "<html><body>compressed</body></html>"
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var buf bytes.Buffer
			switch r.URL.Path {
			case "/gzip":
				zw := gzip.NewWriter(&buf)
				_, _ = zw.Write([]byte(content))
				_ = zw.Close()
				w.Header().Set("Content-Encoding", "gzip")
			case "/br":
				bw := brotli.NewWriter(&buf)
				_, _ = bw.Write([]byte(content))
				_ = bw.Close()
				w.Header().Set("Content-Encoding", "br")
			}
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write(buf.Bytes())
		}))
		defer srv.Close()

		f := NewHTTPFetcher()
		for _, path := range []string{"/gzip", "/br"} {
			resp, err := f.Fetch(context.Background(), srv.URL+path)
			if err != nil {
				t.Fatalf("Fetch(%s): %v", path, err)
			}
			if string(resp.Body) != content {
				t.Errorf("%s body = %q", path, resp.Body)
			}
		}
	})

	t.Run("converts declared charset to utf-8", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			// "café" in Latin-1.
			_, _ = w.Write([]byte("<title>caf\xe9</title>"))
		}))
		defer srv.Close()

		resp, err := NewHTTPFetcher().Fetch(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if string(resp.Body) != "<title>café</title>" {
			t.Errorf("Body = %q", resp.Body)
		}
	})

	t.Run("truncates large bodies", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(bytes.Repeat([]byte("x"), 1000))
		}))
		defer srv.Close()

		resp, err := NewHTTPFetcher(WithFetcherMaxBodySize(100)).Fetch(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if len(resp.Body) != 100 {
			t.Errorf("len(Body) = %d, want 100", len(resp.Body))
		}
	})

	t.Run("times out", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			<-release
		}))
		defer srv.Close()
		defer close(release)

		_, err := NewHTTPFetcher(WithFetcherTimeout(50*time.Millisecond)).Fetch(context.Background(), srv.URL)
		if err == nil {
			t.Fatal("expected timeout error")
		}
	})

	t.Run("scopes site headers to the origin", func(t *testing.T) {
		t.Parallel()

		external := make(chan string, 4)
		other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			external <- r.Header.Get("Authorization") + "|" + r.Header.Get("X-Api-Key")
			_, _ = w.Write([]byte("ok"))
		}))
		defer other.Close()

		internal := make(chan string, 4)
		site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			internal <- r.Header.Get("Authorization")
			if r.URL.Path == "/leave" {
				http.Redirect(w, r, other.URL+"/", http.StatusFound)
				return
			}
			_, _ = w.Write([]byte("ok"))
		}))
		defer site.Close()

		origin, err := url.Parse(site.URL + "/")
		if err != nil {
			t.Fatal(err)
		}
		f := NewHTTPFetcher(
			WithFetcherOrigin(origin),
			WithFetcherHeaders(map[string]string{"Authorization": "Bearer TOKEN", "X-Api-Key": "KEY"}),
		)

		if _, err := f.Fetch(context.Background(), site.URL+"/"); err != nil {
			t.Fatalf("Fetch origin: %v", err)
		}
		if got := <-internal; got != "Bearer TOKEN" {
			t.Errorf("origin request Authorization = %q", got)
		}

		if _, err := f.Fetch(context.Background(), other.URL+"/direct"); err != nil {
			t.Fatalf("Fetch external: %v", err)
		}
		if got := <-external; got != "|" {
			t.Errorf("direct external request carried site headers: %q", got)
		}

		if _, err := f.Fetch(context.Background(), site.URL+"/leave"); err != nil {
			t.Fatalf("Fetch redirect: %v", err)
		}
		<-internal
		if got := <-external; got != "|" {
			t.Errorf("redirect to external host carried site headers: %q", got)
		}
	})
}
