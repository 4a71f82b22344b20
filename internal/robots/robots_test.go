package robots

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
)

func newTestEngine() *Engine {
	return NewEngine(
		WithUserAgent("Scoutly/test"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}

func TestDomainKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"https://Example.com/path?q=1", "https://example.com"},
		{"http://example.com:8080/x", "http://example.com:8080"},
		{"https://example.com", "https://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			u, err := url.Parse(tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			if got := DomainKey(u); got != tt.want {
				t.Errorf("DomainKey(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestEngineAllowed(t *testing.T) {
	t.Parallel()

	t.Run("rules are fetched once and cached", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		var gotUA atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/robots.txt" {
				http.NotFound(w, r)
				return
			}
			hits.Add(1)
			gotUA.Store(r.Header.Get("User-Agent"))
			_, _ = io.WriteString(w, "User-agent: *\nDisallow: /private\nAllow: /private/public\n")
		}))
		defer srv.Close()

		e := newTestEngine()
		ctx := context.Background()

		if !e.Allowed(ctx, mustParse(t, srv.URL+"/"), "Scoutly") {
			t.Error("/ should be allowed")
		}
		if e.Allowed(ctx, mustParse(t, srv.URL+"/private/x"), "Scoutly") {
			t.Error("/private/x should be denied")
		}
		if !e.Allowed(ctx, mustParse(t, srv.URL+"/private/public?q=1"), "Scoutly") {
			t.Error("/private/public should be allowed")
		}
		if got := hits.Load(); got != 1 {
			t.Errorf("robots.txt fetched %d times, want 1", got)
		}
		if ua, _ := gotUA.Load().(string); ua != "Scoutly/test" {
			t.Errorf("User-Agent = %q, want Scoutly/test", ua)
		}
		if !e.Cached(mustParse(t, srv.URL)) {
			t.Error("domain should be cached")
		}
	})

	t.Run("concurrent queries share one fetch", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			<-release
			_, _ = io.WriteString(w, "User-agent: *\nDisallow: /x\n")
		}))
		defer srv.Close()

		e := newTestEngine()
		target := mustParse(t, srv.URL+"/x")

		var wg sync.WaitGroup
		results := make([]bool, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = e.Allowed(context.Background(), target, "bot")
			}(i)
		}
		close(release)
		wg.Wait()

		for i, allowed := range results {
			if allowed {
				t.Errorf("result[%d] = true, want false", i)
			}
		}
		if got := hits.Load(); got > 1 {
			// Goroutines that arrive after the first fetch finished hit
			// the cache, so more than one request means deduplication failed.
			t.Errorf("robots.txt fetched %d times, want 1", got)
		}
	})

	t.Run("missing robots.txt allows all", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		e := newTestEngine()
		if !e.Allowed(context.Background(), mustParse(t, srv.URL+"/anything"), "bot") {
			t.Error("404 robots.txt should allow all")
		}
		if !e.Cached(mustParse(t, srv.URL)) {
			t.Error("404 result should be cached")
		}
	})

	t.Run("server error allows all", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "User-agent: *\nDisallow: /\n")
		}))
		defer srv.Close()

		e := newTestEngine()
		if !e.Allowed(context.Background(), mustParse(t, srv.URL+"/"), "bot") {
			t.Error("5xx robots.txt should allow all")
		}
	})

	t.Run("unreachable host allows all", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		e := newTestEngine()
		if !e.Allowed(context.Background(), mustParse(t, addr+"/page"), "bot") {
			t.Error("unreachable robots.txt should allow all")
		}
	})

	t.Run("cancelled context is not cached", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "User-agent: *\nDisallow: /\n")
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		e := newTestEngine()
		target := mustParse(t, srv.URL+"/page")
		if !e.Allowed(ctx, target, "bot") {
			t.Error("cancelled fetch should allow")
		}
		if e.Cached(target) {
			t.Error("cancelled fetch should not be cached")
		}
		if e.Allowed(context.Background(), target, "bot") {
			t.Error("later query should fetch and deny")
		}
	})

	t.Run("agent specific group wins", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "User-agent: *\nDisallow: /\n\nUser-agent: scoutly\nAllow: /\n")
		}))
		defer srv.Close()

		e := newTestEngine()
		if !e.Allowed(context.Background(), mustParse(t, srv.URL+"/page"), "Scoutly/1.0") {
			t.Error("scoutly should be allowed")
		}
		if e.Allowed(context.Background(), mustParse(t, srv.URL+"/page"), "OtherBot") {
			t.Error("other bots should be denied")
		}
	})
}
