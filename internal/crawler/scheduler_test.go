package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/scoutly/internal/ratelimit"
	"github.com/nao1215/scoutly/internal/robots"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// newTreeSite serves a binary tree of pages: /n/<i> links to /n/<2i+1>
// and /n/<2i+2>. The root "/" is node 0.
func newTreeSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := 0
		if r.URL.Path != "/" {
			n, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/n/"))
			if err != nil {
				http.NotFound(w, r)
				return
			}
			i = n
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>Node %d</title></head><body>
			<a href="/n/%d">left</a><a href="/n/%d">right</a></body></html>`, i, 2*i+1, 2*i+2)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// pageDepth returns the expected BFS depth of a tree node.
func pageDepth(node int) int {
	d := 0
	for node > 0 {
		node = (node - 1) / 2
		d++
	}
	return d
}

func TestNewScheduler(t *testing.T) {
	t.Parallel()

	t.Run("rejects non http schemes", func(t *testing.T) {
		t.Parallel()
		for _, seed := range []string{"ftp://example.com", "file:///tmp/x"} {
			if _, err := NewScheduler(seed); !errors.Is(err, ErrInvalidScheme) {
				t.Errorf("NewScheduler(%q) error = %v, want ErrInvalidScheme", seed, err)
			}
		}
	})

	t.Run("rejects invalid bounds", func(t *testing.T) {
		t.Parallel()
		tests := []Option{WithMaxDepth(-1), WithMaxPages(0), WithConcurrency(0)}
		for i, opt := range tests {
			if _, err := NewScheduler("https://example.com", opt); err == nil {
				t.Errorf("case %d: expected error", i)
			}
		}
	})

	t.Run("starts idle", func(t *testing.T) {
		t.Parallel()
		s, err := NewScheduler("https://example.com")
		if err != nil {
			t.Fatal(err)
		}
		if s.State() != StateIdle {
			t.Errorf("State() = %v, want idle", s.State())
		}
		if s.Seed().Host != "example.com" {
			t.Errorf("Seed() = %v", s.Seed())
		}
	})
}

func TestSchedulerBounds(t *testing.T) {
	t.Parallel()

	srv := newTreeSite(t)

	t.Run("depth zero fetches only the seed", func(t *testing.T) {
		t.Parallel()
		s, err := NewScheduler(srv.URL+"/", WithMaxDepth(0), WithLogger(discardLogger))
		if err != nil {
			t.Fatal(err)
		}
		pages, err := s.Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(pages) != 1 {
			t.Fatalf("got %d pages, want 1", len(pages))
		}
		page, ok := pages[srv.URL+"/"]
		if !ok {
			t.Fatalf("seed missing from result: %v", pages)
		}
		if page.Depth != 0 || page.Title != "Node 0" || len(page.Links) != 2 {
			t.Errorf("seed page = %+v", page)
		}
		if s.State() != StateCompleted {
			t.Errorf("State() = %v, want completed", s.State())
		}
	})

	t.Run("depth bound", func(t *testing.T) {
		t.Parallel()
		s, err := NewScheduler(srv.URL+"/", WithMaxDepth(2), WithMaxPages(100), WithLogger(discardLogger))
		if err != nil {
			t.Fatal(err)
		}
		pages, err := s.Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(pages) != 7 {
			t.Errorf("got %d pages, want 7", len(pages))
		}
		for key, page := range pages {
			if page.Depth > 2 {
				t.Errorf("%s has depth %d", key, page.Depth)
			}
			if key == srv.URL+"/" {
				continue
			}
			node, err := strconv.Atoi(strings.TrimPrefix(key, srv.URL+"/n/"))
			if err != nil {
				t.Fatalf("unexpected key %q", key)
			}
			if want := pageDepth(node); page.Depth != want {
				t.Errorf("%s depth = %d, want %d", key, page.Depth, want)
			}
		}
	})

	t.Run("page budget", func(t *testing.T) {
		t.Parallel()
		for _, concurrency := range []int{1, 2, 5} {
			s, err := NewScheduler(srv.URL+"/",
				WithMaxPages(3),
				WithConcurrency(concurrency),
				WithLogger(discardLogger),
			)
			if err != nil {
				t.Fatal(err)
			}
			pages, err := s.Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(pages) != 3 {
				t.Errorf("concurrency %d: got %d pages, want 3", concurrency, len(pages))
			}
		}
	})
}

func TestSchedulerFragments(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/" {
			_, _ = io.WriteString(w, `<a href="/p#a">A</a><a href="/p#b">B</a>`)
			return
		}
		_, _ = io.WriteString(w, `<title>P</title>`)
	}))
	t.Cleanup(srv.Close)

	tests := []struct {
		keep      bool
		wantPages int
	}{
		{keep: false, wantPages: 2},
		{keep: true, wantPages: 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("keep=%v", tt.keep), func(t *testing.T) {
			t.Parallel()
			s, err := NewScheduler(srv.URL+"/", WithKeepFragments(tt.keep), WithLogger(discardLogger))
			if err != nil {
				t.Fatal(err)
			}
			pages, err := s.Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(pages) != tt.wantPages {
				t.Errorf("got %d pages, want %d: %v", len(pages), tt.wantPages, pages)
			}
			seed := pages[srv.URL+"/"]
			if seed == nil || len(seed.Links) != 2 {
				t.Fatalf("seed links missing: %+v", seed)
			}
			if seed.Links[0].URL != srv.URL+"/p#a" || seed.Links[1].URL != srv.URL+"/p#b" {
				t.Errorf("links not preserved verbatim: %+v", seed.Links)
			}
		})
	}
}

func TestSchedulerFollowExternal(t *testing.T) {
	t.Parallel()

	external := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<title>External</title>`)
	}))
	defer external.Close()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<a href="/internal">in</a><a href="%s/ext">out</a>`, external.URL)
	}))
	defer origin.Close()

	externalHost := strings.TrimPrefix(external.URL, "http://")

	run := func(t *testing.T, follow bool) map[string]bool {
		t.Helper()
		s, err := NewScheduler(origin.URL+"/", WithFollowExternal(follow), WithMaxDepth(1), WithLogger(discardLogger))
		if err != nil {
			t.Fatal(err)
		}
		pages, err := s.Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}

		externalKeys := 0
		for key := range pages {
			if strings.Contains(key, externalHost) {
				externalKeys++
			}
		}
		if follow && externalKeys != 1 {
			t.Errorf("follow=true: %d external pages, want 1", externalKeys)
		}
		if !follow && externalKeys != 0 {
			t.Errorf("follow=false: %d external pages, want 0", externalKeys)
		}

		classified := make(map[string]bool)
		for _, link := range pages[origin.URL+"/"].Links {
			classified[link.URL] = link.IsExternal
		}
		return classified
	}

	withFollow := run(t, true)
	withoutFollow := run(t, false)

	if len(withFollow) != 2 || len(withoutFollow) != 2 {
		t.Fatalf("unexpected link sets: %v / %v", withFollow, withoutFollow)
	}
	for link, ext := range withFollow {
		if withoutFollow[link] != ext {
			t.Errorf("classification of %s differs between runs", link)
		}
	}
	if !withFollow[external.URL+"/ext"] {
		t.Error("external link not classified as external")
	}
	if withFollow[origin.URL+"/internal"] {
		t.Error("internal link classified as external")
	}
}

func TestSchedulerRobots(t *testing.T) {
	t.Parallel()

	var privateHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			_, _ = io.WriteString(w, "User-agent: *\nDisallow: /private\nAllow: /private/public\n")
		case "/":
			w.Header().Set("Content-Type", "text/html")
			_, _ = io.WriteString(w, `<a href="/private/secret">s</a><a href="/private/public">p</a><a href="/open">o</a>`)
		default:
			if strings.HasPrefix(r.URL.Path, "/private/secret") {
				privateHits.Add(1)
			}
			w.Header().Set("Content-Type", "text/html")
			_, _ = io.WriteString(w, `<title>ok</title>`)
		}
	}))
	defer srv.Close()

	engine := robots.NewEngine(robots.WithLogger(discardLogger))
	s, err := NewScheduler(srv.URL+"/",
		WithRobots(engine),
		WithUserAgent("Scoutly"),
		WithLogger(discardLogger),
	)
	if err != nil {
		t.Fatal(err)
	}

	pages, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, ok := pages[srv.URL+"/private/secret"]; ok {
		t.Error("disallowed page was recorded")
	}
	if privateHits.Load() != 0 {
		t.Error("disallowed page was fetched")
	}
	for _, path := range []string{"/", "/private/public", "/open"} {
		if _, ok := pages[srv.URL+path]; !ok {
			t.Errorf("%s missing from result", path)
		}
	}
	if got := s.Stats().Denied; got != 1 {
		t.Errorf("Stats().Denied = %d, want 1", got)
	}
}

// stubFetcher serves canned bodies and fails for URLs in failing.
type stubFetcher struct {
	bodies  map[string]string
	failing map[string]bool

	mu       sync.Mutex
	inFlight int
	maxSeen  int
	calls    int
	delay    time.Duration
}

func (f *stubFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	f.mu.Lock()
	f.inFlight++
	f.calls++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.failing[rawURL] {
		return nil, errors.New("connection refused")
	}
	body, ok := f.bodies[rawURL]
	if !ok {
		return &Response{StatusCode: http.StatusNotFound, ContentType: "text/html"}, nil
	}
	u, _ := url.Parse(rawURL) //nolint:errcheck // test URLs are valid
	return &Response{
		StatusCode:  http.StatusOK,
		ContentType: "text/html",
		FinalURL:    u,
		Body:        []byte(body),
		ContentHash: ContentHash([]byte(body)),
	}, nil
}

type failingExtractor struct{}

func (failingExtractor) Extract([]byte, *url.URL) (*Extraction, error) {
	return nil, errors.New("malformed document")
}

func TestSchedulerFailures(t *testing.T) {
	t.Parallel()

	t.Run("fetch failure is recorded and crawl continues", func(t *testing.T) {
		t.Parallel()
		f := &stubFetcher{
			bodies: map[string]string{
				"https://example.com/":   `<a href="/down">d</a><a href="/up">u</a>`,
				"https://example.com/up": `<title>Up</title>`,
			},
			failing: map[string]bool{"https://example.com/down": true},
		}
		s, err := NewScheduler("https://example.com/", WithFetcher(f), WithLogger(discardLogger))
		if err != nil {
			t.Fatal(err)
		}
		pages, err := s.Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		down := pages["https://example.com/down"]
		if down == nil {
			t.Fatal("failed page missing")
		}
		if down.StatusCode != 0 || down.Fetched() || len(down.Links) != 0 {
			t.Errorf("failed page = %+v", down)
		}
		if down.Depth != 1 {
			t.Errorf("failed page depth = %d, want 1", down.Depth)
		}
		if up := pages["https://example.com/up"]; up == nil || up.Title != "Up" {
			t.Errorf("up page = %+v", up)
		}
		if st := s.Stats(); st.Failed != 1 || st.Fetched != 2 {
			t.Errorf("Stats() = %+v", st)
		}
	})

	t.Run("extraction failure leaves empty fields", func(t *testing.T) {
		t.Parallel()
		f := &stubFetcher{bodies: map[string]string{"https://example.com/": `<a href="/x">x</a>`}}
		s, err := NewScheduler("https://example.com/",
			WithFetcher(f),
			WithExtractor(failingExtractor{}),
			WithLogger(discardLogger),
		)
		if err != nil {
			t.Fatal(err)
		}
		pages, err := s.Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(pages) != 1 {
			t.Fatalf("got %d pages, want 1", len(pages))
		}
		page := pages["https://example.com/"]
		if page.StatusCode != http.StatusOK || len(page.Links) != 0 || page.Title != "" {
			t.Errorf("page = %+v", page)
		}
	})
}

func TestSchedulerConcurrency(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{"https://example.com/": ""}
	var sb strings.Builder
	for i := range 12 {
		fmt.Fprintf(&sb, `<a href="/p%d">p</a>`, i)
		bodies[fmt.Sprintf("https://example.com/p%d", i)] = ""
	}
	bodies["https://example.com/"] = sb.String()

	f := &stubFetcher{bodies: bodies, delay: 20 * time.Millisecond}
	s, err := NewScheduler("https://example.com/",
		WithFetcher(f),
		WithConcurrency(3),
		WithLogger(discardLogger),
	)
	if err != nil {
		t.Fatal(err)
	}
	pages, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(pages) != 13 {
		t.Errorf("got %d pages, want 13", len(pages))
	}
	if f.maxSeen > 3 {
		t.Errorf("max in-flight fetches = %d, want <= 3", f.maxSeen)
	}
	if f.calls != 13 {
		t.Errorf("fetch calls = %d, want 13", f.calls)
	}
	// 1 seed batch + ceil(12/3) link batches.
	if got := s.Stats().Batches; got != 5 {
		t.Errorf("Stats().Batches = %d, want 5", got)
	}
}

func TestSchedulerRateLimit(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"https://example.com/":  `<a href="/a">a</a><a href="/b">b</a><a href="/c">c</a><a href="/d">d</a>`,
		"https://example.com/a": "", "https://example.com/b": "",
		"https://example.com/c": "", "https://example.com/d": "",
	}
	s, err := NewScheduler("https://example.com/",
		WithFetcher(&stubFetcher{bodies: bodies}),
		WithRateLimiter(ratelimit.New(20)),
		WithLogger(discardLogger),
	)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	pages, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pages) != 5 {
		t.Errorf("got %d pages, want 5", len(pages))
	}
	// Five fetches at 20/s with a burst of one need at least four intervals.
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("crawl took %v, want >= 150ms", elapsed)
	}
}

func TestSchedulerRun(t *testing.T) {
	t.Parallel()

	t.Run("cancelled context aborts", func(t *testing.T) {
		t.Parallel()
		s, err := NewScheduler("https://example.com/", WithFetcher(&stubFetcher{}), WithLogger(discardLogger))
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		pages, err := s.Run(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run error = %v, want context.Canceled", err)
		}
		if pages == nil {
			t.Error("expected non-nil partial result")
		}
		if s.State() != StateAborted {
			t.Errorf("State() = %v, want aborted", s.State())
		}
	})

	t.Run("second run fails", func(t *testing.T) {
		t.Parallel()
		s, err := NewScheduler("https://example.com/", WithFetcher(&stubFetcher{}), WithLogger(discardLogger))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.Run(context.Background()); err != nil {
			t.Fatalf("first Run: %v", err)
		}
		if _, err := s.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
			t.Errorf("second Run error = %v, want ErrAlreadyStarted", err)
		}
	})
}

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := map[State]string{
		StateIdle:      "idle",
		StateRunning:   "running",
		StateCompleted: "completed",
		StateAborted:   "aborted",
		State(42):      "state(42)",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int32(state), got, want)
		}
	}
}
