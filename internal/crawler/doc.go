// Package crawler implements breadth-first website traversal.
//
// # Architecture
//
// The package is built around the Scheduler, which owns the crawl frontier
// (a FIFO queue of URL/depth pairs), the visited set and the result map.
// Each iteration of its loop builds a batch of admissible URLs, fetches the
// batch concurrently, and then merges the fetched pages back sequentially.
// Only the merge step mutates shared state, so no locks guard the frontier.
//
// # Components
//
//   - Scheduler: the frontier loop with depth, page and concurrency bounds
//   - HTTPFetcher: downloads pages (decompression, charset decoding, hashing)
//   - HTMLExtractor: turns a document into title, headings, links and images
//   - Normalize / IsExternal: URL deduplication keys and origin classification
//
// # Politeness
//
// Requests are paced by a shared ratelimit.Limiter and, unless disabled,
// filtered through a robots.Engine before they are admitted to a batch.
// A URL denied by robots.txt is marked visited and never fetched.
//
// # Usage
//
//	s, err := crawler.NewScheduler("https://example.com",
//	    crawler.WithMaxDepth(3),
//	    crawler.WithConcurrency(8),
//	)
//	if err != nil {
//	    return err
//	}
//	pages, err := s.Run(ctx)
//
// # Failure Handling
//
// Only an invalid seed URL is fatal. A page whose fetch fails is recorded
// with no status code, and a page whose markup cannot be extracted keeps
// empty content fields. The crawl always completes with a best-effort
// result unless its context is cancelled.
package crawler
