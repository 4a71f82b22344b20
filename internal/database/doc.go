// Package database provides SQLite-based crawl history for Scoutly.
//
// This package implements the CrawlDB, which stores:
//   - Every finished crawl report as JSON together with its summary
//   - One snapshot row per crawled page (status, depth, title, content hash)
//
// The history command uses it to list crawled sites, show the crawls of a
// site and compare the latest two crawls of a site.
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
package database
