// Package seo runs heuristic on-page checks over crawled pages.
//
// Only pages served as text/html are analysed. Each check appends at most
// one model.Issue to the page, so re-running the analyzer on fresh pages
// is deterministic.
package seo
