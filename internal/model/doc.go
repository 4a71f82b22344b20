// Package model defines the data structures shared by the crawler, the link
// validator, the SEO analyzer and the report writers.
//
// A crawl produces a set of PageInfo records keyed by normalized URL. Each
// page owns its outbound Link records and the Issue list appended by later
// stages. CrawlReport wraps the page set together with a Summary for output
// and persistence.
package model
