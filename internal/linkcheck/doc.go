// Package linkcheck validates the links collected by a crawl.
//
// The Validator runs after traversal has finished. It checks every distinct
// link URL exactly once, however many pages reference it, and writes the
// outcome back into each referencing model.Link. Broken links (HTTP 4xx and
// 5xx) and redirects become issues on the referencing pages.
//
// A check that fails at the transport level (DNS, connection refused,
// timeout) leaves the link's status at 0 and adds no issue: an unreachable
// host is not evidence of a broken link.
package linkcheck
