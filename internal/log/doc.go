// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// Crawls are often configured with cookies or API keys for the target site
// (see the sites section of the configuration file). Those values travel in
// request headers and sometimes in URL query strings, both of which end up
// in debug output. The SecureHandler masks them:
//   - Attributes whose key names a secret (cookie, authorization, token, ...)
//   - Values that look like credentials (bearer tokens, JWTs, private keys)
//   - Header maps, where each sensitive header value is masked individually
//   - URL query parameters with sensitive names, e.g. ?api_key=...
//
// Even in verbose mode, sensitive values are masked to prevent accidental
// exposure of secrets in logs that may be shared or stored.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("fetching page",
//	    "url", "https://example.com/?token=abc", // query value masked
//	    "cookie", "session=abc123",              // masked
//	)
//	slog.SetDefault(logger)
package log
