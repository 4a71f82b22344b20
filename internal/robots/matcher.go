package robots

import "strings"

// pathMatches reports whether a robots.txt pattern matches a URL path.
//
// Matching rules:
//   - identical strings always match
//   - a trailing "$" requires the pattern to consume the whole path
//   - a pattern without "*" is a prefix match (an exact match when anchored)
//   - "*" matches any sequence of characters, including "/" and the empty string
func pathMatches(pattern, path string) bool {
	if pattern == path {
		return true
	}

	anchored := strings.HasSuffix(pattern, "$")
	if anchored {
		pattern = pattern[:len(pattern)-1]
	}

	if !strings.Contains(pattern, "*") {
		if anchored {
			return path == pattern
		}
		return strings.HasPrefix(path, pattern)
	}

	return wildcardMatch(pattern, path, anchored)
}

// wildcardMatch matches pattern against path with a single backtrack
// point: on a mismatch it returns to the last "*" and lets it swallow one
// more byte. This runs in O(len(pattern)*len(path)) however many stars a
// robots.txt line contains. An unanchored pattern only has to match a
// prefix of path, which is the same as ending it with "*".
func wildcardMatch(pattern, path string, anchored bool) bool {
	if !anchored {
		pattern += "*"
	}

	p, s := 0, 0
	star, mark := -1, 0
	for s < len(path) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			star, mark = p, s
			p++
		case p < len(pattern) && pattern[p] == path[s]:
			p++
			s++
		case star >= 0:
			p = star + 1
			mark++
			s = mark
		default:
			return false
		}
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
