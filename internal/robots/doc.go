// Package robots fetches, parses, caches and evaluates robots.txt files.
//
// # Rules
//
// A robots.txt file is parsed into a RuleSet: a mapping from lowercased
// user-agent name to the ordered allow/disallow rules declared for it.
// Queries select the agent's rules, falling back to the "*" group, and
// apply longest-match-wins precedence. When two matching patterns have the
// same length the later declaration wins.
//
// # Patterns
//
// Patterns support the de-facto extensions: "*" matches any run of
// characters (including "/") and a trailing "$" anchors the pattern to the
// end of the path.
//
// # Caching
//
// Engine caches one RuleSet per domain key (scheme, host and port) for its
// whole lifetime. A robots.txt that cannot be fetched, or that answers with
// a non-2xx status, is cached as an empty RuleSet which allows everything.
//
// # Usage
//
//	engine := robots.NewEngine(robots.WithHTTPClient(client))
//	if engine.Allowed(ctx, u, "scoutly") {
//		// fetch u
//	}
package robots
