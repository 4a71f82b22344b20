package robots

import (
	"bufio"
	"io"
	"strings"
)

// Rule is a single Allow or Disallow line.
type Rule struct {
	// Pattern is the literal path pattern, including any "*" or "$".
	Pattern string

	// Allow is true for Allow lines and false for Disallow lines.
	Allow bool
}

// WildcardAgent is the user-agent name whose rules apply to every crawler
// without a dedicated group.
const WildcardAgent = "*"

// RuleSet maps a lowercased user-agent name to its rules in declaration order.
// An empty RuleSet allows everything.
type RuleSet map[string][]Rule

// Parse reads a robots.txt body.
//
// Blank lines and lines starting with "#" are skipped. Each remaining line
// is split on its first colon; field names are case-insensitive. A
// user-agent line opens a group, and further user-agent lines join that
// group until the first allow/disallow rule is seen. Only allow and
// disallow rules with a non-empty value are kept; other fields such as
// crawl-delay and sitemap are ignored. Groups without rules are dropped.
// Rules declared for the same agent in separate groups are concatenated.
//
// A read error stops parsing and returns the rules collected so far
// together with the error.
func Parse(r io.Reader) (RuleSet, error) {
	rs := make(RuleSet)

	var agents []string
	var rules []Rule
	flush := func() {
		if len(rules) > 0 {
			for _, agent := range agents {
				rs[agent] = append(rs[agent], rules...)
			}
		}
		agents = nil
		rules = nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(field)) {
		case "user-agent":
			if len(rules) > 0 {
				flush()
			}
			if value != "" {
				agents = append(agents, strings.ToLower(value))
			}
		case "allow":
			if value != "" {
				rules = append(rules, Rule{Pattern: value, Allow: true})
			}
		case "disallow":
			if value != "" {
				rules = append(rules, Rule{Pattern: value, Allow: false})
			}
		}
	}
	flush()

	return rs, scanner.Err()
}

// ParseString is Parse for an in-memory body.
func ParseString(content string) RuleSet {
	rs, _ := Parse(strings.NewReader(content)) //nolint:errcheck // strings.Reader never fails
	return rs
}

// Rules returns the rules that apply to agent: the agent's own group when
// present, otherwise the wildcard group. The lookup is case-insensitive.
// The product token of a full User-Agent string ("Scoutly/1.0 (+url)" →
// "scoutly") is tried before falling back to the wildcard.
func (rs RuleSet) Rules(agent string) []Rule {
	name := strings.ToLower(strings.TrimSpace(agent))
	if rules, ok := rs[name]; ok {
		return rules
	}
	if token := productToken(name); token != name {
		if rules, ok := rs[token]; ok {
			return rules
		}
	}
	return rs[WildcardAgent]
}

// Allowed evaluates path against the rules for agent.
//
// Every matching rule is considered in declaration order; the one with the
// longest pattern decides, and a later rule of equal length replaces an
// earlier one. No matching rule means the path is allowed.
func (rs RuleSet) Allowed(path, agent string) bool {
	allowed := true
	longest := -1
	for _, rule := range rs.Rules(agent) {
		if !pathMatches(rule.Pattern, path) {
			continue
		}
		if len(rule.Pattern) >= longest {
			longest = len(rule.Pattern)
			allowed = rule.Allow
		}
	}
	return allowed
}

// productToken returns the leading name of a User-Agent string, stopping at
// the first "/" or whitespace.
func productToken(agent string) string {
	if i := strings.IndexAny(agent, "/ \t"); i > 0 {
		return agent[:i]
	}
	return agent
}
