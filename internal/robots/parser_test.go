package robots

import (
	"errors"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("groups and fields", func(t *testing.T) {
		t.Parallel()
		rs := ParseString(`# comment
User-agent: *
Disallow: /private
Allow: /private/public
Crawl-delay: 10

USER-AGENT: GoodBot
disallow: /nogood
Sitemap: https://example.com/sitemap.xml
`)
		if len(rs) != 2 {
			t.Fatalf("len(rs) = %d, want 2: %v", len(rs), rs)
		}
		want := []Rule{{Pattern: "/private", Allow: false}, {Pattern: "/private/public", Allow: true}}
		got := rs[WildcardAgent]
		if len(got) != len(want) {
			t.Fatalf("wildcard rules = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("rule[%d] = %v, want %v", i, got[i], want[i])
			}
		}
		if rules := rs["goodbot"]; len(rules) != 1 || rules[0].Pattern != "/nogood" {
			t.Errorf("goodbot rules = %v", rules)
		}
	})

	t.Run("consecutive user-agent lines share a group", func(t *testing.T) {
		t.Parallel()
		rs := ParseString("User-agent: a\nUser-agent: b\nDisallow: /x\n")
		for _, agent := range []string{"a", "b"} {
			if rules := rs[agent]; len(rules) != 1 || rules[0].Pattern != "/x" {
				t.Errorf("rules for %s = %v", agent, rules)
			}
		}
	})

	t.Run("groups for the same agent are merged", func(t *testing.T) {
		t.Parallel()
		rs := ParseString("User-agent: *\nDisallow: /a\n\nUser-agent: *\nDisallow: /b\n")
		if got := len(rs[WildcardAgent]); got != 2 {
			t.Errorf("len(wildcard rules) = %d, want 2", got)
		}
	})

	t.Run("empty values and rule-less groups are dropped", func(t *testing.T) {
		t.Parallel()
		rs := ParseString("User-agent: empty\nDisallow:\n\nUser-agent: lonely\n")
		if len(rs) != 0 {
			t.Errorf("rs = %v, want empty", rs)
		}
	})

	t.Run("read error returns partial rules", func(t *testing.T) {
		t.Parallel()
		r := &failingReader{data: "User-agent: *\nDisallow: /x\n"}
		rs, err := Parse(r)
		if err == nil {
			t.Fatal("expected error")
		}
		if len(rs[WildcardAgent]) != 1 {
			t.Errorf("partial rules = %v", rs)
		}
	})
}

type failingReader struct {
	data string
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, errors.New("connection reset")
	}
	r.done = true
	return copy(p, r.data), nil
}

func TestRuleSetRules(t *testing.T) {
	t.Parallel()

	rs := ParseString(`User-agent: *
Disallow: /all

User-agent: scoutly
Disallow: /scoutly-only
`)

	tests := []struct {
		agent string
		want  string
	}{
		{"Scoutly", "/scoutly-only"},
		{"scoutly/1.2.3 (+https://example.com)", "/scoutly-only"},
		{"OtherBot", "/all"},
		{"", "/all"},
	}

	for _, tt := range tests {
		t.Run(tt.agent, func(t *testing.T) {
			t.Parallel()
			rules := rs.Rules(tt.agent)
			if len(rules) != 1 || rules[0].Pattern != tt.want {
				t.Errorf("Rules(%q) = %v, want pattern %q", tt.agent, rules, tt.want)
			}
		})
	}

	t.Run("no wildcard group", func(t *testing.T) {
		t.Parallel()
		rs := ParseString("User-agent: bot\nDisallow: /\n")
		if rules := rs.Rules("other"); rules != nil {
			t.Errorf("Rules(other) = %v, want nil", rules)
		}
	})
}

func TestRuleSetAllowed(t *testing.T) {
	t.Parallel()

	rs := ParseString(strings.Join([]string{
		"User-agent: *",
		"Disallow: /private",
		"Allow: /private/public",
		"Disallow: /*.pdf$",
		"Disallow: /tie",
		"Allow: /tie",
	}, "\n"))

	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/private", false},
		{"/private/secret", false},
		{"/private/public", true},
		{"/private/public/page", true},
		{"/docs/file.pdf", false},
		{"/docs/file.pdf.html", true},
		{"/tie", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			if got := rs.Allowed(tt.path, "Scoutly"); got != tt.want {
				t.Errorf("Allowed(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}

	t.Run("empty rule set allows everything", func(t *testing.T) {
		t.Parallel()
		if !(RuleSet{}).Allowed("/anything", "bot") {
			t.Error("empty RuleSet should allow")
		}
	})
}
