// Package robots parses robots.txt policies and gates a harvest run on them.
package robots

import (
	"math"
	"regexp"
	"strings"
)

// Rules holds the allow and disallow patterns for one user agent.
type Rules struct {
	Allow    []string
	Disallow []string
}

// Policy maps lowercased user-agent tokens to their rules.
type Policy map[string]*Rules

var commentPattern = regexp.MustCompile(`#.*`)

// Parse reads a robots.txt body. A blank line ends the current agent group;
// rules that appear before any User-agent line apply to "*".
func Parse(body string) Policy {
	policy := make(Policy)
	var agents []string
	inRules := false
	for _, raw := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(commentPattern.ReplaceAllString(raw, ""))
		if line == "" {
			agents, inRules = nil, false
			continue
		}
		directive, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		directive = strings.ToLower(strings.TrimSpace(directive))
		value = strings.TrimSpace(value)

		switch directive {
		case "user-agent":
			// Consecutive User-agent lines share one group.
			if inRules {
				agents, inRules = nil, false
			}
			agent := strings.ToLower(value)
			agents = append(agents, agent)
			policy.rulesFor(agent)
		case "allow", "disallow":
			inRules = true
			targets := agents
			if len(targets) == 0 {
				targets = []string{"*"}
			}
			for _, agent := range targets {
				rules := policy.rulesFor(agent)
				if directive == "allow" {
					rules.Allow = append(rules.Allow, value)
				} else {
					rules.Disallow = append(rules.Disallow, value)
				}
			}
		}
	}
	return policy
}

func (p Policy) rulesFor(agent string) *Rules {
	rules, ok := p[agent]
	if !ok {
		rules = &Rules{}
		p[agent] = rules
	}
	return rules
}

// For returns the rules for userAgent, falling back to "*". Groups match on
// the product token of the header ("archive-ingest" for
// "archive-ingest/0.2 (+mailto:...)"), case-insensitively. It returns nil
// when neither exists, which means everything is allowed.
func (p Policy) For(userAgent string) *Rules {
	full := strings.ToLower(strings.TrimSpace(userAgent))
	if rules, ok := p[full]; ok {
		return rules
	}
	if token := ProductToken(userAgent); token != "" {
		if rules, ok := p[token]; ok {
			return rules
		}
	}
	if rules, ok := p["*"]; ok {
		return rules
	}
	return nil
}

// Allowed resolves path against the rules. The longest matching pattern wins;
// an allow pattern wins a tie with a disallow pattern of equal length.
func (r *Rules) Allowed(path string) bool {
	if r == nil {
		return true
	}
	decided := false
	allow := true
	best := -1.0
	for _, pattern := range r.Disallow {
		if !matches(path, pattern) {
			continue
		}
		if length := patternLength(pattern); !decided || length > best {
			decided, allow, best = true, false, length
		}
	}
	for _, pattern := range r.Allow {
		if !matches(path, pattern) {
			continue
		}
		if length := patternLength(pattern); !decided || length >= best {
			decided, allow, best = true, true, length
		}
	}
	return allow
}

// ProductToken returns the lowercased name part of a User-Agent header: the
// text before the first "/" or space.
func ProductToken(userAgent string) string {
	ua := strings.TrimSpace(userAgent)
	if i := strings.IndexAny(ua, "/ \t"); i >= 0 {
		ua = ua[:i]
	}
	return strings.ToLower(ua)
}

func patternLength(pattern string) float64 {
	if pattern == "*" {
		return math.Inf(1)
	}
	return float64(len(pattern))
}

// matches reports whether pattern is a prefix match for path, with "*"
// standing for any run of characters and a trailing "$" anchoring the end of
// the path. An empty pattern matches nothing.
func matches(path, pattern string) bool {
	if pattern == "" {
		return false
	}
	if pattern == "*" || pattern == "/*" {
		return true
	}
	anchored := strings.HasSuffix(pattern, "$")
	pattern = strings.TrimSuffix(pattern, "$")
	segments := strings.Split(pattern, "*")
	for i, segment := range segments {
		segments[i] = regexp.QuoteMeta(segment)
	}
	expr := "^" + strings.Join(segments, ".*")
	if anchored {
		expr += "$"
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}
