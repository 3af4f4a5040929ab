package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	whitespacePattern = regexp.MustCompile(`[\s\x{00a0}]+`)
	datePattern       = regexp.MustCompile(`(\d{4})(?:-(\d{2}))?(?:-(\d{2}))?`)
	parenPattern      = regexp.MustCompile(`\(([^)]+)\)`)
	isoDuration       = regexp.MustCompile(`(?i)^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)
	bareSeconds       = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	clockPattern      = regexp.MustCompile(`^(\d{1,3}):(\d{2})(?::(\d{2}))?$`)
	unitPattern       = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(hours?|hrs?|h|minutes?|mins?|min|m|seconds?|secs?|sec|s)`)
	advisoryPattern   = regexp.MustCompile(`(?i)sensitive|harmful|offensive|explicit|warning`)
	listSeparators    = regexp.MustCompile(`[;,\n]+`)
	keywordSeparators = regexp.MustCompile(`[;,]+`)
)

// NormalizeText collapses runs of whitespace, including non-breaking spaces.
func NormalizeText(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// NormalizeDate truncates a date to the precision present (YYYY, YYYY-MM or
// YYYY-MM-DD). Strings without a year pass through trimmed.
func NormalizeDate(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	m := datePattern.FindStringSubmatch(trimmed)
	switch {
	case m == nil:
		return trimmed
	case m[2] == "":
		return m[1]
	case m[3] == "":
		return m[1] + "-" + m[2]
	default:
		return m[1] + "-" + m[2] + "-" + m[3]
	}
}

// ParseDuration converts a duration string to whole seconds. Accepted forms,
// tried in order: a parenthesized inner value, ISO-8601 PT#H#M#S, bare
// seconds, H:MM:SS or MM:SS, and free text such as "3 min 25 sec".
func ParseDuration(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}

	if m := parenPattern.FindStringSubmatch(trimmed); m != nil {
		if v, ok := ParseDuration(m[1]); ok {
			return v, true
		}
	}

	if m := isoDuration.FindStringSubmatch(trimmed); m != nil {
		return float64(atoi(m[1])*3600 + atoi(m[2])*60 + atoi(m[3])), true
	}

	if bareSeconds.MatchString(trimmed) {
		v, err := strconv.ParseFloat(trimmed, 64)
		if err == nil {
			return math.Round(v), true
		}
	}

	if m := clockPattern.FindStringSubmatch(trimmed); m != nil {
		if m[3] != "" {
			return float64(atoi(m[1])*3600 + atoi(m[2])*60 + atoi(m[3])), true
		}
		return float64(atoi(m[1])*60 + atoi(m[2])), true
	}

	matches := unitPattern.FindAllStringSubmatch(trimmed, -1)
	if len(matches) == 0 {
		return 0, false
	}
	var total float64
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		switch unit := strings.ToLower(m[2]); {
		case strings.HasPrefix(unit, "h"):
			total += v * 3600
		case strings.HasPrefix(unit, "m"):
			total += v * 60
		default:
			total += v
		}
	}
	return math.Round(total), true
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// IsAdvisory reports whether any of the texts contains a trigger word that
// warrants a content-sensitivity review.
func IsAdvisory(texts ...string) bool {
	return advisoryPattern.MatchString(strings.Join(texts, " "))
}

// SplitList splits label values such as "Jane Doe; John Roe" into parts.
func SplitList(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, listSeparators.Split(v, -1)...)
	}
	return out
}

func splitKeywords(s string) []string {
	text := NormalizeText(s)
	if text == "" {
		return nil
	}
	return keywordSeparators.Split(text, -1)
}
