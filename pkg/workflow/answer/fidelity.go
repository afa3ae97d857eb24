package answer

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	scoreRe      = regexp.MustCompile(`(?i)fidelity score:\s*([0-9]*\.?[0-9]+)`)
	violationsRe = regexp.MustCompile(`(?is)violations:\s*(.+?)(?:\n\s*\n|$)`)
	numberedRe   = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)
	bulletRe     = regexp.MustCompile(`^\s*[-•*]\s*(.+)$`)
	noneRe       = regexp.MustCompile(`(?i)^none\.?$`)
)

// Verdict is a parsed fidelity response.
type Verdict struct {
	Score      *float64
	Violations []string
}

// ParseVerdict extracts the score and violations from a validator response.
// A response without a readable score yields a nil Score.
func ParseVerdict(text string) Verdict {
	v := Verdict{Violations: []string{}}

	if m := scoreRe.FindStringSubmatch(text); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			f = min(max(f, 0), 1)
			v.Score = &f
		}
	}

	m := violationsRe.FindStringSubmatch(text)
	if m == nil {
		return v
	}
	body := strings.TrimSpace(m[1])
	if body == "" || noneRe.MatchString(body) {
		return v
	}

	var numbered, bulleted []string
	for _, line := range strings.Split(body, "\n") {
		if n := numberedRe.FindStringSubmatch(line); n != nil {
			numbered = append(numbered, strings.TrimSpace(n[1]))
		} else if b := bulletRe.FindStringSubmatch(line); b != nil {
			bulleted = append(bulleted, strings.TrimSpace(b[1]))
		}
	}
	switch {
	case len(numbered) > 0:
		v.Violations = numbered
	case len(bulleted) > 0:
		v.Violations = bulleted
	default:
		v.Violations = []string{body}
	}
	return v
}
