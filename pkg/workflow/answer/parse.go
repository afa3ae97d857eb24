package answer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/lectern/pkg/domain"
)

type editPattern struct {
	kind domain.EditKind
	re   *regexp.Regexp
	fill func(m []string, in *domain.EditIntent)
}

func pattern(kind domain.EditKind, expr string, fill func(m []string, in *domain.EditIntent)) editPattern {
	return editPattern{kind: kind, re: regexp.MustCompile(`(?i)` + expr), fill: fill}
}

func targetReplacement(m []string, in *domain.EditIntent) {
	in.Target, in.Replacement = m[1], m[2]
}

func trimmedTarget(m []string, in *domain.EditIntent) {
	in.Target = strings.TrimSpace(m[1])
}

// Patterns are tried in order; the first match wins. Quoted forms come before
// bare single-word forms so "change 'a b' to 'c'" keeps its phrase.
var editPatterns = []editPattern{
	pattern(domain.EditReplace, `change ['"](.+?)['"] to ['"](.+?)['"]`, targetReplacement),
	pattern(domain.EditReplace, `replace ['"](.+?)['"] with ['"](.+?)['"]`, targetReplacement),
	pattern(domain.EditReplace, `change (\w+) to (\w+)`, targetReplacement),
	pattern(domain.EditReplace, `replace (\w+) with (\w+)`, targetReplacement),

	pattern(domain.EditRephrase, `(?:rephrase|reword) (?:the )?(.+)`, trimmedTarget),

	pattern(domain.EditAdd, `(?:add|insert) ['"](.+?)['"] (after|before) ['"](.+?)['"]`, func(m []string, in *domain.EditIntent) {
		in.Text, in.Position, in.Target = m[1], strings.ToLower(m[2]), m[3]
	}),

	pattern(domain.EditDelete, `(?:remove|delete) (?:the word )?['"](.+?)['"]`, trimmedTarget),
	pattern(domain.EditDelete, `(?:remove|delete) (\w+)`, trimmedTarget),

	pattern(domain.EditReorder, `move (?:the )?(.+?) to (?:the )?(end|beginning|start)`, func(m []string, in *domain.EditIntent) {
		in.Target, in.Position = strings.TrimSpace(m[1]), strings.ToLower(m[2])
	}),

	pattern(domain.EditCombine, `(?:combine|merge) (.+?) and (.+)`, func(m []string, in *domain.EditIntent) {
		in.Target, in.Other = strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}),
}

// ParseEdit reads a free-form edit command into a typed intent.
// Commands that match no known phrasing yield EditUnknown.
func ParseEdit(command string) domain.EditIntent {
	command = strings.TrimSpace(command)
	for _, p := range editPatterns {
		m := p.re.FindStringSubmatch(command)
		if m == nil {
			continue
		}
		intent := domain.EditIntent{Kind: p.kind}
		p.fill(m, &intent)
		return intent
	}
	return domain.EditIntent{Kind: domain.EditUnknown}
}

// Hint turns an intent into an instruction for the edit call.
func Hint(in domain.EditIntent) string {
	switch in.Kind {
	case domain.EditReplace:
		return fmt.Sprintf("Replace %q with %q and nothing else.", in.Target, in.Replacement)
	case domain.EditRephrase:
		return fmt.Sprintf("Rephrase only %s, keeping the same meaning and information.", in.Target)
	case domain.EditAdd:
		return fmt.Sprintf("Insert %q %s %q.", in.Text, in.Position, in.Target)
	case domain.EditDelete:
		return fmt.Sprintf("Delete %q, adjusting grammar only if needed.", in.Target)
	case domain.EditReorder:
		return fmt.Sprintf("Move %s to the %s and keep every other sentence in order.", in.Target, in.Position)
	case domain.EditCombine:
		return fmt.Sprintf("Combine %s and %s into one sentence without adding anything.", in.Target, in.Other)
	default:
		return "The command did not match a known edit. Make the minimal change that satisfies it and nothing else."
	}
}
