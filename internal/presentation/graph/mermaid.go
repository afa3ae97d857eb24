// Package graph renders workflow status lifecycles as Mermaid diagrams.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/lectern/pkg/domain"
)

// Overlay marks the path a stored session took through its lifecycle.
type Overlay struct {
	Visited []string
	Current string
}

// OverlayFromQuiz builds an overlay from a quiz's status trail.
func OverlayFromQuiz(q domain.QuizState) *Overlay {
	o := &Overlay{Current: string(q.Status)}
	for _, change := range q.Trail {
		o.Visited = append(o.Visited, string(change.From), string(change.To))
	}
	return o
}

// OverlayFromAnswer marks the current status of an answer session.
// Answer sessions keep no trail, so only the current status is known.
func OverlayFromAnswer(a domain.AnswerState) *Overlay {
	return &Overlay{Current: string(a.Status)}
}

// GenerateMermaid produces a Mermaid state diagram of the lifecycle.
// Statuses without outgoing edges are drawn as terminal.
func GenerateMermaid(initial string, edges []domain.Edge, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(&sb, "    [*] --> %s\n", sanitizeMermaidID(initial))

	outgoing := make(map[string]bool)
	var states []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			states = append(states, s)
		}
	}
	for _, e := range edges {
		outgoing[e.From] = true
		add(e.From)
		add(e.To)
		fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(e.From), sanitizeMermaidID(e.To))
	}
	for _, s := range states {
		if !outgoing[s] {
			fmt.Fprintf(&sb, "    %s --> [*]\n", sanitizeMermaidID(s))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000\n")

		visited := make(map[string]bool)
		for _, id := range overlay.Visited {
			safeID := sanitizeMermaidID(id)
			if safeID == "" || visited[safeID] || id == overlay.Current {
				continue
			}
			visited[safeID] = true
			fmt.Fprintf(&sb, "    class %s visited\n", safeID)
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
