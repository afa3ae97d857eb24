package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/lectern/pkg/domain"
)

// Reply is one scripted model answer.
type Reply struct {
	Text string
	Err  error
}

// ScriptedGenerator replays replies in order and records every prompt it receives.
// It fails the call when the script runs out.
type ScriptedGenerator struct {
	mu      sync.Mutex
	replies []Reply
	prompts []domain.Prompt
}

// NewScriptedGenerator creates a generator that returns texts in order.
func NewScriptedGenerator(texts ...string) *ScriptedGenerator {
	g := &ScriptedGenerator{}
	for _, t := range texts {
		g.replies = append(g.replies, Reply{Text: t})
	}
	return g
}

// Push appends replies to the script.
func (g *ScriptedGenerator) Push(replies ...Reply) *ScriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replies = append(g.replies, replies...)
	return g
}

func (g *ScriptedGenerator) Generate(_ context.Context, prompt domain.Prompt) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prompts = append(g.prompts, prompt)
	if len(g.replies) == 0 {
		return "", fmt.Errorf("scripted generator: no reply left for call %d", len(g.prompts))
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r.Text, r.Err
}

// Prompts returns a copy of the prompts received so far.
func (g *ScriptedGenerator) Prompts() []domain.Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.Prompt(nil), g.prompts...)
}

// Calls returns how many times Generate was called.
func (g *ScriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// Last returns the most recent prompt. It panics if there was none.
func (g *ScriptedGenerator) Last() domain.Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts[len(g.prompts)-1]
}

// RecordingPublisher collects published events.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	Err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.Err
}

// Events returns a copy of the events published so far.
func (p *RecordingPublisher) Events() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events...)
}
