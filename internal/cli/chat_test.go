package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aretw0/lectern/internal/config"
	"github.com/aretw0/lectern/internal/testutils"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/orchestrator"
	"github.com/aretw0/lectern/pkg/workflow/answer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryRuntime(t *testing.T, replies ...string) *Runtime {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Backend = "memory"
	return openRuntime(t, cfg, testutils.NewScriptedGenerator(replies...))
}

func TestChat_GreetsThenAnswers(t *testing.T) {
	rt := memoryRuntime(t, "It generates ATP.")
	var out bytes.Buffer

	err := Chat(context.Background(), rt, strings.NewReader("What does it make?\n\nexit\nignored\n"), &out, TurnOptions{SessionID: "s1"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), orchestrator.Greeting)
	assert.Contains(t, out.String(), "It generates ATP.")

	state, _, err := rt.Tutor.Conversation(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, state.Turns)
}

func TestChat_ResumesExistingSession(t *testing.T) {
	rt := memoryRuntime(t, "First.", "Second.")
	ctx := context.Background()
	require.NoError(t, RunTurn(ctx, rt, &bytes.Buffer{}, "one", TurnOptions{SessionID: "s1"}))

	var out bytes.Buffer
	require.NoError(t, Chat(ctx, rt, strings.NewReader("two\n"), &out, TurnOptions{SessionID: "s1"}))
	assert.Contains(t, out.String(), "Resuming after 1 turns.")
	assert.NotContains(t, out.String(), orchestrator.Greeting)
	assert.Contains(t, out.String(), "Second.")
}

func TestRunTurn_JSON(t *testing.T) {
	rt := memoryRuntime(t, "It generates ATP.")
	var out bytes.Buffer

	require.NoError(t, RunTurn(context.Background(), rt, &out, "What?", TurnOptions{SessionID: "s1", JSON: true}))

	var got turnOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "qa", got.Route)
	assert.Equal(t, "It generates ATP.", got.Text)
	assert.Empty(t, got.ErrorCode)
}

func TestSessions_ListInspectRemove(t *testing.T) {
	rt := memoryRuntime(t, "Hello.")
	ctx := context.Background()
	require.NoError(t, RunTurn(ctx, rt, &bytes.Buffer{}, "hi", TurnOptions{SessionID: "s1"}))

	all, err := ParseWorkflows("")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, ListSessions(ctx, rt.Stores, all, &out))
	assert.Contains(t, out.String(), "orchestrator:\n- s1")
	assert.Contains(t, out.String(), "qa:\n- qa:s1")

	out.Reset()
	require.NoError(t, InspectSession(ctx, rt.Stores, all, "s1", &out))
	assert.Contains(t, out.String(), `"workflow": "orchestrator"`)

	orch, err := ParseWorkflows("orchestrator")
	require.NoError(t, err)
	out.Reset()
	require.NoError(t, RemoveSessions(ctx, rt.Stores, orch, []string{"s1"}, &out))

	err = InspectSession(ctx, rt.Stores, orch, "s1", &out)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = ParseWorkflows("billing")
	assert.Error(t, err)
}

func TestPrintAnswer(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, PrintAnswer(&out, answer.Result{
		Error: domain.NewFailure(domain.KindValidation, domain.CodeTranscriptShort, "Transcript too short (minimum 5 words)"),
	}, false))
	assert.Contains(t, out.String(), "Transcript too short")

	out.Reset()
	require.NoError(t, PrintAnswer(&out, answer.Result{SessionID: "a1", Answer: "Plants make sugar.", Status: domain.AnswerRefined}, false))
	assert.Contains(t, out.String(), "Plants make sugar.")
	assert.Contains(t, out.String(), "a1")
}

func TestChat_RejectsOversizedInput(t *testing.T) {
	rt := memoryRuntime(t, "Short reply.")
	rt.Config.Input.MaxSize = 16
	var out bytes.Buffer

	in := strings.NewReader(strings.Repeat("x", 17) + "\nshort\n")
	require.NoError(t, Chat(context.Background(), rt, in, &out, TurnOptions{SessionID: "s1"}))
	assert.Contains(t, out.String(), "Input rejected")
	assert.Contains(t, out.String(), "Short reply.")
}
