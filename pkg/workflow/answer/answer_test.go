package answer_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/lectern/internal/testutils"
	"github.com/aretw0/lectern/pkg/adapters/memory"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/workflow/answer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const photosynthesis = "Photosynthesis is when plants... um they use sunlight to..."

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func never() bool  { return false }
func always() bool { return true }

func newService(gen *testutils.ScriptedGenerator, opts ...answer.Option) *answer.Service {
	opts = append([]answer.Option{answer.WithSampler(never)}, opts...)
	return answer.New(gen, memory.NewStore(), opts...)
}

func TestRefine_TranscriptBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		words int
		code  string
	}{
		{"Empty", 0, domain.CodeTranscriptEmpty},
		{"Four Words", 4, domain.CodeTranscriptShort},
		{"Five Words", 5, ""},
		{"Two Thousand Words", 2000, ""},
		{"Two Thousand One Words", 2001, domain.CodeTranscriptLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := testutils.NewScriptedGenerator("Refined.")
			svc := newService(gen)

			res, err := svc.Refine(context.Background(), answer.RefineRequest{SessionID: "s1", Transcript: words(tt.words)})
			require.NoError(t, err)

			if tt.code == "" {
				assert.Nil(t, res.Error)
				assert.Equal(t, domain.AnswerRefined, res.Status)
				assert.Equal(t, 1, gen.Calls())
				return
			}
			require.NotNil(t, res.Error)
			assert.Equal(t, domain.KindValidation, res.Error.Kind)
			assert.Equal(t, tt.code, res.Error.Code)
			assert.Equal(t, domain.AnswerError, res.Status)
			assert.Equal(t, 0, gen.Calls(), "no model call on invalid input")
		})
	}
}

func TestRefine_ValidationMessages(t *testing.T) {
	svc := newService(testutils.NewScriptedGenerator())
	ctx := context.Background()

	res, err := svc.Refine(ctx, answer.RefineRequest{Transcript: "   "})
	require.NoError(t, err)
	assert.Equal(t, "No transcript provided", res.Error.Message)
	assert.NotEmpty(t, res.SessionID, "a missing session id is generated")

	res, err = svc.Refine(ctx, answer.RefineRequest{Transcript: "too short"})
	require.NoError(t, err)
	assert.Equal(t, "Transcript too short (minimum 5 words)", res.Error.Message)

	res, err = svc.Refine(ctx, answer.RefineRequest{Transcript: words(2001)})
	require.NoError(t, err)
	assert.Equal(t, "Transcript too long (maximum 2000 words)", res.Error.Message)
}

func TestRefine_KeepsStudentContent(t *testing.T) {
	faithful := "Photosynthesis is when plants use sunlight to..."
	gen := testutils.NewScriptedGenerator(faithful)
	svc := newService(gen)

	res, err := svc.Refine(context.Background(), answer.RefineRequest{
		SessionID:  "photo",
		Question:   "What is photosynthesis?",
		Transcript: photosynthesis,
	})
	require.NoError(t, err)
	require.Nil(t, res.Error)

	prompt := gen.Last()
	assert.InDelta(t, 0.3, prompt.Temperature, 1e-9)
	assert.Contains(t, prompt.System, "transcription editor")
	assert.Contains(t, prompt.System, "finish a thought the student left unfinished")
	require.Len(t, prompt.Messages, 1)
	assert.Contains(t, prompt.Messages[0].Content(), photosynthesis)
	assert.Contains(t, prompt.Messages[0].Content(), "What is photosynthesis?")

	assert.Equal(t, faithful, res.Answer)
	assert.NotContains(t, res.Answer, "produce food")
	assert.NotContains(t, res.Answer, "glucose")
	assert.Equal(t, 1, res.State.Iterations)
	assert.Equal(t, 1, res.State.ModelCalls)
	assert.Equal(t, photosynthesis, res.State.Transcript, "whitespace-normalized transcript is stored")
}

func TestRefine_TwiceOnSameSession(t *testing.T) {
	gen := testutils.NewScriptedGenerator("First take.", "Second take.")
	svc := newService(gen)
	ctx := context.Background()
	req := answer.RefineRequest{SessionID: "s1", Transcript: photosynthesis}

	_, err := svc.Refine(ctx, req)
	require.NoError(t, err)
	res, err := svc.Refine(ctx, req)
	require.NoError(t, err)

	require.Nil(t, res.Error)
	assert.Equal(t, "Second take.", res.Answer)
	assert.Equal(t, 2, res.State.Iterations)
	assert.Equal(t, gen.Prompts()[0].Messages[0].Content(), gen.Prompts()[1].Messages[0].Content(),
		"identical input yields an identical request")
}

func TestRefine_RetriesAfterError(t *testing.T) {
	t.Run("Validation", func(t *testing.T) {
		gen := testutils.NewScriptedGenerator("Refined.")
		svc := newService(gen)
		ctx := context.Background()

		res, err := svc.Refine(ctx, answer.RefineRequest{SessionID: "s1", Transcript: "too short"})
		require.NoError(t, err)
		require.NotNil(t, res.Error)
		require.Equal(t, domain.AnswerError, res.Status)

		res, err = svc.Refine(ctx, answer.RefineRequest{SessionID: "s1", Transcript: photosynthesis})
		require.NoError(t, err)
		require.Nil(t, res.Error)
		assert.Equal(t, domain.AnswerRefined, res.Status)
		assert.Equal(t, "Refined.", res.Answer)
		assert.Equal(t, photosynthesis, res.State.Transcript)

		stored, found, err := svc.Get(ctx, "s1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Nil(t, stored.Error)
	})

	t.Run("Generation", func(t *testing.T) {
		gen := testutils.NewScriptedGenerator().Push(
			testutils.Reply{Err: errors.New("model down")},
			testutils.Reply{Text: "Refined."},
		)
		svc := newService(gen)
		ctx := context.Background()
		req := answer.RefineRequest{SessionID: "s1", Transcript: photosynthesis}

		res, err := svc.Refine(ctx, req)
		require.NoError(t, err)
		require.Equal(t, domain.AnswerError, res.Status)

		res, err = svc.Refine(ctx, req)
		require.NoError(t, err)
		require.Nil(t, res.Error)
		assert.Equal(t, domain.AnswerRefined, res.Status)
		assert.Equal(t, 2, res.State.ModelCalls)
		assert.Equal(t, 1, res.State.Iterations)
	})
}

func TestRefine_TranscriptIsWriteOnce(t *testing.T) {
	gen := testutils.NewScriptedGenerator("Refined.")
	svc := newService(gen)
	ctx := context.Background()

	_, err := svc.Refine(ctx, answer.RefineRequest{SessionID: "s1", Transcript: photosynthesis})
	require.NoError(t, err)

	res, err := svc.Refine(ctx, answer.RefineRequest{SessionID: "s1", Transcript: "a completely different spoken answer"})
	require.NoError(t, err)
	require.NotNil(t, res.Error)
	assert.Equal(t, domain.CodeTranscriptConflict, res.Error.Code)
	assert.Equal(t, photosynthesis, res.State.Transcript)
	assert.Equal(t, 1, gen.Calls())
}

func TestRefine_GenerationFailure(t *testing.T) {
	gen := testutils.NewScriptedGenerator().Push(testutils.Reply{Err: errors.New("model down")})
	svc := newService(gen)

	res, err := svc.Refine(context.Background(), answer.RefineRequest{SessionID: "s1", Transcript: photosynthesis})
	require.NoError(t, err)
	require.NotNil(t, res.Error)
	assert.Equal(t, domain.KindGeneration, res.Error.Kind)
	assert.Equal(t, domain.AnswerError, res.Status)
	assert.Equal(t, 0, res.State.Iterations)

	empty := testutils.NewScriptedGenerator("   ")
	res, err = newService(empty).Refine(context.Background(), answer.RefineRequest{SessionID: "s2", Transcript: photosynthesis})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeEmptyCompletion, res.Error.Code)
}

func TestEdit_AppendsOneEntry(t *testing.T) {
	gen := testutils.NewScriptedGenerator(
		"The colonists were upset about taxes.",
		"The colonists were angry about taxes.",
	)
	svc := newService(gen)
	ctx := context.Background()

	_, err := svc.Refine(ctx, answer.RefineRequest{SessionID: "s1", Transcript: "um the colonists were like mad about taxes"})
	require.NoError(t, err)

	res, err := svc.Edit(ctx, answer.EditRequest{SessionID: "s1", Command: "Change 'upset' to 'angry'"})
	require.NoError(t, err)
	require.Nil(t, res.Error)

	assert.Equal(t, domain.AnswerRefined, res.Status)
	assert.Equal(t, "The colonists were angry about taxes.", res.Answer)
	assert.Equal(t, 2, res.State.Iterations)
	assert.Equal(t, 2, res.State.ModelCalls)
	require.Len(t, res.State.EditHistory, 1)

	entry := res.State.EditHistory[0]
	assert.Equal(t, "Change 'upset' to 'angry'", entry.Command)
	assert.Equal(t, domain.EditReplace, entry.Intent.Kind)
	assert.Equal(t, "The colonists were upset about taxes.", entry.Before)
	assert.Equal(t, res.Answer, entry.After)

	prompt := gen.Last()
	assert.InDelta(t, 0.2, prompt.Temperature, 1e-9)
	assert.Contains(t, prompt.Messages[0].Content(), "Only change what was requested.")
	assert.Contains(t, prompt.Messages[0].Content(), `Replace "upset" with "angry"`)
}

func TestEdit_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("Unknown Session", func(t *testing.T) {
		svc := newService(testutils.NewScriptedGenerator())
		res, err := svc.Edit(ctx, answer.EditRequest{SessionID: "ghost", Command: "remove very"})
		require.NoError(t, err)
		require.NotNil(t, res.Error)
		assert.Equal(t, domain.KindNotFound, res.Error.Kind)
		assert.Equal(t, "Session not found or expired", res.Error.Message)
	})

	t.Run("Missing Command", func(t *testing.T) {
		gen := testutils.NewScriptedGenerator("Refined.")
		svc := newService(gen)
		_, err := svc.Refine(ctx, answer.RefineRequest{SessionID: "s1", Transcript: photosynthesis})
		require.NoError(t, err)

		res, err := svc.Edit(ctx, answer.EditRequest{SessionID: "s1", Command: "  "})
		require.NoError(t, err)
		require.NotNil(t, res.Error)
		assert.Equal(t, "Missing edit command or answer", res.Error.Message)
		assert.Equal(t, domain.AnswerRefined, res.Status, "state is left alone")
	})

	t.Run("Finalized", func(t *testing.T) {
		gen := testutils.NewScriptedGenerator("Refined.")
		svc := newService(gen)
		_, err := svc.Refine(ctx, answer.RefineRequest{SessionID: "s1", Transcript: photosynthesis})
		require.NoError(t, err)
		_, err = svc.Finalize(ctx, "s1")
		require.NoError(t, err)

		res, err := svc.Edit(ctx, answer.EditRequest{SessionID: "s1", Command: "remove very"})
		require.NoError(t, err)
		require.NotNil(t, res.Error)
		assert.Equal(t, domain.CodeInvalidState, res.Error.Code)
		assert.Equal(t, domain.AnswerFinalized, res.Status)
		assert.Equal(t, 1, gen.Calls())
	})
}

func TestFinalize(t *testing.T) {
	svc := newService(testutils.NewScriptedGenerator("Refined."))
	ctx := context.Background()

	res, err := svc.Finalize(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.KindNotFound, res.Error.Kind)

	_, err = svc.Refine(ctx, answer.RefineRequest{SessionID: "s1", Transcript: photosynthesis})
	require.NoError(t, err)

	res, err = svc.Finalize(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, res.Error)
	assert.Equal(t, domain.AnswerFinalized, res.Status)

	state, found, err := svc.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.AnswerFinalized, state.Status)
}

func TestFidelity_Sampled(t *testing.T) {
	gen := testutils.NewScriptedGenerator(
		"Photosynthesis is when plants use sunlight to make glucose.",
		"Fidelity Score: 0.6\nViolations:\n1. Added product (glucose)",
	)
	events := &testutils.RecordingPublisher{}
	svc := answer.New(gen, memory.NewStore(), answer.WithSampler(always), answer.WithPublisher(events))

	res, err := svc.Refine(context.Background(), answer.RefineRequest{SessionID: "s1", Transcript: photosynthesis})
	require.NoError(t, err)

	require.NotNil(t, res.State.FidelityScore)
	assert.InDelta(t, 0.6, *res.State.FidelityScore, 1e-9)
	assert.Equal(t, []string{"Added product (glucose)"}, res.State.FidelityViolations)
	assert.Equal(t, 1, res.State.Iterations, "validation does not count as an iteration")
	assert.Equal(t, 2, res.State.ModelCalls)
	assert.Equal(t, "Photosynthesis is when plants use sunlight to make glucose.", res.Answer, "fidelity never alters the answer")

	assert.InDelta(t, 0.1, gen.Last().Temperature, 1e-9)

	published := events.Events()
	require.Len(t, published, 1)
	assert.Equal(t, domain.EventFidelitySampled, published[0].Type)
	assert.Equal(t, "s1", published[0].SessionID)
}

func TestFidelity_FailuresAreSwallowed(t *testing.T) {
	gen := testutils.NewScriptedGenerator("Refined text.").
		Push(testutils.Reply{Err: errors.New("validator down")}).
		Push(testutils.Reply{Text: "Edited text."}, testutils.Reply{Text: "looks fine to me"})
	svc := answer.New(gen, memory.NewStore(), answer.WithSampler(always))
	ctx := context.Background()

	res, err := svc.Refine(ctx, answer.RefineRequest{SessionID: "s1", Transcript: photosynthesis})
	require.NoError(t, err)
	assert.Nil(t, res.Error)
	assert.Nil(t, res.State.FidelityScore)
	assert.Equal(t, domain.AnswerRefined, res.Status)

	res, err = svc.Edit(ctx, answer.EditRequest{SessionID: "s1", Command: "make it nicer"})
	require.NoError(t, err)
	assert.Nil(t, res.Error)
	assert.Nil(t, res.State.FidelityScore, "an unparseable verdict records no score")
	assert.Equal(t, 4, res.State.ModelCalls)
}

func TestRefine_ResumesAfterRestart(t *testing.T) {
	store := memory.NewStore()
	clock := func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	first := answer.New(testutils.NewScriptedGenerator("Refined."), store, answer.WithSampler(never), answer.WithClock(clock))
	saved, err := first.Refine(ctx, answer.RefineRequest{SessionID: "s1", Transcript: photosynthesis})
	require.NoError(t, err)

	second := answer.New(testutils.NewScriptedGenerator(), store, answer.WithClock(clock))
	loaded, found, err := second.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, saved.State, loaded)
}
