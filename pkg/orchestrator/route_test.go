package orchestrator

import (
	"testing"
	"time"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestExtractDocumentRef(t *testing.T) {
	tests := map[string]string{
		"quiz me on doc:cells-101":       "cells-101",
		"start quiz document_id=bio_2":   "bio_2",
		"please use DOC: Chapter3 today": "Chapter3",
		"start quiz on document:intro":   "intro",
		"quiz me on the docs from class": "",
		"what does the doctor say?":      "",
		"no reference here":              "",
	}
	for text, want := range tests {
		assert.Equal(t, want, ExtractDocumentRef(text), text)
	}
}

func TestIsQuizStart(t *testing.T) {
	for _, text := range []string{"/start_quiz", "/start_quiz doc:cells", "Start Quiz please", "quiz me on 'doc:cells'", "let's BEGIN QUIZ"} {
		assert.True(t, IsQuizStart(text), text)
	}
	for _, text := range []string{"what is a quiz?", "start_quiz", "stop quiz"} {
		assert.False(t, IsQuizStart(text), text)
	}
}

func TestIsCancel(t *testing.T) {
	assert.True(t, IsCancel("  Cancel Quiz "))
	assert.True(t, IsCancel("end quiz"))
	assert.False(t, IsCancel("please cancel quiz now"))
}

func TestRoute(t *testing.T) {
	idle := domain.NewOrchestratorState("s1", time.Time{})
	active := idle
	active.ActiveQuiz = &domain.ActiveQuiz{SessionID: "quiz:s1:cells:1", DocumentRef: "cells"}

	tests := []struct {
		name  string
		state domain.OrchestratorState
		turn  Turn
		want  Decision
	}{
		{
			name:  "Plain Question",
			state: idle,
			turn:  Turn{Text: "what is mitosis?", DocumentRef: "cells"},
			want:  Decision{Route: domain.RouteQA, DocumentRef: "cells"},
		},
		{
			name:  "Quiz Start With Turn Ref",
			state: idle,
			turn:  Turn{Text: "/start_quiz", DocumentRef: "cells"},
			want:  Decision{Route: domain.RouteQuiz, Action: domain.QuizActionStart, DocumentRef: "cells"},
		},
		{
			name:  "Quiz Start With Ref In Text",
			state: idle,
			turn:  Turn{Text: "quiz me on doc:cells"},
			want:  Decision{Route: domain.RouteQuiz, Action: domain.QuizActionStart, DocumentRef: "cells"},
		},
		{
			name:  "Quiz Start Without Ref",
			state: idle,
			turn:  Turn{Text: "start quiz"},
			want:  Decision{Route: domain.RouteQA},
		},
		{
			name:  "Active Quiz Answer",
			state: active,
			turn:  Turn{Text: "2"},
			want:  Decision{Route: domain.RouteQuiz, Action: domain.QuizActionAnswer, DocumentRef: "cells"},
		},
		{
			name:  "Active Quiz Cancel",
			state: active,
			turn:  Turn{Text: "stop quiz"},
			want:  Decision{Route: domain.RouteTerminate, Reply: CancelledReply, CancelQuiz: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(tt.state, tt.turn))
		})
	}
}

func TestRenderQuestion(t *testing.T) {
	q := domain.QuizQuestion{Text: "What powers the cell?", Options: []string{"Mitochondria", "Nucleus"}}
	assert.Equal(t, "Question 2/5: What powers the cell?\n\n1. Mitochondria\n\n2. Nucleus", RenderQuestion(q, 2, 5))
}
