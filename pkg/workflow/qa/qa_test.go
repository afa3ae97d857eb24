package qa_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/lectern/internal/testutils"
	"github.com/aretw0/lectern/pkg/adapters/memory"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/workflow/qa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(gen *testutils.ScriptedGenerator) *qa.Service {
	docs := memory.NewDocuments(map[string]string{
		"cells": "Cells divide by mitosis.",
		"blank": "   ",
	})
	return qa.New(gen, docs, memory.NewStore())
}

func TestAnswer_GroundedInDocument(t *testing.T) {
	gen := testutils.NewScriptedGenerator("Cells divide by **mitosis**.")
	svc := newService(gen)

	history := []domain.Message{
		domain.SystemMessage("ignored"),
		domain.UserMessage("hi"),
		domain.AssistantMessage("Hello!"),
	}
	res, err := svc.Answer(context.Background(), qa.Request{
		SessionID:   "qa:s1",
		DocumentRef: "cells",
		History:     history,
		Query:       "How do cells divide?",
	})
	require.NoError(t, err)
	assert.Nil(t, res.Error)
	assert.Equal(t, "Cells divide by **mitosis**.", res.Text)

	prompt := gen.Last()
	assert.InDelta(t, 0.7, prompt.Temperature, 1e-9)
	assert.Contains(t, prompt.System, "Cells divide by mitosis.")
	assert.Contains(t, prompt.System, "User: hi\nAssistant: Hello!")
	assert.NotContains(t, prompt.System, "ignored")
	require.Len(t, prompt.Messages, 1)
	assert.Equal(t, "How do cells divide?", prompt.Messages[0].Content())

	assert.Equal(t, 1, res.State.Turns)
	assert.Equal(t, "cells", res.State.DocumentRef)
}

func TestAnswer_NoDocumentPlaceholder(t *testing.T) {
	for _, ref := range []string{"", "missing"} {
		gen := testutils.NewScriptedGenerator("That is not in the provided text.")
		res, err := newService(gen).Answer(context.Background(), qa.Request{SessionID: "qa:s1", DocumentRef: ref, Query: "Who won?"})
		require.NoError(t, err)
		assert.Nil(t, res.Error)
		assert.Contains(t, gen.Last().System, qa.NoDocument, "ref %q", ref)
		assert.Contains(t, gen.Last().System, qa.NoHistory)
	}
}

func TestAnswer_ShortCircuits(t *testing.T) {
	gen := testutils.NewScriptedGenerator()
	svc := newService(gen)
	ctx := context.Background()

	res, err := svc.Answer(ctx, qa.Request{SessionID: "qa:s1", DocumentRef: "blank", Query: "What?"})
	require.NoError(t, err)
	assert.Equal(t, qa.EmptyDocument, res.Text)
	assert.Nil(t, res.Error)

	res, err = svc.Answer(ctx, qa.Request{SessionID: "qa:s1", DocumentRef: "cells", Query: "  "})
	require.NoError(t, err)
	assert.Equal(t, qa.EmptyQuery, res.Text)
	require.NotNil(t, res.Error)
	assert.Equal(t, domain.CodeQueryEmpty, res.Error.Code)

	assert.Equal(t, 0, gen.Calls())
	assert.Equal(t, 2, res.State.Turns)
}

func TestAnswer_ModelFailureApologizes(t *testing.T) {
	gen := testutils.NewScriptedGenerator().Push(testutils.Reply{Err: errors.New("boom")})
	res, err := newService(gen).Answer(context.Background(), qa.Request{SessionID: "qa:s1", Query: "Why?"})
	require.NoError(t, err)
	assert.Equal(t, qa.Apology, res.Text)
	require.NotNil(t, res.Error)
	assert.Equal(t, domain.KindGeneration, res.Error.Kind)
	assert.Equal(t, domain.CodeModelFailed, res.State.LastError)
	assert.NotContains(t, res.Text, "boom")
}

func TestDistill_KeepsLastMessages(t *testing.T) {
	var history []domain.Message
	for _, c := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		history = append(history, domain.UserMessage(c))
	}
	assert.Equal(t, "User: 3\nUser: 4\nUser: 5\nUser: 6\nUser: 7", qa.Distill(history, qa.HistoryWindow))
	assert.Equal(t, qa.NoHistory, qa.Distill(nil, qa.HistoryWindow))
}
