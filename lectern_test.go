package lectern_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/lectern"
	"github.com/aretw0/lectern/internal/testutils"
	"github.com/aretw0/lectern/pkg/adapters/memory"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresGenerator(t *testing.T) {
	_, err := lectern.New(nil)
	assert.Error(t, err)
}

func TestTutor_Conversation(t *testing.T) {
	gen := testutils.NewScriptedGenerator("It generates ATP.")
	docs := memory.NewDocuments(map[string]string{"cells": "The mitochondria generates ATP."})
	tutor, err := lectern.New(gen, lectern.WithDocuments(docs))
	require.NoError(t, err)

	ctx := context.Background()
	resp, err := tutor.HandleTurn(ctx, lectern.Turn{SessionID: "s1", Text: "What does it make?", DocumentRef: "cells"})
	require.NoError(t, err)
	assert.Equal(t, "It generates ATP.", resp.Text)

	state, found, err := tutor.Conversation(ctx, "s1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, state.History, 2)

	qaState, found, err := tutor.QA(ctx, state.QASessionID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "It generates ATP.", qaState.LastAnswer)
}

func TestTutor_AnswerLifecycle(t *testing.T) {
	gen := testutils.NewScriptedGenerator(
		"Plants turn sunlight into chemical energy.",
		"Plants convert sunlight into chemical energy.",
	)
	tutor, err := lectern.New(gen, lectern.WithFidelitySampleRate(0))
	require.NoError(t, err)

	ctx := context.Background()
	res, err := tutor.Refine(ctx, lectern.RefineRequest{Transcript: "um so plants like turn sunlight into uh energy"})
	require.NoError(t, err)
	require.Nil(t, res.Error)
	require.NotEmpty(t, res.SessionID)

	res, err = tutor.Edit(ctx, lectern.EditRequest{SessionID: res.SessionID, Command: "replace turn with convert"})
	require.NoError(t, err)
	require.Nil(t, res.Error)

	res, err = tutor.Finalize(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerFinalized, res.Status)

	state, found, err := tutor.Answer(ctx, res.SessionID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Plants convert sunlight into chemical energy.", state.RefinedAnswer)
	assert.Len(t, state.EditHistory, 1)
}

func TestTutor_ConcurrentTurnsOnOneSession(t *testing.T) {
	replies := make([]string, 10)
	for i := range replies {
		replies[i] = fmt.Sprintf("reply %d", i)
	}
	tutor, err := lectern.New(testutils.NewScriptedGenerator(replies...))
	require.NoError(t, err)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tutor.HandleTurn(ctx, lectern.Turn{SessionID: "shared", Text: fmt.Sprintf("question %d", i)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, _, err := tutor.Conversation(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, 10, state.Turns, "no turn may be lost")
	assert.Len(t, state.History, 20)
}
