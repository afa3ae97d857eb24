/*
Package lectern is the orchestration core of an LLM tutoring assistant.

A Tutor routes each student turn either to a document-grounded conversation or
to a multiple choice quiz, and separately turns spoken transcripts into written
answers that can then be edited by voice. Every workflow checkpoints its state
after each step, keyed by session id, so a conversation survives a restart.

# Architecture

The core follows a ports and adapters layout:

  - pkg/orchestrator decides the route for a turn and renders the reply.
  - pkg/workflow/qa, pkg/workflow/quiz and pkg/workflow/answer are the sub-workflows.
  - pkg/checkpoint and pkg/codec persist state as plain maps through a ports.StateStore.
  - pkg/adapters holds the stores, document sources and event publishers.

# Usage

	gen := ollama.NewProvider("http://localhost:11434", "llama3")
	tutor, err := lectern.New(gen, lectern.WithDocuments(docs))
	if err != nil {
		log.Fatal(err)
	}

	resp, err := tutor.HandleTurn(ctx, lectern.Turn{
		SessionID:   "student-42",
		Text:        "start quiz",
		DocumentRef: "cells",
	})
	if err != nil {
		// Only persistence failures end up here.
		log.Fatal(err)
	}
	fmt.Println(resp.Text)

Workflow failures never surface as Go errors: the reply carries user-safe text
and the failure is recorded on the response and in the checkpoint.
*/
package lectern
