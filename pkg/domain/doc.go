/*
Package domain contains the core models of the Lectern tutoring engine.

It defines the typed state of every workflow, the closed enums that drive
routing and lifecycles, and the allowed transitions between statuses. The
package is kept pure and free of I/O, following Hexagonal Architecture
principles.

# Key Entities

  - Message: an opaque conversational turn (role, content, metadata).
  - OrchestratorState: the top-level conversation record and its routing target.
  - QAState, QuizState, AnswerState: per-workflow state, each checkpointed on its own.
  - Checkpoint: the durable envelope written to a StateStore.
  - Failure: the structured error carried inside workflow results.
*/
package domain
