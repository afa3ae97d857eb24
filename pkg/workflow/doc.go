/*
Package workflow holds what the tutoring workflows share.

Each sub-package owns one workflow and its checkpoint namespace:

  - qa: document-grounded conversational answers.
  - quiz: the multi-turn question and evaluation state machine.
  - answer: dictation refinement, edits and sampled fidelity checks.

Workflows never lock. They load their state, make at most a few blocking model
calls, and save the new state before returning.
*/
package workflow
