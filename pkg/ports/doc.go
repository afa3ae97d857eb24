/*
Package ports defines the driven ports (interfaces) of the Lectern engine.

These interfaces decouple the workflows from external implementations, so the
same orchestration runs against any checkpoint backend, model or document corpus.

# Key Interfaces

  - StateStore: persists checkpoint records for one workflow namespace.
  - Generator: the generation-model capability.
  - DocumentSource: resolves a document reference into narrative text.
  - EventPublisher: best-effort monitoring events.
  - DistributedLocker: optional cross-process session serialization.
*/
package ports
