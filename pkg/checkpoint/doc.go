/*
Package checkpoint saves and restores workflow state through a ports.StateStore.

A Checkpointer converts typed state into its durable form with the codec before
every save. When conversion or the store rejects the record, the save is retried
exactly once with forced conversion, where unconvertible values are replaced by
markers. A second failure surfaces as a *domain.CheckpointError.

Stores groups one StateStore per workflow namespace, so the same session id can
be used by several workflows without collision.
*/
package checkpoint
