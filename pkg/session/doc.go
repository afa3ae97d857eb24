/*
Package session serializes work on a conversation across goroutines and replicas.

The workflows themselves never lock: a caller that may receive two turns for the
same session at once wraps each turn in Guard.Do. Locally, a reference-counted
mutex per session is used; with a DistributedLocker configured, a cross-process
lease is taken as well.
*/
package session
