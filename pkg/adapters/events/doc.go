// Package events delivers monitoring events (fidelity samples, quiz completions,
// handled turns) to an in-process watermill channel or a NATS JetStream stream.
package events
