// Package bus publishes domain events to interested subscribers.
//
// # Available Implementations
//
//   - NATSBus: core NATS publish/subscribe
//   - MemoryBus: in-process fan-out for tests and single-process use
//   - Nop: discards everything, for deployments without an event stream
//
// # Subjects
//
// Subjects are dot-separated tokens. Subscriptions may use the NATS
// wildcards: "*" matches exactly one token and ">" matches one or more
// trailing tokens.
//
//	sub, _ := b.Subscribe("todokit.>")
//	for msg := range sub.Messages() {
//	    // Handle event
//	}
//
// Delivery is at-most-once. A subscriber whose buffer is full misses the
// message rather than blocking the publisher.
package bus
