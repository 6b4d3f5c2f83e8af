// Package realtime defines the raw push-channel transport the engine
// subscribes to for remote document events. The normalization layer in
// internal/service sits on top of it; implementations only move bytes.
package realtime

// Handler receives the raw payload of one inbound event.
type Handler func(data []byte)

// Unsubscribe tears down a single subscription.
type Unsubscribe func()

type ISubscription interface {
	// Subscribe registers a handler for a subject pattern and returns
	// the matching unsubscribe function. Calling it on teardown is
	// mandatory so listeners do not leak.
	Subscribe(subject string, h Handler) (Unsubscribe, error)

	// Close drops the underlying connection.
	Close()
}

// Factory builds a fresh transport connection. The realtime service
// calls it again after a forced reconnect, so implementations must not
// share state between calls.
type Factory func() (ISubscription, error)
