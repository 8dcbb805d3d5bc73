package emit

import "context"

// NullEmitter implements Emitter by discarding all events. Useful when the
// Event Bus alone (for SSE subscribers) is enough and no secondary sink
// (logs, traces) is wanted.
type NullEmitter struct{}

// NewNullEmitter creates a new NullEmitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(event Event) {}

// Flush is a no-op.
func (n *NullEmitter) Flush(_ context.Context) error {
	return nil
}
