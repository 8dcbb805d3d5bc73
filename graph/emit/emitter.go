// Package emit provides the workflow Event Bus: per-thread pub/sub with
// bounded history replay, heartbeats, and an Emitter interface for
// secondary observability sinks (structured logs, OpenTelemetry spans).
package emit

import "context"

// Emitter receives a copy of every Event published on the Bus. It is the
// extension point for the base engine's own observability conventions
// (LogEmitter, OTelEmitter, NullEmitter) — the Bus itself
// is the primary consumer-facing channel (SSE subscribers), while an
// Emitter is a secondary sink wired in alongside it for process logs or
// traces.
//
// Implementations must not block the caller for long; Emit is called
// synchronously from the stage executor or engine goroutine that produced
// the event.
type Emitter interface {
	// Emit records a single event.
	Emit(event Event)

	// Flush gives buffering implementations a chance to drain pending
	// output. NullEmitter and LogEmitter are no-ops here.
	Flush(ctx context.Context) error
}
