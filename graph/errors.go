// Package graph provides the sequential workflow execution engine.
package graph

import "errors"

// ErrMaxStepsExceeded indicates that Run/Resume reached the configured
// step limit without the workflow reaching a terminal or suspended state.
var ErrMaxStepsExceeded = errors.New("workflow exceeded maximum step limit")

// ErrNotSuspended is returned by Resume when the thread's latest
// checkpoint has no pending interrupt to resume from.
var ErrNotSuspended = errors.New("thread has no pending interrupt to resume")

// ErrUnknownNode is returned when a route names a node that was never
// registered with Add.
var ErrUnknownNode = errors.New("unknown node id")
