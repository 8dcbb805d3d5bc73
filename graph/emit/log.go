package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter implements Emitter by writing structured log output to a
// writer, in two modes:
//   - Text mode: human-readable, one line per event.
//   - JSON mode: one JSON object per line (JSONL), suitable for shipping
//     to a log aggregator.
//
// This mirrors the base engine's own LogEmitter (graph/emit/log.go) with
// the domain Event fields in place of RunID/Step/NodeID/Msg/Meta.
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a new LogEmitter writing to writer (os.Stdout if
// nil) in the given mode.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit writes event to the configured writer.
func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
		return
	}
	l.emitText(event)
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	switch event.Type {
	case EventStageUpdate:
		_, _ = fmt.Fprintf(l.writer, "[%s] thread=%s stage=%s status=%s\n", event.Type, event.ThreadID, event.Stage, event.Status)
	case EventLog:
		_, _ = fmt.Fprintf(l.writer, "[%s] thread=%s level=%s stage=%s %s\n", event.Type, event.ThreadID, event.Level, event.Stage, event.Message)
	case EventToolCall:
		_, _ = fmt.Fprintf(l.writer, "[%s] thread=%s stage=%s tool=%s server=%s status=%s\n", event.Type, event.ThreadID, event.Stage, event.ToolName, event.Server, event.Status)
	default:
		_, _ = fmt.Fprintf(l.writer, "[%s] thread=%s\n", event.Type, event.ThreadID)
	}
}

// EmitBatch writes multiple events in one call.
func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		l.Emit(event)
	}
	return nil
}

// Flush is a no-op: LogEmitter writes synchronously with no internal
// buffering. Wrap writer in a bufio.Writer and flush that directly if
// buffering is desired.
func (l *LogEmitter) Flush(_ context.Context) error {
	return nil
}
