package emit

import (
	"context"
	"sync"
	"time"
)

// busHistoryLimit bounds per-thread history retention; older events are
// dropped once a thread exceeds it, oldest first.
const busHistoryLimit = 1000

// subscriberQueueDepth bounds each subscriber's live-event channel. A slow
// consumer drops its oldest queued event rather than blocking the
// publisher (stage executors must never stall waiting on an SSE client).
const subscriberQueueDepth = 64

// DefaultHeartbeatInterval is how long Subscribe waits without a live
// event before sending a synthetic heartbeat, per spec §4.4.
const DefaultHeartbeatInterval = 15 * time.Second

// Bus is a per-thread publish/subscribe event log. Stage executors and the
// engine call Emit; the HTTP API's SSE endpoint calls Subscribe. A late
// subscriber first replays everything already recorded for the thread,
// then receives new events live.
type Bus struct {
	mu               sync.Mutex
	threads          map[string]*threadState
	heartbeatInterval time.Duration
}

type threadState struct {
	history     []Event
	subscribers map[int]chan Event
	nextSubID   int
}

// NewBus creates an empty Bus using DefaultHeartbeatInterval.
func NewBus() *Bus {
	return &Bus{
		threads:           make(map[string]*threadState),
		heartbeatInterval: DefaultHeartbeatInterval,
	}
}

// NewBusWithHeartbeat creates a Bus with a custom heartbeat interval, for
// tests that don't want to wait out the real default.
func NewBusWithHeartbeat(interval time.Duration) *Bus {
	return &Bus{
		threads:           make(map[string]*threadState),
		heartbeatInterval: interval,
	}
}

// Emit records event in its thread's history and forwards it to every live
// subscriber of that thread. Heartbeats are never passed to Emit; they are
// synthesized inside Subscribe and never enter history.
func (b *Bus) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ts := b.thread(event.ThreadID)
	ts.history = append(ts.history, event)
	if len(ts.history) > busHistoryLimit {
		ts.history = ts.history[len(ts.history)-busHistoryLimit:]
	}

	for _, ch := range ts.subscribers {
		b.deliver(ch, event)
	}
}

// Flush satisfies Emitter; the Bus has no buffered output to drain.
func (b *Bus) Flush(_ context.Context) error {
	return nil
}

// deliver sends event on ch without blocking: on a full channel it drops
// the oldest queued event and retries once. Called with b.mu held.
func (b *Bus) deliver(ch chan Event, event Event) {
	select {
	case ch <- event:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- event:
	default:
	}
}

func (b *Bus) thread(threadID string) *threadState {
	ts, ok := b.threads[threadID]
	if !ok {
		ts = &threadState{subscribers: make(map[int]chan Event)}
		b.threads[threadID] = ts
	}
	return ts
}

// Subscribe replays threadID's recorded history in order, then sends a
// synthetic connected event. If the history already contains a
// workflow_complete stage_update, the returned channel is closed right
// there — there is nothing left to stream live. Otherwise the channel
// stays open, receiving new events as they are Emitted plus a synthetic
// heartbeat whenever nothing arrives within the bus's heartbeat interval,
// until ctx is done or a workflow_complete event is observed.
//
// includeHistory lets a caller that already has the full history (e.g. a
// status-page poll that just needs live updates) skip the replay.
func (b *Bus) Subscribe(ctx context.Context, threadID string, includeHistory bool) <-chan Event {
	out := make(chan Event, subscriberQueueDepth)

	b.mu.Lock()
	ts := b.thread(threadID)
	history := append([]Event(nil), ts.history...)
	subID := ts.nextSubID
	ts.nextSubID++
	live := make(chan Event, subscriberQueueDepth)
	ts.subscribers[subID] = live
	b.mu.Unlock()

	alreadyComplete := false
	if includeHistory {
		for _, e := range history {
			if e.IsWorkflowComplete() {
				alreadyComplete = true
			}
		}
	}

	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.thread(threadID).subscribers, subID)
			b.mu.Unlock()
			close(out)
		}()

		if includeHistory {
			for _, e := range history {
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}

		select {
		case out <- NewConnected(threadID):
		case <-ctx.Done():
			return
		}

		if alreadyComplete {
			return
		}

		timer := time.NewTimer(b.heartbeatInterval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case e := <-live:
				if !timer.Stop() {
					<-timer.C
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
				if e.IsWorkflowComplete() {
					return
				}
				timer.Reset(b.heartbeatInterval)
			case <-timer.C:
				select {
				case out <- NewHeartbeat():
				case <-ctx.Done():
					return
				}
				timer.Reset(b.heartbeatInterval)
			}
		}
	}()

	return out
}

// ThreadIDs returns every thread id the Bus has recorded history for.
func (b *Bus) ThreadIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.threads))
	for id := range b.threads {
		ids = append(ids, id)
	}
	return ids
}

// History returns a copy of threadID's recorded events, oldest first.
func (b *Bus) History(threadID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.threads[threadID]
	if !ok {
		return nil
	}
	return append([]Event(nil), ts.history...)
}
