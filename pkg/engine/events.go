// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import "time"

// EventType identifies an execution event.
type EventType string

const (
	EventRunStarted   EventType = "run_started"
	EventNodeStart    EventType = "node_start"
	EventNodeEnd      EventType = "node_end"
	EventRunCompleted EventType = "run_completed"
	EventRunFailed    EventType = "run_failed"
)

// Event is a live progress notification for one run. Within a run, events are
// totally ordered by execution order; delivery to any individual subscriber
// is best-effort at-most-once.
type Event struct {
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	Node      string         `json:"node,omitempty"`
	State     map[string]any `json:"state,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// DefaultSubscriberBuffer is the capacity of a subscriber channel. A
// subscriber that falls more than a buffer behind starts losing events; the
// run is never delayed.
const DefaultSubscriberBuffer = 100

// subscribe registers a new bounded event channel on the run. Subscribing to
// a terminal run succeeds; the channel simply receives nothing further.
func (r *run) subscribe(buffer int) chan Event {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subs[ch] = struct{}{}
	return ch
}

// unsubscribe removes and closes a subscriber channel. Removing a channel
// that is not subscribed is a no-op.
func (r *run) unsubscribe(ch chan Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if _, ok := r.subs[ch]; !ok {
		return
	}
	delete(r.subs, ch)
	close(ch)
}

// publish fans the event out to every current subscriber without blocking. A
// full channel drops the event for that subscriber only: this is a live
// tail, not an audit log.
func (r *run) publish(ev Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- ev:
		default:
			droppedEvents.Inc()
		}
	}
}
