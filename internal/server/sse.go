package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// Event names on the progress stream.
const (
	eventStep     = "step"
	eventError    = "error"
	eventComplete = "complete"
)

var errStreamingUnsupported = errors.New("streaming not supported")

// EventStream writes Server-Sent Events. Each event carries a sequence id
// so a client can tell whether it missed progress updates.
type EventStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
}

// NewEventStream sets the event-stream headers on w.
func NewEventStream(w http.ResponseWriter) (*EventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &EventStream{w: w, flusher: flusher}, nil
}

// Send writes one event with a JSON payload and flushes it.
func (s *EventStream) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Fail ends the stream with an error event.
func (s *EventStream) Fail(message string) {
	s.Send(eventError, map[string]string{"error": message}) //nolint:errcheck
}

// Complete ends the stream with the run summary.
func (s *EventStream) Complete(resp RunResponse) {
	s.Send(eventComplete, resp) //nolint:errcheck
}
