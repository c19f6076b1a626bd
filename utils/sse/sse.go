// Package sse writes server-sent events to a buffered fiber stream writer.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Event represents an SSE event to be sent to clients
type Event struct {
	// Event is the SSE event name; if empty, no "event:" line is written
	Event string

	// Data is the payload; strings and byte slices are sent as-is, anything else is JSON-encoded
	Data interface{}

	// ID is an optional event ID for reconnection support
	ID string

	// Retry is an optional reconnection time in milliseconds
	Retry int
}

// Send writes an SSE event to the given writer and flushes immediately.
// A flush error usually means the client went away.
func Send(w *bufio.Writer, event Event) error {
	if event.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", event.ID); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}

	if event.Retry > 0 {
		if _, err := fmt.Fprintf(w, "retry: %d\n", event.Retry); err != nil {
			return fmt.Errorf("failed to write retry: %w", err)
		}
	}

	if event.Event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event.Event); err != nil {
			return fmt.Errorf("failed to write event type: %w", err)
		}
	}

	var dataStr string
	switch v := event.Data.(type) {
	case string:
		dataStr = v
	case []byte:
		dataStr = string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}
		dataStr = string(data)
	}

	// multi-line payloads need one data: line each
	for _, line := range strings.Split(dataStr, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return fmt.Errorf("failed to write event data: %w", err)
		}
	}
	if _, err := w.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to terminate event: %w", err)
	}

	return w.Flush()
}

// SendJSON sends data under the given event name
func SendJSON(w *bufio.Writer, name string, data interface{}) error {
	return Send(w, Event{Event: name, Data: data})
}

// SendError sends an error event
func SendError(w *bufio.Writer, message string) error {
	return Send(w, Event{
		Event: "error",
		Data: map[string]interface{}{
			"type":  "error",
			"error": map[string]string{"message": message},
		},
	})
}

// SendKeepAlive sends a comment (: ping) to keep the connection alive
// Useful for long-running operations to prevent proxy timeouts
func SendKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
		return fmt.Errorf("failed to write keepalive: %w", err)
	}
	return w.Flush()
}

// Stream serializes writes so pipeline events and keep-alive pings never interleave
type Stream struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewStream wraps w
func NewStream(w *bufio.Writer) *Stream {
	return &Stream{w: w}
}

// JSON sends data under the given event name
func (s *Stream) JSON(name string, data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SendJSON(s.w, name, data)
}

// Error sends an error event
func (s *Stream) Error(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SendError(s.w, message)
}

// KeepAlive pings every interval until ctx is done or a ping fails
func (s *Stream) KeepAlive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			err := SendKeepAlive(s.w)
			s.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
