package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// sseWriter wraps an http.ResponseWriter for Server-Sent Events
// streaming with JSON data frames.
type sseWriter struct {
	w       io.Writer
	flusher http.Flusher
}

// newSSEWriter creates an SSE writer and sets appropriate headers.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flusher interface")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &sseWriter{w: w, flusher: flusher}, nil
}

// writeEvent sends a named event with a JSON payload and flushes it so
// the client sees each event as it happens.
func (w *sseWriter) writeEvent(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return w.writeRaw(event, string(data))
}

// writeRaw writes data in SSE format, handling multi-line content.
// SSE requires each line of data to be prefixed with "data: ".
func (w *sseWriter) writeRaw(event, content string) error {
	if _, err := fmt.Fprintf(w.w, "event: %s\n", event); err != nil {
		return fmt.Errorf("write event name: %w", err)
	}

	for _, line := range strings.Split(content, "\n") {
		if _, err := fmt.Fprintf(w.w, "data: %s\n", line); err != nil {
			return fmt.Errorf("write data line: %w", err)
		}
	}

	// Empty line terminates the event
	if _, err := w.w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("write terminator: %w", err)
	}

	w.flusher.Flush()
	return nil
}
