package rag

import (
	"context"

	"github.com/sombra-labs/confluence-rag/internal/knowledge"
)

// EventType discriminates streaming events.
type EventType string

const (
	// EventSources carries the cited pages, always first.
	EventSources EventType = "sources"
	// EventChunk carries one answer fragment.
	EventChunk EventType = "chunk"
	// EventComplete carries the full concatenated answer and ends the
	// stream.
	EventComplete EventType = "complete"
	// EventError ends the stream after a failure. A stream ends with
	// exactly one of complete or error.
	EventError EventType = "error"
)

// Event is one element of a streaming answer. Only the field matching
// Type is populated.
type Event struct {
	Type         EventType
	Sources      []SourcePage
	Content      string
	FullResponse string
	Message      string
}

// AskStream answers a question as a stream of typed events: sources
// first, then zero or more chunks in generation order, then exactly one
// of complete or error. The channel is unbuffered and closed when the
// stream ends; the producer stops promptly when ctx is canceled or the
// consumer stops draining past cancellation.
//
// The whole stream is bounded by streamTimeout.
func (e *Engine) AskStream(ctx context.Context, question string) <-chan Event {
	ch := make(chan Event)

	go func() {
		defer close(ch)

		sctx, cancel := context.WithTimeout(ctx, streamTimeout)
		defer cancel()

		send := func(ev Event) bool {
			select {
			case ch <- ev:
				return true
			case <-sctx.Done():
				return false
			}
		}

		e.logger.Info("processing streaming chat question",
			"conversation_id", conversationID, "question", question)

		results, err := e.searcher.Search(sctx, question,
			knowledge.WithTopK(DefaultTopK), knowledge.WithThreshold(DefaultThreshold))
		if err != nil {
			e.logger.Error("error searching knowledge base", "error", err)
			send(Event{Type: EventError, Message: err.Error()})
			return
		}

		if !send(Event{Type: EventSources, Sources: e.buildSources(results)}) {
			return
		}

		full, err := e.generate(sctx, question, results, func(cctx context.Context, text string) error {
			if !send(Event{Type: EventChunk, Content: text}) {
				return sctx.Err()
			}
			return nil
		})
		if err != nil {
			e.logger.Error("error during streaming generation", "error", err)
			send(Event{Type: EventError, Message: err.Error()})
			return
		}

		send(Event{Type: EventComplete, FullResponse: full})
		e.logger.Info("successfully completed streaming response", "question", question)
	}()

	return ch
}
