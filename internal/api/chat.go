package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sombra-labs/confluence-rag/internal/knowledge"
	"github.com/sombra-labs/confluence-rag/internal/rag"
)

// queryEngine is the chat capability the handler consumes.
// Implemented by rag.Engine.
type queryEngine interface {
	Ask(ctx context.Context, question string) *rag.Answer
	AskStream(ctx context.Context, question string) <-chan rag.Event
	RelevantTitles(ctx context.Context, query string, opts ...knowledge.SearchOption) []string
}

type chatHandler struct {
	engine queryEngine
	logger *slog.Logger
}

type chatRequest struct {
	Question string `json:"question"`
}

// ask answers a question in one response, with cited source pages.
func (h *chatHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.logger.Info("received chat question", "question", req.Question)

	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "Question cannot be empty")
		return
	}

	answer := h.engine.Ask(r.Context(), req.Question)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"question":    req.Question,
		"answer":      answer.Text,
		"sourcePages": answer.Sources,
	})
}

// askStream answers a question as an SSE stream: a sources event, then
// answer chunks, then exactly one of complete or error.
func (h *chatHandler) askStream(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("question")
	h.logger.Info("received streaming chat question", "question", question)

	sw, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if strings.TrimSpace(question) == "" {
		_ = sw.writeEvent("error", map[string]string{"message": "Question cannot be empty"})
		return
	}

	for ev := range h.engine.AskStream(r.Context(), question) {
		var writeErr error
		switch ev.Type {
		case rag.EventSources:
			writeErr = sw.writeEvent("sources", map[string]any{"sourcePages": ev.Sources})
		case rag.EventChunk:
			writeErr = sw.writeEvent("chunk", map[string]string{"content": ev.Content})
		case rag.EventComplete:
			writeErr = sw.writeEvent("complete", map[string]string{"fullResponse": ev.FullResponse})
		case rag.EventError:
			writeErr = sw.writeEvent("error", map[string]string{"message": ev.Message})
		}
		if writeErr != nil {
			// Client gone. The engine stops on its own once the request
			// context is canceled; just stop draining.
			h.logger.Debug("stopped writing stream", "error", writeErr)
			return
		}
	}
}

// relevantDocs returns the titles of pages relevant to a query, without
// generating an answer.
func (h *chatHandler) relevantDocs(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.logger.Info("getting relevant documents", "query", req.Question)

	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "Query cannot be empty")
		return
	}

	titles := h.engine.RelevantTitles(r.Context(), req.Question)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "success",
		"query":             req.Question,
		"relevantDocuments": titles,
	})
}

// health reports liveness of the chat surface.
func (h *chatHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "chat",
		"message": "Chat service is running",
	})
}
