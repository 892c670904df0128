package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sombra-labs/confluence-rag/internal/ingest"
)

// syncTrigger starts background sync runs and reports their state.
// Implemented by ingest.Runner.
type syncTrigger interface {
	TriggerSyncAll() error
	Status() (running bool, last *ingest.Report)
}

// documentCounter reports knowledge base size.
// Implemented by knowledge.Store.
type documentCounter interface {
	Count(ctx context.Context) (int64, error)
}

type embeddingsHandler struct {
	runner syncTrigger
	store  documentCounter
	logger *slog.Logger
}

// processAll triggers a full background sync and returns immediately.
func (h *embeddingsHandler) processAll(w http.ResponseWriter, _ *http.Request) {
	h.logger.Info("manual trigger: processing all confluence pages")

	if err := h.runner.TriggerSyncAll(); err != nil {
		if errors.Is(err, ingest.ErrSyncRunning) {
			writeError(w, http.StatusConflict, "Sync is already running")
			return
		}
		h.logger.Error("error starting sync", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to start processing: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "started",
		"message": "Confluence page processing started in background",
	})
}

// status reports the stored document count and, when available, the
// outcome of the last sync run.
func (h *embeddingsHandler) status(w http.ResponseWriter, r *http.Request) {
	total, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.Error("error getting status", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get status: "+err.Error())
		return
	}

	running, last := h.runner.Status()

	resp := map[string]any{
		"status":         "success",
		"totalDocuments": total,
		"syncRunning":    running,
		"message":        "Current embedding status retrieved successfully",
	}
	if last != nil {
		resp["lastSync"] = last
	}

	writeJSON(w, http.StatusOK, resp)
}
