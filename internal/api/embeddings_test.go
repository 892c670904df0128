package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sombra-labs/confluence-rag/internal/ingest"
	"github.com/sombra-labs/confluence-rag/internal/log"
)

type fakeTrigger struct {
	err     error
	running bool
	last    *ingest.Report
	calls   int
}

func (f *fakeTrigger) TriggerSyncAll() error {
	f.calls++
	return f.err
}

func (f *fakeTrigger) Status() (bool, *ingest.Report) {
	return f.running, f.last
}

type fakeCounter struct {
	count int64
	err   error
}

func (f *fakeCounter) Count(_ context.Context) (int64, error) {
	return f.count, f.err
}

func newEmbeddingsHandler(trigger *fakeTrigger, counter *fakeCounter) *embeddingsHandler {
	return &embeddingsHandler{runner: trigger, store: counter, logger: log.NewNop()}
}

func TestProcessAll_Started(t *testing.T) {
	trigger := &fakeTrigger{}
	h := newEmbeddingsHandler(trigger, &fakeCounter{})

	w := httptest.NewRecorder()
	h.processAll(w, httptest.NewRequest(http.MethodPost, "/api/embeddings/process-all", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "started" {
		t.Errorf("body = %v", body)
	}
	if trigger.calls != 1 {
		t.Errorf("trigger called %d times, want 1", trigger.calls)
	}
}

func TestProcessAll_AlreadyRunning(t *testing.T) {
	trigger := &fakeTrigger{err: ingest.ErrSyncRunning}
	h := newEmbeddingsHandler(trigger, &fakeCounter{})

	w := httptest.NewRecorder()
	h.processAll(w, httptest.NewRequest(http.MethodPost, "/api/embeddings/process-all", nil))

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "error" {
		t.Errorf("body = %v", body)
	}
}

func TestProcessAll_TriggerFailure(t *testing.T) {
	trigger := &fakeTrigger{err: errors.New("pool released")}
	h := newEmbeddingsHandler(trigger, &fakeCounter{})

	w := httptest.NewRecorder()
	h.processAll(w, httptest.NewRequest(http.MethodPost, "/api/embeddings/process-all", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestStatus(t *testing.T) {
	trigger := &fakeTrigger{
		running: true,
		last:    &ingest.Report{Processed: 42, Errors: 1, Duration: time.Second},
	}
	h := newEmbeddingsHandler(trigger, &fakeCounter{count: 42})

	w := httptest.NewRecorder()
	h.status(w, httptest.NewRequest(http.MethodGet, "/api/embeddings/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["totalDocuments"] != float64(42) {
		t.Errorf("totalDocuments = %v", body["totalDocuments"])
	}
	if body["syncRunning"] != true {
		t.Errorf("syncRunning = %v", body["syncRunning"])
	}
	last, ok := body["lastSync"].(map[string]any)
	if !ok || last["processed"] != float64(42) || last["errors"] != float64(1) {
		t.Errorf("lastSync = %v", body["lastSync"])
	}
}

func TestStatus_NoRunYet(t *testing.T) {
	h := newEmbeddingsHandler(&fakeTrigger{}, &fakeCounter{count: 0})

	w := httptest.NewRecorder()
	h.status(w, httptest.NewRequest(http.MethodGet, "/api/embeddings/status", nil))

	body := decodeBody(t, w)
	if _, ok := body["lastSync"]; ok {
		t.Error("lastSync must be omitted before the first run")
	}
}

func TestStatus_CountFailure(t *testing.T) {
	h := newEmbeddingsHandler(&fakeTrigger{}, &fakeCounter{err: errors.New("db down")})

	w := httptest.NewRecorder()
	h.status(w, httptest.NewRequest(http.MethodGet, "/api/embeddings/status", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
