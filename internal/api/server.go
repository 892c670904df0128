package api

import (
	"errors"
	"log/slog"
	"net/http"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger *slog.Logger
	Engine queryEngine     // Required
	Runner syncTrigger     // Required
	Store  documentCounter // Required
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("query engine is required")
	}
	if cfg.Runner == nil {
		return nil, errors.New("sync runner is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("document store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{engine: cfg.Engine, logger: logger}
	eh := &embeddingsHandler{runner: cfg.Runner, store: cfg.Store, logger: logger}

	mux := http.NewServeMux()

	// Chat
	mux.HandleFunc("POST /api/chat/ask", ch.ask)
	mux.HandleFunc("GET /api/chat/ask-stream", ch.askStream)
	mux.HandleFunc("POST /api/chat/relevant-docs", ch.relevantDocs)
	mux.HandleFunc("GET /api/chat/health", ch.health)

	// Embeddings
	mux.HandleFunc("POST /api/embeddings/process-all", eh.processAll)
	mux.HandleFunc("GET /api/embeddings/status", eh.status)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → Routes
	// RequestID must be before Logging so request_id is available in
	// log attributes.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
