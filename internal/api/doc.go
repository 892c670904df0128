// Package api provides the JSON REST API server for the Confluence RAG
// service.
//
// # Architecture
//
// The server uses Go 1.22+ routing with a layered middleware stack:
//
//	Recovery → RequestID → Logging → Routes
//
// The health probe (/health) bypasses the middleware stack via a
// top-level mux, ensuring it remains fast and unauthenticated.
//
// # Endpoints
//
// Health probe (no middleware):
//   - GET /health: returns {"status":"ok"}
//
// Chat:
//   - POST /api/chat/ask: answer a question with cited sources
//   - GET /api/chat/ask-stream: SSE endpoint for streaming answers
//   - POST /api/chat/relevant-docs: titles of pages relevant to a query
//   - GET /api/chat/health: chat surface liveness
//
// Embeddings:
//   - POST /api/embeddings/process-all: trigger a full background sync
//   - GET /api/embeddings/status: document count and sync state
//
// # SSE Streaming
//
// Streaming answers use Server-Sent Events with typed events and JSON
// data frames:
//
//   - sources:  cited source pages, always first
//   - chunk:    incremental answer content
//   - complete: the full concatenated answer, ends the stream
//   - error:    failure message, ends the stream
//
// A stream ends with exactly one of complete or error. Validation
// failures on the streaming endpoint are also sent as SSE error events,
// not HTTP error responses, so clients handle one protocol.
package api
