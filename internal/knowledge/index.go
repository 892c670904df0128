package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
)

// Index is the vector side of the knowledge base. It embeds text with
// the configured embedder and runs cosine similarity search in
// PostgreSQL via pgvector.
//
// Index is safe for concurrent use by multiple goroutines.
type Index struct {
	db       DB
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewIndex creates a vector index over the given database and embedder.
func NewIndex(db DB, embedder ai.Embedder, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{db: db, embedder: embedder, logger: logger}
}

// Add embeds the entry's content and stores the vector with its
// metadata. An existing vector for the same page ID is overwritten, so
// a page never has more than one entry.
func (ix *Index) Add(ctx context.Context, entry Entry) error {
	embedding, err := ix.embed(ctx, entry.Content)
	if err != nil {
		return fmt.Errorf("embed page %q: %w", entry.PageID, err)
	}

	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata for page %q: %w", entry.PageID, err)
	}

	_, err = ix.db.Exec(ctx, `
		INSERT INTO page_vectors (page_id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (page_id) DO UPDATE
		SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`,
		entry.PageID, entry.Content, metadataJSON, embedding)
	if err != nil {
		return fmt.Errorf("store vector for page %q: %w", entry.PageID, err)
	}

	ix.logger.Debug("indexed page", "page_id", entry.PageID, "content_length", len(entry.Content))
	return nil
}

// Delete removes the vector entry for the given page ID.
// Deleting an unindexed page is not an error.
func (ix *Index) Delete(ctx context.Context, pageID string) error {
	if _, err := ix.db.Exec(ctx,
		`DELETE FROM page_vectors WHERE page_id = $1`, pageID); err != nil {
		return fmt.Errorf("delete vector for page %q: %w", pageID, err)
	}

	ix.logger.Debug("deleted vector entry", "page_id", pageID)
	return nil
}

// Search embeds the query and returns the entries whose cosine
// similarity meets the threshold, ordered by descending similarity,
// capped at topK. A query timeout keeps slow vector scans from
// blocking callers.
func (ix *Index) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	embedding, err := ix.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := ix.db.Query(queryCtx, `
		SELECT page_id, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM page_vectors
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		embedding, cfg.threshold, cfg.topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			entry        Entry
			metadataJSON []byte
			similarity   float64
		)
		if err := rows.Scan(&entry.PageID, &entry.Content, &metadataJSON, &similarity); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			ix.logger.Warn("failed to parse vector metadata", "page_id", entry.PageID, "error", err)
			entry.Metadata = make(map[string]string)
		}
		results = append(results, Result{Entry: entry, Similarity: float32(similarity)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return results, nil
}

// embed generates an embedding for one text.
func (ix *Index) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := ix.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(text, nil),
		},
	})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding returned")
	}

	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
