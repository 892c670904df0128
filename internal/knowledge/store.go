// Package knowledge persists Confluence page records and their vector
// index entries in PostgreSQL, and performs similarity search over the
// vectors using pgvector.
//
// The durable record (Store) and the vector entry (Index) are written
// separately and kept in sync by the ingestion orchestrator: every
// upsert writes both, every removal deletes both.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no document exists for a page ID.
var ErrNotFound = errors.New("document not found")

// DB is the subset of pgxpool.Pool the store needs. Defined on the
// consumer side so tests can substitute a transaction or a fake.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages the durable document records.
// Safe for concurrent use; all synchronization lives in the database.
type Store struct {
	db     DB
	logger *slog.Logger
}

// NewStore creates a document store backed by the given database.
func NewStore(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// FindByPageID returns the document for the given page ID, or
// ErrNotFound when none exists.
func (s *Store) FindByPageID(ctx context.Context, pageID string) (*Document, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, page_id, title, content, space_key, space_name, created_at, updated_at
		FROM document_embeddings
		WHERE page_id = $1`, pageID)

	var doc Document
	err := row.Scan(&doc.ID, &doc.PageID, &doc.Title, &doc.Content,
		&doc.SpaceKey, &doc.SpaceName, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document %q: %w", pageID, err)
	}

	return &doc, nil
}

// ExistsByPageID reports whether a document exists for the page ID.
func (s *Store) ExistsByPageID(ctx context.Context, pageID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM document_embeddings WHERE page_id = $1)`, pageID).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check document %q: %w", pageID, err)
	}
	return exists, nil
}

// Create inserts a new document record. Timestamps are assigned here,
// not by database triggers, so create and update semantics are explicit.
func (s *Store) Create(ctx context.Context, doc *Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	err := s.db.QueryRow(ctx, `
		INSERT INTO document_embeddings (page_id, title, content, space_key, space_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		doc.PageID, doc.Title, doc.Content, doc.SpaceKey, doc.SpaceName,
		doc.CreatedAt, doc.UpdatedAt).Scan(&doc.ID)
	if err != nil {
		return fmt.Errorf("create document %q: %w", doc.PageID, err)
	}

	s.logger.Debug("created document", "page_id", doc.PageID, "title", doc.Title)
	return nil
}

// Update overwrites the mutable fields of an existing document and
// bumps updated_at. CreatedAt is never touched.
func (s *Store) Update(ctx context.Context, doc *Document) error {
	doc.UpdatedAt = time.Now().UTC()

	tag, err := s.db.Exec(ctx, `
		UPDATE document_embeddings
		SET title = $2, content = $3, space_key = $4, space_name = $5, updated_at = $6
		WHERE page_id = $1`,
		doc.PageID, doc.Title, doc.Content, doc.SpaceKey, doc.SpaceName, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update document %q: %w", doc.PageID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update document %q: %w", doc.PageID, ErrNotFound)
	}

	s.logger.Debug("updated document", "page_id", doc.PageID, "title", doc.Title)
	return nil
}

// Delete removes the document record for the given page ID.
// Deleting a page that was never stored is not an error.
func (s *Store) Delete(ctx context.Context, pageID string) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM document_embeddings WHERE page_id = $1`, pageID); err != nil {
		return fmt.Errorf("delete document %q: %w", pageID, err)
	}

	s.logger.Debug("deleted document", "page_id", pageID)
	return nil
}

// Count returns the total number of stored documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM document_embeddings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// CountBySpace returns the number of documents in one space.
func (s *Store) CountBySpace(ctx context.Context, spaceKey string) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM document_embeddings WHERE space_key = $1`, spaceKey).
		Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents in space %q: %w", spaceKey, err)
	}
	return count, nil
}

// ListBySpace returns all documents in one space, newest first.
func (s *Store) ListBySpace(ctx context.Context, spaceKey string) ([]Document, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, page_id, title, content, space_key, space_name, created_at, updated_at
		FROM document_embeddings
		WHERE space_key = $1
		ORDER BY updated_at DESC`, spaceKey)
	if err != nil {
		return nil, fmt.Errorf("list documents in space %q: %w", spaceKey, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.PageID, &doc.Title, &doc.Content,
			&doc.SpaceKey, &doc.SpaceName, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents in space %q: %w", spaceKey, err)
	}

	return docs, nil
}
