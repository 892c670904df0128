// Package ingest drives the Confluence-to-knowledge-base sync loop:
// fetch pages, extract text, and upsert the durable record and the
// vector entry for each page.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/sombra-labs/confluence-rag/internal/confluence"
	"github.com/sombra-labs/confluence-rag/internal/knowledge"
)

// defaultPageInterval paces the loop so neither the Confluence API nor
// the embedding backend is hammered. Applied once per page, on success
// and failure alike.
const defaultPageInterval = 100 * time.Millisecond

// progressEvery controls how often a progress line is logged.
const progressEvery = 10

// PageSource fetches pages from the external content API.
// Implemented by confluence.Client.
type PageSource interface {
	FetchAllPages(ctx context.Context, spaceKeys []string) []confluence.Page
}

// DocumentStore persists the durable per-page records.
// Implemented by knowledge.Store.
type DocumentStore interface {
	FindByPageID(ctx context.Context, pageID string) (*knowledge.Document, error)
	Create(ctx context.Context, doc *knowledge.Document) error
	Update(ctx context.Context, doc *knowledge.Document) error
	Delete(ctx context.Context, pageID string) error
}

// VectorIndex maintains the embedding entries.
// Implemented by knowledge.Index.
type VectorIndex interface {
	Add(ctx context.Context, entry knowledge.Entry) error
	Delete(ctx context.Context, pageID string) error
}

// Report summarizes one sync run.
type Report struct {
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"duration"`
}

// Orchestrator runs the end-to-end sync. Pages are processed strictly
// one at a time: the external API is rate limited and vector writes
// must stay ordered per document.
type Orchestrator struct {
	source    PageSource
	store     DocumentStore
	index     VectorIndex
	spaceKeys []string
	interval  time.Duration
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPageInterval overrides the per-page pacing interval. Tests use
// this to avoid real sleeps.
func WithPageInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.interval = d
		}
	}
}

// NewOrchestrator wires the sync loop. spaceKeys is the configured
// allowlist; empty means all spaces.
func NewOrchestrator(source PageSource, store DocumentStore, index VectorIndex, spaceKeys []string, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		source:    source,
		store:     store,
		index:     index,
		spaceKeys: spaceKeys,
		interval:  defaultPageInterval,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SyncAll fetches every page (honoring the configured space allowlist)
// and upserts each one. A failing page is logged and counted, never
// fatal to the run.
func (o *Orchestrator) SyncAll(ctx context.Context) Report {
	o.logger.Info("starting confluence sync")
	pages := o.source.FetchAllPages(ctx, o.spaceKeys)
	return o.run(ctx, pages)
}

// SyncSpace syncs only pages belonging to one space. It fetches the
// full unfiltered superset and filters locally: less efficient than
// filtering at fetch time, but the run always starts from a consistent
// "all known pages" snapshot. This is intentional.
func (o *Orchestrator) SyncSpace(ctx context.Context, spaceKey string) Report {
	o.logger.Info("starting confluence sync for space", "space_key", spaceKey)
	all := o.source.FetchAllPages(ctx, nil)

	var pages []confluence.Page
	for _, page := range all {
		if page.SpaceKey() == spaceKey {
			pages = append(pages, page)
		}
	}
	return o.run(ctx, pages)
}

// run processes pages sequentially with per-page failure isolation and
// fixed pacing.
func (o *Orchestrator) run(ctx context.Context, pages []confluence.Page) Report {
	start := time.Now()
	report := Report{}
	limiter := rate.NewLimiter(rate.Every(o.interval), 1)

	o.logger.Info("found pages to process", "page_count", len(pages))

	for _, page := range pages {
		processed, err := o.processPage(ctx, page)
		switch {
		case err != nil:
			report.Errors++
			o.logger.Error("error processing page",
				"page_id", page.ID, "title", page.Title, "error", err)
		case !processed:
			report.Skipped++
		default:
			report.Processed++
			if report.Processed%progressEvery == 0 {
				o.logger.Info("sync progress", "processed", report.Processed)
			}
		}

		// Pacing runs once per page regardless of outcome.
		if err := limiter.Wait(ctx); err != nil {
			o.logger.Warn("sync canceled", "error", err)
			break
		}
	}

	report.Duration = time.Since(start)
	o.logger.Info("confluence sync completed",
		"processed", report.Processed,
		"skipped", report.Skipped,
		"errors", report.Errors,
		"duration", report.Duration.String())

	return report
}

// processPage upserts one page. Returns (false, nil) when the page has
// no extractable content and was skipped.
func (o *Orchestrator) processPage(ctx context.Context, page confluence.Page) (bool, error) {
	text, ok := confluence.ExtractText(&page)
	if !ok {
		o.logger.Warn("no content found for page", "page_id", page.ID, "title", page.Title)
		return false, nil
	}

	entry := knowledge.Entry{
		PageID:  page.ID,
		Content: text,
		Metadata: map[string]string{
			"id":        page.ID,
			"title":     page.Title,
			"spaceKey":  page.SpaceKey(),
			"spaceName": page.SpaceName(),
			"type":      knowledge.SourceType,
		},
	}

	existing, err := o.store.FindByPageID(ctx, page.ID)
	switch {
	case errors.Is(err, knowledge.ErrNotFound):
		return true, o.createPage(ctx, page, text, entry)
	case err != nil:
		return false, fmt.Errorf("lookup page: %w", err)
	default:
		return true, o.updatePage(ctx, existing, page, text, entry)
	}
}

func (o *Orchestrator) createPage(ctx context.Context, page confluence.Page, text string, entry knowledge.Entry) error {
	o.logger.Info("processing new page", "page_id", page.ID, "title", page.Title)

	if err := o.index.Add(ctx, entry); err != nil {
		return err
	}

	doc := &knowledge.Document{
		PageID:    page.ID,
		Title:     page.Title,
		Content:   text,
		SpaceKey:  page.SpaceKey(),
		SpaceName: page.SpaceName(),
	}
	if err := o.store.Create(ctx, doc); err != nil {
		return err
	}

	return nil
}

func (o *Orchestrator) updatePage(ctx context.Context, existing *knowledge.Document, page confluence.Page, text string, entry knowledge.Entry) error {
	o.logger.Info("page already exists, updating", "page_id", page.ID, "title", page.Title)

	// Vector entries are replaced delete-then-add, never updated in
	// place, so the index holds exactly one entry with the newest
	// embedding.
	if err := o.index.Delete(ctx, page.ID); err != nil {
		return err
	}
	if err := o.index.Add(ctx, entry); err != nil {
		return err
	}

	existing.Title = page.Title
	existing.Content = text
	existing.SpaceKey = page.SpaceKey()
	existing.SpaceName = page.SpaceName()
	if err := o.store.Update(ctx, existing); err != nil {
		return err
	}

	return nil
}

// DeletePage removes a page from both the vector index and the
// document store. The two deletes share no transaction: if the store
// delete fails after the index delete succeeded, the page becomes
// unsearchable but its record lingers. Logged, not auto-repaired.
func (o *Orchestrator) DeletePage(ctx context.Context, pageID string) error {
	if err := o.index.Delete(ctx, pageID); err != nil {
		return fmt.Errorf("delete vector entry: %w", err)
	}
	if err := o.store.Delete(ctx, pageID); err != nil {
		o.logger.Warn("vector entry deleted but document record remains",
			"page_id", pageID, "error", err)
		return fmt.Errorf("delete document record: %w", err)
	}

	o.logger.Info("deleted page", "page_id", pageID)
	return nil
}
