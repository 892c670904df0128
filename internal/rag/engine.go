// Package rag answers user questions grounded in the Confluence
// knowledge base: similarity search for context, LLM generation for
// the answer, and source-page citations either way.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/sombra-labs/confluence-rag/internal/knowledge"
)

const (
	// DefaultTopK is the similarity search result cap.
	DefaultTopK = 5

	// DefaultThreshold is the minimum similarity for a hit to count
	// as relevant context.
	DefaultThreshold = 0.5

	// conversationID scopes generation to the single fixed
	// conversation this service supports.
	conversationID = "001"

	// streamTimeout is the hard cap on a streaming answer, bounding
	// how long the generation subscription is held.
	streamTimeout = 30 * time.Second
)

// degradedAnswer is returned to the user when search or generation
// fails; query-time failures never surface as protocol errors.
const degradedAnswer = "I'm sorry, but I encountered an error while processing your question. Please try again later."

// systemPrompt pins the assistant persona and grounding rules.
const systemPrompt = `You are a helpful assistant for Sombra company employees that answers questions based on Confluence documentation.
Use the provided context from Confluence pages to answer the user's question.

Guidelines:
- If the context doesn't contain enough information to answer the question, say so
- Be concise but comprehensive in your response
- Include relevant page titles or spaces when referencing information
- If multiple documents contain relevant information, synthesize them appropriately`

// promptTemplate frames the retrieved context for the model.
const promptTemplate = `%s

Context information is below.

---------------------
%s
---------------------

Given the context information, answer the query.

Follow these rules:

1. If the answer is not in the context, just say that you don't know.
2. Avoid statements like "Based on the context..." or "The provided information...".`

// Searcher is the similarity search capability the engine consumes.
// Implemented by knowledge.Index.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// SourcePage is a citation for one retrieved page.
type SourcePage struct {
	PageID    string `json:"pageId"`
	Title     string `json:"title"`
	SpaceKey  string `json:"spaceKey"`
	SpaceName string `json:"spaceName"`
	URL       string `json:"url"`
}

// Answer is a complete non-streaming response.
type Answer struct {
	Text    string
	Sources []SourcePage
}

// Config holds the engine's generation settings.
type Config struct {
	// ModelName is the genkit model to generate answers with.
	ModelName string

	// ConfluenceBaseURL derives citation URLs. Empty leaves URLs empty.
	ConfluenceBaseURL string
}

// Engine is the retrieval-augmented query engine.
// Stateless apart from its collaborators; safe for concurrent use.
type Engine struct {
	g        *genkit.Genkit
	searcher Searcher
	cfg      Config
	logger   *slog.Logger
}

// New creates a query engine.
func New(g *genkit.Genkit, searcher Searcher, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{g: g, searcher: searcher, cfg: cfg, logger: logger}
}

// Ask answers a question with cited source pages. The caller validates
// that the question is non-empty; this method assumes it.
//
// Search or generation failures degrade to a user-safe answer string
// with no sources; they are never returned as errors.
func (e *Engine) Ask(ctx context.Context, question string) *Answer {
	e.logger.Info("processing chat question",
		"conversation_id", conversationID, "question", question)

	results, err := e.searcher.Search(ctx, question,
		knowledge.WithTopK(DefaultTopK), knowledge.WithThreshold(DefaultThreshold))
	if err != nil {
		e.logger.Error("error searching knowledge base", "error", err)
		return &Answer{Text: degradedAnswer, Sources: []SourcePage{}}
	}

	sources := e.buildSources(results)

	text, err := e.generate(ctx, question, results, nil)
	if err != nil {
		e.logger.Error("error generating answer", "error", err)
		return &Answer{Text: degradedAnswer, Sources: []SourcePage{}}
	}

	e.logger.Info("successfully generated response", "question", question)
	return &Answer{Text: text, Sources: sources}
}

// RelevantTitles returns the titles of pages matching the query,
// without generation. Internal failures yield an empty list.
func (e *Engine) RelevantTitles(ctx context.Context, query string, opts ...knowledge.SearchOption) []string {
	searchOpts := append([]knowledge.SearchOption{
		knowledge.WithTopK(DefaultTopK), knowledge.WithThreshold(DefaultThreshold),
	}, opts...)

	results, err := e.searcher.Search(ctx, query, searchOpts...)
	if err != nil {
		e.logger.Error("error retrieving document titles", "error", err)
		return []string{}
	}

	titles := make([]string, 0, len(results))
	for _, r := range results {
		title := r.Entry.Metadata["title"]
		if title == "" {
			title = "Unknown"
		}
		titles = append(titles, title)
	}
	return titles
}

// generate runs the grounded generation. When onChunk is non-nil each
// non-empty text chunk is forwarded to it as it arrives.
func (e *Engine) generate(ctx context.Context, question string, results []knowledge.Result, onChunk func(context.Context, string) error) (string, error) {
	contents := make([]string, 0, len(results))
	for _, r := range results {
		contents = append(contents, r.Entry.Content)
	}
	prompt := fmt.Sprintf(promptTemplate, question, strings.Join(contents, "\n\n"))

	opts := []ai.GenerateOption{
		ai.WithModelName(e.cfg.ModelName),
		ai.WithSystem(systemPrompt),
		ai.WithPrompt(prompt),
	}

	var full strings.Builder
	if onChunk != nil {
		opts = append(opts, ai.WithStreaming(func(cctx context.Context, chunk *ai.ModelResponseChunk) error {
			if chunk == nil {
				return nil
			}
			for _, part := range chunk.Content {
				if part.Text == "" {
					continue
				}
				full.WriteString(part.Text)
				if err := onChunk(cctx, part.Text); err != nil {
					return err
				}
			}
			return nil
		}))
	}

	resp, err := genkit.Generate(ctx, e.g, opts...)
	if err != nil {
		return "", err
	}

	if onChunk != nil {
		return full.String(), nil
	}
	return resp.Text(), nil
}

// buildSources converts search hits into citations.
func (e *Engine) buildSources(results []knowledge.Result) []SourcePage {
	sources := make([]SourcePage, 0, len(results))
	for _, r := range results {
		meta := r.Entry.Metadata
		pageID := meta["id"]

		title := meta["title"]
		if title == "" {
			title = "Unknown"
		}

		url := ""
		if e.cfg.ConfluenceBaseURL != "" && pageID != "" {
			url = e.cfg.ConfluenceBaseURL + "/pages/viewpage.action?pageId=" + pageID
		}

		sources = append(sources, SourcePage{
			PageID:    pageID,
			Title:     title,
			SpaceKey:  meta["spaceKey"],
			SpaceName: meta["spaceName"],
			URL:       url,
		})
	}
	return sources
}
