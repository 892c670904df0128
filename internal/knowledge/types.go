package knowledge

import "time"

// VectorDimension is the embedding width of the page_vectors schema.
// The configured embedder model must produce (or truncate to) vectors
// of this size.
const VectorDimension = 768

// SourceType tags every vector entry written by the ingestion pipeline.
const SourceType = "confluence-page"

// Document is the durable record for one Confluence page.
// PageID is the natural key: exactly one Document exists per page ID.
type Document struct {
	ID        int64
	PageID    string
	Title     string
	Content   string
	SpaceKey  string
	SpaceName string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry is what the vector index stores for one page: the text that was
// embedded plus the metadata bag surfaced in search results.
type Entry struct {
	PageID   string
	Content  string
	Metadata map[string]string
}

// Result is a single search hit with its cosine similarity score (0-1).
type Result struct {
	Entry      Entry
	Similarity float32
}

// SearchOption configures similarity search using the functional
// options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK      int32
	threshold float32
	timeout   time.Duration
}

// WithTopK sets the maximum number of results to return. Default 5.
func WithTopK(k int32) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithThreshold sets the minimum similarity score for a hit to be
// returned. Default 0.5.
func WithThreshold(t float32) SearchOption {
	return func(c *searchConfig) {
		c.threshold = t
	}
}

// WithTimeout bounds the search query duration. Default 10s.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:      5,
		threshold: 0.5,
		timeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
