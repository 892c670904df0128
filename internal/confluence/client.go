// Package confluence provides a client for the Confluence content REST
// API and extraction of plain text from page markup.
package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// PageLimit is the pagination window requested from the content API.
// A response with fewer results than this marks the last page.
const PageLimit = 50

// expandParams asks the API to inline body markup and space metadata,
// avoiding one extra request per page.
const expandParams = "body.storage,space"

// Client is a Confluence REST API client using basic authentication.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Confluence client for the given base URL.
func NewClient(baseURL, username, password string, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("confluence base url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

// FetchAllPages retrieves pages from the content API.
//
// With a non-empty spaceKeys filter, each space is fetched in turn and
// the results concatenated; page IDs are globally unique, so overlap
// across spaces cannot produce duplicate IDs. With an empty filter, all
// pages of type "page" across all spaces are fetched.
//
// Pagination failures terminate iteration early and return whatever was
// accumulated: a partially synced corpus is preferred over none.
func (c *Client) FetchAllPages(ctx context.Context, spaceKeys []string) []Page {
	if len(spaceKeys) > 0 {
		var all []Page
		for _, key := range spaceKeys {
			c.logger.Info("fetching pages from space", "space_key", key)
			all = append(all, c.fetchPaginated(ctx, "space="+url.QueryEscape(key))...)
		}
		return all
	}

	c.logger.Info("fetching pages from all spaces")
	return c.fetchPaginated(ctx, "type=page")
}

// fetchPaginated walks /rest/api/content with an increasing start
// offset until a short batch or a failure.
func (c *Client) fetchPaginated(ctx context.Context, query string) []Page {
	var all []Page
	start := 0

	for {
		reqURL := fmt.Sprintf("%s/rest/api/content?expand=%s&%s&start=%d&limit=%d",
			c.baseURL, expandParams, query, start, PageLimit)

		var resp contentResponse
		if err := c.get(ctx, reqURL, &resp); err != nil {
			c.logger.Error("error fetching pages", "start", start, "error", err)
			break
		}

		c.logger.Debug("fetched page batch", "size", resp.Size, "start", resp.Start)
		all = append(all, resp.Results...)

		// A full batch means there may be more.
		if resp.Size < PageLimit {
			break
		}
		start += PageLimit
	}

	return all
}

// FetchPageByID retrieves a single page with body and space expanded.
// Returns false on any failure rather than propagating the error.
func (c *Client) FetchPageByID(ctx context.Context, pageID string) (*Page, bool) {
	reqURL := fmt.Sprintf("%s/rest/api/content/%s?expand=%s",
		c.baseURL, url.PathEscape(pageID), expandParams)

	var page Page
	if err := c.get(ctx, reqURL, &page); err != nil {
		c.logger.Error("error fetching page", "page_id", pageID, "error", err)
		return nil, false
	}

	c.logger.Debug("fetched page", "page_id", page.ID, "title", page.Title)
	return &page, true
}

// get performs an authenticated GET and decodes the JSON response.
func (c *Client) get(ctx context.Context, reqURL string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("confluence API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
