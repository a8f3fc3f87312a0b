package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// HTTPSearcher queries one search index per metadata source over the
// service's REST API.
type HTTPSearcher struct {
	endpoint string
	apiKey   string
	indexes  map[string]string // source -> index name
	client   *http.Client
	log      *slog.Logger
}

// NewHTTPSearcher builds a searcher over the given endpoint. indexes maps
// each source ("field", "table", "relationship") to an index name; sources
// without an index are skipped.
func NewHTTPSearcher(endpoint, apiKey string, indexes map[string]string, log *slog.Logger) *HTTPSearcher {
	return &HTTPSearcher{
		endpoint: endpoint,
		apiKey:   apiKey,
		indexes:  indexes,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

type searchRequest struct {
	Search string `json:"search"`
	Top    int    `json:"top"`
}

type searchResponse struct {
	Value []map[string]any `json:"value"`
}

// Search queries each configured index. A failing index is logged and
// contributes an empty list; generation still proceeds on partial
// grounding.
func (s *HTTPSearcher) Search(ctx context.Context, query string, topK int) (Results, error) {
	out := Results{}
	for _, source := range Sources {
		out[source] = nil
		index, ok := s.indexes[source]
		if !ok || index == "" {
			continue
		}
		docs, err := s.queryIndex(ctx, index, query, topK)
		if err != nil {
			s.log.Error("metadata search failed", "index", index, "error", err)
			continue
		}
		out[source] = docs
	}
	return out, nil
}

func (s *HTTPSearcher) queryIndex(ctx context.Context, index, query string, topK int) ([]map[string]any, error) {
	body, err := json.Marshal(searchRequest{Search: query, Top: topK})
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/indexes/%s/docs/search", s.endpoint, url.PathEscape(index))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return parsed.Value, nil
}
