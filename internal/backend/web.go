package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/nexus/internal/models"
)

// DefaultWebTimeout is the HTTP client timeout; the dispatcher deadline usually fires first.
const DefaultWebTimeout = 30 * time.Second

// ErrMissingAPIKey is returned when the web backend is enabled without credentials.
var ErrMissingAPIKey = errors.New("web search api key is not set")

// Web queries a JSON web-search API restricted to official legal domains.
type Web struct {
	endpoint       string
	apiKey         string
	searchDepth    string
	includeDomains []string
	client         *http.Client
	limiter        *RateLimiter
}

// WebOption configures a Web adapter.
type WebOption func(*Web)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) WebOption {
	return func(w *Web) { w.client = c }
}

// WithIncludeDomains restricts results to the given domains.
func WithIncludeDomains(domains []string) WebOption {
	return func(w *Web) { w.includeDomains = domains }
}

// WithSearchDepth sets the provider search depth ("basic" or "advanced").
func WithSearchDepth(depth string) WebOption {
	return func(w *Web) {
		if depth != "" {
			w.searchDepth = depth
		}
	}
}

// WithRateLimiter sets the limiter shared by all requests of this adapter.
func WithRateLimiter(l *RateLimiter) WebOption {
	return func(w *Web) { w.limiter = l }
}

// NewWeb creates the web adapter for endpoint, authenticated with apiKey.
func NewWeb(endpoint, apiKey string, opts ...WebOption) (*Web, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	w := &Web{
		endpoint:    endpoint,
		apiKey:      apiKey,
		searchDepth: "basic",
		client:      &http.Client{Timeout: DefaultWebTimeout},
		limiter:     NewRateLimiter(0, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Name implements Adapter.
func (w *Web) Name() string { return "web" }

// SourceType implements Adapter.
func (w *Web) SourceType() models.SourceType { return models.SourceTypeWeb }

type webRequest struct {
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	SearchDepth    string   `json:"search_depth"`
}

type webResponse struct {
	Results []webResult `json:"results"`
}

type webResult struct {
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Content    string   `json:"content"`
	RawContent string   `json:"raw_content"`
	Score      *float64 `json:"score"`
}

// Search implements Adapter. The doc type filter does not apply to web pages:
// they carry no authority class and are returned unfiltered.
func (w *Web) Search(ctx context.Context, query string, _ models.Filter, limit int) ([]models.RawResult, error) {
	body, err := json.Marshal(webRequest{
		Query:          query,
		MaxResults:     limit,
		IncludeDomains: w.includeDomains,
		SearchDepth:    w.searchDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("encode web request: %w", err)
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build web request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	defer resp.Body.Close()

	if err := w.limiter.CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("web search: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded webResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode web response: %w", err)
	}

	raws := make([]models.RawResult, 0, len(decoded.Results))
	for i, r := range decoded.Results {
		// the URL is the only key stable across queries
		id := r.URL
		if id == "" {
			id = fmt.Sprintf("web-%d", i+1)
		}
		raw := models.RawResult{
			ID:         id,
			URI:        r.URL,
			Score:      r.Score,
			SourceType: models.SourceTypeWeb,
			Struct: map[string]any{
				"title": r.Title,
				"uri":   r.URL,
			},
		}
		if r.Content != "" {
			raw.Struct["content"] = r.Content
		}
		if r.RawContent != "" {
			raw.Struct["body"] = r.RawContent
		}
		raws = append(raws, raw)
	}
	return capResults(raws, limit), nil
}
