package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teamfit/server/internal/agent/model"
	errx "github.com/teamfit/server/internal/core/error"
	logx "github.com/teamfit/server/pkg/logger"
)

const defaultEndpoint = "https://api.tavily.com/search"

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Tavily is the web search capability backed by the Tavily search API.
type Tavily struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewTavily(cfg model.WebSearchConfig) *Tavily {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Tavily{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Search returns the content snippets of the top results. A missing API key
// fails with errx.ErrProvider without any network call.
func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	if t.apiKey == "" {
		return nil, errx.WrapProvider(fmt.Errorf("tavily: %w", errx.ErrMissingCredential))
	}
	if maxResults <= 0 {
		maxResults = 3
	}

	body, err := json.Marshal(searchRequest{Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("tavily: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tavily: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errx.WrapProvider(fmt.Errorf("tavily: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logx.Warn().
			Int("status", resp.StatusCode).
			Str("body", strings.TrimSpace(string(snippet))).
			Msg("Tavily search rejected")
		return nil, errx.WrapProvider(fmt.Errorf("tavily: unexpected status %d", resp.StatusCode))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errx.WrapProvider(fmt.Errorf("tavily: decode response: %w", err))
	}

	snippets := make([]string, 0, len(out.Results))
	for _, r := range out.Results {
		if c := strings.TrimSpace(r.Content); c != "" {
			snippets = append(snippets, c)
		}
	}
	return snippets, nil
}

var _ model.WebSearcher = (*Tavily)(nil)
