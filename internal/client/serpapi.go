package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/travel-planner/internal/models"
)

// SearchProvider executes a web query and returns relevance-ranked results.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// SerpAPIClient queries Google through SerpAPI.
type SerpAPIClient struct {
	apiKey  string
	apiURL  string
	num     int
	timeout time.Duration
	client  *http.Client
	retry   RetryPolicy
	breaker Breaker
}

// SerpAPIConfig configures NewSerpAPIClient.
type SerpAPIConfig struct {
	APIKey          string
	URL             string
	Timeout         time.Duration
	ResultsPerQuery int
	Retry           RetryPolicy
	Breaker         Breaker
}

// NewSerpAPIClient builds a search client. An empty key is rejected.
func NewSerpAPIClient(cfg SerpAPIConfig) (*SerpAPIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: SerpAPI key is required", ErrInvalidAPIKey)
	}
	if cfg.URL == "" {
		cfg.URL = "https://serpapi.com/search.json"
	}
	if cfg.ResultsPerQuery <= 0 {
		cfg.ResultsPerQuery = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SerpAPIClient{
		apiKey:  cfg.APIKey,
		apiURL:  cfg.URL,
		num:     cfg.ResultsPerQuery,
		timeout: cfg.Timeout,
		client:  &http.Client{Timeout: cfg.Timeout},
		retry:   cfg.Retry,
		breaker: cfg.Breaker,
	}, nil
}

type serpAPIResponse struct {
	OrganicResults []struct {
		Position int    `json:"position"`
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
	} `json:"organic_results"`
	Error string `json:"error"`
}

// Search runs query against Google and returns the organic results in rank order.
func (c *SerpAPIClient) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	var results []models.SearchResult
	err := retry(ctx, UpstreamSerpAPI, c.retry, c.breaker, func(ctx context.Context) error {
		var err error
		results, err = c.callAPI(ctx, query)
		return err
	})
	return results, err
}

func (c *SerpAPIClient) callAPI(ctx context.Context, query string) ([]models.SearchResult, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, query)
	if err != nil {
		observe(UpstreamSerpAPI, "error", start)
		return nil, fmt.Errorf("build request: %w", err)
	}
	setCorrelationHeader(ctx, req)

	resp, err := c.client.Do(req)
	if err != nil {
		observe(UpstreamSerpAPI, "error", start)
		return nil, wrapTransportError(err)
	}
	defer resp.Body.Close()
	observe(UpstreamSerpAPI, statusLabel(resp.StatusCode), start)

	if err := checkStatus(resp, nil); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	var payload serpAPIResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(payload.OrganicResults) == 0 {
		if payload.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoResults, payload.Error)
		}
		return nil, fmt.Errorf("%w: %q", ErrNoResults, query)
	}

	results := make([]models.SearchResult, 0, len(payload.OrganicResults))
	for i, r := range payload.OrganicResults {
		pos := r.Position
		if pos == 0 {
			pos = i + 1
		}
		results = append(results, models.SearchResult{Position: pos, Title: r.Title, Link: r.Link, Snippet: r.Snippet})
	}
	return results, nil
}

func (c *SerpAPIClient) buildRequest(ctx context.Context, query string) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("num", strconv.Itoa(c.num))
	params.Set("api_key", c.apiKey)
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
