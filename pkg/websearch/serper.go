package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultEndpoint = "https://google.serper.dev/search"

// serperResponse mirrors the fields of the Serper API payload we consume
type serperResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position,omitempty"`
	} `json:"organic,omitempty"`
	AnswerBox struct {
		Answer  string `json:"answer,omitempty"`
		Snippet string `json:"snippet,omitempty"`
	} `json:"answerBox,omitempty"`
	KnowledgeGraph struct {
		Title       string `json:"title,omitempty"`
		Description string `json:"description,omitempty"`
	} `json:"knowledgeGraph,omitempty"`
}

// Result is one normalized search hit. Type is "answer" for a direct answer
// box, "knowledge" for a knowledge-graph entry, or "web_result" for an
// organic hit.
type Result struct {
	Type        string `json:"type"`
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	Content     string `json:"content,omitempty"`
	Description string `json:"description,omitempty"`
}

// Results is the normalized outcome of one search
type Results struct {
	Found   bool     `json:"found"`
	Query   string   `json:"query,omitempty"`
	Results []Result `json:"results,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Client calls the Serper API
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	numResults int
	logger     zerolog.Logger
}

// Config holds client settings
type Config struct {
	APIKey     string
	Endpoint   string
	NumResults int
	Timeout    time.Duration
}

// NewClient creates a Serper client. The API key is required.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("serper api key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.NumResults <= 0 {
		cfg.NumResults = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		numResults: cfg.NumResults,
		logger:     logger,
	}, nil
}

// Search runs a web search and normalizes the response. The answer box and
// knowledge graph entries, when present, come before organic results.
func (c *Client) Search(ctx context.Context, query string) (Results, error) {
	if query == "" {
		return Results{}, fmt.Errorf("search query is required")
	}

	body, err := json.Marshal(map[string]interface{}{
		"q":   query,
		"num": c.numResults,
	})
	if err != nil {
		return Results{}, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Results{}, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Results{}, fmt.Errorf("serper request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Results{}, fmt.Errorf("serper api error: %d - %s", resp.StatusCode, string(errBody))
	}

	var data serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Results{}, fmt.Errorf("failed to decode serper response: %w", err)
	}

	var results []Result
	if data.AnswerBox.Answer != "" {
		results = append(results, Result{
			Type:    "answer",
			Content: data.AnswerBox.Answer,
			Snippet: data.AnswerBox.Snippet,
		})
	}
	if data.KnowledgeGraph.Description != "" {
		results = append(results, Result{
			Type:        "knowledge",
			Title:       data.KnowledgeGraph.Title,
			Description: data.KnowledgeGraph.Description,
		})
	}
	for _, hit := range data.Organic {
		results = append(results, Result{
			Type:    "web_result",
			Title:   hit.Title,
			URL:     hit.Link,
			Snippet: hit.Snippet,
		})
	}

	c.logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("Web search completed")

	if len(results) == 0 {
		return Results{
			Found:   false,
			Message: "No web results found for this query",
		}, nil
	}

	return Results{
		Found:   true,
		Query:   query,
		Results: results,
	}, nil
}
