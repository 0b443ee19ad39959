// Package websearch implements the searcher port for the search_web action.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/YoshitsuguKoike/ladas/internal/application/port/output"
)

const (
	defaultAPIURL  = "https://api.perplexity.ai/chat/completions"
	defaultModel   = "llama-3.1-sonar-small-128k-online"
	requestTimeout = 30 * time.Second
)

const systemPrompt = "You are a web search assistant augmenting an automated reasoning agent. " +
	"Provide precise, actionable technical documentation, error code explanations, " +
	"or UI instructions based strictly on your search results. Be as concise as possible."

// PerplexityTool performs web retrieval through the Perplexity chat API
type PerplexityTool struct {
	apiKey string
	apiURL string
	model  string
	client *http.Client
	log    output.Logger
}

var _ output.Searcher = (*PerplexityTool)(nil)

// NewPerplexityTool creates a searcher. An empty API key is permitted; every
// search then fails with a configuration error the orchestrator can log.
func NewPerplexityTool(apiKey string, log output.Logger) *PerplexityTool {
	return &PerplexityTool{
		apiKey: apiKey,
		apiURL: defaultAPIURL,
		model:  defaultModel,
		client: &http.Client{Timeout: requestTimeout},
		log:    log,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// Search executes one query and returns the retrieved context text
func (p *PerplexityTool) Search(ctx context.Context, query string) (string, error) {
	if p.apiKey == "" {
		return "", errors.New("perplexity api key not configured")
	}

	body, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: query},
		},
		MaxTokens:   1500,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search request returned status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", errors.New("search response contained no choices")
	}

	p.log.Info("web search completed for query: %q", query)
	return result.Choices[0].Message.Content, nil
}
