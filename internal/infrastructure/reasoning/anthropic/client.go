// Package anthropic implements the decision and perception ports on top of
// the Anthropic Claude Messages API using github.com/anthropics/anthropic-sdk-go.
// All methods exchange a single prompt for a single JSON payload extracted
// from the model's text response.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// MessagesClient captures the subset of the Anthropic SDK client used by the
// adapters. It is satisfied by *sdk.MessageService so callers can pass either
// a real client or a mock in tests.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures the adapters
type Options struct {
	// Model is the Claude model identifier. Use the typed model constants
	// from the SDK or the identifiers in the Anthropic model reference.
	Model string

	// MaxTokens caps the completion length. Zero selects a conservative
	// default.
	MaxTokens int

	// Temperature is passed through when positive
	Temperature float64
}

const defaultMaxTokens = 2048

// Client wraps the Messages client with shared request plumbing
type Client struct {
	msg    MessagesClient
	model  string
	maxTok int
	temp   float64
}

// NewClient builds the shared client from a Messages client and options
func NewClient(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic messages client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model identifier is required")
	}
	maxTok := opts.MaxTokens
	if maxTok <= 0 {
		maxTok = defaultMaxTokens
	}
	return &Client{msg: msg, model: opts.Model, maxTok: maxTok, temp: opts.Temperature}, nil
}

// NewClientFromAPIKey constructs a client using the default SDK HTTP client
func NewClientFromAPIKey(apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewClient(&ac.Messages, opts)
}

// complete sends one system+user exchange and returns the concatenated text
// blocks of the response.
func (c *Client) complete(ctx context.Context, system, user string, extra ...sdk.ContentBlockParamUnion) (string, error) {
	blocks := append([]sdk.ContentBlockParamUnion{sdk.NewTextBlock(user)}, extra...)
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(c.maxTok),
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if c.temp > 0 {
		params.Temperature = sdk.Float(c.temp)
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("messages request failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()
	if text == "" {
		return "", errors.New("empty model response")
	}
	return text, nil
}

// extractJSON pulls the first JSON object out of a model response, tolerating
// markdown fences and surrounding prose.
func extractJSON(s string) (string, error) {
	if i := strings.Index(s, "```json"); i >= 0 {
		rest := s[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			s = rest[:j]
		}
	} else if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			s = rest[:j]
		}
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", errors.New("no JSON payload in model response")
	}

	openCh, closeCh := byte('{'), byte('}')
	if s[start] == '[' {
		openCh, closeCh = '[', ']'
	}
	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case inString:
			if ch == '\\' {
				i++
			} else if ch == '"' {
				inString = false
			}
		case ch == '"':
			inString = true
		case ch == openCh:
			depth++
		case ch == closeCh:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errors.New("unbalanced JSON payload in model response")
}
