// Package completion talks to an OpenAI-compatible chat completion API.
package completion

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1/"
	DefaultModel   = "llama-3.1-8b-instant"
	DefaultTimeout = 45 * time.Second
)

var (
	errMissingAPIKey = errors.New("API key is missing")
	errNoChoices     = errors.New("response has no choices")
)

// Config holds the provider settings. Empty fields fall back to the defaults.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
	// HTTPClient is optional.
	HTTPClient *http.Client
}

// Client sends a single user message per call and makes exactly one attempt.
type Client struct {
	client      openai.Client
	model       string
	temperature float64
	hasAPIKey   bool
}

// New creates a Client. A missing API key is not an error here; Complete
// reports it as KindConfig.
func New(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	apiKey := strings.TrimSpace(cfg.APIKey)

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: cfg.Temperature,
		hasAPIKey:   apiKey != "",
	}
}

// Model returns the model name sent with every request.
func (c *Client) Model() string {
	return c.model
}

// Complete returns the first choice's content trimmed of surrounding
// whitespace. Any failure is returned as *Error.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.hasAPIKey {
		return "", &Error{Kind: KindConfig, Err: errMissingAPIKey}
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", classify(err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", &Error{Kind: KindMalformed, Err: errNoChoices}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
