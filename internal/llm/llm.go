// Package llm is a minimal chat-completions client for the appraisal
// endpoints.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("llm: api key not configured")

// StatusError is a non-2xx answer from the model provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: provider returned HTTP %d", e.Code)
}

// Part is one piece of multimodal message content.
type Part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image by URL or data URL.
type ImageURL struct {
	URL string `json:"url"`
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content []Part `json:"content"`
}

// UserText builds a single-part user message.
func UserText(text string) Message {
	return Message{Role: "user", Content: []Part{{Type: "text", Text: text}}}
}

// UserImage builds a user message carrying text and one image.
func UserImage(text, imageURL string) Message {
	return Message{Role: "user", Content: []Part{
		{Type: "text", Text: text},
		{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
	}}
}

// Client completes a conversation and returns the assistant's text.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// OpenAIConfig configures OpenAI. Zero values get defaults.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// OpenAI talks to an OpenAI-compatible chat completions API.
type OpenAI struct {
	cfg    OpenAIConfig
	client *resty.Client
}

var _ Client = (*OpenAI)(nil)

// NewOpenAI builds the client. client may be nil.
func NewOpenAI(cfg OpenAIConfig, client *resty.Client) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1500
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if client == nil {
		client = resty.New()
	}
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).SetTimeout(cfg.Timeout)
	return &OpenAI{cfg: cfg, client: client}
}

// Configured reports whether an API key is set.
func (o *OpenAI) Configured() bool {
	return o != nil && o.cfg.APIKey != ""
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Complete(ctx context.Context, messages []Message) (string, error) {
	if !o.Configured() {
		return "", ErrNotConfigured
	}

	var out chatResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetAuthToken(o.cfg.APIKey).
		SetBody(chatRequest{
			Model:       o.cfg.Model,
			Messages:    messages,
			MaxTokens:   o.cfg.MaxTokens,
			Temperature: o.cfg.Temperature,
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("llm: request: %w", err)
	}
	if resp.IsError() {
		return "", &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}
