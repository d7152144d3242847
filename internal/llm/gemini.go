// Package llm is the Gemini-backed narration generator.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "weeklybrief/internal/log"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel    = "gemini-2.0-flash"
)

// ErrNoAPIKey is returned when the client has no key configured.
var ErrNoAPIKey = errors.New("GEMINI_API_KEY not set")

// Client calls the Gemini generateContent REST method.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// Options configure a Client. Zero values select the defaults.
type Options struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

func NewClient(opts Options) *Client {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Client{
		apiKey:   opts.APIKey,
		model:    opts.Model,
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		client:   &http.Client{Timeout: opts.Timeout},
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate turns an event listing into narration prose in language.
func (c *Client) Generate(ctx context.Context, listing, language string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	req := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: systemPrompt(language)}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: userPrompt(listing, language)}}}},
		GenerationConfig:  generationConfig{Temperature: 0.7, MaxOutputTokens: 1024},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, url.PathEscape(c.model), url.QueryEscape(c.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// One attempt per run; a failure sends the composer to templates.
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", redactKey(err, c.apiKey))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("gemini API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("gemini API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked the prompt: %s", out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}

	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	appLog.Debug("gemini narration generated", "model", c.model, "chars", len(text))
	return text, nil
}

// redactKey strips the API key from transport errors, which embed the URL.
func redactKey(err error, key string) error {
	esc := url.QueryEscape(key)
	if key == "" || !strings.Contains(err.Error(), esc) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), esc, "REDACTED"))
}
