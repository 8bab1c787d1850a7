package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultAnthropicURL = "https://api.anthropic.com/v1/messages"
	DefaultModel        = "claude-sonnet-4-20250514"
	DefaultMaxTokens    = 4096
	anthropicVersion    = "2023-06-01"
)

// AnthropicOptions configures an Anthropic adjuster. Empty fields use the
// package defaults.
type AnthropicOptions struct {
	APIKey     string
	Model      string
	MaxTokens  int
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Anthropic calls the Anthropic Messages API.
type Anthropic struct {
	httpClient *http.Client
	apiKey     string
	model      string
	maxTokens  int
	endpoint   string
	timeout    time.Duration
}

func NewAnthropic(opts AnthropicOptions) *Anthropic {
	a := &Anthropic{
		httpClient: opts.HTTPClient,
		apiKey:     opts.APIKey,
		model:      opts.Model,
		maxTokens:  opts.MaxTokens,
		endpoint:   opts.Endpoint,
		timeout:    opts.Timeout,
	}
	if a.httpClient == nil {
		a.httpClient = http.DefaultClient
	}
	if a.model == "" {
		a.model = DefaultModel
	}
	if a.maxTokens <= 0 {
		a.maxTokens = DefaultMaxTokens
	}
	if a.endpoint == "" {
		a.endpoint = DefaultAnthropicURL
	}
	return a
}

func (a *Anthropic) Provider() string { return "Claude" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Adjust sends one rewrite request and returns the trimmed text of the first
// content block.
func (a *Anthropic) Adjust(ctx context.Context, req Request) (string, error) {
	prompt, err := Prompt(req)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	body, err := json.Marshal(anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: ErrTransport, Message: "create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", &Error{Kind: ErrTransport, Message: "send request", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", readStatusError(resp)
	}

	var wire anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", &Error{Kind: ErrMalformed, Message: "Invalid response from Claude API", Cause: err}
	}
	if len(wire.Content) == 0 {
		return "", &Error{Kind: ErrMalformed, Message: "Invalid response from Claude API"}
	}
	text := strings.TrimSpace(wire.Content[0].Text)
	if text == "" {
		return "", &Error{Kind: ErrMalformed, Message: "Invalid response from Claude API"}
	}
	return text, nil
}

// readStatusError turns a non-2xx response into an *Error. Provider error
// bodies of the form {"error":{"type":..,"message":..}} are unpacked.
func readStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wire struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	detail := strings.TrimSpace(string(raw))
	e := &Error{Kind: ErrStatus, StatusCode: resp.StatusCode}
	if json.Unmarshal(raw, &wire) == nil && wire.Error.Message != "" {
		e.Type = wire.Error.Type
		detail = wire.Error.Message
	}
	e.Message = fmt.Sprintf("API request failed: %d - %s", resp.StatusCode, detail)
	return e
}
