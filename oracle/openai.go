package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIOptions configures an OpenAI-compatible adjuster.
type OpenAIOptions struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAI calls a chat completions endpoint through openai-go.
type OpenAI struct {
	model   string
	timeout time.Duration
	opts    []option.RequestOption
}

func NewOpenAI(cfg OpenAIOptions) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{model: cfg.Model, timeout: cfg.Timeout, opts: opts}, nil
}

func (o *OpenAI) Provider() string { return "OpenAI" }

func (o *OpenAI) Adjust(ctx context.Context, req Request) (string, error) {
	prompt, err := Prompt(req)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	client := openai.NewClient(o.opts...)
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &Error{
				Kind:       ErrStatus,
				StatusCode: apiErr.StatusCode,
				Message:    fmt.Sprintf("API request failed: %d", apiErr.StatusCode),
				Cause:      err,
			}
		}
		return "", &Error{Kind: ErrTransport, Message: "send request", Cause: err}
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: ErrMalformed, Message: "Invalid response from OpenAI API"}
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &Error{Kind: ErrMalformed, Message: "Invalid response from OpenAI API"}
	}
	return text, nil
}
