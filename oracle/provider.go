package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Adjuster is implemented by every client in this package.
type Adjuster interface {
	Adjust(ctx context.Context, req Request) (string, error)
}

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderMock      = "mock"
)

// Settings selects and configures a provider.
type Settings struct {
	Provider  string
	APIKey    string
	Model     string
	MaxTokens int
	// Endpoint is the Anthropic messages URL.
	Endpoint string
	// BaseURL is the OpenAI-compatible API root.
	BaseURL string
	Timeout time.Duration
}

// New builds the adjuster for s.Provider. An empty provider means Anthropic.
func New(s Settings) (Adjuster, error) {
	switch strings.ToLower(s.Provider) {
	case "", ProviderAnthropic:
		return NewAnthropic(AnthropicOptions{
			APIKey:    s.APIKey,
			Model:     s.Model,
			MaxTokens: s.MaxTokens,
			Endpoint:  s.Endpoint,
			Timeout:   s.Timeout,
		}), nil
	case ProviderOpenAI:
		return NewOpenAI(OpenAIOptions{
			APIKey:  s.APIKey,
			Model:   s.Model,
			BaseURL: s.BaseURL,
			Timeout: s.Timeout,
		})
	case ProviderMock:
		return Mock{}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", s.Provider)
	}
}

var (
	_ Adjuster = (*Anthropic)(nil)
	_ Adjuster = (*OpenAI)(nil)
	_ Adjuster = Mock{}
)
