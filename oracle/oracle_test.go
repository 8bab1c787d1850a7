package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptSelectsWording(t *testing.T) {
	t.Parallel()

	condense, err := Prompt(Request{Text: "CAPE TOWN harbour", CurrentWords: 1000, TargetWords: 833, NeedsCondensing: true})
	require.NoError(t, err)
	assert.Contains(t, condense, "slightly too long to fit its layout")
	assert.Contains(t, condense, "ORIGINAL ARTICLE:\nCAPE TOWN harbour\n")
	assert.Contains(t, condense, "CURRENT WORD COUNT: 1000 words")
	assert.Contains(t, condense, "TARGET WORD COUNT: 833 words (reduce by 167 words)")
	assert.Contains(t, condense, "5. The final paragraph must feel like a proper conclusion")

	expand, err := Prompt(Request{Text: "x", CurrentWords: 100, TargetWords: 120})
	require.NoError(t, err)
	assert.Contains(t, expand, "needs slightly more content to fill its layout")
	assert.Contains(t, expand, "(add 20 words)")
	assert.Contains(t, expand, "3. Do not fabricate facts or quotes")
	assert.NotContains(t, expand, "${")
}

func TestPromptDoesNotExpandArticleText(t *testing.T) {
	t.Parallel()

	p, err := Prompt(Request{Text: "costs ${targetWords} rand", NeedsCondensing: true})
	require.NoError(t, err)
	assert.Contains(t, p, "costs ${targetWords} rand")
}

func newAnthropicServer(t *testing.T, handler http.HandlerFunc) *Anthropic {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAnthropic(AnthropicOptions{APIKey: "sk-test", Endpoint: srv.URL, HTTPClient: srv.Client()})
}

func TestAnthropicAdjust(t *testing.T) {
	t.Parallel()

	var got anthropicRequest
	a := newAnthropicServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"  Shorter article.\n"}]}`)
	})

	out, err := a.Adjust(context.Background(), Request{Text: "Long article.", CurrentWords: 2, TargetWords: 1, NeedsCondensing: true})
	require.NoError(t, err)
	assert.Equal(t, "Shorter article.", out)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "Long article.")
}

func TestAnthropicStatusError(t *testing.T) {
	t.Parallel()

	a := newAnthropicServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	})

	_, err := a.Adjust(context.Background(), Request{Text: "x", NeedsCondensing: true})
	var oerr *Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, ErrStatus, oerr.Kind)
	assert.Equal(t, http.StatusUnauthorized, oerr.StatusCode)
	assert.Equal(t, "authentication_error", oerr.Type)
	assert.Equal(t, "API request failed: 401 - invalid x-api-key", err.Error())
}

func TestAnthropicStatusErrorRawBody(t *testing.T) {
	t.Parallel()

	a := newAnthropicServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := a.Adjust(context.Background(), Request{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, "API request failed: 502 - upstream down", err.Error())
}

func TestAnthropicMalformedResponses(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`{"content":[]}`, `{"content":[{"type":"text","text":"   "}]}`, `not json`} {
		a := newAnthropicServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		})
		_, err := a.Adjust(context.Background(), Request{Text: "x"})
		var oerr *Error
		require.ErrorAs(t, err, &oerr, "body %q", body)
		assert.Equal(t, ErrMalformed, oerr.Kind)
		assert.True(t, strings.HasPrefix(err.Error(), "Invalid response from Claude API"))
	}
}

func TestAnthropicTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	a := NewAnthropic(AnthropicOptions{Endpoint: srv.URL, HTTPClient: srv.Client(), Timeout: 50 * time.Millisecond})
	_, err := a.Adjust(context.Background(), Request{Text: "x"})
	var oerr *Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, ErrTransport, oerr.Kind)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestOpenAIAdjust(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-openai", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test",`+
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":" Expanded article. "}}]}`)
	}))
	t.Cleanup(srv.Close)

	o, err := NewOpenAI(OpenAIOptions{APIKey: "sk-openai", Model: "gpt-test", BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	out, err := o.Adjust(context.Background(), Request{Text: "Article.", CurrentWords: 1, TargetWords: 3})
	require.NoError(t, err)
	assert.Equal(t, "Expanded article.", out)
}

func TestOpenAIStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	}))
	t.Cleanup(srv.Close)

	o, err := NewOpenAI(OpenAIOptions{APIKey: "k", Model: "m", BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	_, err = o.Adjust(context.Background(), Request{Text: "x"})
	var oerr *Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, ErrStatus, oerr.Kind)
	assert.Equal(t, http.StatusBadRequest, oerr.StatusCode)
}

func TestNewOpenAIValidates(t *testing.T) {
	t.Parallel()

	_, err := NewOpenAI(OpenAIOptions{Model: "m"})
	assert.Error(t, err)
	_, err = NewOpenAI(OpenAIOptions{APIKey: "k"})
	assert.Error(t, err)
}

func TestMockHitsTarget(t *testing.T) {
	t.Parallel()

	m := Mock{}
	out, err := m.Adjust(context.Background(), Request{Text: "one two three\n\nfour five six", TargetWords: 4})
	require.NoError(t, err)
	assert.Equal(t, "one two three\n\nfour", out)

	out, err = m.Adjust(context.Background(), Request{Text: "one two", TargetWords: 5})
	require.NoError(t, err)
	assert.Equal(t, "one two\n\nmore more more", out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Adjust(ctx, Request{Text: "x", TargetWords: 1})
	assert.Error(t, err)
}
