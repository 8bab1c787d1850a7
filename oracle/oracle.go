// Package oracle rewrites article bodies towards a target word count using a
// language model.
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/sagarsiwach/sanews-autofit/binding"
)

// DefaultTimeout bounds a single rewrite call.
const DefaultTimeout = 60 * time.Second

// Request describes one rewrite.
type Request struct {
	Text            string
	CurrentWords    int
	TargetWords     int
	NeedsCondensing bool
}

// Difference is the absolute distance between current and target counts.
func (r Request) Difference() int {
	if d := r.CurrentWords - r.TargetWords; d > 0 {
		return d
	}
	return r.TargetWords - r.CurrentWords
}

// ErrorKind tells transport, status and response failures apart.
type ErrorKind string

const (
	ErrTransport ErrorKind = "transport"
	ErrStatus    ErrorKind = "status"
	ErrMalformed ErrorKind = "malformed"
)

// Error is returned by every adjuster in this package.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	// Type is the provider error type, e.g. "authentication_error".
	Type    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

const condenseTemplate = `You are editing a newspaper article that is slightly too long to fit its layout.

ORIGINAL ARTICLE:
${content}

CURRENT WORD COUNT: ${currentWords} words
TARGET WORD COUNT: ${targetWords} words (reduce by ${difference} words)

REQUIREMENTS:
1. Preserve the opening paragraph exactly
2. Maintain all key facts and quotes
3. End with a complete, natural-sounding sentence
4. Preserve journalistic tone and quality
5. The final paragraph must feel like a proper conclusion

Return ONLY the adjusted article text, no explanations.`

const expandTemplate = `You are editing a newspaper article that needs slightly more content to fill its layout.

ORIGINAL ARTICLE:
${content}

CURRENT WORD COUNT: ${currentWords} words
TARGET WORD COUNT: ${targetWords} words (add ${difference} words)

REQUIREMENTS:
1. Preserve the opening paragraph exactly
2. Add relevant context or elaboration
3. Do not fabricate facts or quotes
4. Maintain journalistic tone and quality
5. New content should integrate naturally

Return ONLY the adjusted article text, no explanations.`

// Prompt renders the user message for req.
func Prompt(req Request) (string, error) {
	tpl := expandTemplate
	if req.NeedsCondensing {
		tpl = condenseTemplate
	}
	return binding.Render(tpl, map[string]any{
		"content":      req.Text,
		"currentWords": req.CurrentWords,
		"targetWords":  req.TargetWords,
		"difference":   req.Difference(),
	})
}

// withTimeout applies d to ctx, falling back to DefaultTimeout.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
