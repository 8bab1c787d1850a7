package oracle

import (
	"context"
	"strings"
)

// Mock trims or pads the text to exactly the target word count without any
// network call. Paragraph breaks are kept; padding goes into a new final
// paragraph.
type Mock struct {
	// Filler is the padding word, "more" when empty.
	Filler string
}

func (m Mock) Provider() string { return "Mock" }

func (m Mock) Adjust(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Kind: ErrTransport, Message: "mock adjust", Cause: err}
	}
	target := max(req.TargetWords, 1)

	var out []string
	remaining := target
	for _, para := range strings.Split(req.Text, "\n\n") {
		if remaining == 0 {
			break
		}
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		if len(words) > remaining {
			words = words[:remaining]
		}
		out = append(out, strings.Join(words, " "))
		remaining -= len(words)
	}
	if remaining > 0 {
		filler := m.Filler
		if filler == "" {
			filler = "more"
		}
		out = append(out, strings.TrimSpace(strings.Repeat(filler+" ", remaining)))
	}
	return strings.Join(out, "\n\n"), nil
}
