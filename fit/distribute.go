package fit

import (
	"math"
	"strings"
)

// ParagraphSeparator splits paragraphs in article bodies and column texts.
const ParagraphSeparator = "\n\n"

// Distribute spreads the dateline and body over columnCount columns. The
// dateline becomes the first paragraph; paragraphs are handed out in
// contiguous blocks of ceil(paragraphs/columns), so trailing columns may be
// empty. It returns nil when columnCount is not positive.
func Distribute(dateline, body string, columnCount int) []string {
	if columnCount <= 0 {
		return nil
	}
	paragraphs := strings.Split(dateline+ParagraphSeparator+body, ParagraphSeparator)
	perColumn := (len(paragraphs) + columnCount - 1) / columnCount

	columns := make([]string, columnCount)
	for i := range columns {
		start := i * perColumn
		if start >= len(paragraphs) {
			break
		}
		end := min(start+perColumn, len(paragraphs))
		columns[i] = strings.Join(paragraphs[start:end], ParagraphSeparator)
	}
	return columns
}

// WordCount counts whitespace separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// TargetWords scales currentWords by height/(height+overflow), treating word
// count as proportional to rendered height. When the ratio is undefined the
// current count is returned unchanged.
func TargetWords(currentWords int, height, overflow float64) int {
	denom := height + overflow
	if denom <= 0 {
		return currentWords
	}
	ratio := height / denom
	return int(math.Floor(float64(currentWords) * ratio))
}
