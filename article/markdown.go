package article

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

const frontMatterDelim = "---"

// ParseMarkdown reads an article file: an optional YAML front matter block
// carrying the heading fields, followed by a markdown body. Each top-level
// block of the body becomes one paragraph, separated by a blank line.
//
//	---
//	title: Harbour reopens
//	dateline: CAPE TOWN
//	---
//	First paragraph.
//
//	Second paragraph.
func ParseMarkdown(r io.Reader) (Content, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Content{}, fmt.Errorf("read article: %w", err)
	}

	var content Content
	front, body := splitFrontMatter(raw)
	if len(front) > 0 {
		if err := yaml.Unmarshal(front, &content); err != nil {
			return Content{}, fmt.Errorf("parse front matter: %w", err)
		}
	}
	if paragraphs := markdownParagraphs(body); len(paragraphs) > 0 {
		content.Body = strings.Join(paragraphs, "\n\n")
	}
	return content, nil
}

func splitFrontMatter(raw []byte) ([]byte, []byte) {
	normalized := bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte(frontMatterDelim+"\n")) {
		return nil, normalized
	}
	rest := normalized[len(frontMatterDelim)+1:]
	end := bytes.Index(rest, []byte("\n"+frontMatterDelim))
	if end < 0 {
		return nil, normalized
	}
	front := rest[:end]
	body := rest[end+len(frontMatterDelim)+1:]
	body = bytes.TrimPrefix(body, []byte("\n"))
	return front, body
}

var markdown = goldmark.New()

func markdownParagraphs(source []byte) []string {
	doc := markdown.Parser().Parse(text.NewReader(source))
	var out []string
	for block := doc.FirstChild(); block != nil; block = block.NextSibling() {
		if block.Kind() == ast.KindThematicBreak {
			continue
		}
		if p := inlineText(block, source); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func inlineText(node ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
