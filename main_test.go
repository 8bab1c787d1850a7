package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarsiwach/sanews-autofit/article"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// testConfig writes a config that keeps credentials inside the test's temp dir.
func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return writeTemp(t, dir, "sanews.toml", `
[oracle]
provider = "mock"

[paths]
credential_dir = "`+filepath.ToSlash(filepath.Join(dir, "credentials"))+`"
`)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadArticleFormats(t *testing.T) {
	dir := t.TempDir()
	want := article.Content{Title: "Harbour reopens", Dateline: "CAPE TOWN", Body: "One.\n\nTwo."}

	md := writeTemp(t, dir, "a.md", "---\ntitle: Harbour reopens\ndateline: CAPE TOWN\n---\nOne.\n\nTwo.\n")
	js := writeTemp(t, dir, "a.json", `{"title":"Harbour reopens","dateline":"CAPE TOWN","body":"One.\n\nTwo."}`)
	ym := writeTemp(t, dir, "a.yaml", "title: Harbour reopens\ndateline: CAPE TOWN\nbody: \"One.\\n\\nTwo.\"\n")

	for _, path := range []string{md, js, ym} {
		got, err := loadArticle(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := loadArticle(filepath.Join(dir, "missing.md"))
	assert.Error(t, err)
}

func TestDetectSampleTemplate(t *testing.T) {
	out, err := execute(t, "--config", testConfig(t), "detect")
	require.NoError(t, err)

	var summary article.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, article.Summary{
		HasHeadline: true, HasTitle: true, HasSubtitle: true,
		HasSource: true, HasURL: true, ColumnCount: 3,
	}, summary)
}

func TestDetectUnknownFrame(t *testing.T) {
	_, err := execute(t, "--config", testConfig(t), "detect", "--frame", "Nope")
	assert.Error(t, err)
}

func TestKeyLifecycle(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, "--config", cfg, "key", "status")
	require.NoError(t, err)
	assert.Equal(t, "missing\n", out)

	_, err = execute(t, "--config", cfg, "key", "set", "  sk-test  ")
	require.NoError(t, err)
	out, err = execute(t, "--config", cfg, "key", "status")
	require.NoError(t, err)
	assert.Equal(t, "stored\n", out)

	_, err = execute(t, "--config", cfg, "key", "clear")
	require.NoError(t, err)
	out, err = execute(t, "--config", cfg, "key", "status")
	require.NoError(t, err)
	assert.Equal(t, "missing\n", out)

	_, err = execute(t, "--config", cfg, "key", "set")
	assert.Error(t, err, "empty stdin must not store a key")
}

func TestAutoFitRequiresKey(t *testing.T) {
	_, err := execute(t, "--config", testConfig(t), "autofit", "--article", "examples/harbour.md")
	assert.Error(t, err)
}

func TestAutoFitSampleArticle(t *testing.T) {
	cfg := testConfig(t)
	outDir := t.TempDir()
	bodyPath := filepath.Join(outDir, "body.txt")
	pdfPath := filepath.Join(outDir, "article.pdf")
	debugPath := filepath.Join(outDir, "article.json")

	_, err := execute(t, "--config", cfg, "key", "set", "sk-test")
	require.NoError(t, err)

	_, err = execute(t, "--config", cfg, "autofit",
		"--article", "examples/harbour.md",
		"--body-out", bodyPath, "--out", pdfPath, "--debug", debugPath)
	require.NoError(t, err)

	// the sample fits on the first measurement, so the body is unchanged
	want, err := loadArticle("examples/harbour.md")
	require.NoError(t, err)
	body, err := os.ReadFile(bodyPath)
	require.NoError(t, err)
	assert.Equal(t, want.Body+"\n", string(body))

	pdf, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	raw, err := os.ReadFile(debugPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "CAPE TOWN")
}
