package server

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarsiwach/sanews-autofit/credential"
	"github.com/sagarsiwach/sanews-autofit/document"
	"github.com/sagarsiwach/sanews-autofit/dsl"
	"github.com/sagarsiwach/sanews-autofit/fit"
	"github.com/sagarsiwach/sanews-autofit/oracle"
	"github.com/sagarsiwach/sanews-autofit/session"
)

type lineTypesetter struct{}

func (lineTypesetter) LoadFont(document.FontResource) error { return nil }

func (lineTypesetter) LayoutLines(content string, _ float64, _ document.FontResource, _ float64, lineHeight float64, _ string) ([]document.TextLine, error) {
	words := strings.Fields(content)
	lines := make([]document.TextLine, 0, len(words)+1)
	for _, w := range words {
		lines = append(lines, document.TextLine{Content: w, Height: lineHeight})
	}
	if len(lines) == 0 {
		lines = append(lines, document.TextLine{Height: lineHeight})
	}
	return lines, nil
}

type fakeRenderer struct{}

func (fakeRenderer) Render(*document.Document, *document.ContainerNode) ([]byte, error) {
	return []byte("%PDF-fake"), nil
}

const serverTemplate = `
template Server v1 {
  resources {
    style Column { size: 10mm line-height: 1x }
  }
  frame Article width 200mm height 100mm {
    text Title x 0 y 0 width 90mm height 30mm style Column
    text Title x 100mm y 0 width 90mm height 30mm style Column
  }
}
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	tpl, err := dsl.ParseString(serverTemplate)
	require.NoError(t, err)
	doc, err := document.Build(tpl, document.BuildOptions{Typesetter: lineTypesetter{}})
	require.NoError(t, err)

	logger := log.New(io.Discard)
	sess := session.New(doc, document.NewHost(lineTypesetter{}), credential.NewMemoryStore(), session.Options{
		Logger: logger,
		NewAdjuster: func(string) (fit.Adjuster, error) {
			return oracle.Mock{}, nil
		},
	})
	srv := httptest.NewServer(New(sess, fakeRenderer{}, logger).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, body string) []fit.Event {
	t.Helper()
	resp, err := http.Post(srv.URL+"/messages", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var out []fit.Event
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		var ev fit.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		out = append(out, ev)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestMessagesStreamEvents(t *testing.T) {
	srv := newTestServer(t)

	evs := post(t, srv, `{"type":"detect-layout","selection":["Article"]}`)
	require.Len(t, evs, 1)
	assert.Equal(t, fit.EventLayoutDetected, evs[0].Type)
	assert.Equal(t, map[string]any{
		"hasHeadline": false, "hasTitle": false, "hasSubtitle": false,
		"hasSource": false, "hasUrl": false, "columnCount": float64(2),
	}, evs[0].Data)

	evs = post(t, srv, `{"type":"auto-fit","selection":["Article"],"data":{"dateline":"CAPE TOWN","body":"a b c d"}}`)
	require.Len(t, evs, 1)
	assert.Equal(t, fit.EventError, evs[0].Type)
	assert.Equal(t, fit.MsgSaveKeyFirst, evs[0].Message)

	evs = post(t, srv, `{"type":"save-api-key","data":"sk-1"}`)
	require.Len(t, evs, 1)
	assert.Equal(t, fit.EventAPIKeySaved, evs[0].Type)

	// last column: "a b c d" is four 10mm lines in a 30mm slot
	evs = post(t, srv, `{"type":"auto-fit","selection":["Article"],"data":{"dateline":"CAPE TOWN","body":"a b c d"}}`)
	require.NotEmpty(t, evs)
	assert.Equal(t, fit.EventIterationUpdate, evs[0].Type)
	last := evs[len(evs)-1]
	assert.Equal(t, fit.EventAutoFitComplete, last.Type)
	runID := evs[0].RunID
	assert.NotEmpty(t, runID)
	for _, ev := range evs {
		assert.Equal(t, runID, ev.RunID)
	}
}

func TestMessagesRejectsBadJSON(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/messages", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFrameEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/frames")
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	resp.Body.Close()
	assert.Equal(t, []string{"Article"}, names)

	resp, err = http.Get(srv.URL + "/frames/Article/snapshot")
	require.NoError(t, err)
	var snap document.NodeSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	assert.Equal(t, "Article", snap.Name)
	assert.Len(t, snap.Children, 2)

	resp, err = http.Get(srv.URL + "/frames/Article/pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, "%PDF-fake", string(body))

	resp, err = http.Get(srv.URL + "/frames/Nope/snapshot")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
