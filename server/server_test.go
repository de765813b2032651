package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"clinical_note_noiser/generator"
	"clinical_note_noiser/notes"
)

func newTestServer(t *testing.T, llm generator.LLMClient) *httptest.Server {
	t.Helper()
	client, err := generator.NewClient(llm, nil, generator.WithBackoff(nil))
	require.NoError(t, err)
	rw, err := notes.NewRewriter(client, generator.DefaultStyles(), nil)
	require.NoError(t, err)
	proc, err := notes.NewProcessor(rw, nil)
	require.NoError(t, err)
	srv, err := New(proc, nil)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/api/documents", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestDocuments_Rewrite(t *testing.T) {
	ts := newTestServer(t, generator.MockLLM{Reply: "Rewritten note."})
	doc := fmt.Sprintf(`{"entry":[{"resource":{"presentedForm":[{"data":%q}]}}]}`, notes.EncodeText("BP 140/90"))

	resp := post(t, ts.URL, doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-Rewrite-Count"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	got, err := notes.DecodeText(gjson.GetBytes(body, "entry.0.resource.presentedForm.0.data").String())
	require.NoError(t, err)
	assert.Equal(t, "Rewritten note.", got)
}

func TestDocuments_InvalidJSON(t *testing.T) {
	ts := newTestServer(t, generator.MockLLM{Reply: "Rewritten note."})
	resp := post(t, ts.URL, `{"entry": [`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type failingLLM struct{}

func (failingLLM) Complete(context.Context, generator.Prompt) (string, error) {
	return "", errors.New("upstream 503")
}

func TestDocuments_GenerationFailure(t *testing.T) {
	ts := newTestServer(t, failingLLM{})
	doc := fmt.Sprintf(`{"entry":[{"resource":{"presentedForm":[{"data":%q}]}}]}`, notes.EncodeText("BP 140/90"))
	resp := post(t, ts.URL, doc)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestDocuments_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, generator.MockLLM{})
	resp, err := http.Get(ts.URL + "/api/documents")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, generator.MockLLM{})
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNew_RequiresProcessor(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

type countingProcessor struct{ calls int }

func (p *countingProcessor) Process(_ context.Context, doc []byte) ([]byte, int, error) {
	p.calls++
	return doc, 0, nil
}

func TestDocuments_BodyErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   io.Reader
		status int
	}{
		{name: "over limit", body: strings.NewReader(`{"entry": [], "padding": "xxxxxxxx"}`), status: http.StatusRequestEntityTooLarge},
		{name: "read failure", body: iotest.ErrReader(errors.New("connection reset")), status: http.StatusBadRequest},
		{name: "within limit", body: strings.NewReader(`{"entry": []}`), status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &countingProcessor{}
			srv, err := New(proc, nil)
			require.NoError(t, err)
			srv.maxBytes = 16

			rec := httptest.NewRecorder()
			srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/documents", tt.body))
			assert.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				assert.Zero(t, proc.calls)
			}
		})
	}
}
