package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/kbase/internal/models"
	"github.com/xhad/kbase/pkg/llm"
	"github.com/xhad/kbase/server"
)

type fakeIndex struct {
	docs  []models.Document
	calls int
	err   error
}

func (f *fakeIndex) Rebuild(_ context.Context, docs []models.Document) (int, error) {
	f.calls++
	f.docs = docs
	if f.err != nil {
		return 0, f.err
	}
	return 2 * len(docs), nil
}

type fakeEngine struct {
	answer   models.Answer
	err      error
	question string
	topK     int
}

func (f *fakeEngine) Ask(_ context.Context, question string, topK int) (models.Answer, error) {
	f.question, f.topK = question, topK
	return f.answer, f.err
}

func setup(t *testing.T) (*server.Server, *fakeIndex, *fakeEngine, string) {
	t.Helper()
	dir := t.TempDir()
	ix := &fakeIndex{}
	eng := &fakeEngine{}
	s := server.New(ix, eng, server.Config{DataDir: dir, CORSOrigins: []string{"http://localhost:5173"}})
	return s, ix, eng, dir
}

func do(t *testing.T, s *server.Server, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(body) > 0 && body[0] == '{' {
		require.NoError(t, json.Unmarshal(body, &out))
	}
	return resp.StatusCode, out
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, name string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	s, _, _, _ := setup(t)
	status, body := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestListDocuments(t *testing.T) {
	s, _, _, dir := setup(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "a.md"), []byte("hello"), 0o644))

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/documents", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var docs []server.DocumentInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "a.md", docs[0].Name)
	assert.Equal(t, "sub/a.md", docs[0].Path)
	assert.EqualValues(t, 5, docs[0].Size)
	assert.Positive(t, docs[0].ModifiedTS)
}

func TestUpload(t *testing.T) {
	s, ix, _, dir := setup(t)

	status, body := do(t, s, uploadRequest(t, "../../notes.md", []byte("# Notes\nCats sleep.")))
	require.Equal(t, http.StatusOK, status, body)

	assert.FileExists(t, filepath.Join(dir, "notes.md"))
	assert.EqualValues(t, 1, body["documents_indexed"])
	assert.EqualValues(t, 2, body["chunks_added"])
	require.Len(t, ix.docs, 1)
	assert.Equal(t, "# Notes\nCats sleep.", ix.docs[0].Content)
}

func TestUpload_Rejects(t *testing.T) {
	s, ix, _, _ := setup(t)

	status, _ := do(t, s, uploadRequest(t, "empty.md", nil))
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := do(t, s, uploadRequest(t, "image.png", []byte{1, 2, 3}))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "No documents found after upload.", body["detail"])

	status, _ = do(t, s, jsonRequest(http.MethodPost, "/upload", `{}`))
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Zero(t, ix.calls)
}

func TestDeleteDocument(t *testing.T) {
	s, ix, _, dir := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("beta"), 0o644))

	status, body := do(t, s, httptest.NewRequest(http.MethodDelete, "/documents/a.md", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "'a.md' deleted.", body["message"])
	assert.EqualValues(t, 2, body["chunks_remaining"])
	assert.NoFileExists(t, filepath.Join(dir, "a.md"))
	require.Len(t, ix.docs, 1)
	assert.Equal(t, "beta", ix.docs[0].Content)

	status, _ = do(t, s, httptest.NewRequest(http.MethodDelete, "/documents/a.md", nil))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestIndex(t *testing.T) {
	s, ix, _, dir := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("alpha"), 0o644))

	status, body := do(t, s, httptest.NewRequest(http.MethodPost, "/index", nil))
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["documents_indexed"])
	assert.Len(t, body["sources"], 1)
	assert.Equal(t, 1, ix.calls)

	ix.err = errors.New("embedder down")
	status, body = do(t, s, httptest.NewRequest(http.MethodPost, "/index", nil))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body["detail"], "embedder down")

	ix.err = &llm.ConfigError{Component: "embedder"}
	status, _ = do(t, s, httptest.NewRequest(http.MethodPost, "/index", nil))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAsk(t *testing.T) {
	s, _, eng, _ := setup(t)
	eng.answer = models.Answer{
		Text:      "According to a.md, yes.",
		Citations: []models.Citation{{Source: "a.md", Metadata: map[string]any{"page": 1}}},
	}

	status, body := do(t, s, jsonRequest(http.MethodPost, "/ask", `{"question": "  Is it?  ", "top_k": 3}`))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "According to a.md, yes.", body["answer"])
	assert.Equal(t, []any{map[string]any{"source": "a.md", "metadata": map[string]any{"page": float64(1)}}}, body["sources"])
	assert.Equal(t, "Is it?", eng.question)
	assert.Equal(t, 3, eng.topK)
}

func TestAsk_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"empty question", `{"question": "   "}`, nil, http.StatusBadRequest},
		{"missing question", `{}`, nil, http.StatusBadRequest},
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"top_k too large", `{"question": "q", "top_k": 500}`, nil, http.StatusBadRequest},
		{"not configured", `{"question": "q"}`, &llm.ConfigError{Component: "chat"}, http.StatusBadRequest},
		{"backend failure", `{"question": "q"}`, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, eng, _ := setup(t)
			eng.err = tt.err
			status, _ := do(t, s, jsonRequest(http.MethodPost, "/ask", tt.body))
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestCORS(t *testing.T) {
	s, _, _, _ := setup(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}
