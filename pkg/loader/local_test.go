package loader_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/kbase/internal/models"
	"github.com/xhad/kbase/pkg/loader"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func bySource(docs []models.Document) map[string]models.Document {
	out := make(map[string]models.Document, len(docs))
	for _, d := range docs {
		out[d.Source] = d
	}
	return out
}

func TestLocal_Load(t *testing.T) {
	dir := t.TempDir()
	notes := writeFile(t, dir, "notes.md", []byte("# Notes\n\nCats sleep a lot.\n"))
	bom := writeFile(t, dir, "nested/bom.txt", []byte("\xef\xbb\xbfhello bom"))
	latin := writeFile(t, dir, "latin.rst", []byte("caf\xe9"))
	page := writeFile(t, dir, "page.html", []byte(`<html><head><title>Guide</title></head>
		<body><nav>menu</nav><main><h1>Install</h1><p>Run the installer.</p></main></body></html>`))
	writeFile(t, dir, "blank.txt", []byte("   \n"))
	writeFile(t, dir, "image.png", []byte{0x89, 'P', 'N', 'G'})
	writeFile(t, dir, "broken.pdf", []byte("not a pdf"))

	docs, err := (&loader.Local{Dir: dir}).Load(context.Background())
	require.NoError(t, err)

	got := bySource(docs)
	require.Len(t, got, 4)

	assert.Equal(t, "# Notes\n\nCats sleep a lot.", got[notes].Content)
	assert.Empty(t, got[notes].Meta)
	assert.Equal(t, "hello bom", got[bom].Content)
	assert.Equal(t, "café", got[latin].Content)
	assert.Equal(t, "Install\n\nRun the installer.", got[page].Content)
	assert.Equal(t, "Guide", got[page].Meta["title"])
}

func TestLocal_MissingDir(t *testing.T) {
	docs, err := (&loader.Local{Dir: filepath.Join(t.TempDir(), "nope")}).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSupported(t *testing.T) {
	for name, want := range map[string]bool{
		"a.pdf": true, "a.MD": true, "a.markdown": true, "a.txt": true,
		"a.rst": true, "a.html": true, "a.htm": true, "a.docx": false, "Makefile": false,
	} {
		assert.Equal(t, want, loader.Supported(name), name)
	}
}

func TestExtractHTML(t *testing.T) {
	title, text, err := loader.ExtractHTML(strings.NewReader(`<html><head><title> T </title>
		<script>var x = 1;</script></head><body>
		<article><h2>Intro</h2><p>First <b>bold</b> line.</p><ul><li>one</li><li>two</li></ul></article>
		<footer>Privacy Policy</footer></body></html>`))
	require.NoError(t, err)

	assert.Equal(t, "T", title)
	assert.Equal(t, "Intro\n\nFirst bold line.\n\none\n\ntwo", text)
}

func TestExtractHTML_BodyFallback(t *testing.T) {
	_, text, err := loader.ExtractHTML(strings.NewReader(`<html><body><div>Just   some text</div></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Just some text", text)
}
