package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/xhad/kbase/internal/models"
)

var (
	textExts = map[string]bool{".md": true, ".markdown": true, ".txt": true, ".rst": true}
	htmlExts = map[string]bool{".html": true, ".htm": true}
)

// Supported reports whether Local reads files with this name.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".pdf" || textExts[ext] || htmlExts[ext]
}

// Local reads PDF, text and HTML files under a directory tree.
type Local struct {
	Dir    string
	Logger *slog.Logger
}

func (l *Local) Name() string { return "local:" + l.Dir }

// Load walks Dir. Unreadable files are logged and skipped; a missing
// directory yields no documents.
func (l *Local) Load(ctx context.Context) ([]models.Document, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var docs []models.Document
	err := filepath.WalkDir(l.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == l.Dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !Supported(path) {
			return nil
		}

		loaded, err := LoadFile(path)
		if err != nil {
			logger.Warn("file skipped", "path", path, "error", err)
			return nil
		}
		docs = append(docs, loaded...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", l.Dir, err)
	}
	return docs, nil
}

// LoadFile reads one supported file. The document source is path.
func LoadFile(path string) ([]models.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return loadPDF(path)
	case textExts[ext]:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return single(decodeText(data), path, nil), nil
	case htmlExts[ext]:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		title, text, err := ExtractHTML(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		var meta map[string]any
		if title != "" {
			meta = map[string]any{"title": title}
		}
		return single(text, path, meta), nil
	}
	return nil, fmt.Errorf("unsupported file type %q", ext)
}

func single(text, source string, meta map[string]any) []models.Document {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return []models.Document{models.NewDocument(text, source, meta)}
}

// decodeText reads UTF-8, dropping a byte order mark, and falls back to
// Latin-1 for anything else.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

// loadPDF returns one document per page with text, carrying a 1-based page
// number.
func loadPDF(path string) (docs []models.Document, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("parse pdf %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		docs = append(docs, single(text, path, map[string]any{"page": i})...)
	}
	return docs, nil
}
