package server

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/xhad/kbase/internal/models"
	"github.com/xhad/kbase/internal/types"
	"github.com/xhad/kbase/pkg/llm"
	"github.com/xhad/kbase/pkg/loader"
)

var validate = validator.New()

type AskRequest struct {
	Question string `json:"question" validate:"required"`
	TopK     int    `json:"top_k" validate:"gte=0,lte=50"`
}

func (r *AskRequest) Validate() map[string]string {
	if err := validate.Struct(r); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			return map[string]string{"request": err.Error()}
		}
		out := make(map[string]string, len(errs))
		for _, e := range errs {
			out[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return out
	}
	return nil
}

type DocumentInfo struct {
	Name       string  `json:"name"`
	Path       string  `json:"path"`
	Size       int64   `json:"size"`
	ModifiedTS float64 `json:"modified_ts"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleListDocuments(c *fiber.Ctx) error {
	if err := os.MkdirAll(s.config.DataDir, 0o755); err != nil {
		return ErrInternal(fmt.Sprintf("Failed to open data directory: %v", err))
	}

	docs := []DocumentInfo{}
	err := filepath.WalkDir(s.config.DataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.config.DataDir, path)
		if err != nil {
			return err
		}
		docs = append(docs, DocumentInfo{
			Name:       d.Name(),
			Path:       filepath.ToSlash(rel),
			Size:       info.Size(),
			ModifiedTS: float64(info.ModTime().UnixNano()) / 1e9,
		})
		return nil
	})
	if err != nil {
		return ErrInternal(fmt.Sprintf("Failed to list documents: %v", err))
	}
	return c.JSON(docs)
}

// safeName reduces a client-supplied name to a plain file name.
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest("Missing file.")
	}
	name := safeName(header.Filename)
	if name == "" {
		return ErrBadRequest("Missing filename.")
	}

	f, err := header.Open()
	if err != nil {
		return ErrInternal(fmt.Sprintf("Failed to save file: %v", err))
	}
	content, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return ErrInternal(fmt.Sprintf("Failed to save file: %v", err))
	}
	if len(content) == 0 {
		return ErrBadRequest("Uploaded file is empty.")
	}

	s.rebuild.Lock()
	defer s.rebuild.Unlock()

	if err := os.MkdirAll(s.config.DataDir, 0o755); err != nil {
		return ErrInternal(fmt.Sprintf("Failed to save file: %v", err))
	}
	if err := os.WriteFile(filepath.Join(s.config.DataDir, name), content, 0o644); err != nil {
		return ErrInternal(fmt.Sprintf("Failed to save file: %v", err))
	}
	s.logger.Info("document uploaded", "name", name, "size", len(content))

	ctx, cancel := s.requestContext(c)
	defer cancel()

	docs, err := s.local().Load(ctx)
	if err != nil {
		return ErrInternal(fmt.Sprintf("Failed to index documents: %v", err))
	}
	if len(docs) == 0 {
		return ErrBadRequest("No documents found after upload.")
	}
	chunks, err := s.index.Rebuild(ctx, docs)
	if err != nil {
		return ErrInternal(fmt.Sprintf("Failed to index documents: %v", err))
	}

	return c.JSON(fiber.Map{
		"message":           "Document uploaded and indexed.",
		"documents_indexed": len(docs),
		"chunks_added":      chunks,
	})
}

func (s *Server) handleDeleteDocument(c *fiber.Ctx) error {
	name := safeName(c.Params("filename"))
	target := filepath.Join(s.config.DataDir, name)

	s.rebuild.Lock()
	defer s.rebuild.Unlock()

	info, err := os.Stat(target)
	if name == "" || err != nil || !info.Mode().IsRegular() {
		return ErrNotFound(fmt.Sprintf("Document '%s' not found.", name))
	}
	if err := os.Remove(target); err != nil {
		return ErrInternal(fmt.Sprintf("Failed to delete file: %v", err))
	}
	s.logger.Info("document deleted", "name", name)

	ctx, cancel := s.requestContext(c)
	defer cancel()

	docs, err := s.local().Load(ctx)
	if err != nil {
		return ErrInternal(fmt.Sprintf("Failed to re-index after deletion: %v", err))
	}
	chunks, err := s.index.Rebuild(ctx, docs)
	if err != nil {
		return ErrInternal(fmt.Sprintf("Failed to re-index after deletion: %v", err))
	}

	return c.JSON(fiber.Map{
		"message":          fmt.Sprintf("'%s' deleted.", name),
		"chunks_remaining": chunks,
	})
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	s.rebuild.Lock()
	defer s.rebuild.Unlock()

	ctx, cancel := s.requestContext(c)
	defer cancel()

	docs, results := loader.LoadAll(ctx, s.logger, s.sources()...)
	chunks, err := s.index.Rebuild(ctx, docs)
	if errors.Is(err, llm.ErrNotConfigured) {
		return ErrBadRequest(err.Error())
	}
	if err != nil {
		return ErrInternal(fmt.Sprintf("Failed to index documents: %v", err))
	}

	sources := make([]fiber.Map, 0, len(results))
	for _, r := range results {
		entry := fiber.Map{"name": r.Name, "documents": len(r.Documents)}
		if r.Err != nil {
			entry["error"] = r.Err.Error()
		}
		sources = append(sources, entry)
	}

	return c.JSON(fiber.Map{
		"documents_indexed": len(docs),
		"chunks_added":      chunks,
		"sources":           sources,
	})
}

func (s *Server) handleAsk(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrBadRequest("invalid JSON request")
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return ErrBadRequest("Question must not be empty.")
	}
	if errs := req.Validate(); len(errs) > 0 {
		return NewValidationError(errs)
	}

	s.rebuild.RLock()
	defer s.rebuild.RUnlock()

	ctx, cancel := s.requestContext(c)
	defer cancel()

	answer, err := s.engine.Ask(ctx, req.Question, req.TopK)
	if errors.Is(err, llm.ErrNotConfigured) {
		return ErrBadRequest(err.Error())
	}
	if err != nil {
		return ErrInternal(fmt.Sprintf("Failed to generate answer: %v", err))
	}
	if answer.Citations == nil {
		answer.Citations = []models.Citation{}
	}
	return c.JSON(answer)
}

func (s *Server) local() *loader.Local {
	return &loader.Local{Dir: s.config.DataDir, Logger: s.logger}
}

func (s *Server) sources() []types.Loader {
	for _, l := range s.config.Sources {
		if local, ok := l.(*loader.Local); ok && filepath.Clean(local.Dir) == filepath.Clean(s.config.DataDir) {
			return s.config.Sources
		}
	}
	return append([]types.Loader{s.local()}, s.config.Sources...)
}
