package server

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/xhad/kbase/internal/models"
	"github.com/xhad/kbase/internal/types"
)

// Rebuilder replaces the indexed collection.
type Rebuilder interface {
	Rebuild(ctx context.Context, docs []models.Document) (int, error)
}

// Asker answers a question from the index.
type Asker interface {
	Ask(ctx context.Context, question string, topK int) (models.Answer, error)
}

type Config struct {
	// DataDir receives uploads and is re-read after every change to it.
	DataDir string
	// Sources are read by POST /index. The data directory is added when
	// missing.
	Sources     []types.Loader
	CORSOrigins []string
	Logger      *slog.Logger
	// RequestTimeout bounds /ask and rebuilds. Zero means no limit.
	RequestTimeout time.Duration
}

type Server struct {
	config  Config
	index   Rebuilder
	engine  Asker
	logger  *slog.Logger
	app     *fiber.App
	rebuild sync.RWMutex
}

func New(index Rebuilder, engine Asker, config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: config,
		index:  index,
		engine: engine,
		logger: logger,
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          errorHandler(logger),
		DisableStartupMessage: true,
		BodyLimit:             64 << 20,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(config.CORSOrigins, ","),
		AllowCredentials: len(config.CORSOrigins) > 0,
	}))
	app.Use(s.logRequests)

	app.Get("/health", s.handleHealth)
	app.Get("/documents", s.handleListDocuments)
	app.Post("/upload", s.handleUpload)
	app.Delete("/documents/:filename", s.handleDeleteDocument)
	app.Post("/index", s.handleIndex)
	app.Post("/ask", s.handleAsk)

	s.app = app
	return s
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("server listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.logger.Info("server stopped")
	return err
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"elapsed", time.Since(start))
	return err
}

func (s *Server) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := c.UserContext()
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, s.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}
