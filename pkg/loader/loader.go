package loader

import (
	"context"
	"log/slog"

	"github.com/xhad/kbase/internal/models"
	"github.com/xhad/kbase/internal/types"
)

// SourceResult is the outcome of loading one source.
type SourceResult struct {
	Name      string
	Documents []models.Document
	Err       error
}

// LoadAll runs every loader in order. A failing source is logged and
// contributes nothing; the remaining sources still load.
func LoadAll(ctx context.Context, logger *slog.Logger, loaders ...types.Loader) ([]models.Document, []SourceResult) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		docs    []models.Document
		results = make([]SourceResult, 0, len(loaders))
	)
	for _, l := range loaders {
		if err := ctx.Err(); err != nil {
			results = append(results, SourceResult{Name: l.Name(), Err: err})
			continue
		}

		loaded, err := l.Load(ctx)
		results = append(results, SourceResult{Name: l.Name(), Documents: loaded, Err: err})
		if err != nil {
			logger.Warn("source skipped", "source", l.Name(), "error", err)
			continue
		}
		logger.Info("source loaded", "source", l.Name(), "documents", len(loaded))
		docs = append(docs, loaded...)
	}
	return docs, results
}

// Config names every source a run may read. Zero-valued sources are skipped.
type Config struct {
	DataDir string

	GitHubRepo  string
	GitHubToken string

	NotionAPIKey     string
	NotionDatabaseID string
	NotionPageIDs    []string

	GDriveCredentials string
	GDriveFolderID    string

	WebURL       string
	WebMaxDepth  int
	WebRateLimit float64
}

// Build returns the loaders enabled by config, local directory first.
func Build(config Config, logger *slog.Logger) ([]types.Loader, error) {
	loaders := []types.Loader{&Local{Dir: config.DataDir, Logger: logger}}

	if config.GitHubRepo != "" {
		gh, err := NewGitHub(config.GitHubRepo, config.GitHubToken)
		if err != nil {
			return nil, err
		}
		gh.Logger = logger
		loaders = append(loaders, gh)
	}

	if config.NotionAPIKey != "" && (config.NotionDatabaseID != "" || len(config.NotionPageIDs) > 0) {
		loaders = append(loaders, &Notion{
			APIKey:     config.NotionAPIKey,
			DatabaseID: config.NotionDatabaseID,
			PageIDs:    config.NotionPageIDs,
			Logger:     logger,
		})
	}

	if config.GDriveCredentials != "" && config.GDriveFolderID != "" {
		loaders = append(loaders, &GDrive{
			CredentialsPath: config.GDriveCredentials,
			FolderID:        config.GDriveFolderID,
			Logger:          logger,
		})
	}

	if config.WebURL != "" {
		web, err := NewWeb(WebConfig{
			BaseURL:   config.WebURL,
			MaxDepth:  config.WebMaxDepth,
			RateLimit: config.WebRateLimit,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		loaders = append(loaders, web)
	}

	return loaders, nil
}
