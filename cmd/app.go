package main

import (
	"context"
	"fmt"

	"github.com/xhad/kbase/internal/types"
	"github.com/xhad/kbase/pkg/config"
	"github.com/xhad/kbase/pkg/index"
	"github.com/xhad/kbase/pkg/llm"
	"github.com/xhad/kbase/pkg/loader"
	"github.com/xhad/kbase/pkg/processor"
	"github.com/xhad/kbase/pkg/rag"
	"github.com/xhad/kbase/pkg/store"
)

// app holds the components shared by every command.
type app struct {
	store  types.VectorStore
	index  *index.Index
	engine *rag.Engine
}

func newApp(ctx context.Context, cfg *config.Config, onProgress func(done, total int)) (*app, error) {
	embedder, err := llm.NewEmbedderWithConfig(ctx, cfg.EmbedderConfig())
	if err != nil {
		return nil, err
	}
	chat, err := llm.NewWithConfig(ctx, cfg.ChatConfig())
	if err != nil {
		return nil, err
	}

	vs, err := store.Open(ctx, store.Options{
		Driver:      cfg.Store.Driver,
		Path:        cfg.Store.Path,
		DatabaseURL: cfg.Store.DatabaseURL,
		VectorDim:   cfg.Store.VectorDim,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: *cfg.Processor.ChunkOverlap,
	})

	ix := index.New(vs, embedder, proc, index.IndexConfig{
		Collection: cfg.Store.Collection,
		Logger:     logger,
		OnProgress: onProgress,
	})

	var tokens rag.TokenCounter
	if cfg.LLM.CountTokens {
		if counter, err := llm.NewTokenCounter(""); err != nil {
			logger.Warn("token counting disabled", "error", err)
		} else {
			tokens = counter
		}
	}

	engine := rag.NewEngine(ix, chat, rag.EngineConfig{
		TopK:     cfg.Retrieval.TopK,
		Cooldown: cfg.LLM.RateLimitCooldown,
		Logger:   logger,
		Tokens:   tokens,
	})

	return &app{store: vs, index: ix, engine: engine}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func loaderConfig(cfg *config.Config) loader.Config {
	src := cfg.Sources
	return loader.Config{
		DataDir:           src.DataDir,
		GitHubRepo:        src.GitHub.Repo,
		GitHubToken:       src.GitHub.Token,
		NotionAPIKey:      src.Notion.APIKey,
		NotionDatabaseID:  src.Notion.DatabaseID,
		NotionPageIDs:     src.Notion.PageIDs,
		GDriveCredentials: src.GDrive.CredentialsPath,
		GDriveFolderID:    src.GDrive.FolderID,
		WebURL:            src.Web.URL,
		WebMaxDepth:       src.Web.MaxDepth,
		WebRateLimit:      src.Web.RateLimit,
	}
}
