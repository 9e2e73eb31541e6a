package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/xhad/kbase/internal/models"
	"github.com/xhad/kbase/pkg/loader"
)

var indexFlags struct {
	dataDir      string
	github       string
	githubToken  string
	notionKey    string
	notionDB     string
	notionPages  []string
	gdriveCreds  string
	gdriveFolder string
	webURL       string
	webDepth     int
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Load every configured source and rebuild the index",
	Long: `Reads the data directory and any GitHub, Notion, Google Drive or web source
given by flags or configuration, then replaces the indexed collection with
their chunks. Sources that fail to load are reported and skipped.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	f := indexCmd.Flags()
	f.StringVar(&indexFlags.dataDir, "data-dir", "", "Local folder with PDF, markdown, text and HTML files")
	f.StringVar(&indexFlags.github, "github", "", "GitHub repository as owner/repo[:branch]")
	f.StringVar(&indexFlags.githubToken, "github-token", "", "GitHub token for private repositories")
	f.StringVar(&indexFlags.notionKey, "notion-key", "", "Notion integration API key")
	f.StringVar(&indexFlags.notionDB, "notion-db", "", "Notion database ID")
	f.StringArrayVar(&indexFlags.notionPages, "notion-page", nil, "Notion page ID (repeatable)")
	f.StringVar(&indexFlags.gdriveCreds, "gdrive-creds", "", "Google service account credentials JSON")
	f.StringVar(&indexFlags.gdriveFolder, "gdrive-folder", "", "Google Drive folder ID")
	f.StringVar(&indexFlags.webURL, "web-url", "", "Website to crawl")
	f.IntVar(&indexFlags.webDepth, "web-depth", 0, "Maximum link depth for the web crawl")
	rootCmd.AddCommand(indexCmd)
}

func applyIndexFlags() {
	src := &cfg.Sources
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&src.DataDir, indexFlags.dataDir)
	set(&src.GitHub.Repo, indexFlags.github)
	set(&src.GitHub.Token, indexFlags.githubToken)
	set(&src.Notion.APIKey, indexFlags.notionKey)
	set(&src.Notion.DatabaseID, indexFlags.notionDB)
	set(&src.GDrive.CredentialsPath, indexFlags.gdriveCreds)
	set(&src.GDrive.FolderID, indexFlags.gdriveFolder)
	set(&src.Web.URL, indexFlags.webURL)
	if len(indexFlags.notionPages) > 0 {
		src.Notion.PageIDs = indexFlags.notionPages
	}
	if indexFlags.webDepth > 0 {
		src.Web.MaxDepth = indexFlags.webDepth
	}
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	applyIndexFlags()

	loaders, err := loader.Build(loaderConfig(cfg), logger)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	a, err := newApp(ctx, cfg, func(done, total int) {
		if bar == nil {
			bar = getProgressBar(total, "Embedding chunks...")
		}
		bar.Set(done)
	})
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		docs    []models.Document
		results []loader.SourceResult
	)
	withSpinner("Loading documents...", func() error {
		docs, results = loader.LoadAll(ctx, logger, loaders...)
		return nil
	})

	for _, r := range results {
		if r.Err != nil {
			color.Yellow("! %s skipped: %v", r.Name, r.Err)
			continue
		}
		color.Green("✓ %s: %d documents", r.Name, len(r.Documents))
	}

	if len(docs) == 0 {
		color.Yellow("\nNo documents found. Add PDFs or markdown files to %s or configure another source.", cfg.Sources.DataDir)
		return nil
	}

	chunks, err := a.index.Rebuild(ctx, docs)
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	color.Green("\n✓ Indexed %d chunks from %d documents into %q", chunks, len(docs), a.index.Collection())
	return nil
}
