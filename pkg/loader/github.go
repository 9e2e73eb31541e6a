package loader

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/xhad/kbase/internal/models"
)

const defaultBranch = "main"

var githubExts = map[string]bool{
	".md": true, ".markdown": true, ".txt": true, ".rst": true,
	".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".go": true,
}

// GitHub reads text and source files from one repository branch.
type GitHub struct {
	Owner  string
	Repo   string
	Branch string
	Logger *slog.Logger
	client *gh.Client
}

// ParseRepo splits "owner/repo[:branch]".
func ParseRepo(spec string) (owner, repo, branch string, err error) {
	ownerRepo, branch, _ := strings.Cut(strings.TrimSpace(spec), ":")
	branch = strings.TrimSpace(branch)
	if branch == "" {
		branch = defaultBranch
	}
	owner, repo, ok := strings.Cut(strings.TrimSpace(ownerRepo), "/")
	if !ok || owner == "" || repo == "" {
		return "", "", "", fmt.Errorf("invalid repository %q, want owner/repo[:branch]", spec)
	}
	return owner, repo, branch, nil
}

// NewGitHub builds a loader for "owner/repo[:branch]". An empty token reads
// public repositories anonymously.
func NewGitHub(spec, token string) (*GitHub, error) {
	owner, repo, branch, err := ParseRepo(spec)
	if err != nil {
		return nil, err
	}

	var hc *http.Client
	if token != "" {
		hc = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	} else {
		hc = &http.Client{}
	}
	hc.Timeout = 30 * time.Second

	return &GitHub{Owner: owner, Repo: repo, Branch: branch, client: gh.NewClient(hc)}, nil
}

// WithBaseURL points the client at another API root, such as GitHub
// Enterprise.
func (g *GitHub) WithBaseURL(base string) (*GitHub, error) {
	u, err := url.Parse(strings.TrimSuffix(base, "/") + "/")
	if err != nil {
		return nil, err
	}
	g.client.BaseURL = u
	return g, nil
}

func (g *GitHub) Name() string {
	return fmt.Sprintf("github:%s/%s:%s", g.Owner, g.Repo, g.Branch)
}

func (g *GitHub) Load(ctx context.Context) ([]models.Document, error) {
	ref := g.Branch
	tree, _, err := g.client.Git.GetTree(ctx, g.Owner, g.Repo, ref, true)
	if err != nil && ref != defaultBranch {
		ref = defaultBranch
		tree, _, err = g.client.Git.GetTree(ctx, g.Owner, g.Repo, ref, true)
	}
	if err != nil {
		return nil, fmt.Errorf("get tree %s/%s: %w", g.Owner, g.Repo, err)
	}

	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var docs []models.Document
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" || !githubExts[strings.ToLower(path.Ext(entry.GetPath()))] {
			continue
		}
		if entry.GetSize() > 1024*1024 {
			logger.Debug("github file skipped", "path", entry.GetPath(), "size", entry.GetSize())
			continue
		}

		content, err := g.blob(ctx, entry.GetSHA())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("github file skipped", "path", entry.GetPath(), "error", err)
			continue
		}

		p := entry.GetPath()
		source := fmt.Sprintf("github.com/%s/%s/blob/%s/%s", g.Owner, g.Repo, ref, p)
		docs = append(docs, single(strings.ToValidUTF8(string(content), "�"), source, map[string]any{"path": p})...)
	}
	return docs, nil
}

func (g *GitHub) blob(ctx context.Context, sha string) ([]byte, error) {
	blob, _, err := g.client.Git.GetBlob(ctx, g.Owner, g.Repo, sha)
	if err != nil {
		return nil, err
	}
	if blob.GetEncoding() == "base64" {
		return base64.StdEncoding.DecodeString(strings.ReplaceAll(blob.GetContent(), "\n", ""))
	}
	return []byte(blob.GetContent()), nil
}
