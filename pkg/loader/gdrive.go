package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/xhad/kbase/internal/models"
)

const googleDocMIME = "application/vnd.google-apps.document"

// GDrive exports the Google Docs in one Drive folder as plain text, using a
// service account credentials file.
type GDrive struct {
	CredentialsPath string
	FolderID        string
	Logger          *slog.Logger
	// Options replace the credentials file when set.
	Options []option.ClientOption
}

func (g *GDrive) Name() string { return "gdrive:" + g.FolderID }

func (g *GDrive) Load(ctx context.Context) ([]models.Document, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := g.Options
	if len(opts) == 0 {
		opts = []option.ClientOption{
			option.WithCredentialsFile(g.CredentialsPath),
			option.WithScopes(drive.DriveReadonlyScope),
		}
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	var (
		docs      []models.Document
		pageToken string
	)
	for {
		call := svc.Files.List().
			Q(fmt.Sprintf("'%s' in parents and trashed = false", g.FolderID)).
			PageSize(100).
			Fields("nextPageToken, files(id, name, mimeType)").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list drive folder %s: %w", g.FolderID, err)
		}

		for _, f := range list.Files {
			if f.MimeType != googleDocMIME {
				continue
			}
			text, err := g.export(ctx, svc, f.Id)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logger.Warn("drive file skipped", "file_id", f.Id, "error", err)
				continue
			}
			docs = append(docs, single(text, "drive.google.com/file/d/"+f.Id, map[string]any{"name": f.Name})...)
		}

		if list.NextPageToken == "" {
			return docs, nil
		}
		pageToken = list.NextPageToken
	}
}

func (g *GDrive) export(ctx context.Context, svc *drive.Service, id string) (string, error) {
	resp, err := svc.Files.Export(id, "text/plain").Context(ctx).Download()
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return decodeText(data), nil
}
