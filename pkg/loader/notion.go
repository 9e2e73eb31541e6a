package loader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jomei/notionapi"

	"github.com/xhad/kbase/internal/models"
)

// Notion reads the text of pages listed by ID or found in a database.
type Notion struct {
	APIKey     string
	DatabaseID string
	PageIDs    []string
	Logger     *slog.Logger

	client *notionapi.Client
}

func (n *Notion) Name() string { return "notion" }

func (n *Notion) Load(ctx context.Context) ([]models.Document, error) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if n.client == nil {
		n.client = notionapi.NewClient(notionapi.Token(n.APIKey))
	}

	pageIDs := append([]string(nil), n.PageIDs...)
	if n.DatabaseID != "" {
		ids, err := n.databasePages(ctx)
		if err != nil {
			return nil, err
		}
		pageIDs = append(pageIDs, ids...)
	}

	var docs []models.Document
	for _, id := range pageIDs {
		text, err := n.pageText(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("notion page skipped", "page_id", id, "error", err)
			continue
		}
		docs = append(docs, single(text, "notion.so/page/"+id, map[string]any{"page_id": id})...)
	}
	return docs, nil
}

func (n *Notion) databasePages(ctx context.Context) ([]string, error) {
	var (
		ids []string
		req = &notionapi.DatabaseQueryRequest{PageSize: 100}
	)
	for {
		resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(n.DatabaseID), req)
		if err != nil {
			return nil, fmt.Errorf("query notion database %s: %w", n.DatabaseID, err)
		}
		for _, page := range resp.Results {
			ids = append(ids, string(page.ID))
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return ids, nil
		}
		req.StartCursor = resp.NextCursor
	}
}

func (n *Notion) pageText(ctx context.Context, id string) (string, error) {
	var (
		parts  []string
		cursor notionapi.Cursor
	)
	for {
		resp, err := n.client.Block.GetChildren(ctx, notionapi.BlockID(id), &notionapi.Pagination{
			StartCursor: cursor,
			PageSize:    100,
		})
		if err != nil {
			return "", err
		}
		parts = append(parts, blocksText(resp.Results)...)
		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}
	return strings.Join(parts, "\n"), nil
}

// blocksText returns the plain text of every rich-text fragment in the
// blocks, in order.
func blocksText(blocks []notionapi.Block) []string {
	var parts []string
	for _, b := range blocks {
		for _, rt := range richText(b) {
			if rt.PlainText != "" {
				parts = append(parts, rt.PlainText)
			}
		}
	}
	return parts
}

func richText(b notionapi.Block) []notionapi.RichText {
	switch b := b.(type) {
	case *notionapi.ParagraphBlock:
		return b.Paragraph.RichText
	case *notionapi.Heading1Block:
		return b.Heading1.RichText
	case *notionapi.Heading2Block:
		return b.Heading2.RichText
	case *notionapi.Heading3Block:
		return b.Heading3.RichText
	case *notionapi.BulletedListItemBlock:
		return b.BulletedListItem.RichText
	case *notionapi.NumberedListItemBlock:
		return b.NumberedListItem.RichText
	case *notionapi.ToDoBlock:
		return b.ToDo.RichText
	case *notionapi.QuoteBlock:
		return b.Quote.RichText
	case *notionapi.CalloutBlock:
		return b.Callout.RichText
	case *notionapi.CodeBlock:
		return b.Code.RichText
	case *notionapi.ToggleBlock:
		return b.Toggle.RichText
	}
	return nil
}
