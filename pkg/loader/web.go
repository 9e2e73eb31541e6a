package loader

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/xhad/kbase/internal/models"
)

type WebConfig struct {
	BaseURL           string
	MaxDepth          int
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	Logger            *slog.Logger
	OnProgress        func(url string)
}

// Web crawls pages on the start URL's host, breadth first, up to MaxDepth
// links away.
type Web struct {
	config   WebConfig
	client   *http.Client
	limiter  *rate.Limiter
	baseHost string
	logger   *slog.Logger
}

func NewWeb(config WebConfig) (*Web, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth < 0 {
		config.MaxDepth = 0
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 2
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	parsed, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid start URL %q", config.BaseURL)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Web{
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsed.Host,
		logger:   logger,
	}, nil
}

func (w *Web) Name() string { return "web:" + w.config.BaseURL }

func (w *Web) shouldProcessURL(u *url.URL) bool {
	if u.Host != w.baseHost || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}

	path := strings.ToLower(u.Path)
	last := path[strings.LastIndex(path, "/")+1:]
	validExt := false
	for _, ext := range w.config.AllowedExtensions {
		switch ext {
		case "":
			validExt = validExt || !strings.Contains(last, ".")
		default:
			validExt = validExt || strings.HasSuffix(path, ext)
		}
	}
	if !validExt {
		return false
	}

	for _, pattern := range w.config.IgnorePatterns {
		if strings.Contains(u.String(), pattern) {
			return false
		}
	}
	return true
}

type pending struct {
	url   *url.URL
	depth int
}

// Load fetches the start page and follows links. Pages after the first that
// fail to load are logged and skipped.
func (w *Web) Load(ctx context.Context) ([]models.Document, error) {
	start, err := url.Parse(w.config.BaseURL)
	if err != nil {
		return nil, err
	}
	start.Fragment = ""

	var (
		docs    []models.Document
		queue   = []pending{{url: start}}
		visited = map[string]bool{start.String(): true}
	)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		doc, links, err := w.fetch(ctx, next)
		if err != nil {
			if next.depth == 0 {
				return nil, err
			}
			if ctx.Err() != nil {
				return docs, ctx.Err()
			}
			w.logger.Warn("page skipped", "url", next.url.String(), "error", err)
			continue
		}
		if doc != nil {
			docs = append(docs, *doc)
		}

		if next.depth >= w.config.MaxDepth {
			continue
		}
		for _, link := range links {
			key := link.String()
			if visited[key] || !w.shouldProcessURL(link) {
				continue
			}
			visited[key] = true
			queue = append(queue, pending{url: link, depth: next.depth + 1})
		}
	}
	return docs, nil
}

func (w *Web) fetch(ctx context.Context, p pending) (*models.Document, []*url.URL, error) {
	pageURL := p.url.String()
	if w.config.OnProgress != nil {
		w.config.OnProgress(pageURL)
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, pageURL)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, nil, nil
	}

	page, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	var links []*url.URL
	page.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := p.url.ResolveReference(ref)
		abs.Fragment = ""
		links = append(links, abs)
	})

	title := strings.TrimSpace(page.Find("title").First().Text())
	content := mainContent(page)
	if content == "" {
		return nil, links, nil
	}

	doc := models.NewDocument(content, pageURL, map[string]any{
		"title": title,
		"depth": p.depth,
	})
	return &doc, links, nil
}
