package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/comicdl/pkg/domain/interfaces"
	"github.com/m-mizutani/comicdl/pkg/domain/model"
	"github.com/m-mizutani/comicdl/pkg/domain/types"
	"github.com/m-mizutani/comicdl/pkg/utils/filename"
)

// CrawlerConfig configures the crawler use case
type CrawlerConfig struct {
	BaseURL         string
	BookIDs         []string
	OutputDir       string
	PicType         types.PicType
	DownloadThreads int
	RetryTimesMax   int
	RetryInterval   time.Duration
}

// CrawlerOption is a functional option for the crawler use case
type CrawlerOption func(*crawlerUseCase)

// WithLogin authenticates the session before crawling. Without it books are
// crawled anonymously.
func WithLogin(login interfaces.LoginUseCase) CrawlerOption {
	return func(c *crawlerUseCase) {
		c.login = login
	}
}

// WithNotifier sends a summary after each book
func WithNotifier(n interfaces.Notifier) CrawlerOption {
	return func(c *crawlerUseCase) {
		c.notifier = n
	}
}

// WithProgressWriter sets where progress lines are written (default os.Stdout)
func WithProgressWriter(w io.Writer) CrawlerOption {
	return func(c *crawlerUseCase) {
		c.progressOut = w
	}
}

type crawlerUseCase struct {
	transport   interfaces.Transport
	scraper     interfaces.PageScraper
	login       interfaces.LoginUseCase
	notifier    interfaces.Notifier
	progressOut io.Writer
	endpoints   endpoints
	cfg         CrawlerConfig
}

// NewCrawler creates a new instance of CrawlerUseCase
func NewCrawler(
	transport interfaces.Transport,
	scraper interfaces.PageScraper,
	cfg CrawlerConfig,
	opts ...CrawlerOption,
) interfaces.CrawlerUseCase {
	c := &crawlerUseCase{
		transport:   transport,
		scraper:     scraper,
		progressOut: os.Stdout,
		endpoints:   newEndpoints(cfg.BaseURL),
		cfg:         cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run logs in and downloads the configured books one after another. A book
// that cannot be fetched or parsed is skipped; login failures, fatal errors
// and cancellation end the run.
func (c *crawlerUseCase) Run(ctx context.Context) ([]*model.BookResult, error) {
	logger := ctxlog.From(ctx)

	if c.login != nil {
		if err := c.login.Login(ctx); err != nil {
			return nil, goerr.Wrap(err, "failed to login")
		}
	} else {
		logger.Info("Login disabled, crawling anonymously")
	}

	var results []*model.BookResult
	for i, bookID := range c.cfg.BookIDs {
		bookCtx := ctxlog.With(ctx, logger.With("book_id", bookID, "book_index", i+1, "book_count", len(c.cfg.BookIDs)))

		result, err := c.downloadBook(bookCtx, bookID)
		if err != nil {
			if ctx.Err() != nil || goerr.HasTag(err, types.ErrTagFatal) {
				return results, err
			}
			logger.Error("Skipping book", "book_id", bookID, "error", err)
			continue
		}

		results = append(results, result)
		c.notify(bookCtx, result)
	}

	logger.Info("All books downloaded", "books", len(results), "configured", len(c.cfg.BookIDs))
	return results, nil
}

func (c *crawlerUseCase) downloadBook(ctx context.Context, bookID string) (*model.BookResult, error) {
	logger := ctxlog.From(ctx)

	sourceURL := c.endpoints.source(bookID)
	page, err := c.transport.Get(ctx, sourceURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch book page", goerr.V("url", sourceURL))
	}

	title, err := c.scraper.BookTitle(page)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to extract book title", goerr.V("url", sourceURL))
	}
	logger.Info("Fetching section list", "title", title)

	catalogURL := c.endpoints.catalog(bookID)
	data, err := c.transport.Get(ctx, catalogURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch catalog", goerr.V("url", catalogURL))
	}

	catalog, err := c.scraper.Catalog(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse catalog", goerr.V("url", catalogURL))
	}

	queue := NewDownloadQueue(c.transport, DownloadQueueConfig{
		Concurrency:   c.cfg.DownloadThreads,
		RetryMax:      c.cfg.RetryTimesMax,
		RetryInterval: c.cfg.RetryInterval,
		Progress:      NewProgress(c.progressOut, "Downloading images"),
	})
	pipeline := NewSectionPipeline(c.transport, c.scraper, queue, SectionPipelineConfig{
		BaseURL:  c.cfg.BaseURL,
		PicType:  c.cfg.PicType,
		Progress: NewProgress(c.progressOut, "Preparing sections"),
	})

	bookDir := filepath.Join(c.cfg.OutputDir, filename.Sanitize(title))
	pipeline.Enqueue(PlanSections(catalog, bookDir)...)

	sections, err := pipeline.Drain(ctx)
	if err != nil {
		return nil, err
	}

	// Every section is queued at this point, so the image total is final
	download, err := queue.Drain(ctx)
	if err != nil {
		return nil, err
	}

	return &model.BookResult{
		BookID:   bookID,
		Title:    title,
		Sections: *sections,
		Download: *download,
	}, nil
}

func (c *crawlerUseCase) notify(ctx context.Context, result *model.BookResult) {
	if c.notifier == nil {
		return
	}

	msg := fmt.Sprintf("%s: %d/%d images (skipped %d, dropped %d), %d paywalled sections",
		result.Title,
		result.Download.Downloaded,
		result.Download.Total,
		result.Download.Skipped,
		result.Download.Dropped,
		result.Sections.Paywalled,
	)
	if err := c.notifier.Notify(ctx, msg); err != nil {
		ctxlog.From(ctx).Warn("Failed to send notification", "error", err)
	}
}
