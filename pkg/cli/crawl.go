package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/comicdl/pkg/cli/config"
	"github.com/m-mizutani/comicdl/pkg/domain/types"
	"github.com/m-mizutani/comicdl/pkg/infra/qrcode"
	"github.com/m-mizutani/comicdl/pkg/infra/scraper"
	"github.com/m-mizutani/comicdl/pkg/infra/slack"
	"github.com/m-mizutani/comicdl/pkg/infra/transport"
	"github.com/m-mizutani/comicdl/pkg/usecase"
)

func cmdCrawl() *cli.Command {
	var (
		crawlerCfg config.Crawler
		slackCfg   config.Slack
	)

	flags := append(crawlerCfg.Flags(), slackCfg.Flags()...)

	return &cli.Command{
		Name:    "crawl",
		Aliases: []string{"c"},
		Usage:   "Log in and download books",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := crawlerCfg.Load(c); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := ctxlog.From(ctx)
			logger.Info("Starting comicdl",
				slog.Any("book_ids", crawlerCfg.BookIDs),
				slog.String("output_dir", crawlerCfg.OutputDir),
				slog.String("pic_type", crawlerCfg.PicType),
				slog.Int("download_threads", crawlerCfg.DownloadThreads),
			)

			client, err := transport.New(
				transport.WithTimeout(crawlerCfg.Timeout),
				transport.WithUserAgent(crawlerCfg.UserAgent),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP client")
			}
			pages := scraper.New()

			var opts []usecase.CrawlerOption
			if !crawlerCfg.NoLogin {
				opts = append(opts, usecase.WithLogin(usecase.NewLogin(client, pages, qrcode.New(), usecase.LoginConfig{
					BaseURL:      crawlerCfg.BaseURL,
					PollInterval: crawlerCfg.PollInterval,
				})))
			}
			if slackCfg.WebhookURL != "" {
				opts = append(opts, usecase.WithNotifier(slack.NewNotifier(slackCfg.WebhookURL)))
			}

			crawler := usecase.NewCrawler(client, pages, usecase.CrawlerConfig{
				BaseURL:         crawlerCfg.BaseURL,
				BookIDs:         crawlerCfg.BookIDs,
				OutputDir:       crawlerCfg.OutputDir,
				PicType:         types.PicType(crawlerCfg.PicType),
				DownloadThreads: crawlerCfg.DownloadThreads,
				RetryTimesMax:   crawlerCfg.RetryTimesMax,
				RetryInterval:   crawlerCfg.RetryInterval,
			}, opts...)

			results, err := crawler.Run(ctx)
			if err != nil {
				// An interrupt is a normal way to stop the crawl
				if ctx.Err() != nil {
					logger.Info("Interrupted, exiting", slog.Int("finished_books", len(results)))
					return nil
				}
				return err
			}

			for _, r := range results {
				logger.Info("Book finished",
					slog.String("title", r.Title),
					slog.Int("images", r.Download.Total),
					slog.Int("downloaded", r.Download.Downloaded),
					slog.Int("skipped", r.Download.Skipped),
					slog.Int("dropped", r.Download.Dropped),
					slog.Int("paywalled_sections", r.Sections.Paywalled),
				)
			}
			return nil
		},
	}
}
