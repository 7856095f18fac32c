package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/comicdl/pkg/cli/config"
	"github.com/m-mizutani/comicdl/pkg/domain/types"
)

// Run runs the CLI application
func Run(ctx context.Context, args []string) (err error) {
	var (
		loggerCfg config.Logger
		sentryCfg config.Sentry
		logger    *slog.Logger
		closeLog  = func() {}
	)

	flags := append(loggerCfg.Flags(), sentryCfg.Flags()...)

	app := &cli.Command{
		Name:    "comicdl",
		Usage:   "Download comics from manhua.163.com",
		Version: types.Version,
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			configured, closer, err := loggerCfg.Configure()
			if err != nil {
				return nil, err
			}
			closeLog = closer
			logger = configured.With("run_id", uuid.NewString())

			if err := sentryCfg.Configure(); err != nil {
				return nil, err
			}

			slog.SetDefault(logger)
			return ctxlog.With(ctx, logger), nil
		},
		Commands: []*cli.Command{
			cmdCrawl(),
		},
	}

	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("panic in comicdl", goerr.V("panic", fmt.Sprint(r)))
		}
		if err != nil {
			if logger == nil {
				logger = slog.Default()
			}
			logger.Error("CLI execution failed", slog.Any("error", err))
			sentryCfg.Report(err)
		}
		closeLog()
	}()

	return app.Run(ctx, args)
}
