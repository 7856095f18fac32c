package usecase

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/m-mizutani/comicdl/pkg/domain/interfaces"
	"github.com/m-mizutani/comicdl/pkg/domain/model"
)

// DownloadQueueConfig configures a DownloadQueue
type DownloadQueueConfig struct {
	Concurrency   int           // Number of workers, at least 1
	RetryMax      int           // Retries after the first failed attempt
	RetryInterval time.Duration // Flat wait between attempts
	Progress      *Progress     // Optional image progress line
}

type outcome int

const (
	outcomeDownloaded outcome = iota
	outcomeSkipped
	outcomeDropped
)

// DownloadQueue is a FIFO of images drained by a fixed pool of workers
type DownloadQueue struct {
	transport interfaces.Transport
	cfg       DownloadQueueConfig

	mu    sync.Mutex
	tasks []model.DownloadTask
}

// NewDownloadQueue creates an empty DownloadQueue
func NewDownloadQueue(transport interfaces.Transport, cfg DownloadQueueConfig) *DownloadQueue {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	return &DownloadQueue{
		transport: transport,
		cfg:       cfg,
	}
}

// Enqueue appends tasks to the end of the queue
func (q *DownloadQueue) Enqueue(tasks ...model.DownloadTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, tasks...)
}

// Len returns the number of tasks waiting in the queue
func (q *DownloadQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *DownloadQueue) pop() (model.DownloadTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return model.DownloadTask{}, false
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return task, true
}

// Drain consumes the queue with Concurrency workers and returns once every
// worker has finished. The progress denominator is the queue length at the
// time Drain is called. Failed tasks are dropped; only a cancelled ctx makes
// Drain return an error.
func (q *DownloadQueue) Drain(ctx context.Context) (*model.DownloadResult, error) {
	logger := ctxlog.From(ctx)

	result := &model.DownloadResult{Total: q.Len()}
	var resultMu sync.Mutex

	logger.Info("Start downloading images",
		"total", result.Total,
		"workers", q.cfg.Concurrency,
	)

	eg, egCtx := errgroup.WithContext(ctx)
	for id := 1; id <= q.cfg.Concurrency; id++ {
		eg.Go(func() error {
			workerCtx := ctxlog.With(egCtx, logger.With("worker", id))
			return q.work(workerCtx, func(o outcome) {
				resultMu.Lock()
				defer resultMu.Unlock()

				switch o {
				case outcomeDownloaded:
					result.Downloaded++
				case outcomeSkipped:
					result.Skipped++
				case outcomeDropped:
					result.Dropped++
				}
				q.cfg.Progress.Report(result.Done(), result.Total)
			})
		})
	}

	err := eg.Wait()
	if result.Total == 0 {
		q.cfg.Progress.Report(0, 0)
	}
	q.cfg.Progress.Finish()
	if err != nil {
		return result, goerr.Wrap(err, "download drain interrupted", goerr.V("done", result.Done()), goerr.V("total", result.Total))
	}

	logger.Info("All images downloaded",
		"total", result.Total,
		"downloaded", result.Downloaded,
		"skipped", result.Skipped,
		"dropped", result.Dropped,
	)
	return result, nil
}

func (q *DownloadQueue) work(ctx context.Context, record func(outcome)) error {
	logger := ctxlog.From(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		task, ok := q.pop()
		if !ok {
			logger.Debug("Worker finished, queue is empty", "workers", q.cfg.Concurrency)
			return nil
		}

		o, err := q.download(ctx, task)
		if err != nil {
			return err
		}
		record(o)
	}
}

// download runs one task to completion. The only returned error is ctx cancellation.
func (q *DownloadQueue) download(ctx context.Context, task model.DownloadTask) (outcome, error) {
	logger := ctxlog.From(ctx).With("path", task.Path)

	if info, err := os.Stat(task.Path); err == nil && info.Size() > 0 {
		logger.Debug("Image already exists, skipping")
		return outcomeSkipped, nil
	}

	for attempt := 1; ; attempt++ {
		data, err := q.transport.Get(ctx, task.URL)
		if err == nil {
			if err := os.WriteFile(task.Path, data, 0644); err != nil {
				logger.Error("Failed to write image", "error", err)
				return outcomeDropped, nil
			}
			if attempt > 1 {
				logger.Info("Image downloaded after retry", "attempt", attempt)
			}
			return outcomeDownloaded, nil
		}

		if ctx.Err() != nil {
			return outcomeDropped, ctx.Err()
		}

		if attempt > q.cfg.RetryMax {
			logger.Error("Giving up image after retries",
				"url", task.URL,
				"attempts", attempt,
				"error", err,
			)
			return outcomeDropped, nil
		}

		logger.Warn("Image download failed, retrying",
			"url", task.URL,
			"attempt", attempt,
			"retry_max", q.cfg.RetryMax,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return outcomeDropped, ctx.Err()
		case <-time.After(q.cfg.RetryInterval):
		}
	}
}
