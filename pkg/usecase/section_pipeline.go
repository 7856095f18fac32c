package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/comicdl/pkg/domain/interfaces"
	"github.com/m-mizutani/comicdl/pkg/domain/model"
	"github.com/m-mizutani/comicdl/pkg/domain/types"
	"github.com/m-mizutani/comicdl/pkg/utils/filename"
)

// SectionPipelineConfig configures a SectionPipeline
type SectionPipelineConfig struct {
	BaseURL  string
	PicType  types.PicType
	Progress *Progress // Optional section progress line
}

// SectionPipeline scrapes sections one at a time and feeds the resulting
// images into a DownloadQueue
type SectionPipeline struct {
	transport interfaces.Transport
	scraper   interfaces.PageScraper
	queue     *DownloadQueue
	endpoints endpoints
	cfg       SectionPipelineConfig

	mu    sync.Mutex
	tasks []model.SectionTask
}

// NewSectionPipeline creates an empty SectionPipeline feeding queue
func NewSectionPipeline(
	transport interfaces.Transport,
	scraper interfaces.PageScraper,
	queue *DownloadQueue,
	cfg SectionPipelineConfig,
) *SectionPipeline {
	if cfg.PicType == "" {
		cfg.PicType = types.PicTypeJPG
	}
	return &SectionPipeline{
		transport: transport,
		scraper:   scraper,
		queue:     queue,
		endpoints: newEndpoints(cfg.BaseURL),
		cfg:       cfg,
	}
}

// Enqueue appends tasks to the end of the pipeline
func (p *SectionPipeline) Enqueue(tasks ...model.SectionTask) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, tasks...)
}

// Len returns the number of sections waiting in the pipeline
func (p *SectionPipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

func (p *SectionPipeline) pop() (model.SectionTask, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.tasks) == 0 {
		return model.SectionTask{}, false
	}
	task := p.tasks[0]
	p.tasks = p.tasks[1:]
	return task, true
}

// Drain processes every section in FIFO order, strictly one after another.
// Paywalled or failing sections are logged and skipped. Only a cancelled ctx
// makes Drain return an error.
func (p *SectionPipeline) Drain(ctx context.Context) (*model.SectionResult, error) {
	logger := ctxlog.From(ctx)
	result := &model.SectionResult{Total: p.Len()}

	logger.Info("Preparing section directories", "total", result.Total)

	for done := 1; ; done++ {
		if err := ctx.Err(); err != nil {
			p.cfg.Progress.Finish()
			return result, goerr.Wrap(err, "section drain interrupted", goerr.V("total", result.Total))
		}

		task, ok := p.pop()
		if !ok {
			break
		}

		queued, err := p.process(ctx, task)
		switch {
		case err == nil:
			result.Queued += queued
		case ctx.Err() != nil:
			p.cfg.Progress.Finish()
			return result, goerr.Wrap(ctx.Err(), "section drain interrupted", goerr.V("total", result.Total))
		case goerr.HasTag(err, types.ErrTagScrape):
			result.Paywalled++
			logger.Warn("Section is paywalled, skipping",
				"book_id", task.BookID,
				"section_id", task.SectionID,
			)
		default:
			result.Failed++
			logger.Error("Failed to prepare section",
				"book_id", task.BookID,
				"section_id", task.SectionID,
				"error", err,
			)
		}

		p.cfg.Progress.Report(done, result.Total)
	}

	if result.Total == 0 {
		p.cfg.Progress.Report(0, 0)
	}
	p.cfg.Progress.Finish()

	logger.Info("All section directories prepared",
		"total", result.Total,
		"queued_images", result.Queued,
		"paywalled", result.Paywalled,
		"failed", result.Failed,
	)
	return result, nil
}

func (p *SectionPipeline) process(ctx context.Context, task model.SectionTask) (int, error) {
	if err := os.MkdirAll(task.OutputDir, 0755); err != nil {
		return 0, goerr.Wrap(err, "failed to create section directory", goerr.V("dir", task.OutputDir))
	}

	sectionURL := p.endpoints.reader(task.BookID, task.SectionID)
	page, err := p.transport.Get(ctx, sectionURL)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to fetch section page", goerr.V("url", sectionURL))
	}

	manifest, err := p.scraper.Manifest(page)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to extract manifest", goerr.V("url", sectionURL))
	}

	if manifest.Malformed > 0 {
		ctxlog.From(ctx).Warn("Skipped malformed manifest entries",
			"section_id", task.SectionID,
			"malformed", manifest.Malformed,
		)
	}

	tasks := BuildDownloadTasks(manifest, task.OutputDir, p.cfg.PicType)
	p.queue.Enqueue(tasks...)
	return len(tasks), nil
}

var imageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".gif":  {},
}

// splitImageExt separates a trailing image extension from name. Other dots,
// as in "1.5", belong to the title.
func splitImageExt(name string) (string, string) {
	ext := filepath.Ext(name)
	if _, ok := imageExts[strings.ToLower(ext)]; !ok {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}

// BuildDownloadTasks turns manifest entries into one task per wanted image
// variant. A JPG keeps a title that already carries an image extension, a
// WebP always replaces it.
func BuildDownloadTasks(manifest *model.Manifest, dir string, picType types.PicType) []model.DownloadTask {
	var tasks []model.DownloadTask

	for _, img := range manifest.Images {
		base, ext := splitImageExt(filename.Sanitize(img.Title))

		if picType.WantJPG() {
			if ext == "" {
				ext = ".jpg"
			}
			tasks = append(tasks, model.DownloadTask{URL: img.JPGURL, Path: filepath.Join(dir, base+ext)})
		}
		if picType.WantWebP() {
			tasks = append(tasks, model.DownloadTask{URL: img.WebPURL, Path: filepath.Join(dir, base+".webp")})
		}
	}

	return tasks
}

// PlanSections lays out the section directories of a book under bookDir.
// Books with several volumes get a directory per volume. A section that
// would reuse an already planned directory is nested under it by section id.
func PlanSections(catalog *model.Catalog, bookDir string) []model.SectionTask {
	var tasks []model.SectionTask
	planned := make(map[string]struct{})

	volumes := catalog.Volumes()
	for _, volume := range volumes {
		dir := bookDir
		if len(volumes) > 1 {
			dir = filepath.Join(bookDir, filename.Sanitize(volume.FullTitle))
		}

		for _, section := range volume.Sections {
			out := filepath.Join(dir, filename.Sanitize(section.FullTitle))
			if _, ok := planned[out]; ok {
				out = filepath.Join(out, filename.Sanitize(section.SectionID))
			}
			planned[out] = struct{}{}

			tasks = append(tasks, model.SectionTask{
				BookID:    section.BookID,
				SectionID: section.SectionID,
				OutputDir: out,
			})
		}
	}

	return tasks
}
