package usecase_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/comicdl/pkg/domain/model"
	"github.com/m-mizutani/comicdl/pkg/domain/types"
	"github.com/m-mizutani/comicdl/pkg/infra/scraper"
	"github.com/m-mizutani/comicdl/pkg/usecase"
)

const testBase = "https://comics.example.com"

// sectionSite serves reader pages keyed by section id, and any image
func sectionSite(pages map[string][]byte) *mockTransport {
	return &mockTransport{getFunc: func(ctx context.Context, url string) ([]byte, error) {
		if strings.Contains(url, "/img/") {
			return []byte("image " + url), nil
		}
		for id, page := range pages {
			if strings.HasSuffix(url, "/reader/100/"+id) {
				return page, nil
			}
		}
		return nil, transportError(url)
	}}
}

func newPipeline(transport *mockTransport, picType types.PicType) (*usecase.SectionPipeline, *usecase.DownloadQueue) {
	queue := usecase.NewDownloadQueue(transport, usecase.DownloadQueueConfig{Concurrency: 1})
	pipeline := usecase.NewSectionPipeline(transport, scraper.New(), queue, usecase.SectionPipelineConfig{
		BaseURL: testBase,
		PicType: picType,
	})
	return pipeline, queue
}

func TestSectionPipeline_Drain_QueuesManifestImages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "book", "第1话")
	transport := sectionSite(map[string][]byte{
		"1001": sectionPage(testBase, "001", "002", "003"),
	})

	pipeline, queue := newPipeline(transport, types.PicTypeJPG)
	pipeline.Enqueue(model.SectionTask{BookID: "100", SectionID: "1001", OutputDir: dir})

	result, err := pipeline.Drain(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, *result, model.SectionResult{Total: 1, Queued: 3})
	gt.Equal(t, queue.Len(), 3)
	gt.Equal(t, pipeline.Len(), 0)

	info, err := os.Stat(dir)
	gt.NoError(t, err)
	gt.True(t, info.IsDir())
}

func TestSectionPipeline_Drain_BothFormats(t *testing.T) {
	dir := t.TempDir()
	transport := sectionSite(map[string][]byte{
		"1001": sectionPage(testBase, "001"),
	})

	pipeline, queue := newPipeline(transport, types.PicTypeBoth)
	pipeline.Enqueue(model.SectionTask{BookID: "100", SectionID: "1001", OutputDir: dir})

	result, err := pipeline.Drain(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, result.Queued, 2)

	dl, err := queue.Drain(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, dl.Downloaded, 2)

	_, err = os.Stat(filepath.Join(dir, "001.jpg"))
	gt.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "001.webp"))
	gt.NoError(t, err)
	gt.Equal(t, transport.CallCount(testBase+"/img/001.jpg"), 1)
	gt.Equal(t, transport.CallCount(testBase+"/img/001.webp"), 1)
}

func TestSectionPipeline_Drain_SkipsPaywalledSection(t *testing.T) {
	root := t.TempDir()
	transport := sectionSite(map[string][]byte{
		"1001": []byte(paywalledPage),
		"1002": sectionPage(testBase, "001", "002"),
	})

	pipeline, queue := newPipeline(transport, types.PicTypeJPG)
	pipeline.Enqueue(
		model.SectionTask{BookID: "100", SectionID: "1001", OutputDir: filepath.Join(root, "a")},
		model.SectionTask{BookID: "100", SectionID: "1002", OutputDir: filepath.Join(root, "b")},
	)

	result, err := pipeline.Drain(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, *result, model.SectionResult{Total: 2, Queued: 2, Paywalled: 1})
	gt.Equal(t, queue.Len(), 2)
}

func TestSectionPipeline_Drain_ContinuesAfterFetchFailure(t *testing.T) {
	root := t.TempDir()
	transport := sectionSite(map[string][]byte{
		"1002": sectionPage(testBase, "001"),
	})

	pipeline, queue := newPipeline(transport, types.PicTypeJPG)
	pipeline.Enqueue(
		model.SectionTask{BookID: "100", SectionID: "1001", OutputDir: filepath.Join(root, "a")},
		model.SectionTask{BookID: "100", SectionID: "1002", OutputDir: filepath.Join(root, "b")},
	)

	result, err := pipeline.Drain(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, *result, model.SectionResult{Total: 2, Queued: 1, Failed: 1})
	gt.Equal(t, queue.Len(), 1)
}

func TestSectionPipeline_Drain_SequentialFIFO(t *testing.T) {
	root := t.TempDir()
	pages := map[string][]byte{}
	var tasks []model.SectionTask
	for _, id := range []string{"1003", "1001", "1005", "1002"} {
		pages[id] = sectionPage(testBase, "p"+id)
		tasks = append(tasks, model.SectionTask{BookID: "100", SectionID: id, OutputDir: filepath.Join(root, id)})
	}
	transport := sectionSite(pages)

	var out bytes.Buffer
	queue := usecase.NewDownloadQueue(transport, usecase.DownloadQueueConfig{Concurrency: 1})
	pipeline := usecase.NewSectionPipeline(transport, scraper.New(), queue, usecase.SectionPipelineConfig{
		BaseURL:  testBase,
		Progress: usecase.NewProgress(&out, "sections"),
	})
	pipeline.Enqueue(tasks...)

	_, err := pipeline.Drain(context.Background())
	gt.NoError(t, err)

	calls := transport.Calls()
	gt.A(t, calls).Length(4)
	for i, task := range tasks {
		gt.Equal(t, calls[i], testBase+"/reader/100/"+task.SectionID)
	}
	gt.Equal(t, transport.MaxInFlight(), 1)
	gt.String(t, out.String()).Contains("25.00%")
	gt.String(t, out.String()).Contains("100.00%")
}

func TestBuildDownloadTasks(t *testing.T) {
	manifest := &model.Manifest{Images: []model.ImageEntry{
		{Title: "001", WebPURL: "https://x/001.webp", JPGURL: "https://x/001.jpg"},
		{Title: "002.png", WebPURL: "https://x/002.webp", JPGURL: "https://x/002.png"},
		{Title: "a/b:c", WebPURL: "https://x/abc.webp", JPGURL: "https://x/abc.jpg"},
	}}

	tests := []struct {
		name    string
		picType types.PicType
		want    []model.DownloadTask
	}{
		{
			name:    "jpg",
			picType: types.PicTypeJPG,
			want: []model.DownloadTask{
				{URL: "https://x/001.jpg", Path: filepath.Join("out", "001.jpg")},
				{URL: "https://x/002.png", Path: filepath.Join("out", "002.png")},
				{URL: "https://x/abc.jpg", Path: filepath.Join("out", "abc.jpg")},
			},
		},
		{
			name:    "webp",
			picType: types.PicTypeWebP,
			want: []model.DownloadTask{
				{URL: "https://x/001.webp", Path: filepath.Join("out", "001.webp")},
				{URL: "https://x/002.webp", Path: filepath.Join("out", "002.webp")},
				{URL: "https://x/abc.webp", Path: filepath.Join("out", "abc.webp")},
			},
		},
		{
			name:    "both",
			picType: types.PicTypeBoth,
			want: []model.DownloadTask{
				{URL: "https://x/001.jpg", Path: filepath.Join("out", "001.jpg")},
				{URL: "https://x/001.webp", Path: filepath.Join("out", "001.webp")},
				{URL: "https://x/002.png", Path: filepath.Join("out", "002.png")},
				{URL: "https://x/002.webp", Path: filepath.Join("out", "002.webp")},
				{URL: "https://x/abc.jpg", Path: filepath.Join("out", "abc.jpg")},
				{URL: "https://x/abc.webp", Path: filepath.Join("out", "abc.webp")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Equal(t, usecase.BuildDownloadTasks(manifest, "out", tt.picType), tt.want)
		})
	}
}

func TestBuildDownloadTasks_DottedTitles(t *testing.T) {
	manifest := &model.Manifest{Images: []model.ImageEntry{
		{Title: "1.5", WebPURL: "https://x/15.webp", JPGURL: "https://x/15.jpg"},
		{Title: "1.6", WebPURL: "https://x/16.webp", JPGURL: "https://x/16.jpg"},
		{Title: "vol.2.PNG", WebPURL: "https://x/v2.webp", JPGURL: "https://x/v2.png"},
	}}

	tasks := usecase.BuildDownloadTasks(manifest, "out", types.PicTypeBoth)
	gt.Equal(t, tasks, []model.DownloadTask{
		{URL: "https://x/15.jpg", Path: filepath.Join("out", "1.5.jpg")},
		{URL: "https://x/15.webp", Path: filepath.Join("out", "1.5.webp")},
		{URL: "https://x/16.jpg", Path: filepath.Join("out", "1.6.jpg")},
		{URL: "https://x/16.webp", Path: filepath.Join("out", "1.6.webp")},
		{URL: "https://x/v2.png", Path: filepath.Join("out", "vol.2.PNG")},
		{URL: "https://x/v2.webp", Path: filepath.Join("out", "vol.2.webp")},
	})

	paths := make(map[string]struct{})
	for _, task := range tasks {
		paths[task.Path] = struct{}{}
	}
	gt.Equal(t, len(paths), len(tasks))
}

func TestPlanSections(t *testing.T) {
	section := func(id, title string) model.CatalogSection {
		return model.CatalogSection{BookID: "100", SectionID: id, FullTitle: title}
	}
	catalogOf := func(volumes ...model.CatalogVolume) *model.Catalog {
		c := &model.Catalog{}
		c.Catalog.Sections = volumes
		return c
	}

	t.Run("single volume nests sections under the book", func(t *testing.T) {
		tasks := usecase.PlanSections(catalogOf(model.CatalogVolume{
			FullTitle: "正文",
			Sections:  []model.CatalogSection{section("1", "第1话"), section("2", "第2话?")},
		}), "book")

		gt.Equal(t, tasks, []model.SectionTask{
			{BookID: "100", SectionID: "1", OutputDir: filepath.Join("book", "第1话")},
			{BookID: "100", SectionID: "2", OutputDir: filepath.Join("book", "第2话")},
		})
	})

	t.Run("several volumes get their own directory", func(t *testing.T) {
		tasks := usecase.PlanSections(catalogOf(
			model.CatalogVolume{FullTitle: "第一卷", Sections: []model.CatalogSection{section("1", "第1话")}},
			model.CatalogVolume{FullTitle: "第二卷", Sections: []model.CatalogSection{section("2", "第1话")}},
		), "book")

		gt.Equal(t, tasks, []model.SectionTask{
			{BookID: "100", SectionID: "1", OutputDir: filepath.Join("book", "第一卷", "第1话")},
			{BookID: "100", SectionID: "2", OutputDir: filepath.Join("book", "第二卷", "第1话")},
		})
	})

	t.Run("duplicate titles nest by section id", func(t *testing.T) {
		tasks := usecase.PlanSections(catalogOf(model.CatalogVolume{
			Sections: []model.CatalogSection{
				section("1", "番外"),
				section("2", "番外"),
				section("3", "番外"),
			},
		}), "book")

		gt.Equal(t, tasks, []model.SectionTask{
			{BookID: "100", SectionID: "1", OutputDir: filepath.Join("book", "番外")},
			{BookID: "100", SectionID: "2", OutputDir: filepath.Join("book", "番外", "2")},
			{BookID: "100", SectionID: "3", OutputDir: filepath.Join("book", "番外", "3")},
		})
	})

	t.Run("relative titles stay inside the book", func(t *testing.T) {
		tasks := usecase.PlanSections(catalogOf(
			model.CatalogVolume{FullTitle: "..", Sections: []model.CatalogSection{section("1", "..")}},
			model.CatalogVolume{FullTitle: "第二卷", Sections: []model.CatalogSection{section("2", ".")}},
		), "book")

		gt.Equal(t, tasks, []model.SectionTask{
			{BookID: "100", SectionID: "1", OutputDir: filepath.Join("book", "_", "_")},
			{BookID: "100", SectionID: "2", OutputDir: filepath.Join("book", "第二卷", "_")},
		})
		for _, task := range tasks {
			gt.True(t, strings.HasPrefix(task.OutputDir, "book"+string(filepath.Separator)))
		}
	})

	t.Run("empty catalog", func(t *testing.T) {
		gt.A(t, usecase.PlanSections(catalogOf(), "book")).Length(0)
	})
}
