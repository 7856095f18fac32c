package cli_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/comicdl/pkg/cli"
	"github.com/m-mizutani/comicdl/pkg/domain/types"
)

const readerPage = `<html><body><script>
window.PG_CONFIG.images = [
  {
    title: "001",
    url: window.IS_SUPPORT_WEBP ? "%[1]s/img/001.webp" : "%[1]s/img/001.jpg",
  },
];
</script></body></html>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	r := chi.NewRouter()
	r.Get("/source/100", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>测试漫画,网易漫画</title></head></html>"))
	})
	r.Get("/book/catalog/100.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"catalog":{"sections":[{"fullTitle":"正文","sections":[{"bookId":"100","sectionId":"1","fullTitle":"第1话"}]}]}}`))
	})
	r.Get("/reader/100/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fmt.Sprintf(readerPage, srv.URL)))
	})
	r.Get("/img/{name}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("image"))
	})

	srv = httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_CrawlWithoutLogin(t *testing.T) {
	srv := newSite(t)
	out := t.TempDir()
	logFile := filepath.Join(t.TempDir(), "comicdl.log")

	err := cli.Run(context.Background(), []string{
		"comicdl",
		"--log-format", "json",
		"--log-output", logFile,
		"crawl",
		"--book-id", "100",
		"--no-login",
		"--base-url", srv.URL,
		"--output-dir", out,
		"--download-threads", "2",
		"--retry-times-max", "1",
	})
	gt.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "测试漫画", "第1话", "001.jpg"))
	gt.NoError(t, err)
	gt.Equal(t, string(data), "image")

	logs, err := os.ReadFile(logFile)
	gt.NoError(t, err)
	gt.String(t, string(logs)).Contains(`"run_id"`)
	gt.String(t, string(logs)).Contains("Book finished")
}

func TestRun_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing book id", args: []string{"comicdl", "--log-output", "stderr", "crawl", "--no-login"}},
		{name: "bad pic type", args: []string{"comicdl", "crawl", "--book-id", "1", "--pic-type", "gif"}},
		{name: "bad log level", args: []string{"comicdl", "--log-level", "loud", "crawl", "--book-id", "1"}},
		{name: "bad log format", args: []string{"comicdl", "--log-format", "yaml", "crawl", "--book-id", "1"}},
		{name: "unwritable log output", args: []string{"comicdl", "--log-output", "/nonexistent-dir/comicdl/comicdl.log", "crawl", "--book-id", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cli.Run(context.Background(), tt.args)
			gt.Error(t, err)
			gt.True(t, goerr.HasTag(err, types.ErrTagFatal))
		})
	}
}
