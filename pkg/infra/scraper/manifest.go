package scraper

import (
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/comicdl/pkg/domain/model"
	"github.com/m-mizutani/comicdl/pkg/domain/types"
)

var (
	// window.PG_CONFIG.images = [ ... ];
	imagesPattern = regexp.MustCompile(`(?i)window\.PG_CONFIG\.images\s*=\s*\[([\s\S]+?)\];`)
	entryPattern  = regexp.MustCompile(`\{([\s\S]+?)\}`)
	titlePattern  = regexp.MustCompile(`(?i)title\s*:\s*"([\s\S]+?)",`)
	// url: window.IS_SUPPORT_WEBP ? "<webp>" : "<jpg>",
	urlPattern = regexp.MustCompile(`(?i)url\s*:[\s\S]+?\?\s*"([\s\S]+?)"\s*:\s*"([\s\S]+?)",`)

	// Signed URLs carry a volatile numeric suffix after the first %3D and
	// after the access key id that must be stripped to get a stable URL.
	signaturePattern = regexp.MustCompile(`(?i)^([\s\S]+?%3D)[0-9]*`)
	accessKeyPattern = regexp.MustCompile(`(?i)(NOSAccessKeyId=[0-9a-f]{32})[0-9]*`)
)

// Manifest extracts the image list from the page script state. A page
// without the manifest marker, or with an empty list, is a paywalled section
// and returns an error tagged types.ErrTagScrape.
func (s *Scraper) Manifest(page []byte) (*model.Manifest, error) {
	block := imagesPattern.FindSubmatch(page)
	if block == nil {
		return nil, goerr.New("image manifest not found", goerr.T(types.ErrTagScrape))
	}

	manifest := &model.Manifest{}
	for _, entry := range entryPattern.FindAllSubmatch(block[1], -1) {
		title := titlePattern.FindSubmatch(entry[1])
		urls := urlPattern.FindSubmatch(entry[1])
		if title == nil || urls == nil {
			manifest.Malformed++
			continue
		}

		manifest.Images = append(manifest.Images, model.ImageEntry{
			Title:   string(title[1]),
			WebPURL: normalizeURL(string(urls[1])),
			JPGURL:  normalizeURL(string(urls[2])),
		})
	}

	if len(manifest.Images) == 0 && manifest.Malformed == 0 {
		return nil, goerr.New("image manifest is empty", goerr.T(types.ErrTagScrape))
	}

	return manifest, nil
}

func normalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if loc := signaturePattern.FindStringSubmatchIndex(u); loc != nil {
		u = u[:loc[3]] + u[loc[1]:]
	}
	return accessKeyPattern.ReplaceAllString(u, "$1")
}
