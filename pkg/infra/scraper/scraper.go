// Package scraper extracts records from manhua.163.com pages.
//
// None of the extracted markup is a published contract: the selectors and
// patterns below are pinned to the fixtures in testdata and are expected to
// need updates whenever the site changes.
package scraper

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/comicdl/pkg/domain/interfaces"
	"github.com/m-mizutani/comicdl/pkg/domain/model"
	"github.com/m-mizutani/comicdl/pkg/domain/types"
)

// Scraper implements interfaces.PageScraper
type Scraper struct{}

var _ interfaces.PageScraper = (*Scraper)(nil)

// New creates a new Scraper
func New() *Scraper {
	return &Scraper{}
}

// CSRFToken extracts the value of the hidden j-csrf input of the landing page
func (s *Scraper) CSRFToken(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse landing page", goerr.T(types.ErrTagParse))
	}

	token := strings.TrimSpace(doc.Find(`input#j-csrf[type="hidden"]`).First().AttrOr("value", ""))
	if token == "" {
		return "", goerr.New("csrf token not found in landing page", goerr.T(types.ErrTagScrape))
	}

	return token, nil
}

// BookTitle returns the first comma separated part of the <title> element
func (s *Scraper) BookTitle(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse book page", goerr.T(types.ErrTagParse))
	}

	raw := doc.Find("title").First().Text()
	title := strings.TrimSpace(strings.SplitN(raw, ",", 2)[0])
	if title == "" {
		return "", goerr.New("book title not found", goerr.V("title", raw), goerr.T(types.ErrTagScrape))
	}

	return title, nil
}

// Catalog decodes the catalog JSON of a book
func (s *Scraper) Catalog(data []byte) (*model.Catalog, error) {
	var catalog model.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, goerr.Wrap(err, "failed to decode catalog", goerr.V("size", len(data)), goerr.T(types.ErrTagParse))
	}
	return &catalog, nil
}
