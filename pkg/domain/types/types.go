package types

import (
	"github.com/m-mizutani/goerr/v2"
)

// Version is the application version, overridden at build time with -ldflags
var Version = "dev"

// Error tags used to classify failures across layers
var (
	// ErrTagTransport marks network, timeout and non-2xx failures
	ErrTagTransport = goerr.NewTag("transport")
	// ErrTagScrape marks an expected page structure that is absent (e.g. paywalled section)
	ErrTagScrape = goerr.NewTag("scrape")
	// ErrTagParse marks a JSON or catalog decode failure
	ErrTagParse = goerr.NewTag("parse")
	// ErrTagFatal marks failures that must abort the whole run
	ErrTagFatal = goerr.NewTag("fatal")
)

// PicType selects which image variant(s) are queued for a manifest entry
type PicType string

const (
	PicTypeJPG  PicType = "jpg"
	PicTypeWebP PicType = "webp"
	PicTypeBoth PicType = "both"
)

// Validate returns an error if the PicType is not one of the known values
func (p PicType) Validate() error {
	switch p {
	case PicTypeJPG, PicTypeWebP, PicTypeBoth:
		return nil
	default:
		return goerr.New("invalid pic type", goerr.V("pic_type", string(p)), goerr.T(ErrTagFatal))
	}
}

// WantJPG reports whether the JPG variant should be downloaded
func (p PicType) WantJPG() bool {
	return p == PicTypeJPG || p == PicTypeBoth
}

// WantWebP reports whether the WebP variant should be downloaded
func (p PicType) WantWebP() bool {
	return p == PicTypeWebP || p == PicTypeBoth
}
