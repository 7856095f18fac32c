package interfaces

import "github.com/m-mizutani/comicdl/pkg/domain/model"

// PageScraper extracts structured records from raw pages. Page markup is not
// a stable contract, so implementations are expected to break and be versioned.
type PageScraper interface {
	// CSRFToken extracts the anti-forgery token from the landing page
	CSRFToken(page []byte) (string, error)

	// BookTitle extracts the book title from the book source page
	BookTitle(page []byte) (string, error)

	// Catalog decodes the book catalog JSON
	Catalog(data []byte) (*model.Catalog, error)

	// Manifest extracts the image manifest embedded in a section page
	Manifest(page []byte) (*model.Manifest, error)
}
