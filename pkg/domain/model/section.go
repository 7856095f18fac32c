package model

// SectionTask is a chapter whose image manifest must be scraped
type SectionTask struct {
	BookID    string
	SectionID string
	OutputDir string
}

// Catalog is the decoded body of the book catalog endpoint
type Catalog struct {
	Catalog struct {
		Sections []CatalogVolume `json:"sections"`
	} `json:"catalog"`
}

// CatalogVolume groups sections of a book. Books with a single volume
// do not get a volume level directory.
type CatalogVolume struct {
	FullTitle string           `json:"fullTitle"`
	Sections  []CatalogSection `json:"sections"`
}

// CatalogSection is a single chapter entry of the catalog
type CatalogSection struct {
	BookID    string `json:"bookId"`
	SectionID string `json:"sectionId"`
	FullTitle string `json:"fullTitle"`
}

// Volumes returns the catalog volumes
func (c *Catalog) Volumes() []CatalogVolume {
	return c.Catalog.Sections
}

// SectionResult summarizes a drained section pipeline
type SectionResult struct {
	Total     int // Sections in the pipeline when the drain started
	Queued    int // Download tasks produced by all sections
	Paywalled int // Sections without a manifest
	Failed    int // Sections whose directory or page could not be prepared
}

// BookResult summarizes the processing of one book
type BookResult struct {
	BookID   string
	Title    string
	Sections SectionResult
	Download DownloadResult
}
