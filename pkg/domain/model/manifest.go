package model

// Manifest is the list of images embedded in a section page
type Manifest struct {
	Images    []ImageEntry
	Malformed int // Entries skipped because title or url was missing
}

// ImageEntry is one page image with its two format URLs
type ImageEntry struct {
	Title   string
	WebPURL string
	JPGURL  string
}
