package model

// DownloadTask is a single image to fetch and persist
type DownloadTask struct {
	URL  string // Image URL
	Path string // Destination file path
}

// DownloadResult represents the outcome of draining a download queue
type DownloadResult struct {
	Total      int // Tasks in the queue when the drain started
	Downloaded int // Tasks fetched and written
	Skipped    int // Tasks whose destination already existed with content
	Dropped    int // Tasks abandoned after exhausting retries or failing to write
}

// Done returns the number of finished tasks regardless of outcome
func (r *DownloadResult) Done() int {
	return r.Downloaded + r.Skipped + r.Dropped
}
