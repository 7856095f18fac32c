package interfaces

import "context"

// Transport issues HTTP GET requests sharing one session (cookie jar)
type Transport interface {
	// Get fetches url and returns the whole response body
	Get(ctx context.Context, url string) ([]byte, error)
}
