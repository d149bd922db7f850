package fetcher

import "context"

// Fetcher retrieves a remote HTML document.
// Implementations must treat any non-2xx response as a failure rather than
// returning its body as a valid payload.
type Fetcher interface {
	// Fetch issues a GET for url and returns the decoded (UTF-8) document.
	// Errors are *FetchError values classified as network, timeout or HTTP.
	Fetch(ctx context.Context, url string) (string, error)
}
