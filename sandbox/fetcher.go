package sandbox

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// Fetcher reads the probe report from a running sandbox server
type Fetcher struct {
	logger *zap.Logger
	client *http.Client
}

// FetcherOption defines a functional option for Fetcher
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the HTTP client used for the request
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// NewFetcher creates a Fetcher using http.DefaultClient
func NewFetcher(logger *zap.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		logger: logger,
		client: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch issues a single GET to the server root and returns the whole body.
// There is no retry; the only deadline is the one carried by ctx.
func (f *Fetcher) Fetch(ctx context.Context, port int) (string, error) {
	url := fmt.Sprintf("http://localhost:%d/", port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response from %s: %w", url, err)
	}

	// A failing probe program surfaces as a server error page, not a report.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: HTTP %d: %s", url, resp.StatusCode, firstLine(string(body)))
	}

	f.logger.Info("fetched probe report",
		zap.String("url", url),
		zap.Int("bytes", len(body)))

	return string(body), nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
