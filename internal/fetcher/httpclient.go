package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"
	"resty.dev/v3"

	"fundamentusapi/internal/ratelimit"
)

const (
	// DefaultTimeout bounds a single page request
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent identifies as a desktop Chrome; the source rejects
	// requests without a browser-like agent.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"

	defaultReferer = "https://www.fundamentus.com.br/"
)

// browserHeaders returns the header set sent with every page request
func browserHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":                userAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7",
		"Referer":                   defaultReferer,
		"Upgrade-Insecure-Requests": "1",
		"Cache-Control":             "max-age=0",
	}
}

// NewHTTPClient creates an HTTP client that looks like a browser to the upstream.
// Retries are disabled: retry policy belongs to the caller.
func NewHTTPClient(userAgent string, timeout time.Duration) *resty.Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeaders(browserHeaders(userAgent)).
		SetRetryCount(0)

	// Some upstream pages set session cookies on the first hit
	if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
		client.SetCookieJar(jar)
	}

	return client
}

// PageFetcher fetches HTML pages over HTTP
type PageFetcher struct {
	client  *resty.Client
	limiter *ratelimit.Limiter
}

// NewPageFetcher creates a page fetcher. A nil limiter disables rate limiting.
func NewPageFetcher(client *resty.Client, limiter *ratelimit.Limiter) *PageFetcher {
	return &PageFetcher{
		client:  client,
		limiter: limiter,
	}
}

// Fetch retrieves rawURL and returns its body decoded to UTF-8
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", &FetchError{
			Type:    ErrorTypeUnknown,
			Message: fmt.Sprintf("invalid url %q", rawURL),
			Cause:   err,
		}
	}

	if err := f.limiter.Wait(ctx, u.Host); err != nil {
		return "", NewTimeoutError(err)
	}

	start := time.Now()
	resp, err := f.client.R().
		SetContext(ctx).
		Get(rawURL)
	if err != nil {
		slog.Debug("page request failed",
			"url", rawURL,
			"duration", time.Since(start),
			"error", err.Error())
		return "", classifyTransportError(err)
	}

	slog.Debug("page request completed",
		"url", rawURL,
		"status_code", resp.StatusCode(),
		"duration", time.Since(start))

	if !resp.IsSuccess() {
		return "", ClassifyHTTPError(resp.StatusCode())
	}

	body, err := decodeBody(resp.Bytes(), resp.Header().Get("Content-Type"))
	if err != nil {
		return "", NewNetworkError(fmt.Errorf("decode body: %w", err))
	}
	return body, nil
}

// Close releases the client's idle connections
func (f *PageFetcher) Close() error {
	return f.client.Close()
}

// classifyTransportError maps a transport failure to a timeout or network error
func classifyTransportError(err error) *FetchError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewTimeoutError(err)
	}
	return NewNetworkError(err)
}

// decodeBody converts body to UTF-8 using the Content-Type charset, falling
// back to <meta> sniffing. The source page is served as ISO-8859-1.
// An empty body decodes to an empty document.
func decodeBody(body []byte, contentType string) (string, error) {
	if len(body) == 0 {
		return "", nil
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", err
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
