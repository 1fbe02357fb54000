package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/backdrop/internal/config"
	"github.com/yokitheyo/backdrop/internal/domain"
)

// HTTPFetcher downloads source images with a single GET per call. It never
// retries.
type HTTPFetcher struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
}

func NewHTTPFetcher(cfg *config.FetchConfig, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBytes := int64(cfg.MaxImageSizeMB) * 1024 * 1024
	if maxBytes <= 0 {
		maxBytes = 25 * 1024 * 1024
	}
	return &HTTPFetcher{
		client:    client,
		timeout:   timeout,
		maxBytes:  maxBytes,
		userAgent: cfg.UserAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := domain.ValidateImageURL(url); err != nil {
		return nil, &domain.FetchError{URL: url, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: url, Cause: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("url", url).Msg("image request failed")
		return nil, &domain.FetchError{URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zlog.Logger.Warn().Str("url", url).Int("status", resp.StatusCode).Msg("image host returned non-2xx status")
		return nil, &domain.FetchError{URL: url, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &domain.FetchError{URL: url, Cause: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, &domain.FetchError{URL: url, Cause: fmt.Errorf("%w (%d bytes)", domain.ErrImageTooLarge, f.maxBytes)}
	}

	zlog.Logger.Debug().
		Str("url", url).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("image fetched")

	return data, nil
}
