package stylegen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	defaultFetchCacheTTL     = 5 * time.Minute
	defaultFetchCacheCleanup = 15 * time.Minute
	defaultFetchTimeout      = 2 * time.Minute
	maxFetchBytes            = 32 << 20
	maxParallelFetches       = 4
)

// Fetcher retrieves images by URL. Successful fetches are cached for a short
// TTL and concurrent fetches of the same URL share one request. Data URIs are
// decoded in place without any network call.
type Fetcher struct {
	client *http.Client
	cache  *cache.Cache
	group  singleflight.Group
	logger *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetchHTTPClient sets the HTTP client used for downloads.
func WithFetchHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithFetchCacheTTL sets how long fetched images are kept. A zero or negative
// ttl disables caching.
func WithFetchCacheTTL(ttl time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if ttl <= 0 {
			f.cache = nil
			return
		}
		f.cache = cache.New(ttl, 3*ttl)
	}
}

// WithFetchLogger sets the logger.
func WithFetchLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher with a 5 minute cache and a 2 minute HTTP timeout.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: defaultFetchTimeout},
		cache:  cache.New(defaultFetchCacheTTL, defaultFetchCacheCleanup),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads one image. A non-2xx response is an error; the MIME type is
// taken from the Content-Type header and normalized to png, webp or jpeg.
func (f *Fetcher) Fetch(ctx context.Context, url string) (EncodedImage, error) {
	if IsDataURI(url) {
		return ParseDataURI(url)
	}

	if f.cache != nil {
		if cached, ok := f.cache.Get(url); ok {
			if img, ok := cached.(EncodedImage); ok {
				return img, nil
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return EncodedImage{}, err
	}

	// The shared download outlives any single caller; the HTTP client timeout
	// bounds it instead.
	downloadCtx := context.WithoutCancel(ctx)
	ch := f.group.DoChan(url, func() (interface{}, error) {
		img, err := f.download(downloadCtx, url)
		if err != nil {
			return nil, err
		}
		if f.cache != nil {
			f.cache.SetDefault(url, img)
		}
		return img, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return EncodedImage{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return EncodedImage{}, res.Err
	}

	img, ok := res.Val.(EncodedImage)
	if !ok {
		return EncodedImage{}, fmt.Errorf("unexpected return type from singleflight: %T", res.Val)
	}
	if res.Shared {
		f.logger.Debug("image fetch shared with concurrent caller", "url", url)
	}
	return img, nil
}

// FetchAll downloads urls in parallel and returns the images that could be
// fetched, in input order. Failures are logged and dropped.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []EncodedImage {
	if len(urls) == 0 {
		return nil
	}

	results := make([]*EncodedImage, len(urls))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallelFetches)

	for i, url := range urls {
		eg.Go(func() error {
			img, err := f.Fetch(egCtx, url)
			if err != nil {
				f.logger.Warn("failed to fetch reference image", "url", url, "error", err)
				return nil
			}
			results[i] = &img
			return nil
		})
	}
	_ = eg.Wait()

	images := make([]EncodedImage, 0, len(urls))
	for _, img := range results {
		if img != nil {
			images = append(images, *img)
		}
	}
	return images
}

func (f *Fetcher) download(ctx context.Context, url string) (EncodedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("failed to fetch image %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return EncodedImage{}, fmt.Errorf("failed to fetch image %s: HTTP %d %s", url, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return EncodedImage{}, fmt.Errorf("failed to read image %s: %w", url, err)
	}
	if len(data) > maxFetchBytes {
		return EncodedImage{}, fmt.Errorf("image %s exceeds %d bytes", url, maxFetchBytes)
	}
	if len(data) == 0 {
		return EncodedImage{}, fmt.Errorf("image %s is empty", url)
	}

	return EncodedImage{data: data, mimeType: NormalizeMIMEType(resp.Header.Get("Content-Type"))}, nil
}
