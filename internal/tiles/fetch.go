package tiles

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/ndvimap/internal/apperr"
	"github.com/woozymasta/ndvimap/internal/metrics"
	"github.com/woozymasta/ndvimap/internal/render"
)

// Tile is a fetched and validated tile image.
type Tile struct {
	URL         string
	Data        []byte
	ContentType string
	Format      string
	Width       int
	Height      int
}

// FetcherOptions bound the in-memory tile cache.
type FetcherOptions struct {
	CacheSize int
	TTL       time.Duration
}

// Fetcher downloads tiles and keeps recently used ones in memory.
type Fetcher struct {
	client *http.Client
	cache  *otter.Cache[string, *Tile]
}

// NewFetcher creates a fetcher using client for requests.
func NewFetcher(client *http.Client, opts FetcherOptions) (*Fetcher, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultURLTTL
	}

	cache, err := otter.New(&otter.Options[string, *Tile]{
		MaximumSize:      opts.CacheSize,
		ExpiryCalculator: otter.ExpiryWriting[string, *Tile](opts.TTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create tile cache: %w", err)
	}

	return &Fetcher{client: client, cache: cache}, nil
}

// Fetch returns the tile at url. Non-200 responses and undecodable or
// placeholder images are *apperr.UpstreamError and are not cached.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Tile, error) {
	if tile, ok := f.cache.GetIfPresent(url); ok {
		metrics.CacheHits.WithLabelValues("tile").Inc()
		return tile, nil
	}
	metrics.CacheMisses.WithLabelValues("tile").Inc()

	return f.cache.Get(ctx, url, otter.LoaderFunc[string, *Tile](f.download))
}

func (f *Fetcher) download(ctx context.Context, url string) (*Tile, error) {
	const op = "fetch tile"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &apperr.UpstreamError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.UpstreamError{Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &apperr.UpstreamError{Op: op, Status: resp.StatusCode, Body: apperr.TruncateBody(body)}
	}

	img, format, err := render.Decode(body)
	if err != nil {
		log.Trace().Err(err).Str("url", url).Msg("Rejected tile image")
		return nil, &apperr.UpstreamError{Op: op, Status: resp.StatusCode, Err: err}
	}

	b := img.Bounds()
	return &Tile{
		URL:         url,
		Data:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Format:      format,
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}
