// Package service ties the geometry, statistics, tile and synthesis packages
// into the field-level operations used by the commands.
package service

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/ndvimap/internal/apperr"
	"github.com/woozymasta/ndvimap/internal/geo"
	"github.com/woozymasta/ndvimap/internal/palette"
	"github.com/woozymasta/ndvimap/internal/stats"
	"github.com/woozymasta/ndvimap/internal/synth"
	"github.com/woozymasta/ndvimap/internal/tiles"
)

// Preview sources.
const (
	SourceTile      = "tile"
	SourceSynthetic = "synthetic"
)

// StatsQuerier runs a statistics request.
type StatsQuerier interface {
	Query(ctx context.Context, req stats.Request) ([]stats.Point, error)
}

// TileFetcher downloads and validates a tile.
type TileFetcher interface {
	Fetch(ctx context.Context, url string) (*tiles.Tile, error)
}

// Deps are the collaborators of a Service. Resolver and Fetcher are optional.
type Deps struct {
	Stats    StatsQuerier
	Resolver tiles.Resolver
	URLs     *tiles.URLCache
	Fetcher  TileFetcher
	Palettes *palette.Registry
}

// Options are service-wide defaults.
type Options struct {
	Stats        stats.Options
	Zoom         int
	MaxDimension int
	DefaultNDVI  float64
	Palette      string
}

// Service answers time-series, tile and preview requests for fields.
type Service struct {
	deps Deps
	opts Options
}

// New creates a service. A nil URL cache or palette registry is replaced
// with a fresh one.
func New(deps Deps, opts Options) *Service {
	if deps.URLs == nil {
		deps.URLs = tiles.NewURLCache()
	}
	if deps.Palettes == nil {
		deps.Palettes = palette.NewRegistry()
	}
	if opts.Palette == "" {
		opts.Palette = palette.DefaultTileID
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = 512
	}
	return &Service{deps: deps, opts: opts}
}

// TimeSeries returns the quality-filtered NDVI series for field over [from, to].
func (s *Service) TimeSeries(ctx context.Context, field geo.Field, from, to time.Time) ([]stats.Point, error) {
	polygon, err := geo.NewPolygon(field.Polygon)
	if err != nil {
		return nil, err
	}

	req, err := stats.BuildRequest(polygon, from, to, s.opts.Stats)
	if err != nil {
		return nil, err
	}

	points, err := s.deps.Stats.Query(ctx, req)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("field", field.ID).
		Int("points", len(points)).
		Msg("Time series loaded")

	return points, nil
}

// TileURL returns the tile URL for field at z/x/y colored with paletteID,
// resolving the base URL only when the cached one has expired.
func (s *Service) TileURL(ctx context.Context, fieldID string, z, x, y int, paletteID string) (string, error) {
	if paletteID == "" {
		paletteID = s.opts.Palette
	}
	if _, ok := s.deps.Palettes.Lookup(paletteID); !ok {
		return "", apperr.Geometry("tile url", "unknown palette %q", paletteID)
	}

	base, ok := s.deps.URLs.Get(fieldID)
	if !ok {
		if s.deps.Resolver == nil {
			return "", tiles.ErrNoTileSource
		}

		var err error
		base, err = s.deps.Resolver.Resolve(ctx, fieldID)
		if err != nil {
			return "", err
		}
		s.deps.URLs.Set(fieldID, base)
	}

	return tiles.BuildTileURL(base, z, x, y, paletteID)
}

// PreviewRequest selects the date range and rendering of a preview.
type PreviewRequest struct {
	From, To       time.Time
	Palette        string
	MaxDimension   int
	ForceSynthetic bool
}

// Preview is a field summary plus either a tile or a synthesized raster.
type Preview struct {
	FieldID   string          `json:"fieldId" yaml:"fieldId"`
	AreaHa    float64         `json:"areaHa" yaml:"areaHa"`
	Centroid  geo.Point       `json:"centroid" yaml:"centroid"`
	Bounds    geo.BoundingBox `json:"bounds" yaml:"bounds"`
	Points    []stats.Point   `json:"points" yaml:"points"`
	Summary   stats.Summary   `json:"summary" yaml:"summary"`
	NDVI      float64         `json:"ndvi" yaml:"ndvi"`
	Estimated bool            `json:"estimated" yaml:"estimated"`
	Source    string          `json:"source" yaml:"source"`
	TileURL   string          `json:"tileUrl,omitempty" yaml:"tileUrl,omitempty"`

	Tile  *tiles.Tile `json:"-" yaml:"-"`
	Image *image.RGBA `json:"-" yaml:"-"`
}

// Preview builds a preview for field. Geometry is validated before any
// network call. When no tile is available the raster is synthesized around
// the latest mean NDVI, or the configured default when the series is empty.
func (s *Service) Preview(ctx context.Context, field geo.Field, req PreviewRequest) (*Preview, error) {
	polygon, err := geo.NewPolygon(field.Polygon)
	if err != nil {
		return nil, err
	}
	bounds, err := geo.Bounds(polygon)
	if err != nil {
		return nil, err
	}
	area, err := geo.Area(polygon)
	if err != nil {
		return nil, err
	}
	centroid, err := geo.Centroid(polygon)
	if err != nil {
		return nil, err
	}
	if req.Palette != "" {
		if _, ok := s.deps.Palettes.Lookup(req.Palette); !ok {
			return nil, apperr.Geometry("preview", "unknown palette %q", req.Palette)
		}
	}

	maxDim := req.MaxDimension
	if maxDim <= 0 {
		maxDim = s.opts.MaxDimension
	}
	width, height := geo.AspectSize(bounds, maxDim)
	if width <= 0 || height <= 0 {
		return nil, apperr.Geometry("preview", "field %q is too thin to render at %d px", field.ID, maxDim)
	}

	points, err := s.TimeSeries(ctx, field, req.From, req.To)
	if err != nil {
		return nil, err
	}

	p := &Preview{
		FieldID:  field.ID,
		AreaHa:   area,
		Centroid: centroid,
		Bounds:   bounds,
		Points:   points,
		Summary:  stats.Summarize(points),
		NDVI:     s.opts.DefaultNDVI,
	}
	if latest, ok := stats.Latest(points); ok {
		p.NDVI = latest.Mean
	} else {
		p.Estimated = true
	}

	if !req.ForceSynthetic && s.deps.Resolver != nil {
		ok, err := s.tile(ctx, p, req.Palette)
		if err != nil {
			return nil, err
		}
		if ok {
			return p, nil
		}
	}

	img, err := synth.Synthesize(p.NDVI, polygon, bounds, width, height, palette.Synthetic)
	if err != nil {
		return nil, err
	}
	p.Source = SourceSynthetic
	p.Image = img

	return p, nil
}

// tile fills p from the tile service. It reports false when the caller
// should fall back to synthesis.
func (s *Service) tile(ctx context.Context, p *Preview, paletteID string) (bool, error) {
	c := p.Bounds.Bound().Center()
	x, y := geo.TileAt(geo.Point{Lng: c.Lon(), Lat: c.Lat()}, s.opts.Zoom)

	url, err := s.TileURL(ctx, p.FieldID, s.opts.Zoom, int(x), int(y), paletteID)
	switch {
	case apperr.IsGeometry(err):
		return false, err
	case ctx.Err() != nil:
		return false, ctx.Err()
	case err != nil:
		log.Warn().Err(err).Str("field", p.FieldID).Msg("Tile source unavailable, synthesizing preview")
		return false, nil
	}

	if s.deps.Fetcher != nil {
		tile, err := s.deps.Fetcher.Fetch(ctx, url)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			if !apperr.IsUpstream(err) && !errors.Is(err, context.DeadlineExceeded) {
				return false, err
			}
			log.Warn().Err(err).Str("url", url).Msg("Tile fetch failed, synthesizing preview")
			return false, nil
		}
		p.Tile = tile
	}

	p.Source = SourceTile
	p.TileURL = url
	return true, nil
}
