// Package synth paints a deterministic procedural NDVI texture clipped to a
// field polygon. It stands in for a satellite tile when none is available.
package synth

import (
	"image"
	"math"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/woozymasta/ndvimap/internal/apperr"
	"github.com/woozymasta/ndvimap/internal/geo"
	"github.com/woozymasta/ndvimap/internal/metrics"
	"github.com/woozymasta/ndvimap/internal/palette"
)

// Synthesize renders a width x height raster around base. Pixels outside
// polygon stay fully transparent, painted pixels are fully opaque. Identical
// inputs always produce identical bytes.
func Synthesize(base float64, polygon geo.Polygon, bounds geo.BoundingBox, width, height int, p *palette.Palette) (*image.RGBA, error) {
	const op = "synthesize"

	switch {
	case width <= 0 || height <= 0:
		return nil, apperr.Geometry(op, "invalid raster size %dx%d", width, height)
	case math.IsNaN(base) || math.IsInf(base, 0):
		return nil, apperr.Geometry(op, "base value %v is not finite", base)
	case len(polygon) < 3:
		return nil, apperr.Geometry(op, "polygon needs at least 3 points, got %d", len(polygon))
	case !(bounds.LngRange() > 0) || !(bounds.LatRange() > 0):
		return nil, apperr.Geometry(op, "bounds have zero extent")
	case p == nil:
		return nil, apperr.Geometry(op, "palette is required")
	}

	start := time.Now()

	ring := toPixels(polygon, bounds, width, height)
	seed := Seed(bounds.MinLng, bounds.MinLat)
	bs := BlockSize(width)
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// block rows touch disjoint pixel rows
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for by := 0; by < height; by += bs {
		g.Go(func() error {
			paintRow(img, ring, base, seed, bs, by, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics.SynthesisDuration.Observe(time.Since(start).Seconds())
	log.Debug().
		Int("width", width).
		Int("height", height).
		Int("block", bs).
		Float64("seed", seed).
		Dur("took", time.Since(start)).
		Msg("Synthesized preview")

	return img, nil
}

func paintRow(img *image.RGBA, ring []geo.Point, base, seed float64, bs, by int, p *palette.Palette) {
	b := img.Bounds()
	for bx := 0; bx < b.Dx(); bx += bs {
		center := geo.Point{Lng: float64(bx) + float64(bs)/2, Lat: float64(by) + float64(bs)/2}
		if !geo.PointInPolygon(center, ring) {
			continue
		}

		c, ok := p.ColorFor(value(base, float64(bx), float64(by), seed, bs))
		if !ok {
			continue
		}

		for y := by; y < min(by+bs, b.Dy()); y++ {
			for x := bx; x < min(bx+bs, b.Dx()); x++ {
				if geo.PointInPolygon(geo.Point{Lng: float64(x) + 0.5, Lat: float64(y) + 0.5}, ring) {
					img.SetRGBA(x, y, c)
				}
			}
		}
	}
}

// toPixels projects the polygon into raster space, north at row 0.
func toPixels(polygon geo.Polygon, bounds geo.BoundingBox, width, height int) []geo.Point {
	closed := geo.EnsureClosedRing(polygon)
	ring := make([]geo.Point, len(closed))
	for i, pt := range closed {
		ring[i] = geo.Point{
			Lng: (pt.Lng - bounds.MinLng) / bounds.LngRange() * float64(width),
			Lat: (bounds.MaxLat - pt.Lat) / bounds.LatRange() * float64(height),
		}
	}
	return ring
}
