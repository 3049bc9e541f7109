package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// FromOrbRing converts an orb ring into points.
func FromOrbRing(r orb.Ring) []Point {
	points := make([]Point, len(r))
	for i, p := range r {
		points[i] = Point{Lng: p.Lon(), Lat: p.Lat()}
	}
	return points
}

// Ring converts the polygon into a closed orb ring.
func (p Polygon) Ring() orb.Ring {
	closed := EnsureClosedRing(p)
	ring := make(orb.Ring, len(closed))
	for i, pt := range closed {
		ring[i] = orb.Point{pt.Lng, pt.Lat}
	}
	return ring
}

// Orb returns the polygon as a single-ring orb.Polygon suitable for GeoJSON encoding.
func (p Polygon) Orb() orb.Polygon {
	return orb.Polygon{p.Ring()}
}

// Bound returns the bounding box as an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLng, b.MinLat},
		Max: orb.Point{b.MaxLng, b.MaxLat},
	}
}

// TileAt returns the slippy-map tile containing p at zoom z.
func TileAt(p Point, z int) (x, y uint32) {
	t := maptile.At(orb.Point{p.Lng, p.Lat}, maptile.Zoom(z))
	return t.X, t.Y
}
