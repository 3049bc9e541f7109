package geo

import (
	"math"

	"github.com/woozymasta/ndvimap/internal/apperr"
)

const (
	// MetersPerDegreeLat is the planar approximation of one degree of latitude.
	MetersPerDegreeLat = 111320.0

	squareMetersPerHectare = 10000.0
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lng float64 `json:"lng" yaml:"lng"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// Polygon is an ordered ring of points. It is closed with EnsureClosedRing
// before area and point-in-polygon evaluation.
type Polygon []Point

// BoundingBox is the axis-aligned extent of a set of points.
type BoundingBox struct {
	MinLng float64 `json:"minLng" yaml:"min_lng"`
	MaxLng float64 `json:"maxLng" yaml:"max_lng"`
	MinLat float64 `json:"minLat" yaml:"min_lat"`
	MaxLat float64 `json:"maxLat" yaml:"max_lat"`
}

// LngRange returns the longitudinal extent in degrees.
func (b BoundingBox) LngRange() float64 { return b.MaxLng - b.MinLng }

// LatRange returns the latitudinal extent in degrees.
func (b BoundingBox) LatRange() float64 { return b.MaxLat - b.MinLat }

// NewPolygon validates points and returns them as a Polygon.
// At least three points with finite coordinates and a non-zero extent on both axes are required.
func NewPolygon(points []Point) (Polygon, error) {
	if len(points) < 3 {
		return nil, apperr.Geometry("polygon", "need at least 3 points, got %d", len(points))
	}
	for i, p := range points {
		if !finite(p.Lng) || !finite(p.Lat) {
			return nil, apperr.Geometry("polygon", "point %d has non-finite coordinates", i)
		}
		if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
			return nil, apperr.Geometry("polygon", "point %d out of WGS84 range: %v,%v", i, p.Lng, p.Lat)
		}
	}

	bbox, err := Bounds(points)
	if err != nil {
		return nil, err
	}
	if bbox.LngRange() == 0 || bbox.LatRange() == 0 {
		return nil, apperr.Geometry("polygon", "zero extent")
	}

	return Polygon(points), nil
}

// Bounds reduces points to their bounding box.
func Bounds(points []Point) (BoundingBox, error) {
	if len(points) == 0 {
		return BoundingBox{}, apperr.Geometry("bounds", "no points")
	}

	b := BoundingBox{
		MinLng: points[0].Lng, MaxLng: points[0].Lng,
		MinLat: points[0].Lat, MaxLat: points[0].Lat,
	}
	for _, p := range points[1:] {
		b.MinLng = math.Min(b.MinLng, p.Lng)
		b.MaxLng = math.Max(b.MaxLng, p.Lng)
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
	}

	return b, nil
}

// AspectSize fits the bounding box into maxDimension pixels preserving its aspect ratio.
// A zero latitude range yields an infinite aspect and therefore a height of 0;
// callers should reject zero-extent polygons first.
func AspectSize(b BoundingBox, maxDimension int) (width, height int) {
	aspect := math.Inf(1)
	if latRange := b.LatRange(); latRange != 0 {
		aspect = b.LngRange() / latRange
	}

	maxDim := float64(maxDimension)
	if aspect > 1 {
		return maxDimension, int(math.Round(maxDim / aspect))
	}

	return int(math.Round(maxDim * aspect)), maxDimension
}

// Centroid returns the arithmetic mean of the vertices.
// It is not the area-weighted centroid.
func Centroid(points []Point) (Point, error) {
	if len(points) == 0 {
		return Point{}, apperr.Geometry("centroid", "no points")
	}

	var c Point
	for _, p := range points {
		c.Lng += p.Lng
		c.Lat += p.Lat
	}
	n := float64(len(points))

	return Point{Lng: c.Lng / n, Lat: c.Lat / n}, nil
}

// MetersPerDegreeLng returns the length of one degree of longitude at lat.
func MetersPerDegreeLng(lat float64) float64 {
	return MetersPerDegreeLat * math.Cos(lat*math.Pi/180)
}

// Area returns the planar area of the polygon in hectares using a local
// equirectangular projection around the mean latitude. Winding order does not
// affect the result. Accuracy is adequate for parcels up to ~10 km across.
func Area(points []Point) (float64, error) {
	if len(points) < 3 {
		return 0, apperr.Geometry("area", "need at least 3 points, got %d", len(points))
	}

	ring := EnsureClosedRing(points)
	vertices := ring[:len(ring)-1]

	var latSum float64
	for _, p := range vertices {
		latSum += p.Lat
	}
	mLng := MetersPerDegreeLng(latSum / float64(len(vertices)))

	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		x1, y1 := ring[i].Lng*mLng, ring[i].Lat*MetersPerDegreeLat
		x2, y2 := ring[i+1].Lng*mLng, ring[i+1].Lat*MetersPerDegreeLat
		sum += x1*y2 - x2*y1
	}

	return math.Abs(sum) / 2 / squareMetersPerHectare, nil
}

// PointInPolygon reports whether p lies inside the polygon using ray-casting parity.
// Points exactly on an edge follow whatever the crossing formula yields.
func PointInPolygon(p Point, polygon []Point) bool {
	ring := EnsureClosedRing(polygon)
	x, y := p.Lng, p.Lat

	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lng, ring[i].Lat
		xj, yj := ring[j].Lng, ring[j].Lat
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}

	return inside
}

// EnsureClosedRing returns points with a copy of the first point appended when
// the last point differs from it. The input slice is never modified.
func EnsureClosedRing(points []Point) []Point {
	if len(points) == 0 {
		return nil
	}

	first, last := points[0], points[len(points)-1]
	if first == last {
		return points
	}

	ring := make([]Point, len(points), len(points)+1)
	copy(ring, points)
	return append(ring, first)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
