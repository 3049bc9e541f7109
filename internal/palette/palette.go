// Package palette maps normalized index values to colors along ordered color stops.
package palette

import (
	"fmt"
	"image/color"
	"math"

	"github.com/woozymasta/ndvimap/internal/apperr"
)

// RGB is an 8-bit color triplet.
type RGB [3]uint8

// RGBA returns the color fully opaque.
func (c RGB) RGBA() color.RGBA {
	return color.RGBA{R: c[0], G: c[1], B: c[2], A: 255}
}

// Stop anchors a color at a normalized value.
type Stop struct {
	Value float64 `yaml:"value" json:"value"`
	Color RGB     `yaml:"color" json:"color"`
}

// Palette is an immutable, validated list of stops with strictly ascending values.
type Palette struct {
	id    string
	stops []Stop
}

// Transparent is returned for inputs that cannot be colored.
var Transparent = color.RGBA{}

// New validates stops and builds a palette. Stops must number at least two,
// lie within [0,1] and be strictly ascending.
func New(id string, stops ...Stop) (*Palette, error) {
	if len(stops) < 2 {
		return nil, apperr.Geometry("palette "+id, "need at least 2 stops, got %d", len(stops))
	}

	for i, s := range stops {
		if math.IsNaN(s.Value) || s.Value < 0 || s.Value > 1 {
			return nil, apperr.Geometry("palette "+id, "stop %d value %v outside [0,1]", i, s.Value)
		}
		if i > 0 && s.Value <= stops[i-1].Value {
			return nil, apperr.Geometry("palette "+id, "stop %d value %v not above %v", i, s.Value, stops[i-1].Value)
		}
	}

	own := make([]Stop, len(stops))
	copy(own, stops)

	return &Palette{id: id, stops: own}, nil
}

// MustNew is New for package-level presets; it panics on invalid stops.
func MustNew(id string, stops ...Stop) *Palette {
	p, err := New(id, stops...)
	if err != nil {
		panic(fmt.Sprintf("palette: %v", err))
	}
	return p
}

// ID returns the palette identifier.
func (p *Palette) ID() string { return p.id }

// Stops returns a copy of the palette stops.
func (p *Palette) Stops() []Stop {
	out := make([]Stop, len(p.stops))
	copy(out, p.stops)
	return out
}

// ColorFor interpolates the color for v. Values outside the stop range are clamped
// to the edge stops. Non-finite input yields Transparent and false.
func (p *Palette) ColorFor(v float64) (color.RGBA, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Transparent, false
	}

	first, last := p.stops[0], p.stops[len(p.stops)-1]
	v = math.Max(first.Value, math.Min(last.Value, v))

	for i := 0; i < len(p.stops)-1; i++ {
		lo, hi := p.stops[i], p.stops[i+1]
		if lo.Value <= v && v <= hi.Value {
			t := (v - lo.Value) / (hi.Value - lo.Value)
			return color.RGBA{
				R: lerp(lo.Color[0], hi.Color[0], t),
				G: lerp(lo.Color[1], hi.Color[1], t),
				B: lerp(lo.Color[2], hi.Color[2], t),
				A: 255,
			}, true
		}
	}

	// unreachable after clamping
	return last.Color.RGBA(), true
}

func lerp(a, b uint8, t float64) uint8 {
	v := math.Round(float64(a) + t*(float64(b)-float64(a)))
	return uint8(math.Max(0, math.Min(255, v)))
}
