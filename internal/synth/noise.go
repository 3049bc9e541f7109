package synth

import "math"

// Hash is the pinned sine hash behind every synthesized texture. Changing the
// constants changes every preview ever rendered.
func Hash(x, y, seed float64) float64 {
	v := math.Sin(x*12.9898+y*78.233+seed) * 43758.5453
	return v - math.Floor(v)
}

type octave struct {
	divisor float64
	weight  float64
}

var octaves = [...]octave{
	{divisor: 50, weight: 0.15},
	{divisor: 25, weight: 0.08},
	{divisor: 100, weight: 0.05},
}

const (
	stressSeedOffset = 500
	// stress cells span this many blocks per side
	stressCellBlocks = 4

	rowAmplitude = 0.03

	// Display range of synthesized values, narrower than NDVI's [-1, 1]
	// so previews always read as vegetated ground.
	MinValue = 0.30
	MaxValue = 0.85
)

// Seed derives the noise seed from the field's south-west corner.
func Seed(minLng, minLat float64) float64 {
	return math.Mod(math.Abs(minLng*1000+minLat*1000), 10000)
}

// BlockSize is the edge of one texture block in pixels for an image width.
func BlockSize(width int) int {
	return min(max(width/40, 4), 12)
}

// value computes the clamped index for the block whose origin is (x, y).
func value(base, x, y, seed float64, blockSize int) float64 {
	v := base
	for _, o := range octaves {
		v += Hash(x/o.divisor, y/o.divisor, seed) * o.weight
	}
	v += math.Sin(y/12+x/60) * rowAmplitude

	cell := float64(blockSize * stressCellBlocks)
	switch h := Hash(math.Floor(x/cell), math.Floor(y/cell), seed+stressSeedOffset); {
	case h > 0.88:
		v -= 0.18
	case h > 0.75:
		v -= 0.08
	case h < 0.08:
		v += 0.05
	}

	return min(max(v, MinValue), MaxValue)
}
