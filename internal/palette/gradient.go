package palette

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Strip renders the palette as a horizontal legend of the given size,
// low values on the left.
func Strip(p *Palette, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if width <= 0 || height <= 0 {
		return img
	}

	first, last := p.stops[0].Value, p.stops[len(p.stops)-1].Value
	for x := 0; x < width; x++ {
		v := first
		if width > 1 {
			v = first + (last-first)*float64(x)/float64(width-1)
		}
		c, _ := p.ColorFor(v)
		for y := 0; y < height; y++ {
			img.SetRGBA(x, y, c)
		}
	}

	return img
}

// CSS returns a linear-gradient expression matching the palette stops.
func CSS(p *Palette) string {
	offsets := offsets(p)
	parts := make([]string, len(p.stops))
	for i, s := range p.stops {
		parts[i] = fmt.Sprintf("rgb(%d, %d, %d) %s%%", s.Color[0], s.Color[1], s.Color[2], offsets[i])
	}

	return "linear-gradient(to right, " + strings.Join(parts, ", ") + ")"
}

// SVG returns a standalone SVG document drawing the palette as a horizontal bar.
func SVG(p *Palette, width, height int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		width, height, width, height)
	b.WriteString(`<defs><linearGradient id="legend" x1="0" y1="0" x2="1" y2="0">`)

	offsets := offsets(p)
	for i, s := range p.stops {
		fmt.Fprintf(&b, `<stop offset="%s%%" stop-color="#%02x%02x%02x"/>`,
			offsets[i], s.Color[0], s.Color[1], s.Color[2])
	}

	b.WriteString(`</linearGradient></defs>`)
	b.WriteString(`<rect x="0" y="0" width="100%" height="100%" fill="url(#legend)"/>`)
	b.WriteString(`</svg>`)

	return b.String()
}

// offsets positions each stop as a percentage of the palette span.
func offsets(p *Palette) []string {
	first, last := p.stops[0].Value, p.stops[len(p.stops)-1].Value
	span := last - first

	out := make([]string, len(p.stops))
	for i, s := range p.stops {
		out[i] = strconv.FormatFloat((s.Value-first)/span*100, 'f', -1, 64)
	}
	return out
}
