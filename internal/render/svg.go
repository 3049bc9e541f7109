package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
)

// FormatSVG is the vector legend format.
const FormatSVG = "svg"

var minifier = newMinifier()

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("image/svg+xml", svg.Minify)
	return m
}

// WriteSVG minifies an SVG document into w.
func WriteSVG(w io.Writer, doc string) error {
	if err := minifier.Minify("image/svg+xml", w, strings.NewReader(doc)); err != nil {
		return fmt.Errorf("minify svg: %w", err)
	}
	return nil
}
