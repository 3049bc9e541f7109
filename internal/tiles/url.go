package tiles

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrNoTileSource means no tile service is configured for the field.
var ErrNoTileSource = errors.New("no tile source configured")

// BuildTileURL fills the {z}, {x}, {y} and {tms_y} placeholders of base,
// forces https and appends the palette query parameter.
func BuildTileURL(base string, z, x, y int, paletteID string) (string, error) {
	s := strings.ReplaceAll(base, "{z}", strconv.Itoa(z))
	s = strings.ReplaceAll(s, "{x}", strconv.Itoa(x))
	s = strings.ReplaceAll(s, "{y}", strconv.Itoa(y))

	if strings.Contains(s, "{tms_y}") {
		maxCoord := (1 << z) - 1
		s = strings.ReplaceAll(s, "{tms_y}", strconv.Itoa(maxCoord-y))
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse tile url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("tile url %q has no host", base)
	}
	u.Scheme = "https"

	if paletteID != "" {
		param := "palette=" + url.QueryEscape(paletteID)
		if u.RawQuery == "" {
			u.RawQuery = param
		} else {
			u.RawQuery += "&" + param
		}
	}

	return u.String(), nil
}

// Resolver finds the tile base URL for a field.
type Resolver interface {
	Resolve(ctx context.Context, fieldID string) (string, error)
}

// TemplateResolver substitutes the field ID into a fixed template such as
// https://tiles.example.com/{field}/{z}/{x}/{y}.png.
type TemplateResolver struct {
	Template string
}

// Resolve implements Resolver.
func (r TemplateResolver) Resolve(_ context.Context, fieldID string) (string, error) {
	if r.Template == "" {
		return "", ErrNoTileSource
	}
	return strings.ReplaceAll(r.Template, "{field}", url.PathEscape(fieldID)), nil
}
