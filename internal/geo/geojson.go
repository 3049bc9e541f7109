// Package geo handles field polygons and the planar geometry used to size,
// clip and measure them.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/ndvimap/internal/apperr"
)

// Field is a named farm-field polygon.
type Field struct {
	ID      string  `json:"id" yaml:"id"`
	Name    string  `json:"name,omitempty" yaml:"name,omitempty"`
	Polygon Polygon `json:"polygon" yaml:"polygon"`
}

// LoadFields reads field polygons from a local GeoJSON file or an http(s) URL.
func LoadFields(ctx context.Context, client *http.Client, source string) ([]Field, error) {
	var data []byte

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		log.Debug().Str("url", source).Msg("Downloading fields")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &apperr.UpstreamError{Op: "fields download", Status: resp.StatusCode, Body: apperr.TruncateBody(body)}
		}
		data = body
	} else {
		var err error
		data, err = os.ReadFile(source)
		if err != nil {
			return nil, err
		}
	}

	return ParseFields(data)
}

// ParseFields accepts a FeatureCollection, a single Feature or a bare geometry.
// Polygon features use their outer ring; MultiPolygon features use the outer ring
// of the first member. Features with other geometry types are skipped.
func ParseFields(data []byte) ([]Field, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, apperr.Geometry("geojson", "invalid document: %v", err)
	}

	var features []*geojson.Feature
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, apperr.Geometry("geojson", "invalid feature collection: %v", err)
		}
		features = fc.Features
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, apperr.Geometry("geojson", "invalid feature: %v", err)
		}
		features = []*geojson.Feature{f}
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, apperr.Geometry("geojson", "invalid geometry: %v", err)
		}
		features = []*geojson.Feature{geojson.NewFeature(g.Geometry())}
	}

	fields := make([]Field, 0, len(features))
	for i, f := range features {
		ring, ok := outerRing(f.Geometry)
		if !ok {
			log.Trace().Int("index", i).Msg("Skipping non-polygon feature")
			continue
		}

		poly, err := NewPolygon(FromOrbRing(ring))
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}

		fields = append(fields, Field{
			ID:      featureID(f, i),
			Name:    f.Properties.MustString("name", ""),
			Polygon: poly,
		})
	}

	if len(fields) == 0 {
		return nil, apperr.Geometry("geojson", "no polygon features found")
	}

	return fields, nil
}

// FindField returns the field with the given ID, or the only field when id is empty.
func FindField(fields []Field, id string) (Field, error) {
	if id == "" {
		if len(fields) == 1 {
			return fields[0], nil
		}
		return Field{}, fmt.Errorf("%d fields loaded, select one by id", len(fields))
	}

	for _, f := range fields {
		if f.ID == id {
			return f, nil
		}
	}

	return Field{}, fmt.Errorf("field %q not found", id)
}

func outerRing(g orb.Geometry) (orb.Ring, bool) {
	switch geom := g.(type) {
	case orb.Polygon:
		if len(geom) > 0 {
			return geom[0], true
		}
	case orb.MultiPolygon:
		if len(geom) > 0 && len(geom[0]) > 0 {
			return geom[0][0], true
		}
	case orb.Ring:
		return geom, true
	}

	return nil, false
}

func featureID(f *geojson.Feature, index int) string {
	if id := f.Properties.MustString("id", ""); id != "" {
		return id
	}

	switch v := f.ID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	return strconv.Itoa(index)
}
