package geo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/woozymasta/ndvimap/internal/apperr"
	"github.com/woozymasta/ndvimap/internal/geo"
)

const fieldsFC = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "id": "north",
      "properties": {"name": "North paddock"},
      "geometry": {"type": "Polygon", "coordinates": [[[0.62,41.61],[0.6224,41.61],[0.6224,41.6114],[0.62,41.6114],[0.62,41.61]]]}
    },
    {
      "type": "Feature",
      "properties": {"id": "well"},
      "geometry": {"type": "Point", "coordinates": [0.63, 41.62]}
    },
    {
      "type": "Feature",
      "properties": {"id": "south", "name": "South"},
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[0.62,41.60],[0.623,41.60],[0.623,41.605],[0.62,41.60]]]]}
    }
  ]
}`

func TestParseFields_FeatureCollection(t *testing.T) {
	fields, err := geo.ParseFields([]byte(fieldsFC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 polygon fields, got %d", len(fields))
	}
	if fields[0].ID != "north" || fields[0].Name != "North paddock" {
		t.Errorf("unexpected first field: %+v", fields[0])
	}
	if fields[1].ID != "south" || len(fields[1].Polygon) != 4 {
		t.Errorf("unexpected second field: %+v", fields[1])
	}
}

func TestParseFields_BareGeometry(t *testing.T) {
	doc := `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`
	fields, err := geo.ParseFields([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 1 || fields[0].ID != "0" {
		t.Errorf("unexpected fields: %+v", fields)
	}
}

func TestParseFields_Degenerate(t *testing.T) {
	doc := `{"type":"Polygon","coordinates":[[[0,0],[1,0],[0,0]]]}`
	_, err := geo.ParseFields([]byte(doc))
	if !apperr.IsGeometry(err) {
		t.Fatalf("expected GeometryError, got %v", err)
	}
}

func TestLoadFields_FileAndURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.geojson")
	if err := os.WriteFile(path, []byte(fieldsFC), 0644); err != nil {
		t.Fatal(err)
	}

	fromFile, err := geo.LoadFields(context.Background(), http.DefaultClient, path)
	if err != nil {
		t.Fatalf("file: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(fieldsFC))
	}))
	defer srv.Close()

	fromURL, err := geo.LoadFields(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if len(fromFile) != len(fromURL) {
		t.Errorf("expected same field count, got %d and %d", len(fromFile), len(fromURL))
	}
}

func TestLoadFields_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	_, err := geo.LoadFields(context.Background(), srv.Client(), srv.URL)
	if !apperr.IsUpstream(err) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestFindField(t *testing.T) {
	fields, _ := geo.ParseFields([]byte(fieldsFC))

	if _, err := geo.FindField(fields, ""); err == nil {
		t.Error("expected error when several fields and no id")
	}
	f, err := geo.FindField(fields, "south")
	if err != nil || f.Name != "South" {
		t.Errorf("expected South, got %+v (%v)", f, err)
	}
	if _, err := geo.FindField(fields, "east"); err == nil {
		t.Error("expected not found error")
	}
}
