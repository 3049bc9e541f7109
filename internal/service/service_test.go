package service_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/woozymasta/ndvimap/internal/apperr"
	"github.com/woozymasta/ndvimap/internal/geo"
	"github.com/woozymasta/ndvimap/internal/service"
	"github.com/woozymasta/ndvimap/internal/stats"
	"github.com/woozymasta/ndvimap/internal/tiles"
)

type fakeStats struct {
	calls atomic.Int32
	query func(ctx context.Context, req stats.Request) ([]stats.Point, error)
}

func (f *fakeStats) Query(ctx context.Context, req stats.Request) ([]stats.Point, error) {
	f.calls.Add(1)
	return f.query(ctx, req)
}

type fakeResolver struct {
	calls   atomic.Int32
	resolve func(ctx context.Context, fieldID string) (string, error)
}

func (f *fakeResolver) Resolve(ctx context.Context, fieldID string) (string, error) {
	f.calls.Add(1)
	return f.resolve(ctx, fieldID)
}

type fakeFetcher struct {
	fetch func(ctx context.Context, url string) (*tiles.Tile, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*tiles.Tile, error) {
	return f.fetch(ctx, url)
}

var (
	field = geo.Field{ID: "north", Polygon: geo.Polygon{
		{Lng: 30.10, Lat: 50.40},
		{Lng: 30.12, Lat: 50.40},
		{Lng: 30.12, Lat: 50.41},
		{Lng: 30.10, Lat: 50.41},
	}}
	from = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
)

func series(points ...stats.Point) *fakeStats {
	return &fakeStats{query: func(context.Context, stats.Request) ([]stats.Point, error) {
		return points, nil
	}}
}

func TestTimeSeries(t *testing.T) {
	st := &fakeStats{query: func(_ context.Context, req stats.Request) ([]stats.Point, error) {
		if req.Aggregation.TimeRange.From != "2024-05-01T00:00:00Z" {
			t.Errorf("unexpected range %+v", req.Aggregation.TimeRange)
		}
		if req.Aggregation.AggregationInterval.Of != "P5D" {
			t.Errorf("options not forwarded: %q", req.Aggregation.AggregationInterval.Of)
		}
		return []stats.Point{{Date: "2024-05-01", Mean: 0.5}}, nil
	}}
	svc := service.New(service.Deps{Stats: st}, service.Options{Stats: stats.Options{Interval: "P5D"}})

	points, err := svc.TimeSeries(context.Background(), field, from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 {
		t.Errorf("unexpected points %+v", points)
	}
}

func TestTimeSeries_GeometryBeforeNetwork(t *testing.T) {
	st := series()
	svc := service.New(service.Deps{Stats: st}, service.Options{})

	bad := geo.Field{ID: "line", Polygon: field.Polygon[:2]}
	if _, err := svc.TimeSeries(context.Background(), bad, from, to); !apperr.IsGeometry(err) {
		t.Errorf("expected GeometryError, got %v", err)
	}
	if _, err := svc.TimeSeries(context.Background(), field, to, from); !apperr.IsGeometry(err) {
		t.Errorf("expected GeometryError for reversed range, got %v", err)
	}
	if st.calls.Load() != 0 {
		t.Error("statistics queried for invalid input")
	}
}

func TestTileURL_CachesResolvedBase(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	res := &fakeResolver{resolve: func(_ context.Context, id string) (string, error) {
		return "http://tiles.example.com/" + id + "/{z}/{x}/{y}.png", nil
	}}
	svc := service.New(service.Deps{
		Resolver: res,
		URLs:     tiles.NewURLCache(tiles.WithClock(func() time.Time { return now })),
	}, service.Options{})

	url, err := svc.TileURL(context.Background(), "north", 14, 9561, 5524, "")
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://tiles.example.com/north/14/9561/5524.png?palette=classic" {
		t.Errorf("unexpected url %q", url)
	}

	if _, err := svc.TileURL(context.Background(), "north", 14, 1, 1, "viridis"); err != nil {
		t.Fatal(err)
	}
	if n := res.calls.Load(); n != 1 {
		t.Errorf("expected one resolve within TTL, got %d", n)
	}

	now = now.Add(6 * time.Minute)
	if _, err := svc.TileURL(context.Background(), "north", 14, 1, 1, ""); err != nil {
		t.Fatal(err)
	}
	if n := res.calls.Load(); n != 2 {
		t.Errorf("expected re-resolve after TTL, got %d", n)
	}

	if _, err := svc.TileURL(context.Background(), "north", 14, 1, 1, "sepia"); !apperr.IsGeometry(err) {
		t.Errorf("expected GeometryError for unknown palette, got %v", err)
	}
}

func TestTileURL_NoResolver(t *testing.T) {
	svc := service.New(service.Deps{}, service.Options{})
	if _, err := svc.TileURL(context.Background(), "north", 1, 0, 0, ""); !errors.Is(err, tiles.ErrNoTileSource) {
		t.Errorf("expected ErrNoTileSource, got %v", err)
	}
}

func TestPreview_Synthetic(t *testing.T) {
	svc := service.New(service.Deps{Stats: series(
		stats.Point{Date: "2024-05-01", Mean: 0.41},
		stats.Point{Date: "2024-05-11", Mean: 0.72},
	)}, service.Options{MaxDimension: 256, DefaultNDVI: 0.6})

	p, err := svc.Preview(context.Background(), field, service.PreviewRequest{From: from, To: to})
	if err != nil {
		t.Fatal(err)
	}

	if p.Source != service.SourceSynthetic || p.Image == nil {
		t.Fatalf("expected synthetic preview, got %+v", p)
	}
	if p.NDVI != 0.72 || p.Estimated {
		t.Errorf("expected latest mean, got %v estimated=%v", p.NDVI, p.Estimated)
	}
	if b := p.Image.Bounds(); b.Dx() != 256 || b.Dy() >= 256 {
		t.Errorf("unexpected raster size %v", b)
	}
	if p.AreaHa <= 0 || math.Abs(p.Centroid.Lng-30.11) > 1e-9 {
		t.Errorf("unexpected geometry summary area=%v centroid=%v", p.AreaHa, p.Centroid)
	}
	if p.Summary.Count != 2 {
		t.Errorf("unexpected summary %+v", p.Summary)
	}
}

func TestPreview_EmptySeriesUsesDefault(t *testing.T) {
	svc := service.New(service.Deps{Stats: series()}, service.Options{DefaultNDVI: 0.55})

	p, err := svc.Preview(context.Background(), field, service.PreviewRequest{From: from, To: to})
	if err != nil {
		t.Fatal(err)
	}
	if p.NDVI != 0.55 || !p.Estimated {
		t.Errorf("expected default NDVI, got %v estimated=%v", p.NDVI, p.Estimated)
	}
}

func TestPreview_Tile(t *testing.T) {
	var fetched string
	svc := service.New(service.Deps{
		Stats: series(stats.Point{Date: "2024-05-01", Mean: 0.5}),
		Resolver: &fakeResolver{resolve: func(context.Context, string) (string, error) {
			return "https://tiles.example.com/{z}/{x}/{y}.png", nil
		}},
		Fetcher: &fakeFetcher{fetch: func(_ context.Context, url string) (*tiles.Tile, error) {
			fetched = url
			return &tiles.Tile{URL: url, Width: 256, Height: 256}, nil
		}},
	}, service.Options{Zoom: 14})

	p, err := svc.Preview(context.Background(), field, service.PreviewRequest{From: from, To: to, Palette: "greens"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Source != service.SourceTile || p.Image != nil || p.Tile == nil {
		t.Fatalf("expected tile preview, got %+v", p)
	}
	if p.TileURL != fetched || !strings.HasPrefix(fetched, "https://tiles.example.com/14/") || !strings.HasSuffix(fetched, "?palette=greens") {
		t.Errorf("unexpected tile url %q", fetched)
	}
}

func TestPreview_TileFailureFallsBack(t *testing.T) {
	svc := service.New(service.Deps{
		Stats: series(stats.Point{Date: "2024-05-01", Mean: 0.5}),
		Resolver: &fakeResolver{resolve: func(context.Context, string) (string, error) {
			return "https://tiles.example.com/{z}/{x}/{y}.png", nil
		}},
		Fetcher: &fakeFetcher{fetch: func(context.Context, string) (*tiles.Tile, error) {
			return nil, &apperr.UpstreamError{Op: "fetch tile", Status: 404}
		}},
	}, service.Options{Zoom: 14})

	p, err := svc.Preview(context.Background(), field, service.PreviewRequest{From: from, To: to})
	if err != nil {
		t.Fatal(err)
	}
	if p.Source != service.SourceSynthetic || p.Image == nil {
		t.Errorf("expected synthetic fallback, got %+v", p)
	}
}

func TestPreview_CanceledDuringTileFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := service.New(service.Deps{
		Stats: series(stats.Point{Date: "2024-05-01", Mean: 0.5}),
		Resolver: &fakeResolver{resolve: func(context.Context, string) (string, error) {
			return "https://tiles.example.com/{z}/{x}/{y}.png", nil
		}},
		Fetcher: &fakeFetcher{fetch: func(ctx context.Context, _ string) (*tiles.Tile, error) {
			cancel()
			return nil, &apperr.UpstreamError{Op: "fetch tile", Err: ctx.Err()}
		}},
	}, service.Options{Zoom: 14})

	p, err := svc.Preview(ctx, field, service.PreviewRequest{From: from, To: to})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got preview %+v err %v", p, err)
	}
}

func TestPreview_ForceSynthetic(t *testing.T) {
	res := &fakeResolver{resolve: func(context.Context, string) (string, error) {
		return "https://tiles.example.com/{z}/{x}/{y}.png", nil
	}}
	svc := service.New(service.Deps{Stats: series(), Resolver: res}, service.Options{})

	p, err := svc.Preview(context.Background(), field, service.PreviewRequest{From: from, To: to, ForceSynthetic: true})
	if err != nil {
		t.Fatal(err)
	}
	if p.Source != service.SourceSynthetic || res.calls.Load() != 0 {
		t.Errorf("tile source consulted despite forced synthesis")
	}
}

func TestPreview_Errors(t *testing.T) {
	st := series()
	svc := service.New(service.Deps{Stats: st}, service.Options{})

	if _, err := svc.Preview(context.Background(), geo.Field{Polygon: field.Polygon[:2]}, service.PreviewRequest{From: from, To: to}); !apperr.IsGeometry(err) {
		t.Errorf("expected GeometryError, got %v", err)
	}
	if _, err := svc.Preview(context.Background(), field, service.PreviewRequest{From: from, To: to, Palette: "sepia"}); !apperr.IsGeometry(err) {
		t.Errorf("expected GeometryError for palette, got %v", err)
	}
	if st.calls.Load() != 0 {
		t.Error("statistics queried for invalid input")
	}

	authErr := &apperr.AuthError{Status: 401}
	failing := service.New(service.Deps{Stats: &fakeStats{query: func(context.Context, stats.Request) ([]stats.Point, error) {
		return nil, authErr
	}}}, service.Options{})
	if _, err := failing.Preview(context.Background(), field, service.PreviewRequest{From: from, To: to}); !apperr.IsAuth(err) {
		t.Errorf("expected AuthError, got %v", err)
	}
}
