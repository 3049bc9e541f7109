package tiles_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/woozymasta/ndvimap/internal/apperr"
	"github.com/woozymasta/ndvimap/internal/render"
	"github.com/woozymasta/ndvimap/internal/tiles"
)

func TestURLCache_TTL(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cache := tiles.NewURLCache(tiles.WithClock(func() time.Time { return now }))

	if _, ok := cache.Get("f1"); ok {
		t.Fatal("expected miss on empty cache")
	}

	cache.Set("f1", "https://tiles.example.com/a/{z}/{x}/{y}")

	now = now.Add(4*time.Minute + 59*time.Second)
	if url, ok := cache.Get("f1"); !ok || url != "https://tiles.example.com/a/{z}/{x}/{y}" {
		t.Errorf("expected hit, got %q %v", url, ok)
	}

	now = now.Add(time.Second)
	if _, ok := cache.Get("f1"); ok {
		t.Error("entry at exactly 5 minutes must be a miss")
	}

	now = now.Add(time.Hour)
	if _, ok := cache.Get("f1"); ok {
		t.Error("entry older than 5 minutes must be a miss")
	}
}

func TestURLCache_Overwrite(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cache := tiles.NewURLCache(tiles.WithClock(func() time.Time { return now }))

	cache.Set("f1", "https://a")
	now = now.Add(4 * time.Minute)
	cache.Set("f1", "https://b")
	now = now.Add(4 * time.Minute)

	if url, ok := cache.Get("f1"); !ok || url != "https://b" {
		t.Errorf("expected refreshed entry, got %q %v", url, ok)
	}
	if _, ok := cache.Get("f2"); ok {
		t.Error("unexpected hit for another field")
	}
}

func TestBuildTileURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{"no query", "http://tiles.example.com/{z}/{x}/{y}.png", "https://tiles.example.com/3/5/2.png?palette=viridis"},
		{"existing query", "https://tiles.example.com/{z}/{x}/{y}?key=abc", "https://tiles.example.com/3/5/2?key=abc&palette=viridis"},
		{"tms", "https://tiles.example.com/{z}/{x}/{tms_y}", "https://tiles.example.com/3/5/5?palette=viridis"},
		{"scheme relative", "//tiles.example.com/{z}/{x}/{y}", "https://tiles.example.com/3/5/2?palette=viridis"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tiles.BuildTileURL(tc.base, 3, 5, 2, "viridis")
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}

	if _, err := tiles.BuildTileURL("/relative/{z}", 1, 0, 0, "classic"); err == nil {
		t.Error("expected error for url without host")
	}
}

func TestTemplateResolver(t *testing.T) {
	r := tiles.TemplateResolver{Template: "https://tiles.example.com/{field}/{z}/{x}/{y}"}
	got, err := r.Resolve(context.Background(), "north field")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://tiles.example.com/north%20field/{z}/{x}/{y}" {
		t.Errorf("unexpected url %q", got)
	}

	if _, err := (tiles.TemplateResolver{}).Resolve(context.Background(), "x"); !errors.Is(err, tiles.ErrNoTileSource) {
		t.Errorf("expected ErrNoTileSource, got %v", err)
	}
}

func encodedTile(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := render.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), render.FormatPNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetcher(t *testing.T) {
	tile := encodedTile(t, 4, 4)
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(tile)
		case "/blank.png":
			_, _ = w.Write(encodedTile(t, 1, 1))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f, err := tiles.NewFetcher(srv.Client(), tiles.FetcherOptions{CacheSize: 8, TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}

	for range 3 {
		got, err := f.Fetch(context.Background(), srv.URL+"/ok.png")
		if err != nil {
			t.Fatal(err)
		}
		if got.Width != 4 || got.Format != "png" || got.ContentType != "image/png" {
			t.Errorf("unexpected tile %+v", got)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("expected one download, got %d", n)
	}

	var ue *apperr.UpstreamError
	if _, err := f.Fetch(context.Background(), srv.URL+"/missing.png"); !errors.As(err, &ue) || ue.Status != http.StatusNotFound {
		t.Errorf("expected 404 UpstreamError, got %v", err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/blank.png"); !errors.Is(err, render.ErrEmptyTile) {
		t.Errorf("expected empty tile error, got %v", err)
	}
}
