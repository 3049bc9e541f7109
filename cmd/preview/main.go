package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/ndvimap/internal/config"
	"github.com/woozymasta/ndvimap/internal/logger"
	"github.com/woozymasta/ndvimap/internal/metrics"
	"github.com/woozymasta/ndvimap/internal/palette"
	"github.com/woozymasta/ndvimap/internal/render"
	"github.com/woozymasta/ndvimap/internal/service"
	"github.com/woozymasta/ndvimap/internal/transport"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`
	Config config.Flags  `group:"Provider options"`

	Field        string `short:"i" long:"field"     description:"Field ID or name (optional with a single field)"`
	Days         int    `short:"d" long:"days"      description:"Days of history to consider" default:"30"`
	Output       string `short:"o" long:"out"       description:"Raster output path (.webp or .png)" default:"preview.webp"`
	Legend       string `short:"l" long:"legend"    description:"Also write a legend strip (.webp, .png or .svg)"`
	Palette      string `short:"p" long:"palette"   description:"Tile palette ID"`
	MaxDimension int    `short:"m" long:"max-size"  description:"Longest raster side in pixels"`
	Scale        int    `long:"scale"               description:"Integer upscale factor for the written raster" default:"1"`
	Synthetic    bool   `short:"S" long:"synthetic" description:"Always synthesize, never use the tile service"`
	MetricsFile  string `long:"metrics-file"        env:"METRICS_FILE" description:"Write Prometheus metrics to this textfile on exit"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	if err := run(context.Background(), opts); err != nil {
		log.Fatal().Err(err).Msg("Preview failed")
	}
}

func run(ctx context.Context, opts Options) error {
	if opts.MetricsFile != "" {
		defer func() {
			if err := metrics.WriteTextfile(opts.MetricsFile); err != nil {
				log.Error().Err(err).Msg("Failed to write metrics")
			}
		}()
	}

	if opts.Days <= 0 {
		opts.Days = 30
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}

	cfg, err := opts.Config.Resolve()
	if err != nil {
		return err
	}

	sc, err := service.NewContext(ctx, cfg, transport.NewClient(cfg.Provider.Timeout))
	if err != nil {
		return err
	}

	field, err := sc.Field(opts.Field)
	if err != nil {
		return err
	}

	to := time.Now().UTC()
	p, err := sc.Service.Preview(ctx, field, service.PreviewRequest{
		From:           to.AddDate(0, 0, -opts.Days),
		To:             to,
		Palette:        opts.Palette,
		MaxDimension:   opts.MaxDimension,
		ForceSynthetic: opts.Synthetic,
	})
	if err != nil {
		return err
	}

	if err := writeRaster(opts, p); err != nil {
		return err
	}

	if opts.Legend != "" {
		legendPalette := palette.Synthetic
		if p.Source == service.SourceTile {
			registry, err := cfg.Registry()
			if err != nil {
				return err
			}
			id := opts.Palette
			if id == "" {
				id = cfg.Preview.Palette
			}
			if found, ok := registry.Lookup(id); ok {
				legendPalette = found
			}
		}
		if err := writeLegend(opts.Legend, legendPalette); err != nil {
			return err
		}
	}

	report, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(report))

	log.Info().
		Str("field", field.ID).
		Str("source", p.Source).
		Float64("ndvi", p.NDVI).
		Bool("estimated", p.Estimated).
		Float64("area_ha", p.AreaHa).
		Str("out", opts.Output).
		Msg("Preview written")

	return nil
}

func writeRaster(opts Options, p *service.Preview) error {
	if err := os.MkdirAll(filepath.Dir(opts.Output), 0755); err != nil {
		return err
	}

	if p.Source == service.SourceTile {
		if p.Tile == nil {
			return nil
		}
		return os.WriteFile(opts.Output, p.Tile.Data, 0644)
	}

	img := p.Image
	if opts.Scale > 1 {
		b := img.Bounds()
		img = render.Scale(img, b.Dx()*opts.Scale, b.Dy()*opts.Scale)
	}

	var buf bytes.Buffer
	if err := render.Encode(&buf, img, render.FormatFromPath(opts.Output)); err != nil {
		return err
	}
	return os.WriteFile(opts.Output, buf.Bytes(), 0644)
}

func writeLegend(path string, pal *palette.Palette) error {
	var buf bytes.Buffer

	switch format := render.FormatFromPath(path); format {
	case render.FormatSVG:
		if err := render.WriteSVG(&buf, palette.SVG(pal, 256, 16)); err != nil {
			return err
		}
	default:
		if err := render.Encode(&buf, palette.Strip(pal, 256, 16), format); err != nil {
			return err
		}
	}

	log.Debug().
		Str("palette", pal.ID()).
		Str("css", palette.CSS(pal)).
		Str("out", path).
		Msg("Legend written")

	return os.WriteFile(path, buf.Bytes(), 0644)
}
