package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/woozymasta/ndvimap/internal/config"
	"github.com/woozymasta/ndvimap/internal/logger"
	"github.com/woozymasta/ndvimap/internal/metrics"
	"github.com/woozymasta/ndvimap/internal/service"
	"github.com/woozymasta/ndvimap/internal/stats"
	"github.com/woozymasta/ndvimap/internal/transport"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`
	Config config.Flags  `group:"Provider options"`

	Field       string `short:"i" long:"field"        description:"Field ID or name (optional with a single field)"`
	From        string `long:"from"                   description:"First day, YYYY-MM-DD" required:"true"`
	To          string `long:"to"                     description:"Last day, YYYY-MM-DD (default today)"`
	Output      string `short:"o" long:"out"          description:"Output file path. Writes to stdout if empty"`
	Format      string `short:"f" long:"format"       description:"Output format" choice:"json" choice:"yaml" default:"json"`
	Summary     bool   `short:"s" long:"summary"      description:"Output the series summary instead of points"`
	MetricsFile string `long:"metrics-file"           env:"METRICS_FILE" description:"Write Prometheus metrics to this textfile on exit"`
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
		log.Fatal().Err(err).Msg("Statistics failed")
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

	from, to, err := dateRange(opts.From, opts.To)
	if err != nil {
		return err
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

	points, err := sc.Service.TimeSeries(ctx, field, from, to)
	if err != nil {
		return err
	}

	var out any = points
	if opts.Summary {
		out = stats.Summarize(points)
	}

	var data []byte
	if opts.Format == "yaml" {
		data, err = yaml.Marshal(out)
	} else {
		data, err = json.MarshalIndent(out, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	if opts.Output == "" {
		fmt.Println(string(data))
		return nil
	}

	if err := os.WriteFile(opts.Output, data, 0644); err != nil {
		return err
	}

	log.Info().
		Str("field", field.ID).
		Int("points", len(points)).
		Str("out", opts.Output).
		Str("format", opts.Format).
		Msg("Statistics written")

	return nil
}

func dateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	from, err := time.Parse(time.DateOnly, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--from: %w", err)
	}

	to := time.Now().UTC()
	if toStr != "" {
		if to, err = time.Parse(time.DateOnly, toStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--to: %w", err)
		}
	}

	return from, to, nil
}
