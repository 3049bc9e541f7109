package stats

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/ndvimap/internal/apperr"
	"github.com/woozymasta/ndvimap/internal/metrics"
)

// maxNoDataRatio is the largest share of invalid samples an interval may carry.
const maxNoDataRatio = 0.8

// Point is the NDVI summary of one aggregation interval.
type Point struct {
	Date        string  `json:"date" yaml:"date"`
	Mean        float64 `json:"mean" yaml:"mean"`
	Min         float64 `json:"min" yaml:"min"`
	Max         float64 `json:"max" yaml:"max"`
	StdDev      float64 `json:"stdDev" yaml:"stdDev"`
	SampleCount int     `json:"sampleCount" yaml:"sampleCount"`
}

type response struct {
	Data []interval `json:"data"`
}

type interval struct {
	Interval struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"interval"`
	Outputs map[string]output `json:"outputs"`
}

type output struct {
	Bands map[string]band `json:"bands"`
}

type band struct {
	Stats bandStats `json:"stats"`
}

type bandStats struct {
	Min         number `json:"min"`
	Max         number `json:"max"`
	Mean        number `json:"mean"`
	StDev       number `json:"stDev"`
	SampleCount number `json:"sampleCount"`
	NoDataCount number `json:"noDataCount"`
}

// number decodes a JSON number or the provider's quoted "NaN"/"Infinity".
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*n = number(math.NaN())
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", s)
		}
		*n = number(v)
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", b)
	}
	*n = number(v)
	return nil
}

// Parse decodes a statistical API response and returns one point per usable
// interval in upstream order. Intervals without the channel's output, with no
// samples, or with more than 80% invalid samples are dropped.
func Parse(body []byte, channel string) ([]Point, error) {
	const op = "parse stats"

	if channel == "" {
		channel = DefaultChannel
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &apperr.UpstreamError{Op: op, Body: apperr.TruncateBody(body), Err: err}
	}

	points := make([]Point, 0, len(resp.Data))
	for i, iv := range resp.Data {
		from, err := time.Parse(time.RFC3339, iv.Interval.From)
		if err != nil {
			return nil, &apperr.UpstreamError{Op: op, Err: fmt.Errorf("interval %d: %w", i, err)}
		}

		out, ok := iv.Outputs[channel]
		if !ok {
			metrics.IntervalsParsed.WithLabelValues("missing_output").Inc()
			continue
		}
		b, ok := out.Bands["B0"]
		if !ok {
			metrics.IntervalsParsed.WithLabelValues("missing_output").Inc()
			continue
		}
		s := b.Stats

		samples := float64(s.SampleCount)
		noData := float64(s.NoDataCount)
		switch {
		case !(samples > 0) || math.IsInf(samples, 0):
			metrics.IntervalsParsed.WithLabelValues("no_samples").Inc()
			continue
		case math.IsNaN(noData) || math.IsInf(noData, 0) || noData > maxNoDataRatio*samples:
			metrics.IntervalsParsed.WithLabelValues("no_data").Inc()
			log.Trace().
				Str("from", iv.Interval.From).
				Float64("no_data", noData).
				Float64("samples", samples).
				Msg("Interval dropped by quality filter")
			continue
		case math.IsNaN(float64(s.Mean)) || math.IsInf(float64(s.Mean), 0):
			metrics.IntervalsParsed.WithLabelValues("non_finite").Inc()
			continue
		}

		metrics.IntervalsParsed.WithLabelValues("included").Inc()
		points = append(points, Point{
			Date:        from.UTC().Format(time.DateOnly),
			Mean:        round3(float64(s.Mean)),
			Min:         round3(float64(s.Min)),
			Max:         round3(float64(s.Max)),
			StdDev:      round3(float64(s.StDev)),
			SampleCount: int(samples),
		})
	}

	return points, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
