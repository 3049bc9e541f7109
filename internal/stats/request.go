// Package stats builds statistical API requests for a field and parses the
// per-interval NDVI statistics out of the response.
package stats

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/woozymasta/ndvimap/internal/apperr"
	"github.com/woozymasta/ndvimap/internal/geo"
)

const (
	// CRS84 is the coordinate reference system of request geometries.
	CRS84 = "http://www.opengis.net/def/crs/OGC/1.3/CRS84"

	// DefaultChannel is the evalscript output read back by Parse.
	DefaultChannel = "ndvi"

	defaultDataType   = "sentinel-2-l2a"
	defaultInterval   = "P10D"
	defaultResolution = 10.0
	defaultCloud      = 30
)

// Evalscript computes NDVI per pixel and masks clouds, shadows and snow
// using the scene classification layer.
const Evalscript = `//VERSION=3
function setup() {
  return {
    input: [{ bands: ["B04", "B08", "SCL", "dataMask"] }],
    output: [
      { id: "ndvi", bands: 1, sampleType: "FLOAT32" },
      { id: "dataMask", bands: 1 }
    ]
  };
}

function evaluatePixel(s) {
  var ndvi = (s.B08 - s.B04) / (s.B08 + s.B04);
  var invalid = [3, 8, 9, 10].indexOf(s.SCL) !== -1;
  var valid = s.dataMask === 1 && !invalid && isFinite(ndvi);
  return { ndvi: [ndvi], dataMask: [valid ? 1 : 0] };
}
`

// Options tune a statistics request. Zero values select defaults.
type Options struct {
	// Interval is an ISO-8601 duration such as P1D or P10D.
	Interval string `yaml:"interval" json:"interval"`
	// Resolution is the sampling resolution in meters.
	Resolution float64 `yaml:"resolution" json:"resolution"`
	// MaxCloudCoverage filters scenes by cloud percentage, 0-100.
	MaxCloudCoverage int    `yaml:"max_cloud_coverage" json:"maxCloudCoverage"`
	DataType         string `yaml:"data_type" json:"dataType"`
	Evalscript       string `yaml:"-" json:"-"`
}

func (o Options) withDefaults() Options {
	if o.Interval == "" {
		o.Interval = defaultInterval
	}
	if o.Resolution == 0 {
		o.Resolution = defaultResolution
	}
	if o.MaxCloudCoverage == 0 {
		o.MaxCloudCoverage = defaultCloud
	}
	if o.DataType == "" {
		o.DataType = defaultDataType
	}
	if o.Evalscript == "" {
		o.Evalscript = Evalscript
	}
	return o
}

// Request is the statistical API request body.
type Request struct {
	Input       Input       `json:"input"`
	Aggregation Aggregation `json:"aggregation"`
}

type Input struct {
	Bounds Bounds       `json:"bounds"`
	Data   []DataSource `json:"data"`
}

type Bounds struct {
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties BoundsProperties  `json:"properties"`
}

type BoundsProperties struct {
	CRS string `json:"crs"`
}

type DataSource struct {
	Type       string     `json:"type"`
	DataFilter DataFilter `json:"dataFilter"`
}

type DataFilter struct {
	MaxCloudCoverage int `json:"maxCloudCoverage"`
}

type Aggregation struct {
	TimeRange           TimeRange           `json:"timeRange"`
	AggregationInterval AggregationInterval `json:"aggregationInterval"`
	Evalscript          string              `json:"evalscript"`
	ResX                float64             `json:"resx"`
	ResY                float64             `json:"resy"`
}

type TimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type AggregationInterval struct {
	Of string `json:"of"`
}

// isoDuration accepts ISO-8601 durations with at least one component.
var isoDuration = regexp.MustCompile(`^P(?:\d+Y)?(?:\d+M)?(?:\d+W)?(?:\d+D)?(?:T(?:\d+H)?(?:\d+M)?(?:\d+(?:\.\d+)?S)?)?$`)

// ValidInterval reports whether s is a usable ISO-8601 duration.
func ValidInterval(s string) bool {
	return len(s) > 1 && !strings.HasSuffix(s, "T") && isoDuration.MatchString(s)
}

// BuildRequest assembles the request body for polygon over the inclusive day
// range [from, to]. It performs no I/O.
func BuildRequest(polygon geo.Polygon, from, to time.Time, opts Options) (Request, error) {
	const op = "stats request"

	if len(polygon) < 3 {
		return Request{}, apperr.Geometry(op, "polygon needs at least 3 points, got %d", len(polygon))
	}

	opts = opts.withDefaults()
	if !ValidInterval(opts.Interval) {
		return Request{}, apperr.Geometry(op, "invalid aggregation interval %q", opts.Interval)
	}
	if opts.Resolution <= 0 || math.IsNaN(opts.Resolution) || math.IsInf(opts.Resolution, 0) {
		return Request{}, apperr.Geometry(op, "invalid resolution %v", opts.Resolution)
	}
	if opts.MaxCloudCoverage < 0 || opts.MaxCloudCoverage > 100 {
		return Request{}, apperr.Geometry(op, "cloud coverage %d outside 0-100", opts.MaxCloudCoverage)
	}

	start := startOfDay(from)
	end := startOfDay(to).Add(24*time.Hour - time.Second)
	if start.After(end) {
		return Request{}, apperr.Geometry(op, "from %s is after to %s", start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	center, err := geo.Centroid(polygon)
	if err != nil {
		return Request{}, err
	}
	resX := opts.Resolution / geo.MetersPerDegreeLng(center.Lat)
	resY := opts.Resolution / geo.MetersPerDegreeLat

	return Request{
		Input: Input{
			Bounds: Bounds{
				Geometry:   geojson.NewGeometry(polygon.Orb()),
				Properties: BoundsProperties{CRS: CRS84},
			},
			Data: []DataSource{{
				Type:       opts.DataType,
				DataFilter: DataFilter{MaxCloudCoverage: opts.MaxCloudCoverage},
			}},
		},
		Aggregation: Aggregation{
			TimeRange: TimeRange{
				From: start.Format(time.RFC3339),
				To:   end.Format(time.RFC3339),
			},
			AggregationInterval: AggregationInterval{Of: opts.Interval},
			Evalscript:          opts.Evalscript,
			ResX:                resX,
			ResY:                resY,
		},
	}, nil
}

// Marshal encodes the request body.
func (r Request) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode stats request: %w", err)
	}
	return data, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
