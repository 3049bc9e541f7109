package stats

// Summary aggregates a series of points.
type Summary struct {
	Count    int     `json:"count" yaml:"count"`
	Mean     float64 `json:"mean" yaml:"mean"`
	Peak     float64 `json:"peak" yaml:"peak"`
	PeakDate string  `json:"peakDate" yaml:"peakDate"`
	Latest   float64 `json:"latest" yaml:"latest"`
}

// Latest returns the last point of the series.
func Latest(points []Point) (Point, bool) {
	if len(points) == 0 {
		return Point{}, false
	}
	return points[len(points)-1], true
}

// Summarize reports the mean of interval means and the peak interval.
// An empty series yields a zero Summary.
func Summarize(points []Point) Summary {
	if len(points) == 0 {
		return Summary{}
	}

	s := Summary{Count: len(points), Peak: points[0].Mean, PeakDate: points[0].Date}
	var sum float64
	for _, p := range points {
		sum += p.Mean
		if p.Mean > s.Peak {
			s.Peak, s.PeakDate = p.Mean, p.Date
		}
	}
	s.Mean = round3(sum / float64(len(points)))
	s.Latest = points[len(points)-1].Mean

	return s
}
