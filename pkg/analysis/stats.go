package analysis

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"furnacewear/internal/models"
)

// Stats summarizes the thickness of a set of points.
type Stats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	P10    float64 `json:"p10"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`

	PerZone    map[models.Zone]int    `json:"perZone"`
	PerSection map[models.Section]int `json:"perSection"`
}

// ComputeStats returns thickness statistics. All values are zero for no points.
func ComputeStats(points []models.SamplePoint) Stats {
	s := Stats{
		Count:      len(points),
		PerZone:    make(map[models.Zone]int),
		PerSection: make(map[models.Section]int),
	}
	if len(points) == 0 {
		return s
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Thickness
		s.PerZone[p.Zone]++
		s.PerSection[p.Section]++
	}
	sort.Float64s(values)

	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	if len(values) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	} else {
		s.Mean = values[0]
	}
	s.P10 = stat.Quantile(0.1, stat.Empirical, values, nil)
	s.P50 = stat.Quantile(0.5, stat.Empirical, values, nil)
	s.P90 = stat.Quantile(0.9, stat.Empirical, values, nil)
	return s
}

// ScanTime returns the earliest point timestamp of a file.
func ScanTime(f *models.ParsedFile) (time.Time, bool) {
	var earliest time.Time
	for _, p := range f.Points {
		if p.Timestamp.IsZero() {
			continue
		}
		if earliest.IsZero() || p.Timestamp.Before(earliest) {
			earliest = p.Timestamp
		}
	}
	return earliest, !earliest.IsZero()
}
