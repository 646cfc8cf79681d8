package models

import (
	"math"
	"time"
)

// DefaultFurnaceID is assigned to points whose furnace is not otherwise known.
const DefaultFurnaceID = "default"

// ProfileCount is the number of fixed longitudinal slices a scan is indexed by.
const ProfileCount = 20

// Zone is a coarse vertical region of the furnace lining.
type Zone string

const (
	ZoneRoof          Zone = "Roof"
	ZoneSlagLine      Zone = "SlagLine"
	ZoneBelly         Zone = "Belly"
	ZoneInitialBricks Zone = "InitialBricks"
	ZoneBottom        Zone = "Bottom"
)

// Zones lists every zone from top to bottom.
var Zones = []Zone{ZoneRoof, ZoneSlagLine, ZoneBelly, ZoneInitialBricks, ZoneBottom}

// Section routes points to an analysis screen.
type Section string

const (
	SectionBricks   Section = "Bricks"
	SectionSlagLine Section = "Slag Line"
	SectionSlopes   Section = "Slopes"
)

// SamplePoint is a single scan measurement.
type SamplePoint struct {
	// Position is (x, y, z) in scene units after scale normalization
	Position [3]float64 `json:"position"`

	// Thickness is the remaining lining at this point, in centimeters
	Thickness float64 `json:"thickness"`

	// Zone is derived from the y coordinate
	Zone Zone `json:"zone"`

	// ProfileIndex is in [0, ProfileCount) and derived from the x coordinate
	ProfileIndex int `json:"profileIndex"`

	// FurnaceID identifies the furnace the point was measured on
	FurnaceID string `json:"furnaceId"`

	// Section is taken from the tag column when known, otherwise from the zone
	Section Section `json:"section"`

	// Timestamp is the measurement time, zero when unknown
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Valid reports whether all three coordinates are finite.
func (p SamplePoint) Valid() bool {
	for _, c := range p.Position {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// DistanceTo returns the Euclidean distance between two points.
func (p SamplePoint) DistanceTo(q SamplePoint) float64 {
	return math.Sqrt(p.DistanceSquaredTo(q))
}

// DistanceSquaredTo returns the squared Euclidean distance between two points.
func (p SamplePoint) DistanceSquaredTo(q SamplePoint) float64 {
	dx := p.Position[0] - q.Position[0]
	dy := p.Position[1] - q.Position[1]
	dz := p.Position[2] - q.Position[2]
	return dx*dx + dy*dy + dz*dz
}

// ParsedFile is one ingested scan file.
type ParsedFile struct {
	// Name is the file name the record is keyed by
	Name string `json:"name"`

	// Points are kept in input row order
	Points []SamplePoint `json:"points"`

	// MinThickness and MaxThickness are computed once at parse time
	MinThickness float64 `json:"minThickness"`
	MaxThickness float64 `json:"maxThickness"`

	// SkippedRows counts rows dropped as incomplete or non-finite
	SkippedRows int `json:"skippedRows"`

	// ScaleFactor is the divisor applied to the coordinates of most rows
	ScaleFactor float64 `json:"scaleFactor"`

	// ParsedAt records when the file was ingested
	ParsedAt time.Time `json:"parsedAt"`
}

// Summary is a point-free view of a ParsedFile.
type Summary struct {
	Name         string    `json:"name"`
	PointCount   int       `json:"pointCount"`
	MinThickness float64   `json:"minThickness"`
	MaxThickness float64   `json:"maxThickness"`
	SkippedRows  int       `json:"skippedRows"`
	ScaleFactor  float64   `json:"scaleFactor"`
	ParsedAt     time.Time `json:"parsedAt"`
}

// Summary returns the file metadata without its points.
func (f *ParsedFile) Summary() Summary {
	return Summary{
		Name:         f.Name,
		PointCount:   len(f.Points),
		MinThickness: f.MinThickness,
		MaxThickness: f.MaxThickness,
		SkippedRows:  f.SkippedRows,
		ScaleFactor:  f.ScaleFactor,
		ParsedAt:     f.ParsedAt,
	}
}
