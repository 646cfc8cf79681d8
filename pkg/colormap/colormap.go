// Package colormap maps lining thickness onto the wear palette.
package colormap

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"furnacewear/internal/models"
)

// RGB is a color with components in [0, 1].
type RGB struct {
	R, G, B float64
}

// NRGBA converts the color for image encoding.
func (c RGB) NRGBA() color.NRGBA {
	to8 := func(v float64) uint8 { return uint8(math.Round(clamp01(v) * 255)) }
	return color.NRGBA{R: to8(c.R), G: to8(c.G), B: to8(c.B), A: 255}
}

// Range is a closed thickness interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// GlobalRange is the thickness interval across every loaded file.
type GlobalRange struct {
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Initialized bool    `json:"initialized"`
}

// WearBand restricts coloring to a slice of the normalized range.
type WearBand string

const (
	BandAll      WearBand = "all"
	BandCritical WearBand = "critical"
	BandHigh     WearBand = "high"
	BandMedium   WearBand = "medium"
	BandLow      WearBand = "low"
)

// ParseWearBand validates a band name, BandAll when empty.
func ParseWearBand(s string) (WearBand, error) {
	switch b := WearBand(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BandAll, nil
	case BandAll, BandCritical, BandHigh, BandMedium, BandLow:
		return b, nil
	default:
		return "", fmt.Errorf("unknown wear band %q", s)
	}
}

// contains reports whether a normalized value falls inside the band.
// Only critical includes its lower bound.
func (b WearBand) contains(v float64) bool {
	switch b {
	case BandCritical:
		return v >= 0 && v <= 0.2
	case BandHigh:
		return v > 0.2 && v <= 0.4
	case BandMedium:
		return v > 0.4 && v <= 0.7
	case BandLow:
		return v > 0.7 && v <= 1
	default:
		return true
	}
}

type stop struct {
	at    float64
	color RGB
}

// Palette stops from thinnest to thickest lining.
var palette = []stop{
	{0.0, RGB{0, 0, 1}},
	{0.2, RGB{0, 1, 1}},
	{0.4, RGB{0, 1, 0}},
	{0.6, RGB{1, 1, 0}},
	{0.8, RGB{1, 0, 0}},
	{1.0, RGB{1, 0.41, 0.71}},
}

// Neutral is used when the range has collapsed to a single value.
var Neutral = interpolate(0.5)

// ColorFor returns the color of a thickness, or false when the selected
// wear band excludes it. The global range is used when requested and
// initialized, the local one otherwise.
func ColorFor(thickness, localMin, localMax float64, useGlobal bool, global GlobalRange, band WearBand) (RGB, bool) {
	lo, hi := localMin, localMax
	if useGlobal && global.Initialized {
		lo, hi = global.Min, global.Max
	}
	if lo == hi {
		return Neutral, true
	}

	v := Normalize(thickness, lo, hi)
	if !band.contains(v) {
		return RGB{}, false
	}
	return interpolate(v), true
}

// Normalize maps a value into [0, 1] against the range, clamping outliers.
func Normalize(v, lo, hi float64) float64 {
	if hi == lo {
		return 0.5
	}
	return clamp01((v - lo) / (hi - lo))
}

func interpolate(v float64) RGB {
	v = clamp01(v)
	for i := 1; i < len(palette); i++ {
		a, b := palette[i-1], palette[i]
		if v <= b.at {
			f := (v - a.at) / (b.at - a.at)
			return RGB{
				R: a.color.R + f*(b.color.R-a.color.R),
				G: a.color.G + f*(b.color.G-a.color.G),
				B: a.color.B + f*(b.color.B-a.color.B),
			}
		}
	}
	return palette[len(palette)-1].color
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Buffers is the flat vertex data handed to a point-cloud renderer.
// Both slices hold three values per rendered point.
type Buffers struct {
	Positions []float32 `json:"positions"`
	Colors    []float32 `json:"colors"`
}

// Len returns the number of rendered points.
func (b Buffers) Len() int { return len(b.Positions) / 3 }

// BuildBuffers colors every point and omits those the band excludes.
func BuildBuffers(points []models.SamplePoint, local Range, useGlobal bool, global GlobalRange, band WearBand) Buffers {
	buf := Buffers{
		Positions: make([]float32, 0, 3*len(points)),
		Colors:    make([]float32, 0, 3*len(points)),
	}
	for _, p := range points {
		c, ok := ColorFor(p.Thickness, local.Min, local.Max, useGlobal, global, band)
		if !ok {
			continue
		}
		buf.Positions = append(buf.Positions,
			float32(p.Position[0]), float32(p.Position[1]), float32(p.Position[2]))
		buf.Colors = append(buf.Colors, float32(c.R), float32(c.G), float32(c.B))
	}
	return buf
}

// FileRange returns the local range of a parsed file.
func FileRange(f *models.ParsedFile) Range {
	return Range{Min: f.MinThickness, Max: f.MaxThickness}
}
