package colormap

import (
	"math"
	"testing"

	"furnacewear/internal/models"
)

func approxRGB(a, b RGB) bool {
	const eps = 1e-9
	return math.Abs(a.R-b.R) < eps && math.Abs(a.G-b.G) < eps && math.Abs(a.B-b.B) < eps
}

// TestColorForDegenerateRange verifies a collapsed range yields the neutral color
func TestColorForDegenerateRange(t *testing.T) {
	c, ok := ColorFor(5, 5, 5, false, GlobalRange{}, BandAll)
	if !ok {
		t.Fatal("Expected a color for a degenerate range")
	}
	if !approxRGB(c, RGB{0.5, 1, 0}) {
		t.Errorf("Expected palette midpoint, got %+v", c)
	}
	if !approxRGB(c, Neutral) {
		t.Errorf("Expected Neutral, got %+v", c)
	}
}

// TestColorForBandExclusion verifies values outside the selected band get no color
func TestColorForBandExclusion(t *testing.T) {
	if _, ok := ColorFor(9, 0, 10, false, GlobalRange{}, BandCritical); ok {
		t.Error("Expected no color for 0.9 in the critical band")
	}
	if _, ok := ColorFor(1, 0, 10, false, GlobalRange{}, BandCritical); !ok {
		t.Error("Expected a color for 0.1 in the critical band")
	}

	tests := []struct {
		v    float64
		band WearBand
		want bool
	}{
		{0, BandCritical, true},
		{2, BandCritical, true},
		{2, BandHigh, false},
		{3, BandHigh, true},
		{4, BandHigh, true},
		{5, BandMedium, true},
		{7, BandMedium, true},
		{7.5, BandLow, true},
		{7, BandLow, false},
		{10, BandLow, true},
	}
	for _, tc := range tests {
		if _, ok := ColorFor(tc.v, 0, 10, false, GlobalRange{}, tc.band); ok != tc.want {
			t.Errorf("Value %v in band %s: expected %v, got %v", tc.v, tc.band, tc.want, ok)
		}
	}
}

// TestColorForPaletteStops verifies the stops are hit exactly and blended between
func TestColorForPaletteStops(t *testing.T) {
	tests := []struct {
		v    float64
		want RGB
	}{
		{0, RGB{0, 0, 1}},
		{2, RGB{0, 1, 1}},
		{4, RGB{0, 1, 0}},
		{6, RGB{1, 1, 0}},
		{8, RGB{1, 0, 0}},
		{10, RGB{1, 0.41, 0.71}},
		{1, RGB{0, 0.5, 1}},
		{-5, RGB{0, 0, 1}},
		{50, RGB{1, 0.41, 0.71}},
	}
	for _, tc := range tests {
		c, ok := ColorFor(tc.v, 0, 10, false, GlobalRange{}, BandAll)
		if !ok {
			t.Fatalf("Expected a color for %v", tc.v)
		}
		if !approxRGB(c, tc.want) {
			t.Errorf("Value %v: expected %+v, got %+v", tc.v, tc.want, c)
		}
	}
}

// TestColorForGlobalRange verifies the global range is only used when initialized
func TestColorForGlobalRange(t *testing.T) {
	global := GlobalRange{Min: 0, Max: 100, Initialized: true}

	c, _ := ColorFor(10, 0, 10, true, global, BandAll)
	if !approxRGB(c, RGB{0, 0.5, 1}) {
		t.Errorf("Expected global normalization to 0.1, got %+v", c)
	}

	c, _ = ColorFor(10, 0, 10, true, GlobalRange{Min: 0, Max: 100}, BandAll)
	if !approxRGB(c, palette[len(palette)-1].color) {
		t.Errorf("Expected local range when global is not initialized, got %+v", c)
	}

	c, _ = ColorFor(10, 0, 10, false, global, BandAll)
	if !approxRGB(c, palette[len(palette)-1].color) {
		t.Errorf("Expected local range when global scaling is off, got %+v", c)
	}
}

// TestBuildBuffers verifies excluded points are omitted from both buffers
func TestBuildBuffers(t *testing.T) {
	points := []models.SamplePoint{
		{Position: [3]float64{1, 2, 3}, Thickness: 0},
		{Position: [3]float64{4, 5, 6}, Thickness: 10},
		{Position: [3]float64{7, 8, 9}, Thickness: 1},
	}

	buf := BuildBuffers(points, Range{Min: 0, Max: 10}, false, GlobalRange{}, BandCritical)
	if buf.Len() != 2 {
		t.Fatalf("Expected 2 rendered points, got %d", buf.Len())
	}
	if len(buf.Colors) != len(buf.Positions) {
		t.Errorf("Buffer lengths differ: %d positions, %d colors", len(buf.Positions), len(buf.Colors))
	}
	if buf.Positions[3] != 7 || buf.Positions[5] != 9 {
		t.Errorf("Unexpected positions %v", buf.Positions)
	}

	all := BuildBuffers(points, Range{Min: 0, Max: 10}, false, GlobalRange{}, BandAll)
	if all.Len() != 3 {
		t.Errorf("Expected 3 rendered points, got %d", all.Len())
	}
}

// TestParseWearBand verifies band names are validated
func TestParseWearBand(t *testing.T) {
	if b, err := ParseWearBand(""); err != nil || b != BandAll {
		t.Errorf("Expected all for empty band, got %q, %v", b, err)
	}
	if b, err := ParseWearBand("Critical"); err != nil || b != BandCritical {
		t.Errorf("Expected critical, got %q, %v", b, err)
	}
	if _, err := ParseWearBand("extreme"); err == nil {
		t.Error("Expected error for unknown band")
	}
}
