package interpolation

import (
	"errors"
	"math"
	"testing"
)

func gridSamples(value func(x, y float64) float64) []Sample {
	var out []Sample
	for x := 0; x < 5; x++ {
		for y := 0; y < 5; y++ {
			if x == 2 && y == 2 {
				continue
			}
			out = append(out, Sample{Position: [3]float64{float64(x), float64(y), 0}, Value: value(float64(x), float64(y))})
		}
	}
	return out
}

// TestVariogramModels verifies the three variogram models (Spherical, Exponential, Gaussian)
func TestVariogramModels(t *testing.T) {
	for _, model := range []VariogramModel{Spherical, Exponential, Gaussian} {
		k, err := NewKriging([]Sample{{Value: 1}}, Params{Range: 10, Sill: 1, Nugget: 0.1, Model: model})
		if err != nil {
			t.Fatalf("NewKriging failed: %v", err)
		}

		if g := k.Variogram(0); g != 0 {
			t.Errorf("Model %d: expected 0 at distance 0, got %f", model, g)
		}
		prev := 0.0
		for _, h := range []float64{1, 5, 10, 20} {
			g := k.Variogram(h)
			if g < prev {
				t.Errorf("Model %d: variogram decreased at %f", model, h)
			}
			if g > 1.1+1e-9 {
				t.Errorf("Model %d: variogram %f exceeds sill plus nugget", model, g)
			}
			prev = g
		}
	}

	k, _ := NewKriging([]Sample{{Value: 1}}, Params{Range: 10, Sill: 1, Nugget: 0.1, Model: Spherical})
	if g := k.Variogram(10); math.Abs(g-1.1) > 1e-9 {
		t.Errorf("Expected spherical model to reach the sill at its range, got %f", g)
	}
}

// TestEstimateConstantField verifies a constant field is reproduced
func TestEstimateConstantField(t *testing.T) {
	in := gridSamples(func(x, y float64) float64 { return 42 })
	k, err := NewKriging(in, FitParams(in, Gaussian))
	if err != nil {
		t.Fatalf("NewKriging failed: %v", err)
	}
	if got := k.Estimate([3]float64{2, 2, 0}); math.Abs(got-42) > 1e-6 {
		t.Errorf("Expected 42, got %f", got)
	}
}

// TestEstimateLinearField verifies the hole of a symmetric linear field is
// estimated close to the true value
func TestEstimateLinearField(t *testing.T) {
	in := gridSamples(func(x, y float64) float64 { return 10 + 2*x })
	k, err := NewKriging(in, FitParams(in, Spherical))
	if err != nil {
		t.Fatalf("NewKriging failed: %v", err)
	}
	if got := k.Estimate([3]float64{2, 2, 0}); math.Abs(got-14) > 0.5 {
		t.Errorf("Expected about 14, got %f", got)
	}
}

// TestEstimateAtSample verifies sample positions return the sample value
func TestEstimateAtSample(t *testing.T) {
	in := gridSamples(func(x, y float64) float64 { return x * y })
	k, err := NewKriging(in, FitParams(in, Exponential))
	if err != nil {
		t.Fatalf("NewKriging failed: %v", err)
	}
	if got := k.Estimate([3]float64{3, 4, 0}); got != 12 {
		t.Errorf("Expected 12, got %f", got)
	}
}

// TestNewKrigingErrors verifies invalid input is rejected
func TestNewKrigingErrors(t *testing.T) {
	if _, err := NewKriging(nil, Params{Range: 1}); !errors.Is(err, ErrNoSamples) {
		t.Errorf("Expected ErrNoSamples, got %v", err)
	}
	if _, err := NewKriging([]Sample{{}}, Params{Range: 0}); err == nil {
		t.Error("Expected error for zero range")
	}
}

// TestFitParams verifies the fitted variogram follows the sample spread
func TestFitParams(t *testing.T) {
	in := gridSamples(func(x, y float64) float64 { return x })
	p := FitParams(in, Gaussian)
	if p.Sill <= 0 {
		t.Errorf("Expected positive sill, got %f", p.Sill)
	}
	if want := math.Sqrt(32) / 2; math.Abs(p.Range-want) > 1e-9 {
		t.Errorf("Expected range %f, got %f", want, p.Range)
	}
	if p.Neighbors != 8 {
		t.Errorf("Expected 8 neighbors, got %d", p.Neighbors)
	}
}
