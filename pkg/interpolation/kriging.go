// Package interpolation estimates thickness where a scan has no samples,
// using ordinary kriging over the nearest measured neighbours.
package interpolation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/stat"
)

// ErrNoSamples is returned when kriging is built without any sample.
var ErrNoSamples = errors.New("no samples to interpolate from")

// Variogram models supported by the implementation
type VariogramModel int

const (
	Spherical VariogramModel = iota
	Exponential
	Gaussian
)

// Params holds the variogram and the neighbourhood size.
type Params struct {
	Range  float64        // distance at which samples stop being correlated
	Sill   float64        // variance reached at Range
	Nugget float64        // variance at distance zero
	Model  VariogramModel // shape of the variogram

	// Neighbors is how many nearest samples enter each estimate
	Neighbors int
}

// Sample is a measured value at a position.
type Sample struct {
	Position [3]float64
	Value    float64
}

// Compare implements the kdtree.Comparable interface
func (s Sample) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return s.Position[d] - c.(Sample).Position[d]
}

// Dims returns the number of dimensions for the KD-tree
func (s Sample) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two samples
func (s Sample) Distance(c kdtree.Comparable) float64 {
	q := c.(Sample)
	dx := s.Position[0] - q.Position[0]
	dy := s.Position[1] - q.Position[1]
	dz := s.Position[2] - q.Position[2]
	return dx*dx + dy*dy + dz*dz
}

type samples []Sample

func (p samples) Index(i int) kdtree.Comparable         { return p[i] }
func (p samples) Len() int                              { return len(p) }
func (p samples) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p samples) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(samplePlane{samples: p, Dim: d}, kdtree.MedianOfRandoms(samplePlane{samples: p, Dim: d}, 100))
}

// samplePlane implements sort.Interface and kdtree.SortSlicer for samples
type samplePlane struct {
	samples
	kdtree.Dim
}

func (p samplePlane) Less(i, j int) bool {
	return p.samples[i].Position[p.Dim] < p.samples[j].Position[p.Dim]
}

func (p samplePlane) Slice(start, end int) kdtree.SortSlicer {
	return samplePlane{samples: p.samples[start:end], Dim: p.Dim}
}

func (p samplePlane) Swap(i, j int) {
	p.samples[i], p.samples[j] = p.samples[j], p.samples[i]
}

// FitParams derives a variogram from the samples: the sill is their
// variance and the range half the diagonal of their bounding box.
func FitParams(in []Sample, model VariogramModel) Params {
	p := Params{Model: model, Neighbors: 8, Sill: 1, Range: 1}
	if len(in) == 0 {
		return p
	}
	values := make([]float64, len(in))
	for i, s := range in {
		values[i] = s.Value
	}
	if v := stat.Variance(values, nil); v > 0 && !math.IsNaN(v) {
		p.Sill = v
	}

	var diag float64
	for d := 0; d < 3; d++ {
		axis := make([]float64, len(in))
		for i, s := range in {
			axis[i] = s.Position[d]
		}
		span := floats.Max(axis) - floats.Min(axis)
		diag += span * span
	}
	if diag > 0 {
		p.Range = math.Sqrt(diag) / 2
	}
	return p
}

// Kriging estimates values from a fixed set of samples.
type Kriging struct {
	params Params
	tree   *kdtree.Tree
}

// NewKriging indexes the samples. The input slice is not modified.
func NewKriging(in []Sample, params Params) (*Kriging, error) {
	if len(in) == 0 {
		return nil, ErrNoSamples
	}
	if params.Range <= 0 || params.Sill < 0 || params.Nugget < 0 {
		return nil, fmt.Errorf("invalid variogram: range %v, sill %v, nugget %v", params.Range, params.Sill, params.Nugget)
	}
	if params.Neighbors <= 0 {
		params.Neighbors = 8
	}
	return &Kriging{
		params: params,
		tree:   kdtree.New(append(samples(nil), in...), false),
	}, nil
}

// Variogram returns the semivariance at distance h.
func (k *Kriging) Variogram(h float64) float64 {
	if h == 0 {
		return 0
	}
	p := k.params
	gamma := p.Nugget
	switch p.Model {
	case Spherical:
		if h < p.Range {
			r := h / p.Range
			gamma += p.Sill * (1.5*r - 0.5*r*r*r)
		} else {
			gamma += p.Sill
		}
	case Exponential:
		gamma += p.Sill * (1 - math.Exp(-3*h/p.Range))
	case Gaussian:
		gamma += p.Sill * (1 - math.Exp(-3*h*h/(p.Range*p.Range)))
	}
	return gamma
}

// neighbors returns up to Params.Neighbors samples nearest to pos.
func (k *Kriging) neighbors(pos [3]float64) []Sample {
	keeper := kdtree.NewNKeeper(k.params.Neighbors)
	k.tree.NearestSet(keeper, Sample{Position: pos})

	out := make([]Sample, 0, keeper.Len())
	for _, cd := range keeper.Heap {
		if cd.Comparable == nil {
			continue
		}
		out = append(out, cd.Comparable.(Sample))
	}
	return out
}

func distance(a, b [3]float64) float64 {
	return math.Sqrt(Sample{Position: a}.Distance(Sample{Position: b}))
}

// Estimate returns the ordinary kriging estimate at pos. A position that
// coincides with a sample returns its value. When the kriging system is
// singular the estimate falls back to inverse distance weighting.
func (k *Kriging) Estimate(pos [3]float64) float64 {
	near := k.neighbors(pos)
	for _, s := range near {
		if distance(s.Position, pos) < 1e-10 {
			return s.Value
		}
	}
	if len(near) == 1 {
		return near[0].Value
	}

	n := len(near)
	a := mat.NewDense(n+1, n+1, nil)
	b := mat.NewVecDense(n+1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, k.Variogram(distance(near[i].Position, near[j].Position)))
		}
		a.Set(i, n, 1)
		a.Set(n, i, 1)
		b.SetVec(i, k.Variogram(distance(near[i].Position, pos)))
	}
	b.SetVec(n, 1)

	var qr mat.QR
	qr.Factorize(a)
	var w mat.VecDense
	if err := qr.SolveVecTo(&w, false, b); err != nil {
		return inverseDistance(near, pos)
	}

	var estimate float64
	for i, s := range near {
		estimate += w.AtVec(i) * s.Value
	}
	if math.IsNaN(estimate) || math.IsInf(estimate, 0) {
		return inverseDistance(near, pos)
	}
	return estimate
}

func inverseDistance(near []Sample, pos [3]float64) float64 {
	var weighted, total float64
	for _, s := range near {
		d := distance(s.Position, pos)
		w := 1 / (d * d)
		weighted += w * s.Value
		total += w
	}
	return weighted / total
}
