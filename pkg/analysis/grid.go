// Package analysis derives the inspection views of a scan: the thickness
// grid, profile slices, scan comparisons and summary statistics. It also
// owns the analysis parameters and the background proposal runner.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"furnacewear/internal/models"
	"furnacewear/pkg/colormap"
	"furnacewear/pkg/interpolation"
)

// ErrProfileRange is returned for a profile index outside [0, ProfileCount).
var ErrProfileRange = errors.New("profile index out of range")

// Cell aggregates the points of one zone and profile. Estimated cells have
// no points and carry an interpolated Mean and Min.
type Cell struct {
	Count     int     `json:"count"`
	Mean      float64 `json:"mean"`
	Min       float64 `json:"min"`
	Estimated bool    `json:"estimated,omitempty"`
}

// Grid is a zone by profile matrix of thickness. Rows follow models.Zones.
type Grid struct {
	Zones    []models.Zone `json:"zones"`
	Profiles int           `json:"profiles"`
	Cells    [][]Cell      `json:"cells"`
}

func zoneRow(z models.Zone) int {
	for i, zz := range models.Zones {
		if zz == z {
			return i
		}
	}
	return -1
}

// BuildGrid aggregates points into the thickness grid. Empty cells have a
// zero count.
func BuildGrid(points []models.SamplePoint) Grid {
	g := Grid{
		Zones:    append([]models.Zone(nil), models.Zones...),
		Profiles: models.ProfileCount,
		Cells:    make([][]Cell, len(models.Zones)),
	}
	sums := make([][]float64, len(models.Zones))
	for i := range g.Cells {
		g.Cells[i] = make([]Cell, models.ProfileCount)
		sums[i] = make([]float64, models.ProfileCount)
	}

	for _, p := range points {
		row := zoneRow(p.Zone)
		if row < 0 || p.ProfileIndex < 0 || p.ProfileIndex >= models.ProfileCount {
			continue
		}
		c := &g.Cells[row][p.ProfileIndex]
		if c.Count == 0 || p.Thickness < c.Min {
			c.Min = p.Thickness
		}
		c.Count++
		sums[row][p.ProfileIndex] += p.Thickness
	}
	for i := range g.Cells {
		for j := range g.Cells[i] {
			if n := g.Cells[i][j].Count; n > 0 {
				g.Cells[i][j].Mean = sums[i][j] / float64(n)
			}
		}
	}
	return g
}

// FillGrid estimates the empty cells of g by kriging over the measured
// cells, placed on a unit lattice of profile by zone row. It returns the
// number of cells filled; a grid without measured cells is left as is.
func FillGrid(g Grid, model interpolation.VariogramModel) (int, error) {
	var in []interpolation.Sample
	for i, row := range g.Cells {
		for j, c := range row {
			if c.Count > 0 {
				in = append(in, interpolation.Sample{Position: [3]float64{float64(j), float64(i), 0}, Value: c.Mean})
			}
		}
	}
	if len(in) == 0 {
		return 0, nil
	}
	k, err := interpolation.NewKriging(in, interpolation.FitParams(in, model))
	if err != nil {
		return 0, err
	}

	filled := 0
	for i, row := range g.Cells {
		for j := range row {
			c := &row[j]
			if c.Count > 0 {
				continue
			}
			v := k.Estimate([3]float64{float64(j), float64(i), 0})
			c.Mean, c.Min, c.Estimated = v, v, true
			filled++
		}
	}
	return filled, nil
}

// ProfilePoint is one colored point of a profile slice.
type ProfilePoint struct {
	Position  [3]float64   `json:"position"`
	Thickness float64      `json:"thickness"`
	Zone      models.Zone  `json:"zone"`
	Color     colormap.RGB `json:"color"`
}

// Profile returns the points of one profile ordered bottom to top.
func Profile(f *models.ParsedFile, index int, useGlobal bool, global colormap.GlobalRange) ([]ProfilePoint, error) {
	if index < 0 || index >= models.ProfileCount {
		return nil, fmt.Errorf("%w: %d", ErrProfileRange, index)
	}
	out := []ProfilePoint{}
	for _, p := range f.Points {
		if p.ProfileIndex != index {
			continue
		}
		c, _ := colormap.ColorFor(p.Thickness, f.MinThickness, f.MaxThickness, useGlobal, global, colormap.BandAll)
		out = append(out, ProfilePoint{Position: p.Position, Thickness: p.Thickness, Zone: p.Zone, Color: c})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position[1] < out[j].Position[1] })
	return out, nil
}

// CellDelta is the change of one grid cell between two scans. Delta is
// target minus base mean and only meaningful when Valid.
type CellDelta struct {
	Base   float64 `json:"base"`
	Target float64 `json:"target"`
	Delta  float64 `json:"delta"`
	Valid  bool    `json:"valid"`
}

// Comparison is the cell-by-cell difference of two scans.
type Comparison struct {
	Base   string        `json:"base"`
	Target string        `json:"target"`
	Zones  []models.Zone `json:"zones"`
	Cells  [][]CellDelta `json:"cells"`

	// MeanDelta averages the valid cells
	MeanDelta float64 `json:"meanDelta"`

	// ElapsedDays is zero when either scan has no timestamp
	ElapsedDays float64 `json:"elapsedDays"`

	// WearRate is thickness lost per day, zero without elapsed time
	WearRate float64 `json:"wearRate"`
}

// Compare differences the grids of two scans.
func Compare(base, target *models.ParsedFile) Comparison {
	bg, tg := BuildGrid(base.Points), BuildGrid(target.Points)
	cmp := Comparison{
		Base:   base.Name,
		Target: target.Name,
		Zones:  bg.Zones,
		Cells:  make([][]CellDelta, len(bg.Cells)),
	}

	var deltas []float64
	for i := range bg.Cells {
		cmp.Cells[i] = make([]CellDelta, len(bg.Cells[i]))
		for j := range bg.Cells[i] {
			b, t := bg.Cells[i][j], tg.Cells[i][j]
			d := CellDelta{Base: b.Mean, Target: t.Mean}
			if b.Count > 0 && t.Count > 0 {
				d.Delta = t.Mean - b.Mean
				d.Valid = true
				deltas = append(deltas, d.Delta)
			}
			cmp.Cells[i][j] = d
		}
	}
	if len(deltas) > 0 {
		cmp.MeanDelta = stat.Mean(deltas, nil)
	}

	bt, bok := ScanTime(base)
	tt, tok := ScanTime(target)
	if bok && tok {
		cmp.ElapsedDays = tt.Sub(bt).Hours() / 24
		if cmp.ElapsedDays != 0 {
			cmp.WearRate = -cmp.MeanDelta / cmp.ElapsedDays
		}
	}
	if math.IsNaN(cmp.WearRate) {
		cmp.WearRate = 0
	}
	return cmp
}
