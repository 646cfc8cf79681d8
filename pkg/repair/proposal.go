// Package repair estimates the material needed to repair worn lining.
package repair

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"furnacewear/internal/models"
	"furnacewear/pkg/grouping"
)

// Constants are the unit conversions behind the proposal formulas. Their
// defaults match the figures used in the field and are pending domain review.
type Constants struct {
	// PointDensity is the number of scan points per square meter
	PointDensity float64

	// WearUnitDivisor converts wear depth into meters
	WearUnitDivisor float64

	// MinVolume is the smallest volume proposed for any area, in cubic meters
	MinVolume float64
}

// DefaultConstants returns the standard conversion constants.
func DefaultConstants() Constants {
	return Constants{
		PointDensity:    1000,
		WearUnitDivisor: 100,
		MinVolume:       0.001,
	}
}

// Calculator turns worn points into repair proposals.
type Calculator struct {
	constants Constants
	materials *Catalogue
}

// NewCalculator creates a calculator. Zero constants fall back to their defaults.
func NewCalculator(constants Constants, materials *Catalogue) *Calculator {
	def := DefaultConstants()
	if constants.PointDensity <= 0 {
		constants.PointDensity = def.PointDensity
	}
	if constants.WearUnitDivisor <= 0 {
		constants.WearUnitDivisor = def.WearUnitDivisor
	}
	if constants.MinVolume <= 0 {
		constants.MinVolume = def.MinVolume
	}
	return &Calculator{constants: constants, materials: materials}
}

var defaultCalculator = NewCalculator(DefaultConstants(), nil)

// ComputeProposal groups the worn points and estimates each area with the
// default constants. density is in g/cm³.
func ComputeProposal(ctx context.Context, worn []models.SamplePoint, params models.AnalysisParams, density float64) (models.Proposal, error) {
	return defaultCalculator.Compute(ctx, worn, params, density)
}

// SelectWorn returns the points at or below the wear threshold, in order.
func SelectWorn(points []models.SamplePoint, threshold float64) []models.SamplePoint {
	var worn []models.SamplePoint
	for _, p := range points {
		if p.Thickness <= threshold {
			worn = append(worn, p)
		}
	}
	return worn
}

// Compute groups the worn points and estimates volume and weight per area.
// Totals are the sums over areas in area order.
func (c *Calculator) Compute(ctx context.Context, worn []models.SamplePoint, params models.AnalysisParams, density float64) (models.Proposal, error) {
	proposal := models.Proposal{Areas: []models.RepairArea{}}
	if len(worn) == 0 {
		return proposal, nil
	}

	clusters, err := grouping.Group(ctx, worn, grouping.OptionsFromParams(params))
	if err != nil {
		return models.Proposal{}, err
	}

	wear := make([]float64, 0, len(worn))
	for i, cl := range clusters {
		wear = wear[:0]
		for _, p := range cl.Points {
			wear = append(wear, params.WearThreshold-p.Thickness)
		}
		area := models.RepairArea{
			ID:         i + 1,
			Points:     cl.Points,
			PointCount: cl.Len(),
			AvgWear:    stat.Mean(wear, nil),
		}
		area.AreaSize = float64(area.PointCount) / c.constants.PointDensity
		area.Volume = math.Max(c.constants.MinVolume, area.AreaSize*area.AvgWear/c.constants.WearUnitDivisor)
		area.Weight = area.Volume * density * 1000

		proposal.Areas = append(proposal.Areas, area)
		proposal.Total.Volume += area.Volume
		proposal.Total.Weight += area.Weight
	}
	return proposal, nil
}

// Propose selects the worn points of a file and prices them with the
// material named in params.
func (c *Calculator) Propose(ctx context.Context, points []models.SamplePoint, params models.AnalysisParams) (models.Proposal, error) {
	if c.materials == nil {
		return models.Proposal{}, fmt.Errorf("no material catalogue configured")
	}
	material, err := c.materials.Lookup(params.RepairMaterial)
	if err != nil {
		return models.Proposal{}, err
	}
	proposal, err := c.Compute(ctx, SelectWorn(points, params.WearThreshold), params, material.Density)
	if err != nil {
		return models.Proposal{}, err
	}
	proposal.Material = material.Name
	return proposal, nil
}

// Materials returns the calculator's catalogue, nil when none is configured.
func (c *Calculator) Materials() *Catalogue { return c.materials }
