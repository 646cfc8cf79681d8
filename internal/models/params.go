package models

import (
	"errors"
	"fmt"
)

// ClusterMode selects the proximity grouping algorithm.
type ClusterMode string

const (
	// ClusterSeedAnchored joins points within range of the cluster seed only.
	// Membership depends on input order.
	ClusterSeedAnchored ClusterMode = "seed-anchored"

	// ClusterSingleLinkage joins points transitively through any member.
	ClusterSingleLinkage ClusterMode = "single-linkage"
)

// Material is a named repair material.
type Material struct {
	Name string `json:"name" yaml:"name"`

	// Density is in g/cm³
	Density float64 `json:"density" yaml:"density"`
}

// AnalysisParams drives clustering and repair math.
type AnalysisParams struct {
	RepairMaterial       string      `json:"repairMaterial"`
	WearThreshold        float64     `json:"wearThreshold"`
	DistanceBetweenAreas float64     `json:"distanceBetweenAreas"`
	MinimumAreaSize      int         `json:"minimumAreaSize"`
	ClusterMode          ClusterMode `json:"clusterMode"`

	// ScanWindow caps how many following points a seed is compared against; 0 means all
	ScanWindow int `json:"scanWindow"`
}

// Validate checks the parameters for values the analysis cannot use.
func (p AnalysisParams) Validate() error {
	var errs []error
	if p.DistanceBetweenAreas < 0 {
		errs = append(errs, fmt.Errorf("distanceBetweenAreas must be non-negative, got %v", p.DistanceBetweenAreas))
	}
	if p.MinimumAreaSize < 1 {
		errs = append(errs, fmt.Errorf("minimumAreaSize must be at least 1, got %d", p.MinimumAreaSize))
	}
	if p.ScanWindow < 0 {
		errs = append(errs, fmt.Errorf("scanWindow must be non-negative, got %d", p.ScanWindow))
	}
	switch p.ClusterMode {
	case "", ClusterSeedAnchored, ClusterSingleLinkage:
	default:
		errs = append(errs, fmt.Errorf("unknown clusterMode %q", p.ClusterMode))
	}
	return errors.Join(errs...)
}
