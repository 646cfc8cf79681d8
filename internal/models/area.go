package models

// RepairArea is a cluster of worn points proposed as one repair zone.
type RepairArea struct {
	// ID is assigned sequentially from 1 and is not stable across parameter changes
	ID int `json:"id"`

	Points []SamplePoint `json:"points,omitempty"`

	PointCount int `json:"pointCount"`

	// AvgWear is the mean distance below the wear threshold
	AvgWear float64 `json:"avgWear"`

	// AreaSize is the estimated surface, in square meters
	AreaSize float64 `json:"areaSize"`

	// Volume is in cubic meters, Weight in kilograms
	Volume float64 `json:"volume"`
	Weight float64 `json:"weight"`
}

// ProposalTotal aggregates all repair areas of a proposal.
type ProposalTotal struct {
	Volume float64 `json:"volume"`
	Weight float64 `json:"weight"`
}

// Proposal is the repair-material estimate for one set of worn points.
type Proposal struct {
	Areas    []RepairArea  `json:"areas"`
	Total    ProposalTotal `json:"total"`
	Material string        `json:"material,omitempty"`
}
