package models

import "time"

// Furnace is a piece of plant whose lining is inspected.
type Furnace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"createdAt"`
}

// Campaign is one lining life of a furnace, between two relines.
type Campaign struct {
	ID        string     `json:"id"`
	FurnaceID string     `json:"furnaceId"`
	Name      string     `json:"name"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// Scan records an uploaded scan file and its thickness summary.
type Scan struct {
	ID           string    `json:"id"`
	CampaignID   string    `json:"campaignId"`
	FileName     string    `json:"fileName"`
	ScannedAt    time.Time `json:"scannedAt"`
	PointCount   int       `json:"pointCount"`
	MinThickness float64   `json:"minThickness"`
	MaxThickness float64   `json:"maxThickness"`
	CreatedAt    time.Time `json:"createdAt"`
}
