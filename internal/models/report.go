package models

import "time"

// Minimum is a local minimum of the estimated speed density
type Minimum struct {
	Speed   float64 `json:"speed"`
	Density float64 `json:"density"`
}

// ClusterSummary describes one time cluster after sanitization
type ClusterSummary struct {
	ID          int       `json:"id"`
	Fixes       int       `json:"fixes"`
	Kept        int       `json:"kept"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	DurationMin float64   `json:"durationMin"`
	PathLengthM float64   `json:"pathLengthM"` // haversine length over kept fixes
}

// ClassSummary describes the fixes assigned to one movement type.
// Upper is nil for the overflow bin.
type ClassSummary struct {
	Label       int      `json:"label"`
	Lower       float64  `json:"lower"`
	Upper       *float64 `json:"upper,omitempty"`
	Count       int      `json:"count"`
	MeanSpeed   float64  `json:"meanSpeed"`
	StdSpeed    float64  `json:"stdSpeed"`
	MedianSpeed float64  `json:"medianSpeed"`
	MaxSpeed    float64  `json:"maxSpeed"`
}

// Report summarises one pipeline run over a trace
type Report struct {
	RunID        string           `json:"runId"`
	Fixes        int              `json:"fixes"`
	Clusters     []ClusterSummary `json:"clusters"`
	Removed      int              `json:"removed"`
	Degenerate   int              `json:"degenerate"`
	Bandwidth    float64          `json:"bandwidth"`
	Boundaries   []float64        `json:"boundaries"`
	Minima       []Minimum        `json:"minima"`
	Classes      []ClassSummary   `json:"classes"`
	Unclassified int              `json:"unclassified"`
	Elapsed      time.Duration    `json:"elapsedNs"`
}
