package models

import "time"

// Required input columns, in input-table order.
const (
	ColumnID   = "id"
	ColumnLat  = "lat"
	ColumnLng  = "lng"
	ColumnAlt  = "alt"
	ColumnTime = "time"

	// Annotation columns appended on export
	ColumnCluster  = "cluster"
	ColumnVelocity = "velocity"
	ColumnMvType   = "mvtypes"
)

// RequiredColumns lists the columns every input table must carry.
var RequiredColumns = []string{ColumnID, ColumnLat, ColumnLng, ColumnAlt, ColumnTime}

// AnnotationColumns lists the columns added by a classification run.
var AnnotationColumns = []string{ColumnCluster, ColumnVelocity, ColumnMvType}

// Unclassified marks a fix whose velocity falls in no bin.
const Unclassified = -1

// VelocityStatus tells how Fix.Velocity was obtained.
type VelocityStatus int

const (
	// VelocityUndefined is the zero sentinel: cluster endpoints and removed fixes.
	VelocityUndefined VelocityStatus = iota
	// VelocityMeasured is a three-point estimate.
	VelocityMeasured
	// VelocityDegenerate means the neighbours share a timestamp; Velocity is NaN.
	VelocityDegenerate
)

func (s VelocityStatus) String() string {
	switch s {
	case VelocityMeasured:
		return "measured"
	case VelocityDegenerate:
		return "degenerate"
	default:
		return "undefined"
	}
}

// Fix represents one GPS observation together with its annotations
type Fix struct {
	ID   string    `json:"id"`
	Lat  float64   `json:"lat"`
	Lng  float64   `json:"lng"`
	Alt  *float64  `json:"alt,omitempty"`
	Time time.Time `json:"time"`

	// Record holds every original cell, in Trace.Header order
	Record []string `json:"-"`

	// Annotations
	Cluster        int            `json:"cluster"`
	Velocity       float64        `json:"velocity"`
	VelocityStatus VelocityStatus `json:"-"`
	Removed        bool           `json:"removed,omitempty"`
	MvType         int            `json:"mvtypes"`
}

// Trace is an ordered sequence of fixes loaded from one table.
// Fixes are kept in input order and annotated in place.
type Trace struct {
	Header []string `json:"header"`
	Fixes  []Fix    `json:"fixes"`
}

// Len returns the number of fixes
func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Fixes)
}

// Velocities returns the per-fix velocity column
func (t *Trace) Velocities() []float64 {
	out := make([]float64, len(t.Fixes))
	for i := range t.Fixes {
		out[i] = t.Fixes[i].Velocity
	}
	return out
}

// ResetAnnotations clears every annotation so a trace can be processed again.
func (t *Trace) ResetAnnotations() {
	for i := range t.Fixes {
		f := &t.Fixes[i]
		f.Cluster = 0
		f.Velocity = 0
		f.VelocityStatus = VelocityUndefined
		f.Removed = false
		f.MvType = Unclassified
	}
}

// Cluster is a view over a run of trace fixes: Indices point into Trace.Fixes.
type Cluster struct {
	ID      int   `json:"id"`
	Indices []int `json:"indices"`
}

// Len returns the number of fixes in the cluster
func (c Cluster) Len() int {
	return len(c.Indices)
}
