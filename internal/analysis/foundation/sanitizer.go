package foundation

import (
	"github.com/jengzang/mvtypes-go/internal/models"
)

// Removal reasons
const (
	ReasonDuplicateLat = "DUPLICATE_LAT"
	ReasonDuplicateLng = "DUPLICATE_LNG"
	ReasonMissingFix   = "MISSING_FIX"
)

// Removal records one fix dropped by Sanitize
type Removal struct {
	Index   int
	Cluster int
	Reason  string
}

// Sanitize drops duplicate-position and missing fixes inside each cluster and
// returns the surviving views, order preserved. Removed fixes are flagged on
// the trace.
//
// A fix at cluster position i>0 is dropped when its latitude OR its longitude
// equals that of the fix at position i-1, or when its latitude is exactly 0.
// Neighbours are taken from the cluster as it was before any removal, and
// position 0 is always kept.
func Sanitize(trace *models.Trace, clusters []models.Cluster) ([]models.Cluster, []Removal) {
	cleaned := make([]models.Cluster, 0, len(clusters))
	var removals []Removal

	for _, c := range clusters {
		// Decide on the pristine order first, then apply
		drop := make([]string, len(c.Indices))
		for pos := 1; pos < len(c.Indices); pos++ {
			curr := trace.Fixes[c.Indices[pos]]
			prev := trace.Fixes[c.Indices[pos-1]]
			drop[pos] = removalReason(prev, curr)
		}

		kept := models.Cluster{ID: c.ID, Indices: make([]int, 0, len(c.Indices))}
		for pos, idx := range c.Indices {
			if drop[pos] == "" {
				kept.Indices = append(kept.Indices, idx)
				continue
			}
			trace.Fixes[idx].Removed = true
			removals = append(removals, Removal{Index: idx, Cluster: c.ID, Reason: drop[pos]})
		}
		cleaned = append(cleaned, kept)
	}

	return cleaned, removals
}

func removalReason(prev, curr models.Fix) string {
	switch {
	case curr.Lat == prev.Lat:
		return ReasonDuplicateLat
	case curr.Lng == prev.Lng:
		return ReasonDuplicateLng
	case curr.Lat == 0:
		return ReasonMissingFix
	}
	return ""
}
