package foundation

import (
	"github.com/jengzang/mvtypes-go/internal/models"
)

// DefaultThresholdMinutes is the gap that separates two clusters
const DefaultThresholdMinutes = 15.0

// Segment partitions a trace into clusters of time-contiguous fixes.
// A new cluster starts whenever the gap to the immediately preceding fix
// exceeds thresholdMin minutes. Cluster ids start at 1 and are written to
// every fix. Negative gaps never start a cluster.
func Segment(trace *models.Trace, thresholdMin float64) []models.Cluster {
	if trace.Len() == 0 {
		return nil
	}

	var clusters []models.Cluster
	id := 1
	current := models.Cluster{ID: id}
	reference := trace.Fixes[0].Time

	for i := range trace.Fixes {
		fix := &trace.Fixes[i]
		if fix.Time.Sub(reference).Minutes() > thresholdMin {
			clusters = append(clusters, current)
			id++
			current = models.Cluster{ID: id}
		}

		fix.Cluster = id
		current.Indices = append(current.Indices, i)
		reference = fix.Time
	}

	return append(clusters, current)
}
