package analysis

import (
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/jengzang/mvtypes-go/internal/models"
	"github.com/jengzang/mvtypes-go/internal/spatial"
	"github.com/jengzang/mvtypes-go/internal/stats"
)

// summariseClusters reports size, time span and great-circle length of each
// cluster. Lengths run over the fixes that survived sanitization; a fix that
// cannot be placed on the globe is left out of the length.
func (p *Pipeline) summariseClusters(trace *models.Trace, ann *Annotation) []models.ClusterSummary {
	out := make([]models.ClusterSummary, 0, len(ann.Clusters))
	for i, c := range ann.Clusters {
		if c.Len() == 0 {
			continue
		}
		first := trace.Fixes[c.Indices[0]]
		last := trace.Fixes[c.Indices[c.Len()-1]]

		kept := ann.Cleaned[i]
		path := make([]spatial.Point, 0, kept.Len())
		for _, idx := range kept.Indices {
			f := trace.Fixes[idx]
			ll, err := p.geographic.Project(orb.Point{f.Lng, f.Lat})
			if err != nil {
				p.logger.Warn("Fix left out of path length",
					zap.Int("cluster", c.ID),
					zap.String("fix", f.ID),
					zap.Error(err))
				continue
			}
			path = append(path, spatial.Point{Lat: ll.Lat(), Lon: ll.Lon()})
		}

		out = append(out, models.ClusterSummary{
			ID:          c.ID,
			Fixes:       c.Len(),
			Kept:        kept.Len(),
			Start:       first.Time,
			End:         last.Time,
			DurationMin: last.Time.Sub(first.Time).Minutes(),
			PathLengthM: spatial.PathLength(path),
		})
	}
	return out
}

// SummariseClasses describes the speeds of the fixes in each bin
// [0,b1), ..., [b_last,+inf). Every bin is listed, empty ones included.
func SummariseClasses(trace *models.Trace, boundaries []float64) []models.ClassSummary {
	speeds := make([][]float64, len(boundaries)+1)
	for _, f := range trace.Fixes {
		if f.MvType >= 0 && f.MvType < len(speeds) {
			speeds[f.MvType] = append(speeds[f.MvType], f.Velocity)
		}
	}

	out := make([]models.ClassSummary, len(speeds))
	for label := range speeds {
		s := stats.Summarise(speeds[label])
		cs := models.ClassSummary{
			Label:       label,
			Count:       s.Count,
			MeanSpeed:   s.Mean,
			StdSpeed:    s.StdDev,
			MedianSpeed: s.Median,
			MaxSpeed:    s.Max,
		}
		if label > 0 {
			cs.Lower = boundaries[label-1]
		}
		if label < len(boundaries) {
			upper := boundaries[label]
			cs.Upper = &upper
		}
		out[label] = cs
	}
	return out
}
