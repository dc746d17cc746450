package behavior

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/mvtypes-go/internal/models"
	"github.com/jengzang/mvtypes-go/internal/spatial"
)

// DegenerateVelocityError is returned when the two neighbours of a fix share
// a timestamp, so no elapsed time exists to divide by.
type DegenerateVelocityError struct {
	PrevID string
	NextID string
}

func (e *DegenerateVelocityError) Error() string {
	return fmt.Sprintf("zero elapsed time between fixes %q and %q", e.PrevID, e.NextID)
}

// VelocityEstimator computes smoothed three-point speeds in a projected CRS
type VelocityEstimator struct {
	projector spatial.Projector
	workers   int
	logger    *zap.Logger
}

// NewVelocityEstimator creates an estimator. workers bounds how many
// clusters are processed at once (<=0 means one at a time).
func NewVelocityEstimator(projector spatial.Projector, workers int, logger *zap.Logger) *VelocityEstimator {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VelocityEstimator{projector: projector, workers: workers, logger: logger}
}

// Velocity returns the speed in km/h at curr: the planar lengths of the
// incoming and outgoing segments summed, divided by the time from prev to next.
func (e *VelocityEstimator) Velocity(prev, curr, next *models.Fix) (float64, error) {
	pp, err := e.projector.Project(orb.Point{prev.Lng, prev.Lat})
	if err != nil {
		return 0, fmt.Errorf("project fix %q: %w", prev.ID, err)
	}
	pc, err := e.projector.Project(orb.Point{curr.Lng, curr.Lat})
	if err != nil {
		return 0, fmt.Errorf("project fix %q: %w", curr.ID, err)
	}
	pn, err := e.projector.Project(orb.Point{next.Lng, next.Lat})
	if err != nil {
		return 0, fmt.Errorf("project fix %q: %w", next.ID, err)
	}

	hours := next.Time.Sub(prev.Time).Hours()
	if hours == 0 {
		return 0, &DegenerateVelocityError{PrevID: prev.ID, NextID: next.ID}
	}

	length := planar.Distance(pc, pn) + planar.Distance(pp, pc)
	return length / hours / 1000, nil
}

// Estimate writes a velocity to every interior fix of every sanitized
// cluster, at the fix's original trace index. Neighbours are the adjacent
// survivors in the cluster. Endpoints and removed fixes keep the zero
// sentinel. Degenerate fixes are flagged with NaN and counted, they do not
// stop the run; projection failures do.
func (e *VelocityEstimator) Estimate(ctx context.Context, trace *models.Trace, clusters []models.Cluster) (int, error) {
	for i := range trace.Fixes {
		trace.Fixes[i].Velocity = 0
		trace.Fixes[i].VelocityStatus = models.VelocityUndefined
	}

	var degenerate atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, c := range clusters {
		if c.Len() < 3 {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := e.estimateCluster(trace, c)
			degenerate.Add(int64(n))
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return int(degenerate.Load()), err
	}
	return int(degenerate.Load()), nil
}

// estimateCluster touches only the fixes of c, so clusters can run in parallel
func (e *VelocityEstimator) estimateCluster(trace *models.Trace, c models.Cluster) (int, error) {
	degenerate := 0
	for pos := 1; pos < len(c.Indices)-1; pos++ {
		prev := &trace.Fixes[c.Indices[pos-1]]
		curr := &trace.Fixes[c.Indices[pos]]
		next := &trace.Fixes[c.Indices[pos+1]]

		v, err := e.Velocity(prev, curr, next)
		if err != nil {
			var dve *DegenerateVelocityError
			if !errors.As(err, &dve) {
				return degenerate, fmt.Errorf("cluster %d: %w", c.ID, err)
			}
			e.logger.Warn("Degenerate velocity",
				zap.Int("cluster", c.ID),
				zap.String("fix", curr.ID),
				zap.String("prev", dve.PrevID),
				zap.String("next", dve.NextID))
			curr.Velocity = math.NaN()
			curr.VelocityStatus = models.VelocityDegenerate
			degenerate++
			continue
		}

		curr.Velocity = v
		curr.VelocityStatus = models.VelocityMeasured
	}
	return degenerate, nil
}
