package behavior

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/jengzang/mvtypes-go/internal/models"
	"github.com/jengzang/mvtypes-go/internal/stats"
)

// DefaultClassifyNum caps the number of class boundaries
const DefaultClassifyNum = 5

// gridPointsPerUnit is the evaluation grid density, in points per km/h
const gridPointsPerUnit = 2

// EmptyDistributionError is returned when the trace has no usable speed
// distribution to estimate a density from.
type EmptyDistributionError struct {
	Samples int     // positive measured velocities
	Max     float64 // largest finite velocity
}

func (e *EmptyDistributionError) Error() string {
	return fmt.Sprintf("no speed distribution to classify: %d positive samples, max %.3f km/h", e.Samples, e.Max)
}

// ClassBoundaries is the outcome of one density run
type ClassBoundaries struct {
	Boundaries []float64
	Minima     []models.Minimum
	Density    *stats.Density
}

// SpeedClassifier derives speed-class boundaries from the local minima of a
// density estimate and bins fixes by them.
type SpeedClassifier struct {
	estimator   stats.DensityEstimator
	classifyNum int
}

// NewSpeedClassifier creates a classifier keeping at most classifyNum boundaries
func NewSpeedClassifier(estimator stats.DensityEstimator, classifyNum int) *SpeedClassifier {
	if classifyNum < 0 {
		classifyNum = DefaultClassifyNum
	}
	return &SpeedClassifier{estimator: estimator, classifyNum: classifyNum}
}

// Boundaries estimates the density of the trace velocities and returns its
// first classifyNum local minima as ascending class boundaries.
// Zero sentinels are part of the sample, degenerate fixes are not.
func (c *SpeedClassifier) Boundaries(ctx context.Context, trace *models.Trace) (*ClassBoundaries, error) {
	sample := make([]float64, 0, trace.Len())
	positive := 0
	maxV := 0.0
	for _, f := range trace.Fixes {
		if f.VelocityStatus == models.VelocityDegenerate || math.IsNaN(f.Velocity) || math.IsInf(f.Velocity, 0) {
			continue
		}
		sample = append(sample, f.Velocity)
		if f.VelocityStatus == models.VelocityMeasured && f.Velocity > 0 {
			positive++
		}
		if f.Velocity > maxV {
			maxV = f.Velocity
		}
	}

	top := math.Floor(maxV)
	if positive == 0 || top < 1 {
		return nil, &EmptyDistributionError{Samples: positive, Max: maxV}
	}

	grid := floats.Span(make([]float64, gridPointsPerUnit*int(top)), 0, top)
	density, err := c.estimator.Estimate(ctx, sample, grid, true)
	if err != nil {
		return nil, fmt.Errorf("estimate speed density: %w", err)
	}

	minima := LocalMinima(density.Grid, density.Values)
	n := min(len(minima), c.classifyNum)
	boundaries := make([]float64, n)
	for i := 0; i < n; i++ {
		boundaries[i] = minima[i].Speed
	}

	return &ClassBoundaries{
		Boundaries: boundaries,
		Minima:     minima,
		Density:    density,
	}, nil
}

// slope is the state of the minima scan
type slope int

const (
	slopeInitial slope = iota
	slopeRising
	slopeFalling
)

// LocalMinima walks the density left to right and records a minimum at
// every falling -> rising edge: the first grid point whose value exceeds its
// predecessor after a run of non-increasing values.
func LocalMinima(grid, values []float64) []models.Minimum {
	var minima []models.Minimum
	state := slopeInitial

	for k := 1; k < len(values) && k < len(grid); k++ {
		if values[k] > values[k-1] {
			if state == slopeFalling {
				minima = append(minima, models.Minimum{Speed: grid[k], Density: values[k]})
			}
			state = slopeRising
			continue
		}
		state = slopeFalling
	}

	return minima
}

// Bin returns the ordinal bin of v for bins [0,b1), [b1,b2), ..., [b_last,+inf).
// The last bin is the overflow bin len(boundaries). Negative and non-finite
// speeds are Unclassified.
func Bin(v float64, boundaries []float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return models.Unclassified
	}
	return sort.Search(len(boundaries), func(i int) bool { return v < boundaries[i] })
}

// Classify labels every fix with its bin and returns how many stayed unclassified
func (c *SpeedClassifier) Classify(trace *models.Trace, boundaries []float64) int {
	unclassified := 0
	for i := range trace.Fixes {
		f := &trace.Fixes[i]
		if f.VelocityStatus == models.VelocityDegenerate {
			f.MvType = models.Unclassified
		} else {
			f.MvType = Bin(f.Velocity, boundaries)
		}
		if f.MvType == models.Unclassified {
			unclassified++
		}
	}
	return unclassified
}
