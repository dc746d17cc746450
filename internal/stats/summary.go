package stats

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds the descriptive statistics of a sample
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64 // sample standard deviation, 0 below two values
	Median float64
	Max    float64
}

// Summarise describes values, ignoring NaN and infinities.
// An empty sample yields the zero Summary.
func Summarise(values []float64) Summary {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return Summary{}
	}

	s := Summary{Count: len(finite), Max: floats.Max(finite)}
	if len(finite) < 2 {
		s.Mean = finite[0]
	} else {
		s.Mean, s.StdDev = stat.MeanStdDev(finite, nil)
	}

	slices.Sort(finite)
	s.Median = stat.Quantile(0.5, stat.Empirical, finite, nil)
	return s
}
