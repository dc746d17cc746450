package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Density is a density curve evaluated on a grid
type Density struct {
	Grid      []float64
	Values    []float64
	Bandwidth float64

	// Bootstrap 90% band, nil unless requested
	Lower []float64
	Upper []float64
}

// DensityEstimator estimates a probability density of sample on grid.
// When bootstrap is true the result carries a resampled confidence band.
type DensityEstimator interface {
	Estimate(ctx context.Context, sample, grid []float64, bootstrap bool) (*Density, error)
}

// ErrTooFewSamples is returned when the sample cannot support an estimate
var ErrTooFewSamples = errors.New("kde: need at least two samples inside the grid")

const (
	goldenTol   = 1e-5
	goldenIters = 20
	bandLowerQ  = 0.05
	bandUpperQ  = 0.95

	// noiseFloor is the density, relative to the peak, below which FFT
	// round-off is flattened to zero
	noiseFloor = 1e-9
)

var phi = (math.Sqrt(5) + 1) / 2

// SSKernel is a Gaussian kernel density estimator whose fixed bandwidth
// minimises the Shimazaki-Shinomoto MISE cost, found by golden-section search
// in log-bandwidth space. Smoothing is done by FFT on the finest histogram.
type SSKernel struct {
	// Resamples is the number of bootstrap draws (default 1000)
	Resamples int
	// Seed makes bootstrap draws reproducible
	Seed uint64
}

// NewSSKernel creates an estimator with the given bootstrap settings
func NewSSKernel(resamples int, seed uint64) *SSKernel {
	if resamples <= 0 {
		resamples = 1000
	}
	return &SSKernel{Resamples: resamples, Seed: seed}
}

// Estimate implements DensityEstimator
func (k *SSKernel) Estimate(ctx context.Context, sample, grid []float64, bootstrap bool) (*Density, error) {
	if len(grid) < 2 {
		return nil, fmt.Errorf("kde: grid needs at least two points, got %d", len(grid))
	}
	lo, hi := floats.Min(grid), floats.Max(grid)
	dt := minStep(grid)
	if dt <= 0 {
		return nil, fmt.Errorf("kde: grid must be strictly increasing")
	}

	inGrid := make([]float64, 0, len(sample))
	for _, x := range sample {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		if x >= lo && x <= hi {
			inGrid = append(inGrid, x)
		}
	}
	if len(inGrid) < 2 {
		return nil, ErrTooFewSamples
	}

	hist := histogram(inGrid, lo, dt, len(grid))
	optw, y := optimalBandwidth(hist, float64(len(inGrid)), dt, floats.Max(inGrid)-floats.Min(inGrid))
	flatten(y, dt)

	d := &Density{
		Grid:      append([]float64(nil), grid...),
		Values:    y,
		Bandwidth: optw,
	}

	if bootstrap {
		lower, upper, err := k.band(ctx, inGrid, lo, dt, len(grid), optw)
		if err != nil {
			return nil, err
		}
		d.Lower, d.Upper = lower, upper
	}
	return d, nil
}

// band resamples the in-grid sample with replacement and smooths every draw
// with the optimal bandwidth, returning the pointwise 5th and 95th percentiles.
func (k *SSKernel) band(ctx context.Context, x []float64, lo, dt float64, n int, optw float64) ([]float64, []float64, error) {
	nbs := k.Resamples
	if nbs <= 0 {
		nbs = 1000
	}
	rng := rand.New(rand.NewPCG(k.Seed, k.Seed^0x9e3779b97f4a7c15))

	draws := make([][]float64, nbs)
	xb := make([]float64, len(x))
	for i := 0; i < nbs; i++ {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		for j := range xb {
			xb[j] = x[rng.IntN(len(x))]
		}
		h := histogram(xb, lo, dt, n)
		yb := fftKernel(h, optw/dt)
		flatten(yb, dt)
		draws[i] = yb
	}

	lower := make([]float64, n)
	upper := make([]float64, n)
	col := make([]float64, nbs)
	for j := 0; j < n; j++ {
		for i := range draws {
			col[i] = draws[i][j]
		}
		sort.Float64s(col)
		lower[j] = stat.Quantile(bandLowerQ, stat.Empirical, col, nil)
		upper[j] = stat.Quantile(bandUpperQ, stat.Empirical, col, nil)
	}
	return lower, upper, nil
}

// optimalBandwidth runs the golden-section search and returns the bandwidth
// and the normalised density at that bandwidth.
func optimalBandwidth(hist []float64, n, dt, spread float64) (float64, []float64) {
	wMin := 2 * dt
	wMax := spread
	if wMax <= wMin {
		y := fftKernel(hist, wMin/dt)
		normalise(y, dt)
		return wMin, y
	}

	a := ilogexp(wMin)
	b := ilogexp(wMax)
	c1 := (phi-1)*a + (2-phi)*b
	c2 := (2-phi)*a + (phi-1)*b
	f1, y1 := cost(hist, n, logexp(c1), dt)
	f2, y2 := cost(hist, n, logexp(c2), dt)

	optw, y := logexp(c1), y1
	if f2 < f1 {
		optw, y = logexp(c2), y2
	}

	for k := 0; math.Abs(b-a) > goldenTol*(math.Abs(c1)+math.Abs(c2)) && k < goldenIters; k++ {
		if f1 < f2 {
			b = c2
			c2 = c1
			c1 = (phi-1)*a + (2-phi)*b
			f2 = f1
			f1, y1 = cost(hist, n, logexp(c1), dt)
			optw, y = logexp(c1), y1
		} else {
			a = c1
			c1 = c2
			c2 = (2-phi)*a + (phi-1)*b
			f1 = f2
			f2, y2 = cost(hist, n, logexp(c2), dt)
			optw, y = logexp(c2), y2
		}
	}

	out := append([]float64(nil), y...)
	normalise(out, dt)
	return optw, out
}

// cost is the Shimazaki-Shinomoto MISE cost of bandwidth w
func cost(hist []float64, n, w, dt float64) (float64, []float64) {
	yh := fftKernel(hist, w/dt)
	var sq, cross float64
	for i := range yh {
		sq += yh[i] * yh[i]
		cross += yh[i] * hist[i]
	}
	c := sq*dt - 2*cross*dt + 2/math.Sqrt(2*math.Pi)/w/n
	return c * n * n, yh
}

// fftKernel convolves x with a Gaussian of standard deviation w (in bins),
// zero-padding to a power of two so the circular convolution does not wrap.
func fftKernel(x []float64, w float64) []float64 {
	l := len(x)
	lmax := float64(l) + 3*w
	n := 1 << uint(math.Ceil(math.Log2(lmax)))

	padded := make([]float64, n)
	copy(padded, x)

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, padded)
	for k := range coeff {
		f := float64(k) / float64(n)
		coeff[k] *= complex(math.Exp(-0.5*math.Pow(w*2*math.Pi*f, 2)), 0)
	}
	y := fft.Sequence(nil, coeff)

	out := make([]float64, l)
	for i := range out {
		out[i] = y[i] / float64(n)
	}
	return out
}

// histogram counts x into n bins centred on lo, lo+dt, ... and scales the
// counts to a density.
func histogram(x []float64, lo, dt float64, n int) []float64 {
	h := make([]float64, n)
	for _, v := range x {
		i := int(math.Floor((v-lo)/dt + 0.5))
		if i < 0 {
			i = 0
		}
		if i >= n {
			i = n - 1
		}
		h[i]++
	}
	floats.Scale(1/(float64(len(x))*dt), h)
	return h
}

func normalise(y []float64, dt float64) {
	total := floats.Sum(y) * dt
	if total > 0 {
		floats.Scale(1/total, y)
	}
}

// flatten zeroes the round-off ripple the circular convolution leaves in
// empty stretches of the grid, so they read as flat, then renormalises.
func flatten(y []float64, dt float64) {
	if len(y) == 0 {
		return
	}
	cut := noiseFloor * floats.Max(y)
	for i, v := range y {
		if v < cut {
			y[i] = 0
		}
	}
	normalise(y, dt)
}

func minStep(grid []float64) float64 {
	step := math.Inf(1)
	for i := 1; i < len(grid); i++ {
		if d := grid[i] - grid[i-1]; d < step {
			step = d
		}
	}
	return step
}

func logexp(x float64) float64 {
	if x < 1e2 {
		return math.Log(1 + math.Exp(x))
	}
	return x
}

func ilogexp(x float64) float64 {
	if x < 1e2 {
		return math.Log(math.Exp(x) - 1)
	}
	return x
}
