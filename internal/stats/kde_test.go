package stats

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func bimodalSample(seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	x := make([]float64, 0, 1000)
	for i := 0; i < 500; i++ {
		x = append(x, 5+rng.NormFloat64())
	}
	for i := 0; i < 500; i++ {
		x = append(x, 40+2*rng.NormFloat64())
	}
	return x
}

func gridOf(max int) []float64 {
	return floats.Span(make([]float64, 2*max), 0, float64(max))
}

func valueAt(d *Density, speed float64) float64 {
	best := 0
	for i, g := range d.Grid {
		if math.Abs(g-speed) < math.Abs(d.Grid[best]-speed) {
			best = i
		}
	}
	return d.Values[best]
}

func TestSSKernel_Bimodal(t *testing.T) {
	k := NewSSKernel(0, 1)
	grid := gridOf(50)

	d, err := k.Estimate(context.Background(), bimodalSample(7), grid, false)
	require.NoError(t, err)
	require.Len(t, d.Values, len(grid))
	assert.Nil(t, d.Lower)
	assert.Nil(t, d.Upper)

	dt := grid[1] - grid[0]
	assert.InDelta(t, 1.0, floats.Sum(d.Values)*dt, 1e-9)
	assert.Greater(t, d.Bandwidth, 0.0)
	assert.Less(t, d.Bandwidth, 10.0)

	valley := valueAt(d, 22)
	assert.Greater(t, valueAt(d, 5), 10*valley)
	assert.Greater(t, valueAt(d, 40), 10*valley)
}

func TestSSKernel_BootstrapBand(t *testing.T) {
	k := NewSSKernel(40, 3)
	grid := gridOf(50)

	d, err := k.Estimate(context.Background(), bimodalSample(11), grid, true)
	require.NoError(t, err)
	require.Len(t, d.Lower, len(grid))
	require.Len(t, d.Upper, len(grid))
	for i := range grid {
		assert.LessOrEqual(t, d.Lower[i], d.Upper[i]+1e-12)
	}

	// Same seed, same band
	again, err := NewSSKernel(40, 3).Estimate(context.Background(), bimodalSample(11), grid, true)
	require.NoError(t, err)
	assert.Equal(t, d.Lower, again.Lower)
}

func TestSSKernel_Errors(t *testing.T) {
	k := NewSSKernel(10, 1)
	ctx := context.Background()

	_, err := k.Estimate(ctx, []float64{1, 2, 3}, []float64{0}, false)
	assert.Error(t, err)

	_, err = k.Estimate(ctx, []float64{100, math.NaN()}, gridOf(10), false)
	assert.True(t, errors.Is(err, ErrTooFewSamples))
}

func TestSSKernel_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSSKernel(100, 1).Estimate(ctx, bimodalSample(1), gridOf(50), true)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFFTKernel_PreservesMass(t *testing.T) {
	x := make([]float64, 64)
	x[20] = 1
	y := fftKernel(x, 3)
	assert.InDelta(t, 1.0, floats.Sum(y), 1e-6)
	assert.Equal(t, 20, floats.MaxIdx(y))
}

func TestSSKernel_FlatBetweenModes(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 40))
	sample := make([]float64, 0, 400)
	for i := 0; i < 200; i++ {
		sample = append(sample, 4+0.3*rng.NormFloat64(), 40+0.5*rng.NormFloat64())
	}
	grid := gridOf(50)

	d, err := NewSSKernel(20, 1).Estimate(context.Background(), sample, grid, true)
	require.NoError(t, err)

	dt := grid[1] - grid[0]
	assert.InDelta(t, 1.0, floats.Sum(d.Values)*dt, 1e-9)

	upturns := 0
	for i, g := range grid {
		assert.GreaterOrEqual(t, d.Values[i], 0.0, "speed %.2f", g)
		if g >= 12 && g <= 30 {
			assert.Zero(t, d.Values[i], "speed %.2f", g)
			assert.Zero(t, d.Lower[i], "speed %.2f", g)
		}
		if i >= 2 && g > 6 && g < 38 && d.Values[i] > d.Values[i-1] && d.Values[i-1] <= d.Values[i-2] {
			upturns++
		}
	}
	assert.LessOrEqual(t, upturns, 1)
}

func TestFlatten(t *testing.T) {
	y := []float64{1e-13, 2, -1e-14, 2, 3e-12}
	flatten(y, 1)
	assert.Equal(t, []float64{0, 0.5, 0, 0.5, 0}, y)
}
