package behavior

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jengzang/mvtypes-go/internal/analysis/foundation"
	"github.com/jengzang/mvtypes-go/internal/models"
	"github.com/jengzang/mvtypes-go/internal/spatial"
	"github.com/jengzang/mvtypes-go/internal/stats"
)

var t0 = time.Date(2017, 6, 1, 8, 0, 0, 0, time.UTC)

func newEstimator(t *testing.T) *VelocityEstimator {
	t.Helper()
	tr, err := spatial.NewTransformer(spatial.EPSGWGS84, spatial.EPSGWebMercator)
	require.NoError(t, err)
	return NewVelocityEstimator(tr, 2, zap.NewNop())
}

// straightTrace walks east in mercator metres at kmh, one fix per step
func straightTrace(n int, kmh float64, step time.Duration) *models.Trace {
	start := project.WGS84.ToMercator(orb.Point{121.5, 25.03})
	metresPerStep := kmh * 1000 * step.Hours()

	tr := &models.Trace{}
	for i := 0; i < n; i++ {
		p := project.Mercator.ToWGS84(orb.Point{start[0] + float64(i)*metresPerStep, start[1] + float64(i)*metresPerStep*0.5})
		tr.Fixes = append(tr.Fixes, models.Fix{
			ID:   string(rune('A' + i)),
			Lng:  p[0],
			Lat:  p[1],
			Time: t0.Add(time.Duration(i) * step),
		})
	}
	return tr
}

func TestVelocity_ConstantSpeed(t *testing.T) {
	e := newEstimator(t)
	// Diagonal walk: step length is sqrt(1.25) times the eastward component
	tr := straightTrace(6, 40, time.Minute)
	want := 40 * math.Sqrt(1.25)

	for i := 1; i < len(tr.Fixes)-1; i++ {
		v, err := e.Velocity(&tr.Fixes[i-1], &tr.Fixes[i], &tr.Fixes[i+1])
		require.NoError(t, err)
		assert.InDelta(t, want, v, 1e-6)
	}
}

func TestVelocity_TimeScaling(t *testing.T) {
	e := newEstimator(t)
	fast := straightTrace(3, 30, time.Minute)
	slow := straightTrace(3, 30, time.Minute)
	for i := range slow.Fixes {
		slow.Fixes[i].Time = t0.Add(time.Duration(i) * 3 * time.Minute)
	}

	vf, err := e.Velocity(&fast.Fixes[0], &fast.Fixes[1], &fast.Fixes[2])
	require.NoError(t, err)
	vs, err := e.Velocity(&slow.Fixes[0], &slow.Fixes[1], &slow.Fixes[2])
	require.NoError(t, err)

	assert.InDelta(t, vf/3, vs, 1e-9)
}

func TestVelocity_Degenerate(t *testing.T) {
	e := newEstimator(t)
	tr := straightTrace(3, 30, time.Minute)
	tr.Fixes[2].Time = tr.Fixes[0].Time

	_, err := e.Velocity(&tr.Fixes[0], &tr.Fixes[1], &tr.Fixes[2])
	var dve *DegenerateVelocityError
	require.True(t, errors.As(err, &dve))
	assert.Equal(t, "A", dve.PrevID)
	assert.Equal(t, "C", dve.NextID)
}

func TestVelocity_ProjectionError(t *testing.T) {
	e := newEstimator(t)
	tr := straightTrace(3, 30, time.Minute)
	tr.Fixes[1].Lat = 95

	_, err := e.Velocity(&tr.Fixes[0], &tr.Fixes[1], &tr.Fixes[2])
	var perr *spatial.ProjectionError
	assert.True(t, errors.As(err, &perr))
}

func TestEstimate_UsesSanitizedAdjacency(t *testing.T) {
	e := newEstimator(t)
	tr := straightTrace(4, 20, time.Minute)
	tr.Fixes[2].Lat = 0

	clusters := foundation.Segment(tr, 15)
	cleaned, _ := foundation.Sanitize(tr, clusters)

	degenerate, err := e.Estimate(context.Background(), tr, cleaned)
	require.NoError(t, err)
	assert.Zero(t, degenerate)

	want, err := e.Velocity(&tr.Fixes[0], &tr.Fixes[1], &tr.Fixes[3])
	require.NoError(t, err)

	assert.Equal(t, want, tr.Fixes[1].Velocity)
	assert.Equal(t, models.VelocityMeasured, tr.Fixes[1].VelocityStatus)
	for _, i := range []int{0, 2, 3} {
		assert.Zero(t, tr.Fixes[i].Velocity, "fix %d", i)
		assert.Equal(t, models.VelocityUndefined, tr.Fixes[i].VelocityStatus)
	}
}

func TestEstimate_FlagsDegenerateAndContinues(t *testing.T) {
	e := newEstimator(t)
	tr := straightTrace(5, 20, time.Minute)
	tr.Fixes[2].Time = tr.Fixes[0].Time
	tr.Fixes[3].Time = tr.Fixes[0].Time
	tr.Fixes[4].Time = tr.Fixes[0].Time.Add(time.Minute)

	degenerate, err := e.Estimate(context.Background(), tr, foundation.Segment(tr, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, degenerate)
	assert.True(t, math.IsNaN(tr.Fixes[1].Velocity))
	assert.Equal(t, models.VelocityDegenerate, tr.Fixes[1].VelocityStatus)
	assert.Equal(t, models.VelocityMeasured, tr.Fixes[2].VelocityStatus)
}

func TestEstimate_MultipleClusters(t *testing.T) {
	e := newEstimator(t)
	tr := straightTrace(8, 50, time.Minute)
	for i := 4; i < 8; i++ {
		tr.Fixes[i].Time = tr.Fixes[i].Time.Add(time.Hour)
	}

	clusters := foundation.Segment(tr, 15)
	require.Len(t, clusters, 2)
	_, err := e.Estimate(context.Background(), tr, clusters)
	require.NoError(t, err)

	for _, i := range []int{0, 3, 4, 7} {
		assert.Equal(t, models.VelocityUndefined, tr.Fixes[i].VelocityStatus, "fix %d", i)
	}
	for _, i := range []int{1, 2, 5, 6} {
		assert.InDelta(t, 50*math.Sqrt(1.25), tr.Fixes[i].Velocity, 1e-6, "fix %d", i)
	}
}

// fakeEstimator evaluates a fixed curve on whatever grid it is given
type fakeEstimator struct {
	curve     func(x float64) float64
	grid      []float64
	sample    []float64
	bootstrap bool
}

func (f *fakeEstimator) Estimate(_ context.Context, sample, grid []float64, bootstrap bool) (*stats.Density, error) {
	f.grid, f.sample, f.bootstrap = grid, sample, bootstrap
	values := make([]float64, len(grid))
	for i, x := range grid {
		values[i] = f.curve(x)
	}
	return &stats.Density{Grid: grid, Values: values, Bandwidth: 1}, nil
}

func traceWithSpeeds(speeds ...float64) *models.Trace {
	tr := &models.Trace{}
	for i, v := range speeds {
		status := models.VelocityMeasured
		if v == 0 {
			status = models.VelocityUndefined
		}
		if math.IsNaN(v) {
			status = models.VelocityDegenerate
		}
		tr.Fixes = append(tr.Fixes, models.Fix{ID: string(rune('a' + i)), Velocity: v, VelocityStatus: status})
	}
	return tr
}

func TestLocalMinima(t *testing.T) {
	grid := []float64{0, 1, 2, 3, 4, 5, 6, 7}

	got := LocalMinima(grid, []float64{3, 2, 1, 2, 3, 2, 2, 4})
	assert.Equal(t, []models.Minimum{{Speed: 3, Density: 2}, {Speed: 7, Density: 4}}, got)

	got = LocalMinima(grid[:4], []float64{1, 2, 1, 2})
	assert.Equal(t, []models.Minimum{{Speed: 3, Density: 2}}, got)

	assert.Empty(t, LocalMinima(grid, []float64{1, 2, 3, 4, 5, 6, 7, 8}))
	assert.Empty(t, LocalMinima(grid, []float64{8, 7, 6, 5, 4, 3, 2, 1}))
	assert.Empty(t, LocalMinima(nil, nil))
}

func TestBoundaries_GridAndSample(t *testing.T) {
	f := &fakeEstimator{curve: func(x float64) float64 { return math.Cos(x) }}
	c := NewSpeedClassifier(f, 5)
	tr := traceWithSpeeds(0, 3.2, 7.9, math.NaN(), 0)

	res, err := c.Boundaries(context.Background(), tr)
	require.NoError(t, err)

	require.Len(t, f.grid, 14)
	assert.Equal(t, 0.0, f.grid[0])
	assert.Equal(t, 7.0, f.grid[13])
	assert.True(t, f.bootstrap)
	assert.Equal(t, []float64{0, 3.2, 7.9, 0}, f.sample)

	// cos falls until pi and rises after
	require.Len(t, res.Boundaries, 1)
	assert.InDelta(t, math.Pi, res.Boundaries[0], 1.0)
}

func TestBoundaries_Cap(t *testing.T) {
	f := &fakeEstimator{curve: func(x float64) float64 { return math.Sin(2 * x) }}
	tr := traceWithSpeeds(0, 60.5, 10)

	res, err := NewSpeedClassifier(f, 5).Boundaries(context.Background(), tr)
	require.NoError(t, err)
	assert.Greater(t, len(res.Minima), 5)
	assert.Len(t, res.Boundaries, 5)
	for i := range res.Boundaries {
		assert.Equal(t, res.Minima[i].Speed, res.Boundaries[i])
		if i > 0 {
			assert.Greater(t, res.Boundaries[i], res.Boundaries[i-1])
		}
	}

	res, err = NewSpeedClassifier(f, 2).Boundaries(context.Background(), tr)
	require.NoError(t, err)
	assert.Len(t, res.Boundaries, 2)
}

func TestBoundaries_EmptyDistribution(t *testing.T) {
	f := &fakeEstimator{curve: func(float64) float64 { return 1 }}
	c := NewSpeedClassifier(f, 5)

	for _, tr := range []*models.Trace{
		traceWithSpeeds(0, 0, 0),
		traceWithSpeeds(0, 0.7, 0),
		traceWithSpeeds(math.NaN()),
		{},
	} {
		_, err := c.Boundaries(context.Background(), tr)
		var ede *EmptyDistributionError
		assert.True(t, errors.As(err, &ede), "got %v", err)
	}
	assert.Nil(t, f.grid, "estimator must not run on an empty distribution")
}

func TestBin(t *testing.T) {
	b := []float64{5, 20, 80}

	tests := []struct {
		v    float64
		want int
	}{
		{0, 0},
		{4.99, 0},
		{5, 1},
		{19.9, 1},
		{20, 2},
		{80, 3},
		{300, 3},
		{-1, models.Unclassified},
		{math.NaN(), models.Unclassified},
		{math.Inf(1), models.Unclassified},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Bin(tt.v, b), "v=%v", tt.v)
	}

	assert.Equal(t, 0, Bin(1000, nil))
}

func TestClassify(t *testing.T) {
	c := NewSpeedClassifier(&fakeEstimator{}, 5)
	tr := traceWithSpeeds(0, 3, 12, math.NaN(), 40)

	unclassified := c.Classify(tr, []float64{10, 30})
	assert.Equal(t, 1, unclassified)

	got := make([]int, len(tr.Fixes))
	for i, f := range tr.Fixes {
		got[i] = f.MvType
	}
	assert.Equal(t, []int{0, 0, 1, models.Unclassified, 2}, got)
}
