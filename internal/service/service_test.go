package service

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jengzang/mvtypes-go/internal/analysis"
	"github.com/jengzang/mvtypes-go/internal/database"
	"github.com/jengzang/mvtypes-go/internal/models"
	"github.com/jengzang/mvtypes-go/internal/repository"
	"github.com/jengzang/mvtypes-go/internal/stats"
	"github.com/jengzang/mvtypes-go/internal/tabular"
)

// dipAt is a density with a single minimum at speed v
type dipAt float64

func (v dipAt) Estimate(_ context.Context, _, grid []float64, _ bool) (*stats.Density, error) {
	values := make([]float64, len(grid))
	for i, x := range grid {
		values[i] = (x - float64(v)) * (x - float64(v))
	}
	return &stats.Density{Grid: grid, Values: values, Bandwidth: 1}, nil
}

// writeTrace writes a CSV trace of n fixes heading east, alternating
// between slow and fast legs of five fixes each.
func writeTrace(t *testing.T, n int) string {
	t.Helper()
	origin := project.WGS84.ToMercator(orb.Point{-0.1285907, 51.50809})
	start := time.Date(2017, 6, 1, 8, 0, 0, 0, time.UTC)

	tr := &models.Trace{}
	x := origin[0]
	for i := 0; i < n; i++ {
		p := project.Mercator.ToWGS84(orb.Point{x, origin[1] + float64(i)})
		tr.Fixes = append(tr.Fixes, models.Fix{
			ID:     string(rune('A' + i)),
			Lng:    p[0],
			Lat:    p[1],
			Time:   start.Add(time.Duration(i) * time.Minute),
			MvType: models.Unclassified,
		})
		if (i/5)%2 == 0 {
			x += 100
		} else {
			x += 1000
		}
	}

	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, tabular.WriteFile(path, tr))
	return path
}

func TestClassifyFile_CSV(t *testing.T) {
	svc := NewClassifyService(analysis.DefaultOptions(), dipAt(30), "fixes", zap.NewNop())
	in := writeTrace(t, 20)
	out := filepath.Join(t.TempDir(), "out.csv")

	report, err := svc.ClassifyFile(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 20, report.Fixes)
	require.Len(t, report.Boundaries, 1)

	back, err := tabular.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, back.Fixes, 20)
	labels := map[int]int{}
	for _, f := range back.Fixes {
		assert.Equal(t, 1, f.Cluster)
		labels[f.MvType]++
	}
	assert.Greater(t, labels[0], 0)
	assert.Greater(t, labels[1], 0)
}

func TestClassifyFile_SQLite(t *testing.T) {
	svc := NewClassifyService(analysis.DefaultOptions(), dipAt(30), "mv", zap.NewNop())
	in := writeTrace(t, 20)
	out := filepath.Join(t.TempDir(), "out.sqlite")

	_, err := svc.ClassifyFile(context.Background(), in, out)
	require.NoError(t, err)

	db, err := database.Open(database.Config{Path: out})
	require.NoError(t, err)
	defer db.Close()

	back, err := repository.NewTraceRepository(db, "mv").Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, back.Fixes, 20)
}

func TestClassify_ProjectionError(t *testing.T) {
	svc := NewClassifyService(analysis.DefaultOptions(), dipAt(30), "fixes", nil)
	opts := svc.Options()
	opts.InEPSG = 1234

	_, err := svc.Classify(context.Background(), &models.Trace{}, opts)
	assert.ErrorContains(t, err, "EPSG:1234")
}

func TestConvertStream(t *testing.T) {
	const doc = `<gpx version="1.1"><trk><trkseg>
<trkpt lat="1" lon="2"><ele>3</ele><time>2020-01-01T00:00:00Z</time></trkpt>
</trkseg></trk></gpx>`

	var buf bytes.Buffer
	n, err := NewConvertService(nil).ConvertStream(strings.NewReader(doc), &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "id,lat,lng,alt,time\n1,1,2,3,2020-01-01T00:00:00Z\n", buf.String())
}
