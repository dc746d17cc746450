package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jengzang/mvtypes-go/internal/analysis/behavior"
	"github.com/jengzang/mvtypes-go/internal/analysis/foundation"
	"github.com/jengzang/mvtypes-go/internal/metrics"
	"github.com/jengzang/mvtypes-go/internal/models"
	"github.com/jengzang/mvtypes-go/internal/spatial"
	"github.com/jengzang/mvtypes-go/internal/stats"
)

// Options configures one pipeline. It is built once and never mutated.
type Options struct {
	Threshold   float64 // cluster gap, minutes
	InEPSG      int
	OutEPSG     int
	ClassifyNum int
	Bootstrap   int    // bootstrap resamples for the density band
	Seed        uint64 // bootstrap seed
	Workers     int    // clusters estimated concurrently
}

// DefaultOptions returns the stock settings
func DefaultOptions() Options {
	return Options{
		Threshold:   foundation.DefaultThresholdMinutes,
		InEPSG:      spatial.EPSGWGS84,
		OutEPSG:     spatial.EPSGWebMercator,
		ClassifyNum: behavior.DefaultClassifyNum,
		Bootstrap:   1000,
		Seed:        1,
		Workers:     4,
	}
}

// Validate checks option ranges. EPSG codes are checked by NewPipeline.
func (o Options) Validate() error {
	var errs []error
	if o.Threshold < 0 {
		errs = append(errs, fmt.Errorf("threshold must be >= 0, got %v", o.Threshold))
	}
	if o.ClassifyNum < 0 {
		errs = append(errs, fmt.Errorf("classify_num must be >= 0, got %d", o.ClassifyNum))
	}
	if o.Bootstrap < 0 {
		errs = append(errs, fmt.Errorf("bootstrap must be >= 0, got %d", o.Bootstrap))
	}
	return errors.Join(errs...)
}

// Annotation is the outcome of the segment, sanitize and velocity stages
type Annotation struct {
	Clusters   []models.Cluster // as segmented
	Cleaned    []models.Cluster // after sanitization
	Removals   []foundation.Removal
	Degenerate int
}

// Pipeline runs segmentation, sanitization, velocity estimation and speed
// classification over one trace at a time.
type Pipeline struct {
	opts       Options
	velocity   *behavior.VelocityEstimator
	classifier *behavior.SpeedClassifier
	geographic spatial.Projector // input CRS -> WGS84, for path lengths
	logger     *zap.Logger
}

// NewPipeline resolves the projection and wires the stages. A nil estimator
// selects the default bandwidth-optimised kernel estimator.
func NewPipeline(opts Options, estimator stats.DensityEstimator, logger *zap.Logger) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	projector, err := spatial.NewTransformer(opts.InEPSG, opts.OutEPSG)
	if err != nil {
		return nil, err
	}
	geographic, err := spatial.NewTransformer(opts.InEPSG, spatial.EPSGWGS84)
	if err != nil {
		return nil, err
	}
	if estimator == nil {
		estimator = stats.NewSSKernel(opts.Bootstrap, opts.Seed)
	}

	return &Pipeline{
		opts:       opts,
		velocity:   behavior.NewVelocityEstimator(projector, opts.Workers, logger),
		classifier: behavior.NewSpeedClassifier(estimator, opts.ClassifyNum),
		geographic: geographic,
		logger:     logger,
	}, nil
}

// Options returns the pipeline settings
func (p *Pipeline) Options() Options {
	return p.opts
}

// Annotate clears previous annotations, then assigns clusters, drops noisy
// fixes and writes velocities.
func (p *Pipeline) Annotate(ctx context.Context, trace *models.Trace) (*Annotation, error) {
	trace.ResetAnnotations()

	clusters := foundation.Segment(trace, p.opts.Threshold)
	cleaned, removals := foundation.Sanitize(trace, clusters)

	degenerate, err := p.velocity.Estimate(ctx, trace, cleaned)
	if err != nil {
		return nil, fmt.Errorf("velocity estimation failed: %w", err)
	}

	metrics.FixesProcessed.Add(float64(trace.Len()))
	for _, r := range removals {
		metrics.FixesRemoved.WithLabelValues(r.Reason).Inc()
	}
	metrics.DegenerateVelocities.Add(float64(degenerate))

	p.logger.Info("Annotated trace",
		zap.Int("fixes", trace.Len()),
		zap.Int("clusters", len(clusters)),
		zap.Int("removed", len(removals)),
		zap.Int("degenerate", degenerate))

	return &Annotation{
		Clusters:   clusters,
		Cleaned:    cleaned,
		Removals:   removals,
		Degenerate: degenerate,
	}, nil
}

// Classify derives class boundaries from the trace velocities and labels
// every fix. It can be re-run on a trace annotated earlier, including one
// read back from an export. It returns the boundaries and the number of
// unclassified fixes.
func (p *Pipeline) Classify(ctx context.Context, trace *models.Trace) (*behavior.ClassBoundaries, int, error) {
	bounds, err := p.classifier.Boundaries(ctx, trace)
	if err != nil {
		return nil, 0, fmt.Errorf("speed classification failed: %w", err)
	}
	unclassified := p.classifier.Classify(trace, bounds.Boundaries)
	metrics.ClassBoundaries.Observe(float64(len(bounds.Boundaries)))

	p.logger.Info("Classified trace",
		zap.Float64s("boundaries", bounds.Boundaries),
		zap.Int("minima", len(bounds.Minima)),
		zap.Float64("bandwidth", bounds.Density.Bandwidth),
		zap.Int("unclassified", unclassified))

	return bounds, unclassified, nil
}

// Run annotates and classifies a trace and summarises the result
func (p *Pipeline) Run(ctx context.Context, trace *models.Trace) (*models.Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run", runID))
	logger.Info("Starting run", zap.Int("fixes", trace.Len()))

	report, err := p.run(ctx, trace, runID)
	elapsed := time.Since(start)
	metrics.RunDuration.Observe(elapsed.Seconds())
	if err != nil {
		metrics.RunsTotal.WithLabelValues(outcome(err)).Inc()
		logger.Error("Run failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return nil, err
	}

	report.Elapsed = elapsed
	metrics.RunsTotal.WithLabelValues("ok").Inc()
	logger.Info("Run completed", zap.Duration("elapsed", elapsed))
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, trace *models.Trace, runID string) (*models.Report, error) {
	ann, err := p.Annotate(ctx, trace)
	if err != nil {
		return nil, err
	}
	bounds, unclassified, err := p.Classify(ctx, trace)
	if err != nil {
		return nil, err
	}

	return &models.Report{
		RunID:        runID,
		Fixes:        trace.Len(),
		Clusters:     p.summariseClusters(trace, ann),
		Removed:      len(ann.Removals),
		Degenerate:   ann.Degenerate,
		Bandwidth:    bounds.Density.Bandwidth,
		Boundaries:   bounds.Boundaries,
		Minima:       bounds.Minima,
		Classes:      SummariseClasses(trace, bounds.Boundaries),
		Unclassified: unclassified,
	}, nil
}

func outcome(err error) string {
	var ede *behavior.EmptyDistributionError
	var perr *spatial.ProjectionError
	switch {
	case errors.As(err, &ede):
		return "empty_distribution"
	case errors.As(err, &perr):
		return "projection"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "error"
}
