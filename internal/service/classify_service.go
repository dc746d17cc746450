package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jengzang/mvtypes-go/internal/analysis"
	"github.com/jengzang/mvtypes-go/internal/database"
	"github.com/jengzang/mvtypes-go/internal/models"
	"github.com/jengzang/mvtypes-go/internal/repository"
	"github.com/jengzang/mvtypes-go/internal/stats"
	"github.com/jengzang/mvtypes-go/internal/tabular"
)

// ClassifyService runs the classification pipeline over traces and exports
// the annotated result.
type ClassifyService struct {
	opts      analysis.Options
	estimator stats.DensityEstimator
	table     string
	logger    *zap.Logger
}

// NewClassifyService creates a new classify service. A nil estimator selects
// the default kernel estimator for every run.
func NewClassifyService(opts analysis.Options, estimator stats.DensityEstimator, table string, logger *zap.Logger) *ClassifyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassifyService{
		opts:      opts,
		estimator: estimator,
		table:     table,
		logger:    logger,
	}
}

// Options returns the default pipeline settings
func (s *ClassifyService) Options() analysis.Options {
	return s.opts
}

// Classify annotates and classifies trace in place with the given settings
func (s *ClassifyService) Classify(ctx context.Context, trace *models.Trace, opts analysis.Options) (*models.Report, error) {
	pipeline, err := analysis.NewPipeline(opts, s.estimator, s.logger)
	if err != nil {
		return nil, err
	}
	return pipeline.Run(ctx, trace)
}

// ClassifyFile reads a CSV trace, classifies it with the default settings
// and writes the result to output.
func (s *ClassifyService) ClassifyFile(ctx context.Context, input, output string) (*models.Report, error) {
	trace, err := tabular.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	report, err := s.Classify(ctx, trace, s.opts)
	if err != nil {
		return nil, err
	}

	if err := s.Export(ctx, trace, output); err != nil {
		return nil, err
	}
	s.logger.Info("Exported trace", zap.String("output", output), zap.Int("fixes", trace.Len()))
	return report, nil
}

// Export writes the annotated trace to output: a SQLite table when the
// extension names a database, CSV otherwise.
func (s *ClassifyService) Export(ctx context.Context, trace *models.Trace, output string) error {
	if !database.IsSQLitePath(output) {
		if err := tabular.WriteFile(output, trace); err != nil {
			return fmt.Errorf("failed to export csv: %w", err)
		}
		return nil
	}

	db, err := database.Open(database.Config{Path: output})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.NewTraceRepository(db, s.table).Save(ctx, trace); err != nil {
		return fmt.Errorf("failed to export sqlite: %w", err)
	}
	return nil
}
