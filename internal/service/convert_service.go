package service

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/jengzang/mvtypes-go/internal/gpx"
)

// ConvertService turns GPX documents into classifier input tables
type ConvertService struct {
	logger *zap.Logger
}

// NewConvertService creates a new convert service
func NewConvertService(logger *zap.Logger) *ConvertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConvertService{logger: logger}
}

// ConvertStream parses GPX from r and writes the CSV table to w
func (s *ConvertService) ConvertStream(r io.Reader, w io.Writer) (int, error) {
	g, err := gpx.ParseReader(r)
	if err != nil {
		return 0, err
	}
	return gpx.WriteCSV(w, g)
}

// ConvertSource converts the GPX file or URL named by source to a CSV file
// and returns the written path.
func (s *ConvertService) ConvertSource(ctx context.Context, source, output string) (string, error) {
	path, n, err := gpx.Convert(ctx, source, output)
	if err != nil {
		return "", err
	}
	s.logger.Info("Converted GPX", zap.String("source", source), zap.String("output", path), zap.Int("points", n))
	return path, nil
}
