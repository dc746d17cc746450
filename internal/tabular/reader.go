package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jengzang/mvtypes-go/internal/models"
)

// InputFormatError reports a malformed input table. Line is 1-based and
// counts the header; Column is empty when the whole row is at fault.
type InputFormatError struct {
	Line   int
	Column string
	Reason string
}

func (e *InputFormatError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("line %d, column %q: %s", e.Line, e.Column, e.Reason)
}

// timeLayouts are tried in order
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
}

// ParseTime parses a fix timestamp. Values without a zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// ReadFile loads a trace from a CSV file
func ReadFile(path string) (*models.Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return Read(f)
}

// Read loads a trace from CSV. The columns id, lat, lng, alt and time are
// required, any others are carried through untouched. Annotation columns
// from a previous run are read back onto the fixes and left out of the
// passthrough record.
func Read(r io.Reader) (*models.Trace, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &InputFormatError{Line: 1, Reason: "empty input"}
	}
	if err != nil {
		return nil, csvError(err)
	}

	return decode(header, func() ([]string, error) {
		row, err := cr.Read()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, csvError(err)
		}
		return row, err
	})
}

// FromRecords builds a trace from a header and rows already split into
// cells, with the same rules as Read.
func FromRecords(header []string, rows [][]string) (*models.Trace, error) {
	i := 0
	return decode(header, func() ([]string, error) {
		if i == len(rows) {
			return nil, io.EOF
		}
		row := rows[i]
		i++
		if len(row) != len(header) {
			return nil, &InputFormatError{Line: i + 1, Reason: fmt.Sprintf("expected %d fields, got %d", len(header), len(row))}
		}
		return row, nil
	})
}

// decode pulls rows from next until io.EOF
func decode(header []string, next func() ([]string, error)) (*models.Trace, error) {
	header = slices.Clone(header)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		header[i] = name
		if _, dup := cols[name]; dup {
			return nil, &InputFormatError{Line: 1, Column: name, Reason: "duplicate column"}
		}
		cols[name] = i
	}
	for _, name := range models.RequiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, &InputFormatError{Line: 1, Column: name, Reason: "missing required column"}
		}
	}

	// passthrough columns: everything except our own annotations
	keep := make([]int, 0, len(header))
	trace := &models.Trace{}
	for i, name := range header {
		if isAnnotation(name) {
			continue
		}
		keep = append(keep, i)
		trace.Header = append(trace.Header, name)
	}

	for line := 2; ; line++ {
		row, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		fix, err := parseRow(row, cols, line)
		if err != nil {
			return nil, err
		}
		fix.Record = make([]string, len(keep))
		for j, i := range keep {
			fix.Record[j] = row[i]
		}
		trace.Fixes = append(trace.Fixes, fix)
	}

	return trace, nil
}

func parseRow(row []string, cols map[string]int, line int) (models.Fix, error) {
	fix := models.Fix{
		ID:     strings.TrimSpace(row[cols[models.ColumnID]]),
		MvType: models.Unclassified,
	}

	var err error
	if fix.Lat, err = parseCoord(row, cols, models.ColumnLat, line); err != nil {
		return fix, err
	}
	if fix.Lng, err = parseCoord(row, cols, models.ColumnLng, line); err != nil {
		return fix, err
	}

	if raw := strings.TrimSpace(row[cols[models.ColumnAlt]]); raw != "" {
		alt, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fix, &InputFormatError{Line: line, Column: models.ColumnAlt, Reason: "not a number"}
		}
		fix.Alt = &alt
	}

	fix.Time, err = ParseTime(row[cols[models.ColumnTime]])
	if err != nil {
		return fix, &InputFormatError{Line: line, Column: models.ColumnTime, Reason: err.Error()}
	}

	if i, ok := cols[models.ColumnCluster]; ok && strings.TrimSpace(row[i]) != "" {
		if fix.Cluster, err = strconv.Atoi(strings.TrimSpace(row[i])); err != nil {
			return fix, &InputFormatError{Line: line, Column: models.ColumnCluster, Reason: "not an integer"}
		}
	}
	if i, ok := cols[models.ColumnVelocity]; ok && strings.TrimSpace(row[i]) != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return fix, &InputFormatError{Line: line, Column: models.ColumnVelocity, Reason: "not a number"}
		}
		fix.Velocity = v
		switch {
		case math.IsNaN(v):
			fix.VelocityStatus = models.VelocityDegenerate
		case v != 0:
			fix.VelocityStatus = models.VelocityMeasured
		}
	}
	if i, ok := cols[models.ColumnMvType]; ok && strings.TrimSpace(row[i]) != "" {
		if fix.MvType, err = strconv.Atoi(strings.TrimSpace(row[i])); err != nil {
			return fix, &InputFormatError{Line: line, Column: models.ColumnMvType, Reason: "not an integer"}
		}
	}

	return fix, nil
}

func parseCoord(row []string, cols map[string]int, name string, line int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(row[cols[name]]), 64)
	if err != nil {
		return 0, &InputFormatError{Line: line, Column: name, Reason: "not a number"}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &InputFormatError{Line: line, Column: name, Reason: "not finite"}
	}
	return v, nil
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &InputFormatError{Line: pe.Line, Reason: pe.Err.Error()}
	}
	return fmt.Errorf("failed to read csv: %w", err)
}

func isAnnotation(name string) bool {
	return slices.Contains(models.AnnotationColumns, name)
}
