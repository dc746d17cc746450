package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/jengzang/mvtypes-go/internal/models"
)

// timeLayout is used for fixes that carry no original record
const timeLayout = "2006-01-02 15:04:05"

// FormatVelocity renders a speed with the shortest representation that
// parses back to the same value. Degenerate speeds become "NaN".
func FormatVelocity(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// FormatMvType renders a class label, empty for Unclassified
func FormatMvType(label int) string {
	if label == models.Unclassified {
		return ""
	}
	return strconv.Itoa(label)
}

// Header returns the output header: the passthrough columns followed by the
// annotation columns.
func Header(trace *models.Trace) []string {
	base := trace.Header
	if len(base) == 0 {
		base = models.RequiredColumns
	}
	out := make([]string, 0, len(base)+len(models.AnnotationColumns))
	out = append(out, base...)
	return append(out, models.AnnotationColumns...)
}

// Row returns the output cells of one fix, aligned with Header
func Row(trace *models.Trace, f *models.Fix) []string {
	base := f.Record
	if len(trace.Header) == 0 || len(base) != len(trace.Header) {
		base = requiredRecord(f)
	}
	out := make([]string, 0, len(base)+len(models.AnnotationColumns))
	out = append(out, base...)
	return append(out,
		strconv.Itoa(f.Cluster),
		FormatVelocity(f.Velocity),
		FormatMvType(f.MvType),
	)
}

func requiredRecord(f *models.Fix) []string {
	alt := ""
	if f.Alt != nil {
		alt = strconv.FormatFloat(*f.Alt, 'g', -1, 64)
	}
	return []string{
		f.ID,
		strconv.FormatFloat(f.Lat, 'g', -1, 64),
		strconv.FormatFloat(f.Lng, 'g', -1, 64),
		alt,
		f.Time.UTC().Format(timeLayout),
	}
}

// Write exports the annotated trace as CSV
func Write(w io.Writer, trace *models.Trace) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(trace)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range trace.Fixes {
		if err := cw.Write(Row(trace, &trace.Fixes[i])); err != nil {
			return fmt.Errorf("failed to write fix %q: %w", trace.Fixes[i].ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile exports the annotated trace to a CSV file
func WriteFile(path string, trace *models.Trace) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, trace); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
