package gpx

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jengzang/mvtypes-go/internal/models"
)

// WriteCSV writes the track points of g as an input table: one row per
// point, ids numbered from 1, missing elevation or time left empty.
// It returns the number of rows written.
func WriteCSV(w io.Writer, g *GPX) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.RequiredColumns); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	points := g.FlattenPoints()
	for i, p := range points {
		row := []string{
			strconv.Itoa(i + 1),
			strings.TrimSpace(p.Lat),
			strings.TrimSpace(p.Lon),
			strings.TrimSpace(p.Elevation),
			strings.TrimSpace(p.Time),
		}
		if err := cw.Write(row); err != nil {
			return i, fmt.Errorf("failed to write point %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return len(points), cw.Error()
}

// CSVPath returns output with a .csv extension, appending one if missing
func CSVPath(output string) string {
	if strings.EqualFold(filepath.Ext(output), ".csv") {
		return output
	}
	return output + ".csv"
}

// Convert reads the GPX document named by source and writes it as CSV to
// CSVPath(output). It returns the written path and row count.
func Convert(ctx context.Context, source, output string) (string, int, error) {
	g, err := Parse(ctx, source)
	if err != nil {
		return "", 0, err
	}

	path := CSVPath(output)
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	n, err := WriteCSV(f, g)
	if err != nil {
		f.Close()
		return "", n, err
	}
	if err := f.Close(); err != nil {
		return "", n, err
	}
	return path, n, nil
}
