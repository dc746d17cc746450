package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/jengzang/mvtypes-go/internal/database"
	"github.com/jengzang/mvtypes-go/internal/models"
	"github.com/jengzang/mvtypes-go/internal/tabular"
)

// TraceRepository stores an annotated trace as one flat table: the
// passthrough columns as TEXT followed by cluster, velocity and mvtypes.
// Degenerate velocities and unclassified labels are stored as NULL.
type TraceRepository struct {
	db    *sql.DB
	table string
}

// NewTraceRepository creates a new trace repository
func NewTraceRepository(db *sql.DB, table string) *TraceRepository {
	return &TraceRepository{db: db, table: table}
}

// Save replaces the table with the contents of trace
func (r *TraceRepository) Save(ctx context.Context, trace *models.Trace) error {
	header := tabular.Header(trace)
	base := header[:len(header)-len(models.AnnotationColumns)]

	defs := make([]string, 0, len(header))
	names := make([]string, 0, len(header))
	for _, name := range base {
		defs = append(defs, database.QuoteIdent(name)+" TEXT")
		names = append(names, database.QuoteIdent(name))
	}
	defs = append(defs,
		database.QuoteIdent(models.ColumnCluster)+" INTEGER NOT NULL",
		database.QuoteIdent(models.ColumnVelocity)+" REAL",
		database.QuoteIdent(models.ColumnMvType)+" INTEGER",
	)
	for _, name := range models.AnnotationColumns {
		names = append(names, database.QuoteIdent(name))
	}

	table := database.QuoteIdent(r.table)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), placeholders)

	return database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", r.table, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))); err != nil {
			return fmt.Errorf("failed to create %s: %w", r.table, err)
		}

		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		args := make([]any, len(names))
		for i := range trace.Fixes {
			f := &trace.Fixes[i]
			row := tabular.Row(trace, f)
			for j := range base {
				args[j] = row[j]
			}
			n := len(base)
			args[n] = f.Cluster
			args[n+1] = nullableVelocity(f.Velocity)
			args[n+2] = nullableLabel(f.MvType)

			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert fix %q: %w", f.ID, err)
			}
		}
		return nil
	})
}

// Load reads the table back into a trace, in insertion order
func (r *TraceRepository) Load(ctx context.Context) (*models.Trace, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY rowid", database.QuoteIdent(r.table)))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.table, err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	cells := make([]sql.NullString, len(header))
	dest := make([]any, len(header))
	for i := range cells {
		dest[i] = &cells[i]
	}

	var records [][]string
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		record := make([]string, len(header))
		for i, c := range cells {
			switch {
			case c.Valid:
				record[i] = c.String
			case header[i] == models.ColumnVelocity:
				record[i] = tabular.FormatVelocity(math.NaN())
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", r.table, err)
	}

	return tabular.FromRecords(header, records)
}

func nullableVelocity(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func nullableLabel(label int) any {
	if label == models.Unclassified {
		return nil
	}
	return label
}
