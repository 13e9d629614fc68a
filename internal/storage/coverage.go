package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/districtmap/backend/internal/models"
	"github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// CoverageOptions tunes the DuckDB instance behind a CoverageStore.
type CoverageOptions struct {
	Threads     int
	MemoryLimit string // e.g. "256MB"
}

// CoverageStore records which products each render plotted so operators can
// see which products never make it onto a map.
type CoverageStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// OpenCoverageStore opens (or creates) the audit database at path. An empty
// path opens an in-memory database.
func OpenCoverageStore(path string, opts CoverageOptions, logger *zap.Logger) (*CoverageStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.ContainsAny(opts.MemoryLimit, "'\\") {
		return nil, fmt.Errorf("invalid memory limit %q", opts.MemoryLimit)
	}
	pragmas := []string{"PRAGMA enable_progress_bar=false"}
	if opts.Threads > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA threads=%d", opts.Threads))
	}
	if opts.MemoryLimit != "" {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit))
	}

	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	schema := []string{
		`CREATE TABLE IF NOT EXISTS renders (
			render_id      VARCHAR PRIMARY KEY,
			session_id     VARCHAR,
			dataset_id     VARCHAR,
			dpi            INTEGER,
			width          INTEGER,
			height         INTEGER,
			district_count INTEGER,
			marker_count   INTEGER,
			fallback_count INTEGER,
			duration_ms    BIGINT,
			created_at     TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS plotted_products (
			render_id  VARCHAR,
			product_id INTEGER,
			plotted_at TIMESTAMP
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create coverage schema: %w", err)
		}
	}

	logger.Info("coverage store opened", zap.String("path", path))
	return &CoverageStore{db: db, path: path, logger: logger}, nil
}

// RecordRender stores rec and one row per plotted product.
func (s *CoverageStore) RecordRender(ctx context.Context, rec *models.RenderRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	at := rec.CreatedAt.UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO renders VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.DatasetID, rec.DPI, rec.Width, rec.Height,
		rec.DistrictCount, rec.MarkerCount, rec.FallbackCount, rec.DurationMs, at)
	if err != nil {
		return fmt.Errorf("insert render %s: %w", rec.ID, err)
	}
	for _, pid := range rec.PlottedProducts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO plotted_products VALUES (?, ?, ?)`, rec.ID, pid, at); err != nil {
			return fmt.Errorf("insert plotted product %d: %w", pid, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("render recorded",
		zap.String("render", rec.ID), zap.Ints("products", rec.PlottedProducts))
	return nil
}

// Coverage aggregates plotted products over all recorded renders, ordered by
// product id.
func (s *CoverageStore) Coverage(ctx context.Context) ([]models.ProductCoverage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, COUNT(DISTINCT render_id), MAX(plotted_at)
		FROM plotted_products
		GROUP BY product_id
		ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("query coverage: %w", err)
	}
	defer rows.Close()

	out := make([]models.ProductCoverage, 0)
	for rows.Next() {
		var pc models.ProductCoverage
		var last time.Time
		if err := rows.Scan(&pc.ProductID, &pc.RenderCount, &last); err != nil {
			return nil, fmt.Errorf("scan coverage: %w", err)
		}
		pc.LastPlotted = last
		out = append(out, pc)
	}
	return out, rows.Err()
}

// RenderCount returns how many renders have been recorded.
func (s *CoverageStore) RenderCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM renders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count renders: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *CoverageStore) Close() error {
	return s.db.Close()
}
