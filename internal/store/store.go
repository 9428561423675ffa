// Package store persists finished parse runs to PostgreSQL.
//
// A run is written in one transaction: a header row in boq_runs, then its
// items, errors and warnings through COPY. Child rows cascade when a run is
// purged by the retention scheduler.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/boqimport/internal/config"
	"github.com/JonMunkholm/boqimport/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// querier is what writing one run needs; both pgx.Tx and test fakes provide it.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store writes parse results.
type Store struct {
	db DB
}

// New creates a store on db.
func New(db DB) *Store {
	return &Store{db: db}
}

// Connect opens a pool configured from cfg and verifies it with a ping.
func Connect(ctx context.Context, cfg config.StoreConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SaveResult persists one finished run and returns its id. A run without an
// id gets a fresh one. Nothing is written unless every part succeeds.
func (s *Store) SaveResult(ctx context.Context, summary core.RunSummary) (uuid.UUID, error) {
	id, err := runUUID(summary.RunID)
	if err != nil {
		return uuid.Nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if err := writeRun(ctx, tx, id, summary); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit run %s: %w", id, err)
	}
	return id, nil
}

// CompletionFunc adapts SaveResult to a run registry hook. Failures are
// logged; the run result is unaffected.
func (s *Store) CompletionFunc(timeout time.Duration) core.CompletionFunc {
	return func(ctx context.Context, summary core.RunSummary) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		logger := core.LoggerFromContext(ctx)
		start := time.Now()
		id, err := s.SaveResult(ctx, summary)
		if err != nil {
			logger.Error("save run failed", "run_id", summary.RunID, "error", err)
			return
		}
		logger.Info("run saved",
			"run_id", id.String(),
			"items", len(summary.Result.Items),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// PurgeBefore deletes runs created before cutoff, batchSize runs per
// statement, and returns how many were deleted.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be positive")
	}

	var total int64
	for {
		tag, err := s.db.Exec(ctx, purgeSQL, cutoff, batchSize)
		if err != nil {
			return total, fmt.Errorf("purge runs: %w", err)
		}
		n := tag.RowsAffected()
		total += n
		if n < int64(batchSize) {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

const purgeSQL = `DELETE FROM boq_runs
WHERE id IN (SELECT id FROM boq_runs WHERE created_at < $1 ORDER BY created_at LIMIT $2)`

const insertRunSQL = `INSERT INTO boq_runs (
	id, file_name, format, success, total_rows, processed_rows, skipped_rows, invalid_rows,
	header_row, processing_ms, item_count, error_count, warning_count, columns
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

var (
	itemColumns = []string{
		"run_id", "line_number", "item_code", "description", "uom", "quantity", "phase", "task",
		"site", "unit_price", "total_price", "category", "subcategory", "vendor", "remarks", "raw_data",
	}
	errorColumns   = []string{"run_id", "seq", "row_num", "col", "value", "message", "kind", "code"}
	warningColumns = []string{"run_id", "seq", "row_num", "col", "value", "message", "kind"}
)

// writeRun inserts the run header and copies its children through q.
func writeRun(ctx context.Context, q querier, id uuid.UUID, summary core.RunSummary) error {
	r := summary.Result
	m := r.Metadata

	columns := m.Columns
	if columns == nil {
		columns = []core.ColumnMapping{}
	}

	fileName := m.FileName
	if fileName == "" {
		fileName = summary.FileName
	}

	if _, err := q.Exec(ctx, insertRunSQL,
		id, fileName, m.DetectedFormat.String(), r.Success,
		m.TotalRows, m.ProcessedRows, m.SkippedRows, m.InvalidRows,
		m.HeaderRow, m.ProcessingTimeMs, len(r.Items), len(r.Errors), len(r.Warnings), columns,
	); err != nil {
		return fmt.Errorf("insert run %s: %w", id, err)
	}

	copies := []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{"boq_items", itemColumns, itemRows(id, r.Items)},
		{"boq_run_errors", errorColumns, errorRows(id, r.Errors)},
		{"boq_run_warnings", warningColumns, warningRows(id, r.Warnings)},
	}
	for _, c := range copies {
		if len(c.rows) == 0 {
			continue
		}
		n, err := q.CopyFrom(ctx, pgx.Identifier{c.table}, c.columns, pgx.CopyFromRows(c.rows))
		if err != nil {
			return fmt.Errorf("copy %s for run %s: %w", c.table, id, err)
		}
		if n != int64(len(c.rows)) {
			return fmt.Errorf("copy %s for run %s: wrote %d of %d rows", c.table, id, n, len(c.rows))
		}
	}

	slog.Debug("run written", "run_id", id.String(), "items", len(r.Items), "errors", len(r.Errors))
	return nil
}

func itemRows(id uuid.UUID, items []core.BOQItem) [][]any {
	rows := make([][]any, len(items))
	for i, it := range items {
		raw := map[string]string(it.RawData)
		if raw == nil {
			raw = map[string]string{}
		}
		rows[i] = []any{
			id, it.LineNumber, toPgText(it.ItemCode), it.Description, it.UOM,
			toPgNumeric(&it.Quantity), toPgText(it.Phase), toPgText(it.Task), toPgText(it.Site),
			toPgNumeric(it.UnitPrice), toPgNumeric(it.TotalPrice), toPgText(it.Category),
			toPgText(it.Subcategory), toPgText(it.Vendor), toPgText(it.Remarks), raw,
		}
	}
	return rows
}

func errorRows(id uuid.UUID, errs []core.ParseError) [][]any {
	rows := make([][]any, len(errs))
	for i, e := range errs {
		rows[i] = []any{
			id, i + 1, e.Row, toPgText(e.Column), toPgText(e.Value), e.Message,
			string(e.Kind), core.MapMessage(e.Message).Code,
		}
	}
	return rows
}

func warningRows(id uuid.UUID, warnings []core.ParseWarning) [][]any {
	rows := make([][]any, len(warnings))
	for i, w := range warnings {
		rows[i] = []any{
			id, i + 1, w.Row, toPgText(w.Column), toPgText(w.Value), w.Message, string(w.Kind),
		}
	}
	return rows
}

// runUUID parses a registry run id, or creates one for synchronous runs.
func runUUID(runID string) (uuid.UUID, error) {
	if runID == "" {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(runID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	return id, nil
}

/* ----------------------------------------
	Pgx Helpers
---------------------------------------- */

func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgNumeric(v *float64) pgtype.Numeric {
	if v == nil {
		return pgtype.Numeric{Valid: false}
	}
	var n pgtype.Numeric
	if err := n.Scan(strconv.FormatFloat(*v, 'f', -1, 64)); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}
