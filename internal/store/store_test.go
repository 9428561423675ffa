package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/boqimport/internal/core"
)

type copyCall struct {
	table   string
	columns []string
	rows    [][]any
}

type fakeQuerier struct {
	execSQL  []string
	execArgs [][]any
	copies   []copyCall
	failCopy string
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeQuerier) CopyFrom(_ context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	name := table.Sanitize()
	if f.failCopy != "" && strings.Contains(name, f.failCopy) {
		return 0, errors.New("copy refused")
	}
	call := copyCall{table: table[0], columns: columns}
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		call.rows = append(call.rows, vals)
	}
	f.copies = append(f.copies, call)
	return int64(len(call.rows)), nil
}

func price(v float64) *float64 { return &v }

func sampleSummary() core.RunSummary {
	return core.RunSummary{
		RunID:    "8a7c1d4e-2b9f-4c3a-9e1d-5f6a7b8c9d0e",
		FileName: "boq.csv",
		Result: core.ParseResult{
			Success: false,
			Items: []core.BOQItem{
				{
					LineNumber: 2, ItemCode: "1.1", Description: "Cable", UOM: "m", Quantity: 100,
					UnitPrice: price(2.5), TotalPrice: price(250),
					RawData: core.RawRecord{"description": "Cable", "quantity": "100"},
				},
				{LineNumber: 3, Description: "Conduit", UOM: "m", Quantity: 40},
			},
			Errors: []core.ParseError{
				{Row: 4, Column: "Qty", Value: "-5", Message: "Quantity must be positive", Kind: core.ErrorValidation},
			},
			Warnings: []core.ParseWarning{
				{Row: 2, Column: "Amount", Value: "250", Message: "total mismatch", Kind: core.WarningRange},
			},
			Metadata: core.Metadata{
				FileName: "boq.csv", TotalRows: 3, ProcessedRows: 3, InvalidRows: 1,
				ProcessingTimeMs: 12, DetectedFormat: core.FormatDelimitedText,
			},
		},
		Duration: 12 * time.Millisecond,
	}
}

func TestWriteRun(t *testing.T) {
	q := &fakeQuerier{}
	id := uuid.MustParse(sampleSummary().RunID)

	if err := writeRun(context.Background(), q, id, sampleSummary()); err != nil {
		t.Fatalf("writeRun() error = %v", err)
	}

	if len(q.execSQL) != 1 || !strings.Contains(q.execSQL[0], "INSERT INTO boq_runs") {
		t.Fatalf("exec = %v, want one run insert", q.execSQL)
	}
	args := q.execArgs[0]
	if args[0] != id || args[1] != "boq.csv" || args[2] != "delimited_text" || args[3] != false {
		t.Errorf("run args = %v", args[:4])
	}
	if args[10] != 2 || args[11] != 1 || args[12] != 1 {
		t.Errorf("counts = %v, want 2 items, 1 error, 1 warning", args[10:13])
	}

	if len(q.copies) != 3 {
		t.Fatalf("copies = %d, want 3", len(q.copies))
	}
	items := q.copies[0]
	if items.table != "boq_items" || len(items.rows) != 2 {
		t.Fatalf("items copy = %s with %d rows", items.table, len(items.rows))
	}
	if len(items.rows[0]) != len(itemColumns) {
		t.Errorf("item row width = %d, want %d", len(items.rows[0]), len(itemColumns))
	}
	if code := toPgText("1.1"); items.rows[0][2] != code {
		t.Errorf("item code = %v, want %v", items.rows[0][2], code)
	}
	if items.rows[1][2] != toPgText("") {
		t.Errorf("missing item code should be NULL, got %v", items.rows[1][2])
	}

	errs := q.copies[1]
	if errs.table != "boq_run_errors" || errs.rows[0][7] != "VAL001" {
		t.Errorf("error copy = %s %v", errs.table, errs.rows)
	}
	if q.copies[2].table != "boq_run_warnings" {
		t.Errorf("third copy = %s", q.copies[2].table)
	}
}

func TestWriteRun_SkipsEmptyChildren(t *testing.T) {
	q := &fakeQuerier{}
	s := sampleSummary()
	s.Result.Errors = nil
	s.Result.Warnings = nil

	if err := writeRun(context.Background(), q, uuid.New(), s); err != nil {
		t.Fatalf("writeRun() error = %v", err)
	}
	if len(q.copies) != 1 || q.copies[0].table != "boq_items" {
		t.Errorf("copies = %+v, want items only", q.copies)
	}
}

func TestWriteRun_CopyFailure(t *testing.T) {
	q := &fakeQuerier{failCopy: "boq_run_errors"}
	err := writeRun(context.Background(), q, uuid.New(), sampleSummary())
	if err == nil || !strings.Contains(err.Error(), "boq_run_errors") {
		t.Fatalf("writeRun() error = %v, want copy failure", err)
	}
}

func TestRunUUID(t *testing.T) {
	id, err := runUUID("")
	if err != nil || id == uuid.Nil {
		t.Errorf("runUUID(\"\") = %v, %v", id, err)
	}
	want := uuid.MustParse(sampleSummary().RunID)
	if got, err := runUUID(want.String()); err != nil || got != want {
		t.Errorf("runUUID() = %v, %v", got, err)
	}
	if _, err := runUUID("run-1"); err == nil {
		t.Error("runUUID(\"run-1\") should fail")
	}
}

func TestToPgText(t *testing.T) {
	if v := toPgText("  "); v.Valid {
		t.Error("blank text should be NULL")
	}
	if v := toPgText(" A1 "); !v.Valid || v.String != "A1" {
		t.Errorf("toPgText() = %+v", v)
	}
}

func TestToPgNumeric(t *testing.T) {
	if v := toPgNumeric(nil); v.Valid {
		t.Error("nil should be NULL")
	}
	v := toPgNumeric(price(1234.5))
	if !v.Valid {
		t.Fatal("expected a valid numeric")
	}
	f, err := v.Float64Value()
	if err != nil || f.Float64 != 1234.5 {
		t.Errorf("round trip = %v, %v", f.Float64, err)
	}
}

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
	called  chan struct{}
}

func (f *fakePurger) PurgeBefore(_ context.Context, cutoff time.Time, _ int) (int64, error) {
	f.mu.Lock()
	f.cutoffs = append(f.cutoffs, cutoff)
	f.mu.Unlock()
	select {
	case f.called <- struct{}{}:
	default:
	}
	return 3, f.err
}

func TestPurgeOnce_Cutoff(t *testing.T) {
	p := &fakePurger{}
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

	purgeOnce(context.Background(), p, RetentionPolicy{Window: 48 * time.Hour, BatchSize: 10}, now)

	if len(p.cutoffs) != 1 || !p.cutoffs[0].Equal(now.Add(-48*time.Hour)) {
		t.Errorf("cutoffs = %v", p.cutoffs)
	}

	p.err = errors.New("db down")
	purgeOnce(context.Background(), p, RetentionPolicy{Window: time.Hour, BatchSize: 10}, now)
	if len(p.cutoffs) != 2 {
		t.Error("a failing purge should still be attempted")
	}
}

func TestRunRetention_StopsOnCancel(t *testing.T) {
	p := &fakePurger{called: make(chan struct{}, 8)}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunRetention(ctx, p, RetentionPolicy{Window: time.Hour, BatchSize: 5, CheckInterval: 10 * time.Millisecond})
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-p.called:
		case <-time.After(2 * time.Second):
			t.Fatalf("purge %d never ran", i+1)
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestPurgeBefore_RejectsBatchSize(t *testing.T) {
	if _, err := New(nil).PurgeBefore(context.Background(), time.Now(), 0); err == nil {
		t.Error("PurgeBefore() with batch 0 should fail")
	}
}
