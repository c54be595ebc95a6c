package restore

import (
	"context"
	"fmt"
	"sort"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/domain/ledger"
	"factoryledger/pkg/logger"
)

// Store loads rows. InsertRows is all-or-nothing for the rows it is given.
type Store interface {
	InsertRows(ctx context.Context, table string, rows []Row) error
	ResetSequence(ctx context.Context, table string) error
}

// Reconciler repairs party balances after the import.
type Reconciler interface {
	RecalculatePartyBalances(ctx context.Context) (ledger.ReconcileReport, error)
}

// Options tune the import.
type Options struct {
	BatchSize      int
	ErrorTolerance int
}

// TableError is one failed row or table step.
type TableError struct {
	Table string `json:"table"`
	// Row is the index in the backup, or -1 for table-level failures.
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// TableResult counts rows per table.
type TableResult struct {
	Table    string `json:"table"`
	Rows     int    `json:"rows"`
	Inserted int    `json:"inserted"`
	Failed   int    `json:"failed"`
}

// Result is the restore report.
type Result struct {
	Tables    []TableResult           `json:"tables"`
	Errors    []TableError            `json:"errors"`
	Reconcile *ledger.ReconcileReport `json:"reconcile,omitempty"`
	Success   bool                    `json:"success"`
}

// ErrorCount includes reconciliation failures.
func (r Result) ErrorCount() int {
	n := len(r.Errors)
	if r.Reconcile != nil {
		n += len(r.Reconcile.Errors)
	}
	return n
}

// Service restores backups.
type Service struct {
	store      Store
	reconciler Reconciler
	opts       Options
}

// NewService creates a restore service.
func NewService(store Store, reconciler Reconciler, opts Options) *Service {
	if opts.BatchSize < 1 {
		opts.BatchSize = 500
	}
	if opts.ErrorTolerance < 0 {
		opts.ErrorTolerance = 0
	}
	return &Service{store: store, reconciler: reconciler, opts: opts}
}

type indexedRow struct {
	index int
	row   Row
}

// Restore imports backup table by table in dependency order, resets integer
// sequences and reconciles party balances. Row failures are collected; the
// restore succeeds while their number stays within the tolerance.
func (s *Service) Restore(ctx context.Context, backup map[string][]Row) (Result, error) {
	if len(backup) == 0 {
		return Result{}, apperror.NewValidation("backup is empty")
	}

	res := Result{Tables: []TableResult{}, Errors: []TableError{}}

	unknown := make([]string, 0)
	for name := range backup {
		if _, ok := Lookup(name); !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		logger.Warn(ctx, "skipping unknown backup table", "table", name, "rows", len(backup[name]))
		if len(backup[name]) == 0 {
			res.Errors = append(res.Errors, TableError{Table: name, Row: -1, Error: "unknown table"})
			continue
		}
		// Every skipped row is lost data and counts against the tolerance.
		for i := range backup[name] {
			res.Errors = append(res.Errors, TableError{Table: name, Row: i, Error: "unknown table"})
		}
	}

	for _, t := range Tables {
		rows, ok := backup[t.Name]
		if !ok || len(rows) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Tables = append(res.Tables, s.restoreTable(ctx, t, rows, &res.Errors))
	}

	report, err := s.reconciler.RecalculatePartyBalances(ctx)
	if err != nil {
		res.Errors = append(res.Errors, TableError{Table: "party_balances", Row: -1, Error: err.Error()})
	} else {
		res.Reconcile = &report
	}

	res.Success = res.ErrorCount() <= s.opts.ErrorTolerance
	logger.Info(ctx, "restore finished",
		"tables", len(res.Tables),
		"errors", res.ErrorCount(),
		"tolerance", s.opts.ErrorTolerance,
		"success", res.Success,
	)
	return res, nil
}

func (s *Service) restoreTable(ctx context.Context, t Table, rows []Row, errs *[]TableError) TableResult {
	tr := TableResult{Table: t.Name, Rows: len(rows)}

	prepared := make([]indexedRow, 0, len(rows))
	for i, row := range rows {
		clean, dropped := Sanitize(t, row)
		if len(dropped) > 0 {
			logger.Debug(ctx, "columns dropped from backup row", "table", t.Name, "row", i, "columns", dropped)
		}
		if len(clean) == 0 {
			*errs = append(*errs, TableError{Table: t.Name, Row: i, Error: "row has no insertable columns"})
			tr.Failed++
			continue
		}
		prepared = append(prepared, indexedRow{index: i, row: clean})
	}

	for start := 0; start < len(prepared); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(prepared))
		ok, failed := s.insert(ctx, t.Name, prepared[start:end], errs)
		tr.Inserted += ok
		tr.Failed += failed
	}

	if t.IntegerKey && tr.Inserted > 0 {
		if err := s.store.ResetSequence(ctx, t.Name); err != nil {
			*errs = append(*errs, TableError{Table: t.Name, Row: -1, Error: fmt.Sprintf("reset sequence: %v", err)})
		}
	}

	logger.Info(ctx, "table restored", "table", t.Name, "rows", tr.Rows, "inserted", tr.Inserted, "failed", tr.Failed)
	return tr
}

// insert loads batch, splitting it in halves on failure until single rows
// remain; a single row that still fails is recorded.
func (s *Service) insert(ctx context.Context, table string, batch []indexedRow, errs *[]TableError) (inserted, failed int) {
	if len(batch) == 0 {
		return 0, 0
	}

	rows := make([]Row, len(batch))
	for i, r := range batch {
		rows[i] = r.row
	}
	err := s.store.InsertRows(ctx, table, rows)
	if err == nil {
		return len(batch), 0
	}

	if len(batch) == 1 {
		logger.Warn(ctx, "backup row rejected", "table", table, "row", batch[0].index, "error", err)
		*errs = append(*errs, TableError{Table: table, Row: batch[0].index, Error: err.Error()})
		return 0, 1
	}

	mid := len(batch) / 2
	li, lf := s.insert(ctx, table, batch[:mid], errs)
	ri, rf := s.insert(ctx, table, batch[mid:], errs)
	return li + ri, lf + rf
}
