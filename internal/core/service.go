package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/jsonlines/internal/config"
	"github.com/JonMunkholm/jsonlines/internal/jsonlines"
	"github.com/JonMunkholm/jsonlines/internal/logging"
)

// Service runs JSON Lines imports into and exports out of PostgreSQL tables.
type Service struct {
	db      DBTX
	cfg     config.TransferConfig
	mode    jsonlines.OnError
	limiter *TransferLimiter

	mu        sync.RWMutex
	transfers map[string]*TransferProgress
}

// NewService creates a new Service instance. db may be nil for a service
// that only runs ImportRows.
func NewService(db DBTX, cfg config.TransferConfig) (*Service, error) {
	mode := jsonlines.OnErrorStop
	if cfg.OnError != "" {
		m, err := jsonlines.ParseOnError(cfg.OnError)
		if err != nil {
			return nil, fmt.Errorf("default on_error: %w", err)
		}
		mode = m
	}

	return &Service{
		db:        db,
		cfg:       cfg,
		mode:      mode,
		limiter:   NewTransferLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		transfers: make(map[string]*TransferProgress),
	}, nil
}

// Import streams JSON Lines records from r into table with COPY. The whole
// load is one statement: a fatal error leaves the table unchanged.
func (s *Service) Import(ctx context.Context, table string, r io.Reader, opts TransferOptions) (*TransferResult, error) {
	t, ctx, err := s.begin(ctx, table, DirectionImport, opts.Size)
	if err != nil {
		return t.finish(err)
	}
	defer t.release()

	if s.db == nil {
		return t.finish(errors.New("import: no database configured"))
	}

	ident, err := ParseTableName(table)
	if err != nil {
		return t.finish(err)
	}
	schema, err := LoadSchema(ctx, s.db, ident, opts.Columns)
	if err != nil {
		return t.finish(err)
	}
	if err := BindInputs(schema, pgtype.NewMap()); err != nil {
		return t.finish(err)
	}

	run, err := s.startImport(t, r, schema, opts)
	if err != nil {
		return t.finish(err)
	}

	src := newRowSource(ctx, run.st, len(schema))
	src.progress = run.report
	t.setPhase(PhaseStreaming)

	n, err := s.db.CopyFrom(ctx, ident, schema.Names(), src)
	if srcErr := src.Err(); srcErr != nil {
		err = srcErr
	}
	run.end()
	if err == nil {
		t.result.Rows = n
	}
	return t.finish(err)
}

// ImportRows converts JSON Lines records from r against schema without a
// database, calling fn with each converted row. Columns must already have
// input functions bound. The values slice is reused between calls.
func (s *Service) ImportRows(ctx context.Context, r io.Reader, schema jsonlines.Schema, opts TransferOptions, fn func(values []any) error) (*TransferResult, error) {
	t, ctx, err := s.begin(ctx, "", DirectionImport, opts.Size)
	if err != nil {
		return t.finish(err)
	}
	defer t.release()

	run, err := s.startImport(t, r, schema, opts)
	if err != nil {
		return t.finish(err)
	}

	src := newRowSource(ctx, run.st, len(schema))
	src.progress = run.report
	t.setPhase(PhaseStreaming)

	for src.Next() {
		if fn != nil {
			if err = fn(src.values); err != nil {
				break
			}
		}
	}
	if err == nil {
		err = src.Err()
	}
	run.end()
	t.result.Rows = src.rows
	return t.finish(err)
}

// Export writes every row of table to w as JSON Lines, one object per line.
func (s *Service) Export(ctx context.Context, table string, w io.Writer, opts TransferOptions) (*TransferResult, error) {
	t, ctx, err := s.begin(ctx, table, DirectionExport, 0)
	if err != nil {
		return t.finish(err)
	}
	defer t.release()

	if s.db == nil {
		return t.finish(errors.New("export: no database configured"))
	}

	ident, err := ParseTableName(table)
	if err != nil {
		return t.finish(err)
	}
	schema, err := LoadSchema(ctx, s.db, ident, opts.Columns)
	if err != nil {
		return t.finish(err)
	}
	if err := BindOutputs(schema); err != nil {
		return t.finish(err)
	}

	cols := make([]string, len(schema))
	for i, col := range schema {
		cols[i] = pgx.Identifier{col.Name}.Sanitize()
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), ident.Sanitize())

	// Text results: every value arrives in the type's output form.
	rows, err := s.db.Query(ctx, query, pgx.QueryResultFormats{pgx.TextFormatCode})
	if err != nil {
		return t.finish(fmt.Errorf("export query: %w", err))
	}
	defer rows.Close()

	st := jsonlines.NewToState(w, NewRowJSON(pgtype.NewMap()))
	routine := exportRoutine()
	if err := routine.Start(st, schema); err != nil {
		return t.finish(err)
	}
	t.setPhase(PhaseStreaming)

	values := make([]any, len(schema))
	for rows.Next() {
		for i, raw := range rows.RawValues() {
			if raw == nil {
				values[i] = nil
			} else {
				values[i] = string(raw)
			}
		}
		if err := routine.OneRow(st, values); err != nil {
			t.result.Rows = st.Rows()
			t.result.BytesOut = st.BytesWritten()
			return t.finish(err)
		}

		if st.Rows()%int64(ContextCheckInterval) == 0 {
			if err := ctx.Err(); err != nil {
				t.result.Rows = st.Rows()
				return t.finish(err)
			}
			t.update(func(p *TransferProgress) {
				p.Rows = st.Rows()
				p.BytesRead = st.BytesWritten()
			})
		}
	}
	err = rows.Err()
	if endErr := routine.End(st); err == nil {
		err = endErr
	}

	t.result.Rows = st.Rows()
	t.result.BytesOut = st.BytesWritten()
	return t.finish(err)
}

// LimiterStatus returns the current transfer limiter status.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForTransfers blocks until all running transfers end or ctx is done.
// Used during graceful shutdown.
func (s *Service) WaitForTransfers(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ActiveTransfers returns a snapshot of running transfers, oldest id first.
func (s *Service) ActiveTransfers() []TransferProgress {
	s.mu.RLock()
	out := make([]TransferProgress, 0, len(s.transfers))
	for _, p := range s.transfers {
		out = append(out, *p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetTransferProgress returns the progress of a running transfer.
func (s *Service) GetTransferProgress(id string) (TransferProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.transfers[id]
	if !ok {
		return TransferProgress{}, fmt.Errorf("transfer not found: %s", id)
	}
	return *p, nil
}

// transfer is the bookkeeping shared by every operation.
type transfer struct {
	s        *Service
	result   *TransferResult
	logger   *slog.Logger
	start    time.Time
	cancel   context.CancelFunc
	acquired bool
}

// begin assigns an id, takes a limiter slot and applies the transfer timeout.
// The returned transfer is usable even when err is non-nil.
func (s *Service) begin(ctx context.Context, table string, dir Direction, size int64) (*transfer, context.Context, error) {
	id := TransferIDFromContext(ctx)
	if id == "" {
		id = uuid.New().String()
	}

	logArgs := []any{"transfer_id", id, "direction", dir}
	if table != "" {
		logArgs = append(logArgs, "table", table)
	}
	if ip := ClientIPFromContext(ctx); ip != "" {
		logArgs = append(logArgs, "client_ip", ip)
	}

	t := &transfer{
		s:      s,
		result: &TransferResult{ID: id, Table: table, Direction: dir},
		logger: logging.WithFields(ctx, logArgs...),
		start:  time.Now(),
		cancel: func() {},
	}

	if err := s.limiter.Acquire(ctx, dir); err != nil {
		return t, ctx, err
	}
	t.acquired = true

	if s.cfg.Timeout > 0 {
		ctx, t.cancel = context.WithTimeout(ctx, s.cfg.Timeout)
	}

	s.mu.Lock()
	s.transfers[id] = &TransferProgress{
		ID:         id,
		Table:      table,
		Direction:  dir,
		Phase:      PhaseStarting,
		BytesTotal: size,
	}
	s.mu.Unlock()

	t.logger.Info("transfer started")
	return t, ctx, nil
}

func (t *transfer) update(fn func(p *TransferProgress)) {
	t.s.mu.Lock()
	if p, ok := t.s.transfers[t.result.ID]; ok {
		fn(p)
	}
	t.s.mu.Unlock()
}

func (t *transfer) setPhase(phase TransferPhase) {
	t.update(func(p *TransferProgress) { p.Phase = phase })
}

func (t *transfer) release() {
	if !t.acquired {
		return
	}
	t.cancel()
	t.s.mu.Lock()
	delete(t.s.transfers, t.result.ID)
	t.s.mu.Unlock()
	t.s.limiter.Release(t.result.Direction)
	t.acquired = false
}

// finish stamps the duration and error, logs the outcome and returns the
// result alongside err.
func (t *transfer) finish(err error) (*TransferResult, error) {
	t.result.Duration = time.Since(t.start)

	attrs := []any{
		"rows", t.result.Rows,
		"skipped", t.result.Skipped,
		"duration", t.result.Duration,
	}
	switch {
	case err == nil:
		t.setPhase(PhaseComplete)
		t.logger.Info("transfer completed", attrs...)
	case errors.Is(err, context.Canceled):
		t.result.Error = err.Error()
		t.setPhase(PhaseCancelled)
		t.logger.Warn("transfer cancelled", attrs...)
	default:
		t.result.Error = err.Error()
		t.setPhase(PhaseFailed)
		t.logger.Error("transfer failed", append(attrs, "error", err)...)
	}
	return t.result, err
}

// importRun is one running From routine with its reader stack.
type importRun struct {
	t       *transfer
	routine jsonlines.CopyFromRoutine
	st      *jsonlines.FromState
	ec      *jsonlines.ErrorContext
	body    *CountingReader
}

func (s *Service) startImport(t *transfer, r io.Reader, schema jsonlines.Schema, opts TransferOptions) (*importRun, error) {
	mode := s.mode
	if opts.OnError != "" {
		m, err := jsonlines.ParseOnError(opts.OnError)
		if err != nil {
			return nil, err
		}
		mode = m
	}

	ec := jsonlines.NewErrorContext(mode)
	if s.cfg.MaxDiagnostics > 0 {
		ec.MaxDiagnostics = s.cfg.MaxDiagnostics
	}

	body := WrapForImport(r, s.cfg.SanitizeUTF8)
	st := jsonlines.NewFromState(body, jsonlines.FromOptions{
		BufferSize: s.cfg.BufferSize,
		Errors:     ec,
		Logger:     t.logger,
	})

	routine := importRoutine()
	if err := routine.Start(st, schema); err != nil {
		return nil, err
	}
	return &importRun{t: t, routine: routine, st: st, ec: ec, body: body}, nil
}

// report publishes progress; called from the COPY goroutine.
func (run *importRun) report(rows int64) {
	skipped := run.ec.Skipped()
	read := run.body.BytesRead()
	run.t.update(func(p *TransferProgress) {
		p.Rows = rows
		p.Skipped = skipped
		p.BytesRead = read
	})
}

// end closes the routine and copies the counters into the result.
func (run *importRun) end() {
	_ = run.routine.End(run.st)

	res := run.t.result
	res.Skipped = run.ec.Skipped()
	res.Diagnostics = run.ec.Diagnostics()
	res.BytesRead = run.body.BytesRead()
	res.Dropped = run.st.DroppedBytes()
}
