package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/jsonlines/internal/core"
	"github.com/JonMunkholm/jsonlines/internal/logging"
)

// flushThreshold is how many export bytes are buffered before an explicit flush.
const flushThreshold = 32 * 1024

// transferOptions reads ?columns=a,b&on_error=stop|ignore.
func transferOptions(r *http.Request) core.TransferOptions {
	q := r.URL.Query()
	return core.TransferOptions{
		Columns: core.ParseColumnSpec(q.Get("columns")),
		OnError: q.Get("on_error"),
	}
}

// handleImport streams the request body into a table. The body is one JSON
// object per line; nothing is buffered beyond the raw read buffer.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Transfer.MaxBodySize)

	opts := transferOptions(r)
	if r.ContentLength > 0 {
		opts.Size = r.ContentLength
	}

	id := uuid.New().String()
	w.Header().Set("X-Transfer-ID", id)
	ctx := core.ContextWithTransferID(WithRequestMetadata(r.Context(), r), id)

	result, err := s.service.Import(ctx, table, r.Body, opts)
	if err != nil {
		s.respondError(w, r, err, result)
		return
	}
	writeJSON(w, result)
}

// handleExport streams a table as application/x-ndjson. Errors found before
// the first row is written get a normal error response; later errors can
// only end the stream early.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	id := uuid.New().String()
	ctx := core.ContextWithTransferID(WithRequestMetadata(r.Context(), r), id)

	sw := &streamWriter{
		w:       w,
		rc:      http.NewResponseController(w),
		onStart: func(h http.Header) {
			filename := fmt.Sprintf("%s_%s.jsonl", table, time.Now().Format("20060102_150405"))
			h.Set("Content-Type", "application/x-ndjson")
			h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
			h.Set("X-Transfer-ID", id)
		},
	}

	result, err := s.service.Export(ctx, table, sw, transferOptions(r))
	if err == nil && !sw.started {
		// Empty table: still a valid, empty stream.
		sw.start()
	}
	if err != nil {
		if !sw.started {
			s.respondError(w, r, err, result)
			return
		}
		logging.FromContext(r.Context()).Warn("export stream aborted",
			"transfer_id", id,
			"rows", result.Rows,
			"error", err,
		)
		return
	}
	if ferr := sw.rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
		logging.FromContext(r.Context()).Debug("final flush failed", "error", ferr)
	}
}

// handleStatus reports limiter occupancy and running transfers.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"limiter":   s.service.LimiterStatus(),
		"transfers": s.service.ActiveTransfers(),
	})
}

// handleTransferProgress returns the progress of one running transfer.
func (s *Server) handleTransferProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.GetTransferProgress(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "transfer not found", "XFER006")
		return
	}
	writeJSON(w, map[string]any{
		"progress": p,
		"percent":  p.Percent(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// streamWriter defers response headers until the first byte and flushes
// every flushThreshold bytes.
type streamWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	onStart func(http.Header)

	started   bool
	unflushed int
}

func (sw *streamWriter) start() {
	sw.started = true
	sw.onStart(sw.w.Header())
	sw.w.WriteHeader(http.StatusOK)
}

func (sw *streamWriter) Write(p []byte) (int, error) {
	if !sw.started {
		sw.start()
	}
	n, err := sw.w.Write(p)
	if err != nil {
		return n, err
	}

	sw.unflushed += n
	if sw.unflushed >= flushThreshold {
		sw.unflushed = 0
		if err := sw.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return n, err
		}
	}
	return n, nil
}
