package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/jsonlines/internal/jsonlines"
)

// DBTX is the interface for database operations.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Direction of a transfer, as reported in results and status.
type Direction string

const (
	DirectionImport Direction = "import"
	DirectionExport Direction = "export"
)

// TransferOptions tune a single import or export.
type TransferOptions struct {
	// Columns restricts the transfer to these columns, in this order.
	// Empty means every column of the table in table order.
	Columns []string

	// OnError is "stop" or "ignore"; empty uses the configured default.
	// Ignored for exports.
	OnError string

	// Size is the body size when known, for progress reporting. 0 if unknown.
	Size int64
}

// TransferPhase indicates the current stage of a transfer.
type TransferPhase string

const (
	PhaseStarting  TransferPhase = "starting"
	PhaseStreaming TransferPhase = "streaming"
	PhaseComplete  TransferPhase = "complete"
	PhaseFailed    TransferPhase = "failed"
	PhaseCancelled TransferPhase = "cancelled"
)

// TransferProgress is a snapshot of a running transfer.
type TransferProgress struct {
	ID         string        `json:"id"`
	Table      string        `json:"table"`
	Direction  Direction     `json:"direction"`
	Phase      TransferPhase `json:"phase"`
	Rows       int64         `json:"rows"`
	Skipped    int64         `json:"skipped"`
	BytesRead  int64         `json:"bytes_read"`
	BytesTotal int64         `json:"bytes_total,omitempty"`
}

// Percent returns byte-based progress (0-100), or 0 when the size is unknown.
func (p TransferProgress) Percent() int {
	if p.BytesTotal > 0 {
		return int((p.BytesRead * 100) / p.BytesTotal)
	}
	return 0
}

// TransferResult contains the final result of an import or export.
type TransferResult struct {
	ID          string                 `json:"id"`
	Table       string                 `json:"table"`
	Direction   Direction              `json:"direction"`
	Rows        int64                  `json:"rows"`
	Skipped     int64                  `json:"skipped"`
	Diagnostics []jsonlines.Diagnostic `json:"diagnostics,omitempty"`
	BytesRead   int64                  `json:"bytes_read,omitempty"`
	BytesOut    int64                  `json:"bytes_written,omitempty"`
	Dropped     int64                  `json:"dropped_bytes,omitempty"`
	Duration    time.Duration          `json:"duration_ns"`
	Error       string                 `json:"error,omitempty"`
}
