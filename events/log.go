package events

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AuditEntry is one structured record of a manager/wallet/transfer
// lifecycle event, kept for the embedder's own forensic/debugging trail.
// Entries are written as JSON lines through a zap core backed by an
// append-only file sink.
type AuditEntry struct {
	ManagerID string
	Timestamp time.Time
	Kind      string
	Status    string
	Detail    string
}

// AuditLog appends structured manager/wallet/transfer events to a zap
// JSON-encoded sink.
type AuditLog struct {
	logger *zap.Logger
}

// NewAuditLog opens (creating if needed) an append-only NDJSON sink at path.
func NewAuditLog(path string) (*AuditLog, error) {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sink, _, err := zap.Open(path)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), sink, zapcore.InfoLevel)
	return &AuditLog{logger: zap.New(core)}, nil
}

// Record appends one audit entry.
func (a *AuditLog) Record(e AuditEntry) {
	a.logger.Info(e.Kind,
		zap.String("managerId", e.ManagerID),
		zap.String("status", e.Status),
		zap.String("detail", e.Detail),
	)
}

// Sync flushes any buffered log entries to disk.
func (a *AuditLog) Sync() error {
	return a.logger.Sync()
}
