package wazero

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GuestLog is a structured log record forwarded by the guest through log_message.
type GuestLog struct {
	Timestamp time.Time       `json:"timestamp"`
	Attrs     []GuestLogAttr  `json:"attrs,omitempty"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Context   GuestLogContext `json:"context"`
}

// GuestLogAttr is a single attribute of a GuestLog, already rendered to a string.
type GuestLogAttr struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// GuestLogContext identifies the invocation a record was emitted from.
type GuestLogContext struct {
	Ident  int32 `json:"ident"`
	InCall bool  `json:"in_call"`
}

// LogFunc consumes guest log records.
type LogFunc func(ctx context.Context, runnable string, rec GuestLog)

// ParseGuestLog decodes a log_message payload.
func ParseGuestLog(data []byte) (GuestLog, error) {
	var rec GuestLog
	err := json.Unmarshal(data, &rec)
	return rec, err
}

// ZapLevel maps a slog level name ("DEBUG", "WARN+2", ...) to the closest zap level,
// capped at error.
func (g GuestLog) ZapLevel() zapcore.Level {
	name := g.Level
	for i, r := range name {
		if r == '+' || r == '-' {
			name = name[:i]
			break
		}
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel
	}
	if lvl > zapcore.ErrorLevel {
		// A guest must never be able to panic or exit the host through its logger.
		return zapcore.ErrorLevel
	}
	return lvl
}

// ZapLogFunc returns a LogFunc that writes guest records to logger at the guest's level.
func ZapLogFunc(logger *zap.Logger) LogFunc {
	return func(_ context.Context, runnable string, rec GuestLog) {
		fields := make([]zap.Field, 0, len(rec.Attrs)+2)
		fields = append(fields, zap.String("runnable", runnable))
		if rec.Context.InCall {
			fields = append(fields, zap.Int32("ident", rec.Context.Ident))
		}
		for _, attr := range rec.Attrs {
			fields = append(fields, zap.String(attr.Key, attr.Value))
		}
		if ce := logger.Check(rec.ZapLevel(), rec.Message); ce != nil {
			if !rec.Timestamp.IsZero() {
				ce.Time = rec.Timestamp
			}
			ce.Write(fields...)
		}
	}
}
