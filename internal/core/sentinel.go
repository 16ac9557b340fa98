package core

// sentinel.go is the diagnostics/audit sink. Strictly best-effort: its own
// failures are logged at debug and swallowed, never surfaced to callers.

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hbm-systems/catalog-import/internal/database"
)

// SentinelLevel is the severity of a sentinel entry.
type SentinelLevel string

const (
	LevelInfo  SentinelLevel = "info"
	LevelWarn  SentinelLevel = "warn"
	LevelError SentinelLevel = "error"
)

// Sentinel records structured diagnostics into the sentinel_log table.
// A nil Sentinel is valid and records nothing.
type Sentinel struct {
	db database.DBTX
}

// NewSentinel creates a sentinel writing through db.
func NewSentinel(db database.DBTX) *Sentinel {
	return &Sentinel{db: db}
}

// Record writes one diagnostics entry. payload is marshaled to JSON; a
// payload that cannot be marshaled is stored as NULL. All failures are
// swallowed so diagnostics can never abort the pipeline.
func (s *Sentinel) Record(ctx context.Context, label string, payload any, code string, level SentinelLevel, scope string) {
	if s == nil || s.db == nil {
		return
	}

	var body []byte
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			body = b
		}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO sentinel_log (id, label, payload, code, level, scope, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		uuid.New(), label, body, code, string(level), scope)
	if err != nil {
		slog.Debug("sentinel record failed", "label", label, "code", code, "error", err)
	}
}
