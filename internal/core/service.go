package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/hbm-systems/catalog-import/internal/config"
	"github.com/hbm-systems/catalog-import/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service provides the catalog import pipeline.
type Service struct {
	pool     *pgxpool.Pool
	db       database.DBTX
	cfg      *config.Config
	sentinel *Sentinel
}

// NewService creates a Service backed by the given pool.
func NewService(pool *pgxpool.Pool, cfg *config.Config) *Service {
	var db database.DBTX
	if pool != nil {
		db = pool
	}
	return &Service{
		pool:     pool,
		db:       db,
		cfg:      cfg,
		sentinel: NewSentinel(db),
	}
}

func (s *Service) importRoots() ImportRoots {
	return ImportRoots{
		Posix:   s.cfg.Import.RootPosix,
		Windows: s.cfg.Import.RootWindows,
	}
}

// EnsureRunTables bootstraps the persistent run state: manufacturer
// records, import runs, upload progress, and the sentinel log. All
// statements are idempotent so a fresh database self-initializes.
func (s *Service) EnsureRunTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS manufacturers (
			id           bigserial PRIMARY KEY,
			slug         text NOT NULL UNIQUE,
			display_name text NOT NULL,
			target_table text NOT NULL UNIQUE,
			created_at   timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS catalog_uploads (
			id           bigserial PRIMARY KEY,
			file_ref     text NOT NULL,
			manufacturer text NOT NULL,
			percent      integer NOT NULL DEFAULT 0,
			status       text NOT NULL DEFAULT 'queued',
			created_at   timestamptz NOT NULL DEFAULT now(),
			updated_at   timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS import_runs (
			id            bigserial PRIMARY KEY,
			upload_id     bigint NOT NULL,
			manufacturer  text NOT NULL,
			status        text NOT NULL DEFAULT 'queued',
			started_at    timestamptz,
			finished_at   timestamptz,
			error_message text,
			created_at    timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sentinel_log (
			id         uuid PRIMARY KEY,
			label      text NOT NULL,
			payload    jsonb,
			code       text,
			level      text NOT NULL,
			scope      text,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return &PersistenceError{Op: "ensure run tables", Err: err}
		}
	}
	return nil
}

// CreateUpload registers an uploaded file and returns its id.
func (s *Service) CreateUpload(ctx context.Context, fileRef, manufacturer string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO catalog_uploads (file_ref, manufacturer) VALUES ($1, $2) RETURNING id`,
		fileRef, manufacturer,
	).Scan(&id)
	if err != nil {
		return 0, &PersistenceError{Op: "create upload", Err: err}
	}
	return id, nil
}

// EnqueueRun creates a queued import run for an upload and returns its id.
// A failed run is never retried; callers enqueue a fresh run instead.
func (s *Service) EnqueueRun(ctx context.Context, uploadID int64, manufacturer string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO import_runs (upload_id, manufacturer, status) VALUES ($1, $2, $3) RETURNING id`,
		uploadID, manufacturer, string(StatusQueued),
	).Scan(&id)
	if err != nil {
		return 0, &PersistenceError{Op: "enqueue run", Err: err}
	}
	return id, nil
}

// claimRun transitions a queued run to running and stamps its start time.
func (s *Service) claimRun(ctx context.Context, runID int64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE import_runs SET status = $2, started_at = now() WHERE id = $1 AND status = $3`,
		runID, string(StatusRunning), string(StatusQueued))
	if err != nil {
		return &PersistenceError{Op: "claim run", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &PersistenceError{Op: "claim run", Err: fmt.Errorf("run %d not found or not queued", runID)}
	}
	return nil
}

func (s *Service) getUpload(ctx context.Context, id int64) (UploadRecord, error) {
	var up UploadRecord
	err := s.db.QueryRow(ctx,
		`SELECT id, file_ref, manufacturer FROM catalog_uploads WHERE id = $1`,
		id,
	).Scan(&up.ID, &up.FileRef, &up.Manufacturer)
	if err != nil {
		return UploadRecord{}, &PersistenceError{Op: "load upload", Err: err}
	}
	return up, nil
}

// writeProgress updates the upload's progress record. Throttled callers
// treat an error as fatal; finalization callers ignore it.
func (s *Service) writeProgress(ctx context.Context, uploadID int64, percent int, status RunStatus) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	_, err := s.db.Exec(ctx,
		`UPDATE catalog_uploads SET percent = $2, status = $3, updated_at = now() WHERE id = $1`,
		uploadID, percent, string(status))
	if err != nil {
		return &PersistenceError{Op: "write progress", Err: err}
	}
	return nil
}

// finishRun marks a run succeeded and stamps its finish time.
func (s *Service) finishRun(ctx context.Context, runID int64) error {
	_, err := s.db.Exec(ctx,
		`UPDATE import_runs SET status = $2, finished_at = now() WHERE id = $1`,
		runID, string(StatusSucceeded))
	if err != nil {
		return &PersistenceError{Op: "finish run", Err: err}
	}
	return nil
}

// markRunFailed finalizes a run as failed with a truncated error message.
func (s *Service) markRunFailed(ctx context.Context, runID int64, msg string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE import_runs SET status = $2, finished_at = now(), error_message = $3 WHERE id = $1`,
		runID, string(StatusFailed), truncateMessage(msg))
	if err != nil {
		return &PersistenceError{Op: "mark run failed", Err: err}
	}
	return nil
}

// truncateMessage bounds persisted error messages.
func truncateMessage(msg string) string {
	const maxLen = 1000
	msg = strings.TrimSpace(msg)
	if len(msg) <= maxLen {
		return msg
	}
	return msg[:maxLen]
}
