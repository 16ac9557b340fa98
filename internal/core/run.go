package core

// run.go is the run orchestrator: the one component that knows the whole
// pipeline shape. It claims the run, resolves and opens the source file,
// ensures the target table, takes the per-table advisory lock, streams
// transformed rows through the upsert engine in chunks, throttles progress
// writes, and finalizes run status.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hbm-systems/catalog-import/internal/database"
	"github.com/hbm-systems/catalog-import/internal/logging"
)

// Column-name alternatives recognized for the optional normalized fields.
var (
	eanColumns   = []string{"ean", "eannr"}
	nameColumns  = []string{"name", "bezeichnung", "description"}
	stockColumns = []string{"stock", "bestand", "qty"}
)

// columnMap holds resolved source column positions for one run.
// A position of -1 means the source file does not carry that field.
type columnMap struct {
	code  int
	ean   int
	name  int
	stock int
}

// RunImport executes one import run end to end. The returned error is the
// run's failure cause; the run row and progress record are always
// finalized before returning, and the advisory lock is always released.
func (s *Service) RunImport(ctx context.Context, runID, uploadID int64) error {
	log := logging.ForRun(runID, uploadID)
	start := time.Now()

	if err := s.claimRun(ctx, runID); err != nil {
		// No claimed run to finalize; surface directly.
		return err
	}

	up, err := s.getUpload(ctx, uploadID)
	if err != nil {
		return s.finalizeFailure(ctx, log, runID, uploadID, err)
	}

	totals, err := s.runPipeline(ctx, log, up)
	if err != nil {
		return s.finalizeFailure(ctx, log, runID, uploadID, err)
	}

	// Clean exhaustion: succeed the run and force the final progress
	// write so polling clients land on 100.
	done := context.WithoutCancel(ctx)
	if err := s.finishRun(done, runID); err != nil {
		return s.finalizeFailure(ctx, log, runID, uploadID, err)
	}
	if err := s.writeProgress(done, uploadID, 100, StatusSucceeded); err != nil {
		log.Warn("final progress write failed", "error", err)
	}

	log.Info("import finished",
		"rows_seen", totals.Seen,
		"rows_ok", totals.Succeeded,
		"rows_failed", totals.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.sentinel.Record(done, "import.run_succeeded", map[string]any{
		"run_id": runID, "upload_id": uploadID,
		"seen": totals.Seen, "ok": totals.Succeeded, "failed": totals.Failed,
	}, "IMP-RUN-OK", LevelInfo, "orchestrator")

	return nil
}

// runPipeline performs the in-run steps: resolve, open, ensure, lock,
// stream. Fatal errors bubble up to RunImport for finalization.
func (s *Service) runPipeline(ctx context.Context, log *slog.Logger, up UploadRecord) (RunTotals, error) {
	var totals RunTotals

	profile, err := ProfileBySlug(Slugify(up.Manufacturer))
	if err != nil {
		return totals, err
	}

	path, err := ResolveSourcePath(up.FileRef, s.importRoots())
	if err != nil {
		return totals, err
	}

	src, err := OpenRowSource(path, s.cfg.Import.ChunkSize)
	if err != nil {
		return totals, err
	}
	defer src.Close()

	rec, err := s.EnsureManufacturer(ctx, s.db, up.Manufacturer)
	if err != nil {
		return totals, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return totals, &PersistenceError{Op: "acquire connection", Err: err}
	}
	defer conn.Release()

	lock := NewAdvisoryLock(conn)
	lockName := LockName(rec.TargetTable)

	// Defensive: release runs even when acquisition errored mid-flight.
	// Releasing an unheld session lock is a no-op.
	defer lock.Release(context.WithoutCancel(ctx), lockName)

	ok, err := lock.Acquire(ctx, lockName, s.cfg.Import.LockTimeout)
	if err != nil {
		return totals, err
	}
	if !ok {
		return totals, fmt.Errorf("%w: %s", ErrLockTimeout, lockName)
	}

	log.Info("import started",
		"manufacturer", rec.Slug,
		"table", rec.TargetTable,
		"file", up.FileRef,
	)

	return s.streamChunks(ctx, up, profile, rec.TargetTable, conn, src)
}

// streamChunks drives rows from src through transform, normalization, and
// the upsert engine. Rows are applied in source order within a chunk and
// chunks in source order, so later rows for the same code win.
func (s *Service) streamChunks(ctx context.Context, up UploadRecord, profile ManufacturerProfile, table string, db database.DBTX, src *RowSource) (RunTotals, error) {
	var totals RunTotals

	cols, err := mapColumns(src.Headers(), profile)
	if err != nil {
		return totals, &ParseError{Path: up.FileRef, Err: err}
	}

	batchSize := s.cfg.Import.BatchSize
	every := s.cfg.Import.ProgressEvery
	chunk := make([]NormalizedRow, 0, batchSize)
	lastWrite := 0

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		res, err := s.ApplyBatch(ctx, db, table, chunk)
		if err != nil {
			return err
		}
		totals.Succeeded += res.Succeeded
		totals.Failed += res.Failed
		chunk = chunk[:0]
		return nil
	}

	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return totals, err
		}

		totals.Seen++
		chunk = append(chunk, normalizeRow(row, cols, profile))

		if len(chunk) >= batchSize {
			if err := flush(); err != nil {
				return totals, err
			}
			// Progress is throttled: one write per `every` rows, not
			// one per row or per chunk. Spreadsheet sources report 0
			// all the way through; the forced final write still lands
			// on 100.
			if totals.Seen-lastWrite >= every {
				if err := s.writeProgress(ctx, up.ID, src.Percent(), StatusRunning); err != nil {
					return totals, err
				}
				lastWrite = totals.Seen
			}
		}
	}

	if err := flush(); err != nil {
		return totals, err
	}

	return totals, nil
}

// mapColumns resolves header positions for the profile's source match
// column and the optional ean/name/stock fields.
func mapColumns(headers []string, profile ManufacturerProfile) (columnMap, error) {
	idx := MakeHeaderIndex(headers)

	cols := columnMap{
		code:  findColumn(idx, string(profile.SourceMatch)),
		ean:   findColumn(idx, eanColumns...),
		name:  findColumn(idx, nameColumns...),
		stock: findColumn(idx, stockColumns...),
	}

	if cols.code < 0 {
		return cols, fmt.Errorf("source column %s not found in header", profile.SourceMatch)
	}
	return cols, nil
}

func findColumn(idx HeaderIndex, names ...string) int {
	for _, n := range names {
		if pos, ok := idx[strings.ToLower(n)]; ok {
			return pos
		}
	}
	return -1
}

// normalizeRow builds the {code, ean, name, stock} subset from a raw row,
// running each field through the profile's transform chain.
func normalizeRow(row []string, cols columnMap, profile ManufacturerProfile) NormalizedRow {
	return NormalizedRow{
		Code:  transformedCell(row, cols.code, profile, "code"),
		EAN:   ToPgText(transformedCell(row, cols.ean, profile, "ean")),
		Name:  ToPgText(transformedCell(row, cols.name, profile, "name")),
		Stock: ToPgInt4(transformedCell(row, cols.stock, profile, "stock")),
	}
}

func transformedCell(row []string, pos int, profile ManufacturerProfile, field string) string {
	if pos < 0 || pos >= len(row) {
		return ""
	}
	raw := CleanCell(row[pos])
	if out := ApplyTransforms(&raw, profile.Transforms[field]); out != nil {
		return *out
	}
	return ""
}

// finalizeFailure transitions the run to failed, forces a progress write
// so polling clients see the failure promptly, reports to the sentinel,
// and hands the original error back up.
func (s *Service) finalizeFailure(ctx context.Context, log *slog.Logger, runID, uploadID int64, cause error) error {
	done := context.WithoutCancel(ctx)

	if err := s.markRunFailed(done, runID, cause.Error()); err != nil {
		log.Error("failed to finalize run", "error", err)
	}

	// Forced write: status only, keeping whatever percent was reached.
	if _, err := s.db.Exec(done,
		`UPDATE catalog_uploads SET status = $2, updated_at = now() WHERE id = $1`,
		uploadID, string(StatusFailed)); err != nil {
		log.Error("failed to finalize progress", "error", err)
	}

	s.sentinel.Record(done, "import.run_failed", map[string]any{
		"run_id": runID, "upload_id": uploadID, "error": cause.Error(),
	}, "IMP-RUN-FAIL", LevelError, "orchestrator")

	log.Error("import failed", "error", cause)
	return cause
}
