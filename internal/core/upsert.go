package core

// upsert.go applies chunks of normalized rows to a target table with
// insert-or-update-on-conflict semantics. Row failures are deliberately
// local: a batch of N rows with row 7 corrupt still applies rows 1-6 and
// 8-N. Retry, if any, is the orchestrator's concern at the chunk level.

import (
	"context"
	"fmt"

	"github.com/hbm-systems/catalog-import/internal/database"
)

// ApplyBatch upserts rows into table in source order, one statement per
// row, counting per-row failures instead of propagating them. The only
// returned error is an identifier failing the whitelist, which indicates a
// bug upstream rather than bad data.
func (s *Service) ApplyBatch(ctx context.Context, db database.DBTX, table string, rows []NormalizedRow) (BatchResult, error) {
	if !identPattern.MatchString(table) {
		return BatchResult{}, &PersistenceError{Op: "apply batch", Err: fmt.Errorf("identifier %q fails whitelist", table)}
	}

	stmt := fmt.Sprintf(
		`INSERT INTO %s (code, ean, name, stock, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (code) DO UPDATE SET
			ean        = EXCLUDED.ean,
			name       = EXCLUDED.name,
			stock      = EXCLUDED.stock,
			updated_at = now()`, table)

	var res BatchResult
	for _, row := range rows {
		if row.Code == "" {
			res.Failed++
			s.sentinel.Record(ctx, "import.row_rejected",
				map[string]any{"table": table, "reason": "empty code"},
				"IMP-ROW-EMPTY", LevelWarn, "upsert")
			continue
		}

		if _, err := db.Exec(ctx, stmt, row.Code, row.EAN, row.Name, row.Stock); err != nil {
			res.Failed++
			s.sentinel.Record(ctx, "import.row_failed",
				map[string]any{"table": table, "code": row.Code, "error": err.Error()},
				"IMP-ROW-FAIL", LevelWarn, "upsert")
			continue
		}
		res.Succeeded++
	}

	return res, nil
}
