package core

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// SourceColumn identifies which external article-number column a
// manufacturer's catalog files carry their code in.
type SourceColumn string

const (
	ColumnArtikelNr SourceColumn = "ARTIKELNR"
	ColumnHerstNr   SourceColumn = "HERSTNR"
)

// ManufacturerProfile is immutable, configuration-derived import behavior
// for one manufacturer. Looked up by slug; the profile set is a static
// mapping, not a mutable store.
type ManufacturerProfile struct {
	Slug          string
	DisplayName   string
	SourceMatch   SourceColumn
	CodePrefix    string
	UseArticleKey bool

	// Transforms maps normalized field names (code, ean, name, stock)
	// to the rule chain applied to that field's raw cells.
	Transforms map[string]TransformRules
}

// ManufacturerRecord is the persisted manufacturer row, binding a slug to
// its backing target table.
type ManufacturerRecord struct {
	ID          int64
	Slug        string
	DisplayName string
	TargetTable string
}

// NormalizedRow is the per-chunk shape applied to a target table.
// Nullable fields use pgtype values so the database receives real NULLs.
type NormalizedRow struct {
	Code  string
	EAN   pgtype.Text
	Name  pgtype.Text
	Stock pgtype.Int4
}

// BatchResult reports the outcome of one upsert batch.
type BatchResult struct {
	Succeeded int
	Failed    int
}

// RunStatus is the import run state machine:
// queued -> running -> succeeded | failed. Terminal states are final.
type RunStatus string

const (
	StatusQueued    RunStatus = "queued"
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// ImportRun is one ingestion attempt. Mutated only by the orchestrator.
type ImportRun struct {
	ID           int64
	UploadID     int64
	Manufacturer string
	Status       RunStatus
	StartedAt    *time.Time
	FinishedAt   *time.Time
	ErrorMessage string
}

// UploadRecord is the uploaded-file row carrying the progress state the UI
// polls. Decoupled from run ids so polling survives run churn.
type UploadRecord struct {
	ID           int64
	FileRef      string
	Manufacturer string
	Percent      int
	Status       RunStatus
	UpdatedAt    time.Time
}

// RunTotals accumulates per-run row counters.
type RunTotals struct {
	Seen      int
	Succeeded int
	Failed    int
}
