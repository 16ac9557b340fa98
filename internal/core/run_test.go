package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

// ----------------------------------------------------------------------------
// mapColumns Tests
// ----------------------------------------------------------------------------

func TestMapColumns(t *testing.T) {
	profile := ManufacturerProfile{SourceMatch: ColumnArtikelNr}

	cols, err := mapColumns([]string{"Artikelnr", "EAN", "Bezeichnung", "Bestand"}, profile)
	if err != nil {
		t.Fatalf("mapColumns: %v", err)
	}
	if cols.code != 0 || cols.ean != 1 || cols.name != 2 || cols.stock != 3 {
		t.Errorf("cols = %+v", cols)
	}
}

func TestMapColumns_OptionalFieldsAbsent(t *testing.T) {
	profile := ManufacturerProfile{SourceMatch: ColumnHerstNr}

	cols, err := mapColumns([]string{"HERSTNR"}, profile)
	if err != nil {
		t.Fatalf("mapColumns: %v", err)
	}
	if cols.code != 0 {
		t.Errorf("code position = %d, want 0", cols.code)
	}
	if cols.ean != -1 || cols.name != -1 || cols.stock != -1 {
		t.Errorf("optional positions = %+v, want all -1", cols)
	}
}

func TestMapColumns_MissingMatchColumn(t *testing.T) {
	profile := ManufacturerProfile{SourceMatch: ColumnArtikelNr}

	if _, err := mapColumns([]string{"EAN", "Name"}, profile); err == nil {
		t.Fatal("expected error for missing match column")
	}
}

// ----------------------------------------------------------------------------
// normalizeRow Tests
// ----------------------------------------------------------------------------

func TestNormalizeRow(t *testing.T) {
	profile := ManufacturerProfile{
		SourceMatch: ColumnArtikelNr,
		Transforms: map[string]TransformRules{
			"code": {Trim: true, Upper: true},
			"ean":  {Trim: true},
		},
	}
	cols := columnMap{code: 0, ean: 1, name: 2, stock: 3}

	got := normalizeRow([]string{" ly-1 ", `="4002888000001"`, "Kabel 2m", "1,024"}, cols, profile)

	if got.Code != "LY-1" {
		t.Errorf("Code = %q, want LY-1", got.Code)
	}
	if !got.EAN.Valid || got.EAN.String != "4002888000001" {
		t.Errorf("EAN = %+v", got.EAN)
	}
	if !got.Name.Valid || got.Name.String != "Kabel 2m" {
		t.Errorf("Name = %+v", got.Name)
	}
	if !got.Stock.Valid || got.Stock.Int32 != 1024 {
		t.Errorf("Stock = %+v", got.Stock)
	}
}

func TestNormalizeRow_ShortRowAndAbsentColumns(t *testing.T) {
	profile := ManufacturerProfile{SourceMatch: ColumnArtikelNr}
	cols := columnMap{code: 0, ean: 5, name: -1, stock: -1}

	got := normalizeRow([]string{"LY-9"}, cols, profile)

	if got.Code != "LY-9" {
		t.Errorf("Code = %q", got.Code)
	}
	if got.EAN.Valid || got.Name.Valid || got.Stock.Valid {
		t.Errorf("absent fields must be NULL: %+v", got)
	}
}

// ----------------------------------------------------------------------------
// streamChunks Tests
// ----------------------------------------------------------------------------

func TestStreamChunks(t *testing.T) {
	path := writeTempFile(t, "catalog.csv",
		"ARTIKELNR,EAN\n"+
			"a-1,111\na-2,222\na-3,333\na-4,444\na-5,555\na-6,666\na-7,777\n")

	src, err := OpenRowSource(path, 0)
	if err != nil {
		t.Fatalf("OpenRowSource: %v", err)
	}
	defer src.Close()

	db := &fakeDB{}
	svc := newTestService(t, db) // batch size 3, progress every 5
	profile := ManufacturerProfile{
		SourceMatch: ColumnArtikelNr,
		Transforms:  map[string]TransformRules{"code": {Upper: true}},
	}
	up := UploadRecord{ID: 42, FileRef: path}

	totals, err := svc.streamChunks(context.Background(), up, profile, "catalog_test", db, src)
	if err != nil {
		t.Fatalf("streamChunks: %v", err)
	}
	if totals.Seen != 7 || totals.Succeeded != 7 || totals.Failed != 0 {
		t.Errorf("totals = %+v, want 7 seen, 7 succeeded", totals)
	}

	// 7 row upserts plus one throttled progress write after row 6.
	var upserts, progress int
	for _, sql := range db.execSQL {
		switch {
		case strings.Contains(sql, "INSERT INTO catalog_test"):
			upserts++
		case strings.Contains(sql, "UPDATE catalog_uploads"):
			progress++
		}
	}
	if upserts != 7 {
		t.Errorf("upserts = %d, want 7", upserts)
	}
	if progress != 1 {
		t.Errorf("progress writes = %d, want exactly 1", progress)
	}

	// Transforms must have run: codes arrive uppercased.
	if db.execArgs[0][0] != "A-1" {
		t.Errorf("first code = %v, want A-1", db.execArgs[0][0])
	}
}

func TestStreamChunks_MissingMatchColumn(t *testing.T) {
	path := writeTempFile(t, "catalog.csv", "EAN,Name\n111,Kabel\n")

	src, err := OpenRowSource(path, 0)
	if err != nil {
		t.Fatalf("OpenRowSource: %v", err)
	}
	defer src.Close()

	db := &fakeDB{}
	svc := newTestService(t, db)
	profile := ManufacturerProfile{SourceMatch: ColumnArtikelNr}

	_, err = svc.streamChunks(context.Background(), UploadRecord{ID: 1, FileRef: path}, profile, "catalog_test", db, src)
	if err == nil {
		t.Fatal("expected error for missing match column")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Errorf("error = %T, want *ParseError", err)
	}
	if len(db.execSQL) != 0 {
		t.Error("statements issued despite unusable header")
	}
}

// ----------------------------------------------------------------------------
// Run state transition Tests
// ----------------------------------------------------------------------------

func TestClaimRun(t *testing.T) {
	db := &fakeDB{}
	svc := newTestService(t, db)

	if err := svc.claimRun(context.Background(), 5); err != nil {
		t.Fatalf("claimRun: %v", err)
	}
	if !db.containsSQL("status = $3") {
		t.Error("claim must be conditional on the queued status")
	}
}

func TestClaimRun_AlreadyClaimed(t *testing.T) {
	db := &fakeDB{execTag: "UPDATE 0"}
	svc := newTestService(t, db)

	if err := svc.claimRun(context.Background(), 5); err == nil {
		t.Fatal("expected error when no queued run matched")
	}
}

func TestWriteProgress_Clamps(t *testing.T) {
	db := &fakeDB{}
	svc := newTestService(t, db)

	if err := svc.writeProgress(context.Background(), 1, 150, StatusRunning); err != nil {
		t.Fatalf("writeProgress: %v", err)
	}
	if got := db.execArgs[0][1]; got != 100 {
		t.Errorf("percent arg = %v, want clamped 100", got)
	}

	if err := svc.writeProgress(context.Background(), 1, -5, StatusRunning); err != nil {
		t.Fatalf("writeProgress: %v", err)
	}
	if got := db.execArgs[1][1]; got != 0 {
		t.Errorf("percent arg = %v, want clamped 0", got)
	}
}

func TestTruncateMessage(t *testing.T) {
	if got := truncateMessage("  short  "); got != "short" {
		t.Errorf("truncateMessage = %q", got)
	}
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	if got := truncateMessage(string(long)); len(got) != 1000 {
		t.Errorf("len = %d, want 1000", len(got))
	}
}

// ----------------------------------------------------------------------------
// Failure finalization Tests
// ----------------------------------------------------------------------------

func TestFinalizeFailure(t *testing.T) {
	db := &fakeDB{}
	svc := newTestService(t, db)
	cause := fmt.Errorf("%w: import:catalog_lindy", ErrLockTimeout)

	err := svc.finalizeFailure(context.Background(), slog.Default(), 5, 42, cause)
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("finalizeFailure must hand the cause back, got %v", err)
	}

	if len(db.execSQL) != 2 {
		t.Fatalf("statements = %v, want run update and progress update", db.execSQL)
	}

	// Run row: failed, finish stamped, cause persisted.
	if !strings.Contains(db.execSQL[0], "UPDATE import_runs") {
		t.Errorf("statement 0 = %q", db.execSQL[0])
	}
	runArgs := db.execArgs[0]
	if runArgs[0] != int64(5) || runArgs[1] != "failed" {
		t.Errorf("run args = %v", runArgs)
	}
	if msg, _ := runArgs[2].(string); !strings.Contains(msg, "table lock not acquired") {
		t.Errorf("error_message = %v", runArgs[2])
	}

	// Progress record: status forced so polling clients see the failure.
	if !strings.Contains(db.execSQL[1], "UPDATE catalog_uploads") {
		t.Errorf("statement 1 = %q", db.execSQL[1])
	}
	upArgs := db.execArgs[1]
	if upArgs[0] != int64(42) || upArgs[1] != "failed" {
		t.Errorf("progress args = %v", upArgs)
	}
}

func TestFinalizeFailure_TruncatesLongCause(t *testing.T) {
	db := &fakeDB{}
	svc := newTestService(t, db)
	cause := errors.New(strings.Repeat("x", 5000))

	if err := svc.finalizeFailure(context.Background(), slog.Default(), 1, 2, cause); err != cause {
		t.Fatalf("returned error = %v", err)
	}
	if msg, _ := db.execArgs[0][2].(string); len(msg) != 1000 {
		t.Errorf("persisted message length = %d, want 1000", len(msg))
	}
}

func TestFinalizeFailure_BookkeepingErrorsSwallowed(t *testing.T) {
	db := &fakeDB{
		execErr: func(string, []any) error { return errors.New("connection lost") },
	}
	svc := newTestService(t, db)
	cause := errors.New("parse failed")

	// Finalization is best-effort: the original cause comes back even when
	// the run and progress updates themselves fail.
	if err := svc.finalizeFailure(context.Background(), slog.Default(), 1, 2, cause); err != cause {
		t.Errorf("returned error = %v, want original cause", err)
	}
}
