package core

// registry.go resolves manufacturer names to import profiles and
// guarantees each manufacturer's backing table exists.
//
// Target table identifiers come solely from the naming algorithm below and
// are whitelist-validated before they ever reach a DDL statement; they are
// never taken from request input or row data.

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hbm-systems/catalog-import/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	tablePrefix  = "catalog_"
	fallbackSlug = "unnamed"
)

// identPattern is the strict whitelist for table identifiers.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// profiles is the static manufacturer profile registry. Import behavior is
// configuration, not data: adding a manufacturer means adding an entry here.
var profiles = map[string]ManufacturerProfile{
	"lindy": {
		Slug:          "lindy",
		DisplayName:   "Lindy",
		SourceMatch:   ColumnArtikelNr,
		CodePrefix:    "LINDY-",
		UseArticleKey: true,
		Transforms: map[string]TransformRules{
			"code": {Trim: true, Upper: true},
			"ean":  {Trim: true},
		},
	},
	"lindy_inc": {
		Slug:          "lindy_inc",
		DisplayName:   "Lindy Inc.",
		SourceMatch:   ColumnArtikelNr,
		CodePrefix:    "LINDY-",
		UseArticleKey: true,
		Transforms: map[string]TransformRules{
			"code": {Trim: true, Upper: true},
			"ean":  {Trim: true},
		},
	},
	"assmann": {
		Slug:        "assmann",
		DisplayName: "Assmann",
		SourceMatch: ColumnHerstNr,
		Transforms: map[string]TransformRules{
			"code": {Trim: true},
		},
	},
	"wentronic": {
		Slug:          "wentronic",
		DisplayName:   "Wentronic",
		SourceMatch:   ColumnArtikelNr,
		CodePrefix:    "WE-",
		UseArticleKey: true,
		Transforms: map[string]TransformRules{
			"code": {Trim: true},
			"name": {Trim: true},
		},
	},
	"hama": {
		Slug:        "hama",
		DisplayName: "Hama",
		SourceMatch: ColumnHerstNr,
		Transforms: map[string]TransformRules{
			"code": {Trim: true, Upper: true},
		},
	},
}

// ProfileBySlug returns the import profile for a slug.
// Returns ErrUnknownManufacturer for slugs outside the registry.
func ProfileBySlug(slug string) (ManufacturerProfile, error) {
	p, ok := profiles[slug]
	if !ok {
		return ManufacturerProfile{}, fmt.Errorf("%w: %q", ErrUnknownManufacturer, slug)
	}
	return p, nil
}

// Slugify folds a manufacturer name to its slug: lowercase, runs of
// non-alphanumerics collapsed to a single underscore, trimmed. An empty
// result falls back to a fixed placeholder.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugSeparators.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return fallbackSlug
	}
	return s
}

// tableNameFor computes the candidate table identifier for a slug:
// fixed prefix plus the slug, sanitized to identifier-safe characters.
func tableNameFor(slug string) string {
	var b strings.Builder
	b.WriteString(tablePrefix)
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == tablePrefix {
		name += fallbackSlug
	}
	return name
}

// EnsureManufacturer resolves a manufacturer name or slug to its persisted
// record, creating record and backing table on first use. Concurrent
// creation races resolve by re-reading the winner's record. Calling this
// is always a prerequisite to importing.
func (s *Service) EnsureManufacturer(ctx context.Context, db database.DBTX, nameOrSlug string) (ManufacturerRecord, error) {
	slug := Slugify(nameOrSlug)

	rec, err := s.getManufacturer(ctx, db, slug)
	if err == nil {
		return rec, s.ensureTargetTable(ctx, db, rec.TargetTable)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return ManufacturerRecord{}, &PersistenceError{Op: "lookup manufacturer", Err: err}
	}

	displayName := nameOrSlug
	if p, perr := ProfileBySlug(slug); perr == nil {
		displayName = p.DisplayName
	}

	table, err := s.freeTableName(ctx, db, tableNameFor(slug))
	if err != nil {
		return ManufacturerRecord{}, err
	}

	err = db.QueryRow(ctx,
		`INSERT INTO manufacturers (slug, display_name, target_table)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		slug, displayName, table,
	).Scan(&rec.ID)
	if err != nil {
		// A racing creator may have won; re-read instead of failing
		if isUniqueViolation(err) {
			rec, err = s.getManufacturer(ctx, db, slug)
			if err != nil {
				return ManufacturerRecord{}, &PersistenceError{Op: "re-read manufacturer after race", Err: err}
			}
			return rec, s.ensureTargetTable(ctx, db, rec.TargetTable)
		}
		return ManufacturerRecord{}, &PersistenceError{Op: "insert manufacturer", Err: err}
	}

	rec.Slug = slug
	rec.DisplayName = displayName
	rec.TargetTable = table

	return rec, s.ensureTargetTable(ctx, db, rec.TargetTable)
}

func (s *Service) getManufacturer(ctx context.Context, db database.DBTX, slug string) (ManufacturerRecord, error) {
	var rec ManufacturerRecord
	err := db.QueryRow(ctx,
		`SELECT id, slug, display_name, target_table FROM manufacturers WHERE slug = $1`,
		slug,
	).Scan(&rec.ID, &rec.Slug, &rec.DisplayName, &rec.TargetTable)
	return rec, err
}

// freeTableName resolves naming collisions by appending an incrementing
// numeric suffix until a name unused by both the catalog and the record
// table is found.
func (s *Service) freeTableName(ctx context.Context, db database.DBTX, base string) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		used, err := s.tableNameUsed(ctx, db, candidate)
		if err != nil {
			return "", &PersistenceError{Op: "probe table name", Err: err}
		}
		if !used {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, n)
	}
}

func (s *Service) tableNameUsed(ctx context.Context, db database.DBTX, name string) (bool, error) {
	var used bool
	err := db.QueryRow(ctx,
		`SELECT to_regclass($1) IS NOT NULL
		    OR EXISTS (SELECT 1 FROM manufacturers WHERE target_table = $1)`,
		name,
	).Scan(&used)
	return used, err
}

// ensureTargetTable issues an idempotent create for the target table, then
// best-effort applies additive migrations for tables predating the current
// shape. Each migration is independently fire-and-forget.
func (s *Service) ensureTargetTable(ctx context.Context, db database.DBTX, table string) error {
	if !identPattern.MatchString(table) {
		return &PersistenceError{Op: "ensure target table", Err: fmt.Errorf("identifier %q fails whitelist", table)}
	}

	_, err := db.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			id         bigserial PRIMARY KEY,
			code       varchar(64) NOT NULL UNIQUE,
			ean        varchar(32),
			name       text,
			stock      integer,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`, table))
	if err != nil {
		return &PersistenceError{Op: "create target table", Err: err}
	}

	// Additive-only migrations for pre-existing tables; failures
	// (column already exists, etc.) are swallowed.
	_, _ = db.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN stock integer`, table))
	_, _ = db.Exec(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_ean_idx ON %s (ean)`, table, table))

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
