package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/epidash/internal/model"
)

// SQLiteStore implements DatasetStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS datasets (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	source      TEXT NOT NULL,
	imported_at TEXT NOT NULL,
	row_count   INTEGER NOT NULL,
	rejected    INTEGER NOT NULL DEFAULT 0,
	coerced     INTEGER NOT NULL DEFAULT 0,
	first_date  TEXT NOT NULL,
	last_date   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS observations (
	dataset_id      TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	obs_date        TEXT NOT NULL,
	region          TEXT NOT NULL,
	new_cases       INTEGER NOT NULL,
	new_deaths      INTEGER NOT NULL,
	total_cases     INTEGER NOT NULL,
	total_deaths    INTEGER NOT NULL,
	total_recovered INTEGER NOT NULL,
	PRIMARY KEY (dataset_id, obs_date, region)
);

CREATE INDEX IF NOT EXISTS idx_datasets_imported_at ON datasets(imported_at);
`

// Migrate creates the schema if needed.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveDataset writes the dataset header and every observation in one transaction.
func (s *SQLiteStore) SaveDataset(ctx context.Context, meta Dataset, obs []model.Observation) (*Dataset, error) {
	if len(obs) == 0 {
		return nil, eris.New("sqlite: save dataset: no observations")
	}
	ds := prepare(meta, obs, uuid.New().String(), time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO datasets (id, name, source, imported_at, row_count, rejected, coerced, first_date, last_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ds.ID, ds.Name, ds.Source, ds.ImportedAt.Format(time.RFC3339), ds.Rows, ds.Rejected, ds.Coerced,
		ds.FirstDate.Format(model.DateLayout), ds.LastDate.Format(model.DateLayout),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert dataset")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO observations (dataset_id, obs_date, region, new_cases, new_deaths, total_cases, total_deaths, total_recovered)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare observation insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx,
			ds.ID, o.Date.Format(model.DateLayout), o.Region,
			o.NewCases, o.NewDeaths, o.TotalCases, o.TotalDeaths, o.TotalRecovered,
		); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert observation %s/%s", o.Region, o.Date.Format(model.DateLayout))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit")
	}
	return &ds, nil
}

// LoadDataset returns a dataset and its observations ordered by date then region.
func (s *SQLiteStore) LoadDataset(ctx context.Context, id string) (*Dataset, []model.Observation, error) {
	ds, err := scanDataset(s.db.QueryRowContext(ctx, sqliteSelectDataset+` WHERE id = ?`, id))
	if err != nil {
		return nil, nil, eris.Wrapf(err, "sqlite: get dataset %s", id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT obs_date, region, new_cases, new_deaths, total_cases, total_deaths, total_recovered
		 FROM observations WHERE dataset_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "sqlite: query observations %s", id)
	}
	defer rows.Close() //nolint:errcheck

	obs := make([]model.Observation, 0, ds.Rows)
	for rows.Next() {
		var o model.Observation
		var date string
		if err := rows.Scan(&date, &o.Region, &o.NewCases, &o.NewDeaths, &o.TotalCases, &o.TotalDeaths, &o.TotalRecovered); err != nil {
			return nil, nil, eris.Wrap(err, "sqlite: scan observation")
		}
		if o.Date, err = time.Parse(model.DateLayout, date); err != nil {
			return nil, nil, eris.Wrapf(err, "sqlite: parse date %q", date)
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: iterate observations")
	}
	return ds, obs, nil
}

// LatestDataset returns the most recently imported dataset.
func (s *SQLiteStore) LatestDataset(ctx context.Context) (*Dataset, error) {
	ds, err := scanDataset(s.db.QueryRowContext(ctx, sqliteSelectDataset+` ORDER BY imported_at DESC, rowid DESC LIMIT 1`))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest dataset")
	}
	return ds, nil
}

// ListDatasets returns datasets newest first. A non-positive limit means 50.
func (s *SQLiteStore) ListDatasets(ctx context.Context, limit int) ([]Dataset, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelectDataset+` ORDER BY imported_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list datasets")
	}
	defer rows.Close() //nolint:errcheck

	var out []Dataset
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: list datasets")
		}
		out = append(out, *ds)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate datasets")
}

const sqliteSelectDataset = `SELECT id, name, source, imported_at, row_count, rejected, coerced, first_date, last_date FROM datasets`

type scannable interface {
	Scan(dest ...any) error
}

func scanDataset(row scannable) (*Dataset, error) {
	var ds Dataset
	var importedAt, first, last string
	err := row.Scan(&ds.ID, &ds.Name, &ds.Source, &importedAt, &ds.Rows, &ds.Rejected, &ds.Coerced, &first, &last)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan dataset")
	}
	if ds.ImportedAt, err = time.Parse(time.RFC3339, importedAt); err != nil {
		return nil, eris.Wrap(err, "parse imported_at")
	}
	if ds.FirstDate, err = time.Parse(model.DateLayout, first); err != nil {
		return nil, eris.Wrap(err, "parse first_date")
	}
	if ds.LastDate, err = time.Parse(model.DateLayout, last); err != nil {
		return nil, eris.Wrap(err, "parse last_date")
	}
	return &ds, nil
}
