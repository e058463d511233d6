package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/epidash/internal/db"
	"github.com/sells-group/epidash/internal/model"
)

// PostgresStore implements DatasetStore using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS datasets (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	source      TEXT NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	row_count   INTEGER NOT NULL,
	rejected    INTEGER NOT NULL DEFAULT 0,
	coerced     INTEGER NOT NULL DEFAULT 0,
	first_date  DATE NOT NULL,
	last_date   DATE NOT NULL
);

CREATE TABLE IF NOT EXISTS observations (
	dataset_id      TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	obs_date        DATE NOT NULL,
	region          TEXT NOT NULL,
	seq             INTEGER NOT NULL,
	new_cases       BIGINT NOT NULL,
	new_deaths      BIGINT NOT NULL,
	total_cases     BIGINT NOT NULL,
	total_deaths    BIGINT NOT NULL,
	total_recovered BIGINT NOT NULL,
	PRIMARY KEY (dataset_id, obs_date, region)
);

CREATE INDEX IF NOT EXISTS idx_datasets_imported_at ON datasets(imported_at DESC);
`

var observationColumns = []string{
	"dataset_id", "obs_date", "region", "seq",
	"new_cases", "new_deaths", "total_cases", "total_deaths", "total_recovered",
}

// Migrate creates the schema if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// SaveDataset inserts the dataset header and COPYs its observations in one transaction.
func (s *PostgresStore) SaveDataset(ctx context.Context, meta Dataset, obs []model.Observation) (*Dataset, error) {
	if len(obs) == 0 {
		return nil, eris.New("postgres: save dataset: no observations")
	}
	ds := prepare(meta, obs, uuid.New().String(), time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO datasets (id, name, source, imported_at, row_count, rejected, coerced, first_date, last_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ds.ID, ds.Name, ds.Source, ds.ImportedAt, ds.Rows, ds.Rejected, ds.Coerced, ds.FirstDate, ds.LastDate,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert dataset")
	}

	rows := make([][]any, len(obs))
	for i, o := range obs {
		rows[i] = []any{
			ds.ID, model.Day(o.Date), o.Region, i,
			o.NewCases, o.NewDeaths, o.TotalCases, o.TotalDeaths, o.TotalRecovered,
		}
	}
	if _, err := db.CopyFrom(ctx, tx, "observations", observationColumns, rows); err != nil {
		return nil, eris.Wrap(err, "postgres: copy observations")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit")
	}
	return &ds, nil
}

// LoadDataset returns a dataset and its observations in import order.
func (s *PostgresStore) LoadDataset(ctx context.Context, id string) (*Dataset, []model.Observation, error) {
	ds, err := scanPGDataset(s.pool.QueryRow(ctx, postgresSelectDataset+` WHERE id = $1`, id))
	if err != nil {
		return nil, nil, eris.Wrapf(err, "postgres: get dataset %s", id)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT obs_date, region, new_cases, new_deaths, total_cases, total_deaths, total_recovered
		 FROM observations WHERE dataset_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "postgres: query observations %s", id)
	}
	defer rows.Close()

	obs := make([]model.Observation, 0, ds.Rows)
	for rows.Next() {
		var o model.Observation
		if err := rows.Scan(&o.Date, &o.Region, &o.NewCases, &o.NewDeaths, &o.TotalCases, &o.TotalDeaths, &o.TotalRecovered); err != nil {
			return nil, nil, eris.Wrap(err, "postgres: scan observation")
		}
		o.Date = model.Day(o.Date)
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "postgres: iterate observations")
	}
	return ds, obs, nil
}

// LatestDataset returns the most recently imported dataset.
func (s *PostgresStore) LatestDataset(ctx context.Context) (*Dataset, error) {
	ds, err := scanPGDataset(s.pool.QueryRow(ctx, postgresSelectDataset+` ORDER BY imported_at DESC LIMIT 1`))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest dataset")
	}
	return ds, nil
}

// ListDatasets returns datasets newest first. A non-positive limit means 50.
func (s *PostgresStore) ListDatasets(ctx context.Context, limit int) ([]Dataset, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, postgresSelectDataset+` ORDER BY imported_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list datasets")
	}
	defer rows.Close()

	var out []Dataset
	for rows.Next() {
		ds, err := scanPGDataset(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list datasets")
		}
		out = append(out, *ds)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate datasets")
}

const postgresSelectDataset = `SELECT id, name, source, imported_at, row_count, rejected, coerced, first_date, last_date FROM datasets`

func scanPGDataset(row pgx.Row) (*Dataset, error) {
	var ds Dataset
	err := row.Scan(&ds.ID, &ds.Name, &ds.Source, &ds.ImportedAt, &ds.Rows, &ds.Rejected, &ds.Coerced, &ds.FirstDate, &ds.LastDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan dataset")
	}
	ds.ImportedAt = ds.ImportedAt.UTC()
	return &ds, nil
}
