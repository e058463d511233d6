// Package store persists imported datasets so the dashboard can start
// without re-reading the original source.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/epidash/internal/model"
)

// ErrNotFound is returned when a dataset does not exist.
var ErrNotFound = eris.New("store: dataset not found")

// Dataset describes one imported snapshot of the source.
type Dataset struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Source     string    `json:"source"`
	ImportedAt time.Time `json:"imported_at"`
	Rows       int       `json:"rows"`
	Rejected   int       `json:"rejected"`
	Coerced    int       `json:"coerced"`
	FirstDate  time.Time `json:"first_date"`
	LastDate   time.Time `json:"last_date"`
}

// DatasetStore is implemented by the SQLite and Postgres backends.
type DatasetStore interface {
	Migrate(ctx context.Context) error
	SaveDataset(ctx context.Context, meta Dataset, obs []model.Observation) (*Dataset, error)
	LoadDataset(ctx context.Context, id string) (*Dataset, []model.Observation, error)
	LatestDataset(ctx context.Context) (*Dataset, error)
	ListDatasets(ctx context.Context, limit int) ([]Dataset, error)
	Close() error
}

// Open connects to the backend named by driver.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (DatasetStore, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite":
		return NewSQLite(dsn)
	case "postgres", "postgresql", "pgx":
		return NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
}

// prepare fills the derived fields of meta from obs.
func prepare(meta Dataset, obs []model.Observation, id string, now time.Time) Dataset {
	meta.ID = id
	meta.ImportedAt = now.UTC().Truncate(time.Second)
	meta.Rows = len(obs)
	meta.FirstDate, meta.LastDate = time.Time{}, time.Time{}
	for _, o := range obs {
		d := model.Day(o.Date)
		if meta.FirstDate.IsZero() || d.Before(meta.FirstDate) {
			meta.FirstDate = d
		}
		if d.After(meta.LastDate) {
			meta.LastDate = d
		}
	}
	if meta.Name == "" {
		meta.Name = meta.ImportedAt.Format(time.RFC3339)
	}
	return meta
}
