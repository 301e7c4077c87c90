package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	_ "modernc.org/sqlite"

	"github.com/metrowaste/zoneplanner/internal/zone"
)

// SQLiteStore implements Store using modernc.org/sqlite.
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
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS zones (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	geometry    TEXT NOT NULL,
	parent_zone TEXT,
	sub_zones   TEXT NOT NULL DEFAULT '[]',
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_zones_name ON zones(name);
CREATE INDEX IF NOT EXISTS idx_zones_parent ON zones(parent_zone);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveZone(ctx context.Context, z *zone.Zone) error {
	geomJSON, subsJSON, err := encodeZoneJSON(z)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO zones (id, name, geometry, parent_zone, sub_zones, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			geometry = excluded.geometry,
			parent_zone = excluded.parent_zone,
			sub_zones = excluded.sub_zones`,
		z.ID, z.Name, geomJSON, nullable(z.ParentZone), subsJSON, z.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save zone %s", z.Name)
}

func (s *SQLiteStore) DeleteZone(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM zones WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete zone %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrap(zone.ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) ListZones(ctx context.Context) ([]*zone.Zone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, geometry, parent_zone, sub_zones, created_at
		 FROM zones ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list zones")
	}
	defer rows.Close()

	var zones []*zone.Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, eris.Wrap(rows.Err(), "sqlite: list zones iterate")
}

func (s *SQLiteStore) ReplaceZones(ctx context.Context, zones []*zone.Zone) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM zones`); err != nil {
		return eris.Wrap(err, "sqlite: clear zones")
	}
	for _, z := range zones {
		geomJSON, subsJSON, err := encodeZoneJSON(z)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO zones (id, name, geometry, parent_zone, sub_zones, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			z.ID, z.Name, geomJSON, nullable(z.ParentZone), subsJSON, z.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert zone %s", z.Name)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace")
}

func (s *SQLiteStore) UpsertZones(ctx context.Context, zones []*zone.Zone) (int64, error) {
	var n int64
	for _, z := range zones {
		if err := s.SaveZone(ctx, z); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// helpers

func encodeZoneJSON(z *zone.Zone) (geomJSON, subsJSON string, err error) {
	g, err := geojson.Marshal(z.Geometry)
	if err != nil {
		return "", "", eris.Wrapf(err, "sqlite: marshal geometry for %s", z.Name)
	}
	subs, err := json.Marshal(z.SubZones)
	if err != nil {
		return "", "", eris.Wrapf(err, "sqlite: marshal sub zones for %s", z.Name)
	}
	return string(g), string(subs), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanZone(row scannable) (*zone.Zone, error) {
	var (
		z         zone.Zone
		geomJSON  string
		subsJSON  string
		parent    sql.NullString
		createdAt time.Time
	)

	if err := row.Scan(&z.ID, &z.Name, &geomJSON, &parent, &subsJSON, &createdAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan zone")
	}

	var g geom.T
	if err := geojson.Unmarshal([]byte(geomJSON), &g); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal geometry for %s", z.Name)
	}
	poly, ok := g.(*geom.Polygon)
	if !ok {
		return nil, eris.Errorf("sqlite: zone %s geometry is %T, want polygon", z.Name, g)
	}
	z.Geometry = poly

	if subsJSON != "" {
		if err := json.Unmarshal([]byte(subsJSON), &z.SubZones); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal sub zones for %s", z.Name)
		}
	}
	if parent.Valid {
		z.ParentZone = parent.String
	}
	z.CreatedAt = createdAt.UTC()

	return &z, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
