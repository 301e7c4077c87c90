package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/metrowaste/zoneplanner/internal/db"
	"github.com/metrowaste/zoneplanner/internal/zone"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"save_zone": `INSERT INTO zones (id, name, geometry, parent_zone, sub_zones, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			geometry = EXCLUDED.geometry,
			parent_zone = EXCLUDED.parent_zone,
			sub_zones = EXCLUDED.sub_zones`,
	"delete_zone": `DELETE FROM zones WHERE id = $1`,
	"list_zones":  `SELECT id, name, geometry, parent_zone, sub_zones, created_at FROM zones ORDER BY created_at, id`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
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

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS zones (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	geometry    BYTEA NOT NULL,
	parent_zone TEXT,
	sub_zones   JSONB NOT NULL DEFAULT '[]',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_zones_name ON zones(name);
CREATE INDEX IF NOT EXISTS idx_zones_parent ON zones(parent_zone);
`

var zoneColumns = []string{"id", "name", "geometry", "parent_zone", "sub_zones", "created_at"}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveZone(ctx context.Context, z *zone.Zone) error {
	row, err := zoneRow(z)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, preparedStatements["save_zone"], row...)
	return eris.Wrapf(err, "postgres: save zone %s", z.Name)
}

func (s *PostgresStore) DeleteZone(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, preparedStatements["delete_zone"], id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete zone %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrap(zone.ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) ListZones(ctx context.Context) ([]*zone.Zone, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["list_zones"])
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list zones")
	}
	defer rows.Close()

	var zones []*zone.Zone
	for rows.Next() {
		z, err := scanZoneRow(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, eris.Wrap(rows.Err(), "postgres: list zones iterate")
}

func (s *PostgresStore) ReplaceZones(ctx context.Context, zones []*zone.Zone) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `TRUNCATE zones`); err != nil {
		return eris.Wrap(err, "postgres: truncate zones")
	}

	rows := make([][]any, 0, len(zones))
	for _, z := range zones {
		row, err := zoneRow(z)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"zones"}, zoneColumns, pgx.CopyFromRows(rows)); err != nil {
			return eris.Wrap(err, "postgres: copy zones")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace")
}

func (s *PostgresStore) UpsertZones(ctx context.Context, zones []*zone.Zone) (int64, error) {
	rows := make([][]any, 0, len(zones))
	for _, z := range zones {
		row, err := zoneRow(z)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "zones",
		Columns:      zoneColumns,
		ConflictKeys: []string{"id"},
	}, rows)
}

// helpers

func zoneRow(z *zone.Zone) ([]any, error) {
	g, err := ewkb.Marshal(z.Geometry, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: encode geometry for %s", z.Name)
	}
	subs, err := json.Marshal(z.SubZones)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: marshal sub zones for %s", z.Name)
	}

	var parent any
	if z.ParentZone != "" {
		parent = z.ParentZone
	}
	return []any{z.ID, z.Name, g, parent, subs, z.CreatedAt.UTC()}, nil
}

func scanZoneRow(rows pgx.Rows) (*zone.Zone, error) {
	var (
		z        zone.Zone
		geomWKB  []byte
		subsJSON []byte
		parent   *string
	)

	if err := rows.Scan(&z.ID, &z.Name, &geomWKB, &parent, &subsJSON, &z.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "postgres: scan zone")
	}

	g, err := ewkb.Unmarshal(geomWKB)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: decode geometry for %s", z.Name)
	}
	poly, ok := g.(*geom.Polygon)
	if !ok {
		return nil, eris.Errorf("postgres: zone %s geometry is %T, want polygon", z.Name, g)
	}
	z.Geometry = poly

	if len(subsJSON) > 0 {
		if err := json.Unmarshal(subsJSON, &z.SubZones); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal sub zones for %s", z.Name)
		}
	}
	if parent != nil {
		z.ParentZone = *parent
	}
	z.CreatedAt = z.CreatedAt.UTC()

	return &z, nil
}
