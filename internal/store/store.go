// Package store persists zones. Two backends share one interface:
// SQLite for single-user local work and Postgres for shared
// deployments. Geometry travels as GeoJSON text in SQLite and as EWKB
// bytes in Postgres.
package store

import (
	"context"

	"github.com/metrowaste/zoneplanner/internal/zone"
)

// Store is the persistence boundary for the zone registry. It is a
// superset of zone.Persister so a Store can back a Registry directly.
type Store interface {
	SaveZone(ctx context.Context, z *zone.Zone) error
	DeleteZone(ctx context.Context, id string) error
	ListZones(ctx context.Context) ([]*zone.Zone, error)

	// ReplaceZones atomically swaps the full zone set, used by bulk
	// import with --replace.
	ReplaceZones(ctx context.Context, zones []*zone.Zone) error

	// UpsertZones merges a batch of zones by id, used by bulk import
	// without --replace. Returns the number of rows written.
	UpsertZones(ctx context.Context, zones []*zone.Zone) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}
