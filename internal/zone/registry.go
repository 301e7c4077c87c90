package zone

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/metrowaste/zoneplanner/internal/geo"
)

// Persister is the optional write-through storage boundary behind the
// registry. The registry's invariants hold regardless of backing store;
// persistence failures are surfaced but never corrupt in-memory state.
type Persister interface {
	SaveZone(ctx context.Context, z *Zone) error
	DeleteZone(ctx context.Context, id string) error
}

// Registry is the in-memory store of zones, keyed by unique name.
// Reads are safe for concurrent use; writes are serialized so that a
// rename touches all cross-references atomically.
type Registry struct {
	mu        sync.RWMutex
	zones     map[string]*Zone
	order     []string // insertion order of zone names
	persister Persister
}

// NewRegistry creates an empty registry. persister may be nil for a
// purely in-memory registry.
func NewRegistry(persister Persister) *Registry {
	return &Registry{
		zones:     make(map[string]*Zone),
		persister: persister,
	}
}

// Load replaces the registry contents with zones from storage, ordered
// by creation time. Parent/child references are taken as stored.
func (r *Registry) Load(zones []*Zone) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.zones = make(map[string]*Zone, len(zones))
	r.order = r.order[:0]

	sorted := append([]*Zone(nil), zones...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })
	for _, z := range sorted {
		r.zones[z.Name] = z.Clone()
		r.order = append(r.order, z.Name)
	}
}

// Create adds a new zone. Fails with ErrDuplicateName if the name is
// taken, geo.ErrInvalidGeometry if the ring is degenerate, and
// ErrNotFound if parentName names a zone that does not exist.
func (r *Registry) Create(ctx context.Context, name string, ring [][2]float64, parentName string) (*Zone, error) {
	poly, err := geo.NewPolygon(ring)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.zones[name]; ok {
		return nil, eris.Wrap(ErrDuplicateName, name)
	}

	var parent *Zone
	if parentName != "" {
		parent = r.zones[parentName]
		if parent == nil {
			return nil, eris.Wrapf(ErrNotFound, "parent %s", parentName)
		}
	}

	z := &Zone{
		ID:         uuid.NewString(),
		Name:       name,
		Geometry:   poly,
		ParentZone: parentName,
		CreatedAt:  time.Now().UTC(),
	}
	r.zones[name] = z
	r.order = append(r.order, name)
	if parent != nil {
		parent.SubZones = append(parent.SubZones, name)
	}

	if err := r.persist(ctx, z, parent); err != nil {
		return nil, err
	}

	zap.L().Info("zone: created",
		zap.String("name", name),
		zap.String("parent", parentName),
	)
	return z.Clone(), nil
}

// Rename changes a zone's name and cascades the update to its parent's
// sub-zone list and its children's parent references in one critical
// section, so no caller ever observes a stale name.
func (r *Registry) Rename(ctx context.Context, oldName, newName string) error {
	if oldName == newName {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	z, ok := r.zones[oldName]
	if !ok {
		return eris.Wrap(ErrNotFound, oldName)
	}
	if _, taken := r.zones[newName]; taken {
		return eris.Wrap(ErrDuplicateName, newName)
	}

	delete(r.zones, oldName)
	z.Name = newName
	r.zones[newName] = z

	for i, n := range r.order {
		if n == oldName {
			r.order[i] = newName
			break
		}
	}

	touched := []*Zone{z}

	if z.ParentZone != "" {
		if parent := r.zones[z.ParentZone]; parent != nil {
			for i, n := range parent.SubZones {
				if n == oldName {
					parent.SubZones[i] = newName
					break
				}
			}
			touched = append(touched, parent)
		}
	}

	for _, childName := range z.SubZones {
		if child := r.zones[childName]; child != nil {
			child.ParentZone = newName
			touched = append(touched, child)
		}
	}

	if err := r.persist(ctx, touched...); err != nil {
		return err
	}

	zap.L().Info("zone: renamed", zap.String("from", oldName), zap.String("to", newName))
	return nil
}

// Delete removes a zone. Fails with ErrHasChildren while sub-zones
// exist; the parent's sub-zone list is updated on success.
func (r *Registry) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	z, ok := r.zones[name]
	if !ok {
		return eris.Wrap(ErrNotFound, name)
	}
	if len(z.SubZones) > 0 {
		return eris.Wrapf(ErrHasChildren, "%s has %d sub-zones", name, len(z.SubZones))
	}

	delete(r.zones, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	var parent *Zone
	if z.ParentZone != "" {
		if parent = r.zones[z.ParentZone]; parent != nil {
			for i, n := range parent.SubZones {
				if n == name {
					parent.SubZones = append(parent.SubZones[:i], parent.SubZones[i+1:]...)
					break
				}
			}
		}
	}

	if r.persister != nil {
		if err := r.persister.DeleteZone(ctx, z.ID); err != nil {
			return eris.Wrapf(err, "zone: delete %s from store", name)
		}
		if parent != nil {
			if err := r.persister.SaveZone(ctx, parent); err != nil {
				return eris.Wrapf(err, "zone: save parent %s", parent.Name)
			}
		}
	}

	zap.L().Info("zone: deleted", zap.String("name", name))
	return nil
}

// SetGeometry replaces a zone's boundary, re-validating the ring as in
// Create. Used by interactive boundary editing.
func (r *Registry) SetGeometry(ctx context.Context, name string, ring [][2]float64) error {
	poly, err := geo.NewPolygon(ring)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	z, ok := r.zones[name]
	if !ok {
		return eris.Wrap(ErrNotFound, name)
	}
	z.Geometry = poly

	return r.persist(ctx, z)
}

// Get returns a copy of the named zone, or nil if absent.
func (r *Registry) Get(name string) *Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.zones[name].Clone()
}

// List returns zone names in insertion order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Zones returns copies of all zones in insertion order.
func (r *Registry) Zones() []*Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Zone, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.zones[name].Clone())
	}
	return out
}

// Len returns the number of zones.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.zones)
}

func (r *Registry) persist(ctx context.Context, zones ...*Zone) error {
	if r.persister == nil {
		return nil
	}
	for _, z := range zones {
		if z == nil {
			continue
		}
		if err := r.persister.SaveZone(ctx, z); err != nil {
			return eris.Wrapf(err, "zone: save %s", z.Name)
		}
	}
	return nil
}
