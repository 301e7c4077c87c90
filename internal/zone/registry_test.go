package zone

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrowaste/zoneplanner/internal/geo"
)

var testRing = [][2]float64{{36.8, -1.3}, {36.81, -1.3}, {36.81, -1.29}, {36.8, -1.29}}

func TestCreate_RoundTrip(t *testing.T) {
	r := NewRegistry(nil)

	z, err := r.Create(context.Background(), "industrial-east", testRing, "")
	require.NoError(t, err)
	assert.NotEmpty(t, z.ID)
	assert.False(t, z.CreatedAt.IsZero())

	got := r.Get("industrial-east")
	require.NotNil(t, got)
	assert.Equal(t, geo.RingCoords(z.Geometry), geo.RingCoords(got.Geometry))
}

func TestCreate_DuplicateName(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Create(context.Background(), "a", testRing, "")
	require.NoError(t, err)

	_, err = r.Create(context.Background(), "a", testRing, "")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrDuplicateName))
}

func TestCreate_InvalidGeometry(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Create(context.Background(), "bad", [][2]float64{{0, 0}, {1, 1}}, "")
	require.Error(t, err)
	assert.True(t, eris.Is(err, geo.ErrInvalidGeometry))
	assert.Nil(t, r.Get("bad"))
}

func TestCreate_MissingParent(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Create(context.Background(), "child", testRing, "nope")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestCreate_ParentChildLink(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Create(context.Background(), "parent", testRing, "")
	require.NoError(t, err)
	_, err = r.Create(context.Background(), "child", testRing, "parent")
	require.NoError(t, err)

	assert.Equal(t, []string{"child"}, r.Get("parent").SubZones)
	assert.Equal(t, "parent", r.Get("child").ParentZone)
}

func TestRename_CascadesAndRoundTrips(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	_, err := r.Create(ctx, "parent", testRing, "")
	require.NoError(t, err)
	_, err = r.Create(ctx, "mid", testRing, "parent")
	require.NoError(t, err)
	_, err = r.Create(ctx, "leaf", testRing, "mid")
	require.NoError(t, err)

	snapshot := func() map[string][2]string {
		out := make(map[string][2]string)
		for _, n := range r.List() {
			z := r.Get(n)
			children := ""
			for _, c := range z.SubZones {
				children += c + ","
			}
			out[n] = [2]string{z.ParentZone, children}
		}
		return out
	}
	before := snapshot()

	require.NoError(t, r.Rename(ctx, "mid", "central"))
	assert.Nil(t, r.Get("mid"))
	assert.Equal(t, []string{"central"}, r.Get("parent").SubZones)
	assert.Equal(t, "central", r.Get("leaf").ParentZone)
	assert.Equal(t, []string{"parent", "central", "leaf"}, r.List())

	// Rename back restores the original state exactly.
	require.NoError(t, r.Rename(ctx, "central", "mid"))
	assert.Equal(t, before, snapshot())
}

func TestRename_Errors(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	_, err := r.Create(ctx, "a", testRing, "")
	require.NoError(t, err)
	_, err = r.Create(ctx, "b", testRing, "")
	require.NoError(t, err)

	err = r.Rename(ctx, "missing", "x")
	assert.True(t, eris.Is(err, ErrNotFound))

	err = r.Rename(ctx, "a", "b")
	assert.True(t, eris.Is(err, ErrDuplicateName))

	// Renaming to itself is a no-op.
	assert.NoError(t, r.Rename(ctx, "a", "a"))
}

func TestDelete_HasChildren(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	_, err := r.Create(ctx, "parent", testRing, "")
	require.NoError(t, err)
	_, err = r.Create(ctx, "child", testRing, "parent")
	require.NoError(t, err)

	err = r.Delete(ctx, "parent")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrHasChildren))

	// After the child is gone, deletion succeeds.
	require.NoError(t, r.Delete(ctx, "child"))
	require.NoError(t, r.Delete(ctx, "parent"))
	assert.Zero(t, r.Len())
}

func TestDelete_UpdatesParentList(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	_, err := r.Create(ctx, "parent", testRing, "")
	require.NoError(t, err)
	_, err = r.Create(ctx, "c1", testRing, "parent")
	require.NoError(t, err)
	_, err = r.Create(ctx, "c2", testRing, "parent")
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, "c1"))
	assert.Equal(t, []string{"c2"}, r.Get("parent").SubZones)
}

func TestSetGeometry_Revalidates(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	_, err := r.Create(ctx, "a", testRing, "")
	require.NoError(t, err)

	err = r.SetGeometry(ctx, "a", [][2]float64{{0, 0}})
	assert.True(t, eris.Is(err, geo.ErrInvalidGeometry))

	bigger := [][2]float64{{36.8, -1.3}, {36.82, -1.3}, {36.82, -1.28}, {36.8, -1.28}}
	require.NoError(t, r.SetGeometry(ctx, "a", bigger))
	assert.Len(t, geo.RingCoords(r.Get("a").Geometry), 5)
}

func TestList_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	for _, n := range []string{"b", "a", "c"} {
		_, err := r.Create(ctx, n, testRing, "")
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"b", "a", "c"}, r.List())
}

func TestGet_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	_, err := r.Create(ctx, "a", testRing, "")
	require.NoError(t, err)

	got := r.Get("a")
	got.Name = "mutated"
	got.SubZones = append(got.SubZones, "x")

	assert.Equal(t, "a", r.Get("a").Name)
	assert.Empty(t, r.Get("a").SubZones)
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	_, err := r.Create(ctx, "base", testRing, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = r.Get("base")
				_ = r.List()
			}
		}()
	}
	for i := 0; i < 50; i++ {
		require.NoError(t, r.SetGeometry(ctx, "base", testRing))
	}
	wg.Wait()
}

// failingPersister fails every save to verify errors surface.
type failingPersister struct{}

func (failingPersister) SaveZone(context.Context, *Zone) error {
	return eris.New("store down")
}
func (failingPersister) DeleteZone(context.Context, string) error {
	return eris.New("store down")
}

func TestPersisterErrorsSurface(t *testing.T) {
	r := NewRegistry(failingPersister{})
	_, err := r.Create(context.Background(), "a", testRing, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store down")
}

func TestLoad_OrdersByCreation(t *testing.T) {
	poly, err := geo.NewPolygon(testRing)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mk := func(name string, offset time.Duration) *Zone {
		return &Zone{ID: name, Name: name, Geometry: poly, CreatedAt: base.Add(offset)}
	}

	// Deliberately out of order: Load must re-derive order from CreatedAt.
	dst := NewRegistry(nil)
	dst.Load([]*Zone{mk("three", 2 * time.Second), mk("one", 0), mk("two", time.Second)})
	assert.Equal(t, []string{"one", "two", "three"}, dst.List())
}
