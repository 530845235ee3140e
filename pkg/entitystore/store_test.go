package entitystore

import (
	"sort"
	"testing"

	"entitydb/pkg/entity"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestRegistry() *entity.Registry {
	reg := entity.NewRegistry()
	reg.Register("Page", func() *entity.Entity { return &entity.Entity{} })
	reg.Register("Note", func() *entity.Entity { return &entity.Entity{} })
	return reg
}

func idAndTypeStore(t require.TestingT) *Store {
	s, err := New(newTestRegistry(), []IndexConfig{
		{Name: "id", Unique: true, Fields: []Field{{Name: "id"}}},
		{Name: "type", Fields: []Field{{Name: TypeField, AllowedTypes: []string{"Page", "Note"}}}},
	})
	require.NoError(t, err)
	return s
}

func mustInsert(t require.TestingT, s *Store, id, typ string, payload map[string]entity.Value) {
	_, err := s.InsertOne(&entity.Entity{Id: id, Type: typ, Payload: payload})
	require.NoError(t, err)
}

// TestScenario_QueryPlannerEquivalence validates scenario 6: findOne by
// id uses the id index, find by type uses the type index, and both
// agree with a forced full scan over the same filter.
func TestScenario_QueryPlannerEquivalence(t *testing.T) {
	s := idAndTypeStore(t)
	mustInsert(t, s, "x", "Page", map[string]entity.Value{})
	mustInsert(t, s, "y", "Note", map[string]entity.Value{})

	byID, err := s.FindOne(Filter{"id": "x"})
	require.NoError(t, err)
	require.Equal(t, "x", byID.Id)

	ix, _, ok := s.selectIndex(Filter{"id": "x"})
	require.True(t, ok)
	require.Equal(t, "id", ix.cfg.Name)

	var pages []*entity.Entity
	for e := range s.Find(Filter{"type": "Page"}) {
		pages = append(pages, e)
	}
	require.Len(t, pages, 1)
	require.Equal(t, "x", pages[0].Id)

	ix2, _, ok := s.selectIndex(Filter{"type": "Page"})
	require.True(t, ok)
	require.Equal(t, "type", ix2.cfg.Name)

	// Full scan fallback (filter field not covered by any index).
	var scanned []*entity.Entity
	for e := range s.Find(Filter{"nonexistentfield": "z"}) {
		scanned = append(scanned, e)
	}
	require.Empty(t, scanned)
	_, _, ok = s.selectIndex(Filter{"nonexistentfield": "z"})
	require.False(t, ok)
}

func ids(entities []*entity.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.Id
	}
	sort.Strings(out)
	return out
}

// TestProperty_IndexConsistency validates P9: after any mutation,
// every index reflects exactly the live entities whose fields are
// defined for that config.
func TestProperty_IndexConsistency(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := idAndTypeStore(rt)
		n := rapid.IntRange(0, 8).Draw(rt, "n")
		live := make(map[string]string) // id -> type
		for i := 0; i < n; i++ {
			id := rapid.StringMatching(`[a-z][a-z0-9]{2,6}`).Draw(rt, "id")
			if _, exists := live[id]; exists {
				continue
			}
			typ := rapid.SampledFrom([]string{"Page", "Note", "Other"}).Draw(rt, "type")
			_, err := s.InsertOne(&entity.Entity{Id: id, Type: typ, Payload: map[string]entity.Value{}})
			if err == nil {
				live[id] = typ
			}
		}

		typeIx := s.indexes["type"]
		for id, typ := range live {
			key, ok := typeIx.keyForEntity(&entity.Entity{Id: id, Type: typ})
			if typ == "Other" {
				require.False(rt, ok)
				continue
			}
			require.True(rt, ok)
			bucket := typeIx.lookup(key)
			require.Contains(rt, bucket, id)
		}
	})
}

// TestProperty_QueryEquivalence validates P10: find(filter) returns the
// same multiset regardless of which index the planner would pick.
func TestProperty_QueryEquivalence(t *testing.T) {
	s := idAndTypeStore(t)
	mustInsert(t, s, "a", "Page", map[string]entity.Value{})
	mustInsert(t, s, "b", "Page", map[string]entity.Value{})
	mustInsert(t, s, "c", "Note", map[string]entity.Value{})

	var byPlanner []*entity.Entity
	for e := range s.Find(Filter{"type": "Page"}) {
		byPlanner = append(byPlanner, e)
	}

	var byFullScan []*entity.Entity
	for id, e := range s.entities {
		_ = id
		if e.Type == "Page" {
			byFullScan = append(byFullScan, e.Clone())
		}
	}

	require.Equal(t, ids(byFullScan), ids(byPlanner))
}

func TestUpdateOne_OnlyRekeysTouchedIndexes(t *testing.T) {
	s := idAndTypeStore(t)
	mustInsert(t, s, "a", "Page", map[string]entity.Value{"title": "old"})

	idIx := s.indexes["id"]
	before := idIx.keyOf["a"]

	_, err := s.UpdateOne("a", func(e *entity.Entity) { e.Payload["title"] = "new" })
	require.NoError(t, err)

	require.Equal(t, before, idIx.keyOf["a"])
	e, err := s.FindOne(Filter{"id": "a"})
	require.NoError(t, err)
	require.Equal(t, "new", e.Payload["title"])
}

func TestInsertOne_DuplicateID(t *testing.T) {
	s := idAndTypeStore(t)
	mustInsert(t, s, "a", "Page", nil)
	_, err := s.InsertOne(&entity.Entity{Id: "a", Type: "Page"})
	require.ErrorIs(t, err, ErrDuplicateID)
}

func TestRemoveOne_ClearsAllIndexes(t *testing.T) {
	s := idAndTypeStore(t)
	mustInsert(t, s, "a", "Page", nil)
	_, err := s.RemoveOne("a")
	require.NoError(t, err)

	_, err = s.FindOne(Filter{"id": "a"})
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, s.indexes["type"].lookup("Page"))
}

func TestFindOne_DeepCopyIsolation(t *testing.T) {
	s := idAndTypeStore(t)
	mustInsert(t, s, "a", "Page", map[string]entity.Value{"title": "orig"})

	e, err := s.FindOne(Filter{"id": "a"})
	require.NoError(t, err)
	e.Payload["title"] = "mutated"

	e2, err := s.FindOne(Filter{"id": "a"})
	require.NoError(t, err)
	require.Equal(t, "orig", e2.Payload["title"])
}
