package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"entitydb/pkg/clock"
	"entitydb/pkg/commitgraph"
	"entitydb/pkg/delta"
	"entitydb/pkg/entity"
	"entitydb/pkg/entitystore"
	"entitydb/pkg/hashtree"
	"entitydb/pkg/idgen"
	"entitydb/pkg/storageadapter"
)

func testRegistry() *entity.Registry {
	reg := entity.NewRegistry()
	reg.Register("page", func() *entity.Entity { return &entity.Entity{} })
	reg.Register("note", func() *entity.Entity { return &entity.Entity{} })
	return reg
}

func testIndexConfigs() []entitystore.IndexConfig {
	return []entitystore.IndexConfig{
		{Name: "byType", Fields: []entitystore.Field{{Name: "__type__", AllowedTypes: []string{"page", "note"}}}},
	}
}

func mustCreate(t *testing.T, ctx context.Context, opts Options) *Repository {
	t.Helper()
	r, err := Create(ctx, opts)
	require.NoError(t, err)
	return r
}

func createDict(id, parentId, typ string, fields map[string]entity.Value) map[string]entity.Value {
	out := make(map[string]entity.Value, len(fields)+3)
	for k, v := range fields {
		out[k] = v
	}
	out["id"] = id
	out["parentId"] = parentId
	out["__type__"] = typ
	return out
}

// TestScenario1_CreateUpdateDeleteRoundTrip matches spec scenario 1:
// insert, update, remove a single entity and check the three snapshot
// hashes are pairwise distinct, then reset back to the initial state.
func TestScenario1_CreateUpdateDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	backing := storageadapter.NewMemory()
	r := mustCreate(t, ctx, Options{
		Registry: testRegistry(), IndexConfigs: testIndexConfigs(),
		Branch: "dev1", Adapter: backing, Clock: clock.NewFixed(1000), IDs: &idgen.Sequential{Prefix: "c"},
	})

	h0 := r.tree.RootHash()

	d1 := delta.New()
	require.NoError(t, d1.Merge(delta.Create("p", createDict("p", "", "page", map[string]entity.Value{"name": "Test Page"}))))
	c1, err := r.Commit(ctx, d1, "create p")
	require.NoError(t, err)
	h1 := c1.SnapshotHash

	d2 := delta.New()
	require.NoError(t, d2.Merge(delta.Update("p", map[string]entity.Value{"name": "Test Page"}, map[string]entity.Value{"name": "X"})))
	c2, err := r.Commit(ctx, d2, "rename p")
	require.NoError(t, err)
	h2 := c2.SnapshotHash

	d3 := delta.New()
	require.NoError(t, d3.Merge(delta.Delete("p", createDict("p", "", "page", map[string]entity.Value{"name": "X"}))))
	_, err = r.Commit(ctx, d3, "delete p")
	require.NoError(t, err)

	require.NotEqual(t, h0, h1)
	require.NotEqual(t, h1, h2)
	require.NotEqual(t, h0, h2)

	require.NoError(t, r.Reset(ctx, -3))
	head, err := r.Head()
	require.NoError(t, err)
	require.Equal(t, "", head)
	_, ok := r.Get("p")
	require.False(t, ok)
	require.Equal(t, h0, r.tree.RootHash())
}

// TestScenario2_PullSameBranchConverges matches spec scenario 2: a
// second replica opens the same branch from the same adapter, pulls
// the first replica's commit, adds its own, and the first pulls back.
func TestScenario2_PullSameBranchConverges(t *testing.T) {
	ctx := context.Background()
	backing := storageadapter.NewMemory()

	a := mustCreate(t, ctx, Options{
		Registry: testRegistry(), IndexConfigs: testIndexConfigs(),
		Branch: "dev1", Adapter: backing, Clock: clock.NewFixed(1000), IDs: &idgen.Sequential{Prefix: "a"},
	})

	d1 := delta.New()
	require.NoError(t, d1.Merge(delta.Create("page1", createDict("page1", "", "page", nil))))
	require.NoError(t, d1.Merge(delta.Create("entity1", createDict("entity1", "page1", "note", nil))))
	_, err := a.Commit(ctx, d1, "a creates page1+entity1")
	require.NoError(t, err)

	b, err := Open(ctx, Options{
		Registry: testRegistry(), IndexConfigs: testIndexConfigs(),
		Branch: "dev1", Adapter: backing, Clock: clock.NewFixed(1000), IDs: &idgen.Sequential{Prefix: "b"},
	})
	require.NoError(t, err)

	aHead, err := a.Head()
	require.NoError(t, err)
	bHead, err := b.Head()
	require.NoError(t, err)
	require.Equal(t, aHead, bHead)
	require.Equal(t, a.tree.RootHash(), b.tree.RootHash())

	_, ok := b.Get("page1")
	require.True(t, ok)

	d2 := delta.New()
	require.NoError(t, d2.Merge(delta.Create("entity2", createDict("entity2", "page1", "note", nil))))
	_, err = b.Commit(ctx, d2, "b creates entity2")
	require.NoError(t, err)

	require.NoError(t, a.Pull(ctx, backing))

	aHead, err = a.Head()
	require.NoError(t, err)
	bHead, err = b.Head()
	require.NoError(t, err)
	require.Equal(t, bHead, aHead)
	require.Equal(t, b.tree.RootHash(), a.tree.RootHash())

	_, ok = a.Get("entity2")
	require.True(t, ok)
}

// TestScenario3_RemovePageAndChildRebuildsToSameHash matches spec
// scenario 3: removing a page and its child in one commit must leave
// the hash tree's incrementally-maintained root hash identical to one
// built from scratch against the surviving entities.
func TestScenario3_RemovePageAndChildRebuildsToSameHash(t *testing.T) {
	ctx := context.Background()
	backing := storageadapter.NewMemory()
	r := mustCreate(t, ctx, Options{
		Registry: testRegistry(), IndexConfigs: testIndexConfigs(),
		Branch: "dev1", Adapter: backing, Clock: clock.NewFixed(1000), IDs: &idgen.Sequential{Prefix: "c"},
	})

	setup := delta.New()
	require.NoError(t, setup.Merge(delta.Create("page1", createDict("page1", "", "page", nil))))
	require.NoError(t, setup.Merge(delta.Create("page2", createDict("page2", "", "page", nil))))
	require.NoError(t, setup.Merge(delta.Create("note1", createDict("note1", "page1", "note", nil))))
	require.NoError(t, setup.Merge(delta.Create("note2", createDict("note2", "page2", "note", nil))))
	_, err := r.Commit(ctx, setup, "seed two pages and two notes")
	require.NoError(t, err)

	removal := delta.New()
	require.NoError(t, removal.Merge(delta.Delete("note1", createDict("note1", "page1", "note", nil))))
	require.NoError(t, removal.Merge(delta.Delete("page1", createDict("page1", "", "page", nil))))
	c, err := r.Commit(ctx, removal, "remove page1 and note1")
	require.NoError(t, err)

	var survivors []*entity.Entity
	for _, id := range []string{"page2", "note2"} {
		e, ok := r.Get(id)
		require.True(t, ok)
		survivors = append(survivors, e)
	}
	_, rebuiltHash, err := hashtree.Build(survivors)
	require.NoError(t, err)
	require.Equal(t, c.SnapshotHash, rebuiltHash)
}

// TestFastForward_HashMismatchIsHardError ensures a commit whose
// recorded snapshotHash doesn't match what replaying its delta
// actually produces is rejected rather than silently accepted.
func TestFastForward_HashMismatchIsHardError(t *testing.T) {
	ctx := context.Background()
	backing := storageadapter.NewMemory()
	r := mustCreate(t, ctx, Options{
		Registry: testRegistry(), IndexConfigs: testIndexConfigs(),
		Branch: "dev1", Adapter: backing, Clock: clock.NewFixed(1000), IDs: &idgen.Sequential{Prefix: "c"},
	})

	d := delta.New()
	require.NoError(t, d.Merge(delta.Create("p", createDict("p", "", "page", nil))))
	bogus := commitgraph.Commit{
		Id:           "bogus",
		ParentId:     "",
		SnapshotHash: hashtree.Hash{0xFF},
		Timestamp:    1000,
		Message:      "bad hash",
		DeltaData:    d,
	}
	err := r.FastForward(ctx, bogus)
	require.ErrorIs(t, err, ErrHashMismatch)
}

// TestReset_RejectsNonNegativeAndOverlongHistory checks the direction
// and history-length guards independently of any merge scenario.
func TestReset_RejectsNonNegativeAndOverlongHistory(t *testing.T) {
	ctx := context.Background()
	backing := storageadapter.NewMemory()
	r := mustCreate(t, ctx, Options{
		Registry: testRegistry(), IndexConfigs: testIndexConfigs(),
		Branch: "dev1", Adapter: backing, Clock: clock.NewFixed(1000), IDs: &idgen.Sequential{Prefix: "c"},
	})

	require.ErrorIs(t, r.Reset(ctx, 0), ErrResetDirection)
	require.ErrorIs(t, r.Reset(ctx, 1), ErrResetDirection)
	require.ErrorIs(t, r.Reset(ctx, -1), ErrNotEnoughHistory)
}
