package hashtree

import (
	"testing"

	"entitydb/pkg/delta"
	"entitydb/pkg/entity"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func e(id, parentId string, title string) *entity.Entity {
	return &entity.Entity{Id: id, ParentId: parentId, Type: "Node", Payload: map[string]entity.Value{"title": title}}
}

// TestProperty_DeterministicRegardlessOfOrder validates P5: building a
// tree from the same entity set in any insertion order yields the same
// root hash, whether children arrive before or after their parent.
func TestProperty_DeterministicRegardlessOfOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(rt, "n")
		ids := make([]string, n)
		for i := range ids {
			ids[i] = rapid.StringMatching(`[a-z][a-z0-9]{2,5}`).Draw(rt, "id")
		}
		seen := map[string]bool{}
		var entities []*entity.Entity
		for i, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			parent := ""
			if i > 0 {
				// parent any earlier distinct id, or root
				if rapid.Bool().Draw(rt, "hasParent") {
					parent = ids[rapid.IntRange(0, i-1).Draw(rt, "parentIdx")]
				}
			}
			entities = append(entities, e(id, parent, "t"))
		}
		if len(entities) == 0 {
			return
		}

		_, h1, err := Build(entities)
		require.NoError(rt, err)

		reversed := make([]*entity.Entity, len(entities))
		for i, v := range entities {
			reversed[len(entities)-1-i] = v
		}
		_, h2, err := Build(reversed)
		require.NoError(rt, err)

		require.Equal(rt, h1, h2)
	})
}

// TestProperty_HashSensitivity validates P6: changing any single
// entity's payload changes the root hash.
func TestProperty_HashSensitivity(t *testing.T) {
	base := []*entity.Entity{e("a", "", "orig"), e("b", "a", "child")}
	_, h1, err := Build(base)
	require.NoError(t, err)

	changed := []*entity.Entity{e("a", "", "orig"), e("b", "a", "DIFFERENT")}
	_, h2, err := Build(changed)
	require.NoError(t, err)

	require.NotEqual(t, h1, h2)
}

func TestInsert_OutOfOrderChildStagesThenAttaches(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Insert(e("child", "parent", "c")))
	_, err := tr.UpdateRootHash()
	require.ErrorIs(t, err, ErrOrphanSubtree)

	require.NoError(t, tr.Insert(e("parent", "", "p")))
	h, err := tr.UpdateRootHash()
	require.NoError(t, err)
	require.NotEqual(t, Hash{}, h)
}

func TestRemove_NonLeafIsHardError(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Insert(e("parent", "", "p")))
	require.NoError(t, tr.Insert(e("child", "parent", "c")))

	err := tr.Remove("parent")
	require.ErrorIs(t, err, ErrTombstoneHasChildren)
}

func TestRemove_LeafThenParentSucceedsAfterSweep(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Insert(e("parent", "", "p")))
	require.NoError(t, tr.Insert(e("child", "parent", "c")))

	require.NoError(t, tr.Remove("child"))
	_, err := tr.UpdateRootHash()
	require.NoError(t, err)

	require.NoError(t, tr.Remove("parent"))
	_, err = tr.UpdateRootHash()
	require.NoError(t, err)
}

// TestScenario_RenameDoesNotAffectSiblings checks that an update to one
// entity's payload leaves a sibling subtree's hash untouched.
func TestScenario_RenameDoesNotAffectSiblings(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Insert(e("root", "", "r")))
	require.NoError(t, tr.Insert(e("a", "root", "a1")))
	require.NoError(t, tr.Insert(e("b", "root", "b1")))
	_, err := tr.UpdateRootHash()
	require.NoError(t, err)

	siblingBefore := tr.nodes["b"].Hash()

	require.NoError(t, tr.Update(e("a", "root", "a2")))
	_, err = tr.UpdateRootHash()
	require.NoError(t, err)

	require.Equal(t, siblingBefore, tr.nodes["b"].Hash())
}

// TestScenario_ReparentingUpdatesBothSubtrees checks that moving an
// entity to a new parent marks both the old and new parent chains outdated and recomputes their hashes.
func TestScenario_ReparentingUpdatesBothSubtrees(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Insert(e("p1", "", "p1")))
	require.NoError(t, tr.Insert(e("p2", "", "p2")))
	require.NoError(t, tr.Insert(e("child", "p1", "c")))
	_, err := tr.UpdateRootHash()
	require.NoError(t, err)

	p1Before := tr.nodes["p1"].Hash()
	p2Before := tr.nodes["p2"].Hash()

	require.NoError(t, tr.Update(e("child", "p2", "c")))
	_, err = tr.UpdateRootHash()
	require.NoError(t, err)

	require.NotEqual(t, p1Before, tr.nodes["p1"].Hash())
	require.NotEqual(t, p2Before, tr.nodes["p2"].Hash())
	require.Len(t, tr.nodes["p1"].children, 0)
	require.Len(t, tr.nodes["p2"].children, 1)
}

func TestApplyDelta_CreateUpdateDelete(t *testing.T) {
	tr := New()
	entities := map[string]*entity.Entity{
		"root": e("root", "", "r"),
	}
	lookup := func(id string) (*entity.Entity, bool) {
		v, ok := entities[id]
		return v, ok
	}

	createDelta := delta.New()
	require.NoError(t, createDelta.Merge(delta.Create("root", entity.Dump(entities["root"]))))
	_, err := ApplyDelta(tr, lookup, createDelta)
	require.NoError(t, err)
	require.Contains(t, tr.nodes, "root")

	entities["root"] = e("root", "", "r2")
	updateDelta := delta.New()
	require.NoError(t, updateDelta.Merge(delta.Update("root", map[string]entity.Value{"title": "r"}, map[string]entity.Value{"title": "r2"})))
	_, err = ApplyDelta(tr, lookup, updateDelta)
	require.NoError(t, err)

	delete(entities, "root")
	deleteDelta := delta.New()
	require.NoError(t, deleteDelta.Merge(delta.Delete("root", map[string]entity.Value{"title": "r2"})))
	_, err = ApplyDelta(tr, lookup, deleteDelta)
	require.NoError(t, err)
	require.NotContains(t, tr.nodes, "root")
}
