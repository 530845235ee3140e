package delta

import (
	"testing"

	"entitydb/pkg/entity"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func genChange(t *rapid.T, id string) Change {
	kind := rapid.IntRange(0, 2).Draw(t, "kind")
	switch kind {
	case 0:
		return Create(id, map[string]entity.Value{"a": rapid.Int().Draw(t, "a")})
	case 1:
		return Update(id,
			map[string]entity.Value{"a": rapid.Int().Draw(t, "old")},
			map[string]entity.Value{"a": rapid.Int().Draw(t, "new")})
	default:
		return Delete(id, map[string]entity.Value{"a": rapid.Int().Draw(t, "a")})
	}
}

// TestProperty_ChangeSymmetry validates P2: reverse(reverse(c)) == c.
func TestProperty_ChangeSymmetry(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := genChange(rt, "e1")
		rr := c.Reversed().Reversed()
		require.Equal(rt, c.EntityId, rr.EntityId)
		require.Equal(rt, c.Reverse, rr.Reverse)
		require.Equal(rt, c.Forward, rr.Forward)
	})
}

// TestProperty_DeltaSquishNoop validates P3: squish([d, reversed(d)]) is empty.
func TestProperty_DeltaSquishNoop(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		d := New()
		n := rapid.IntRange(1, 4).Draw(rt, "n")
		for i := 0; i < n; i++ {
			require.NoError(rt, d.Merge(Create(rapid.StringMatching(`[a-z]{4}`).Draw(rt, "id"), map[string]entity.Value{"a": 1})))
		}
		squished, err := Squish([]*Delta{d, d.Reversed()})
		require.NoError(rt, err)
		require.Equal(rt, 0, squished.Len())
	})
}

func TestMerge_UpdateUpdate_ForwardNextWinsReverseFirstWins(t *testing.T) {
	d := New()
	require.NoError(t, d.Merge(Update("e", map[string]entity.Value{"x": "orig"}, map[string]entity.Value{"x": "mid"})))
	require.NoError(t, d.Merge(Update("e", map[string]entity.Value{"x": "mid"}, map[string]entity.Value{"x": "final"})))

	merged, _ := d.Get("e")
	require.Equal(t, "final", merged.Forward["x"])
	require.Equal(t, "orig", merged.Reverse["x"])
}

func TestMerge_CreateThenDelete_NetsToEmpty(t *testing.T) {
	d := New()
	require.NoError(t, d.Merge(Create("e", map[string]entity.Value{"x": 1})))
	require.NoError(t, d.Merge(Delete("e", map[string]entity.Value{"x": 1})))

	merged, ok := d.Get("e")
	require.True(t, ok)
	require.Equal(t, KindEmpty, merged.KindOf())
}

func TestMerge_DeleteThenCreate_PromotesToUpdate(t *testing.T) {
	d := New()
	require.NoError(t, d.Merge(Delete("e", map[string]entity.Value{"x": "old"})))
	require.NoError(t, d.Merge(Create("e", map[string]entity.Value{"x": "new"})))

	merged, _ := d.Get("e")
	require.Equal(t, KindUpdate, merged.KindOf())
	require.Equal(t, "old", merged.Reverse["x"])
	require.Equal(t, "new", merged.Forward["x"])
}

// TestMerge_DeleteThenUpdate_IsIrrational validates scenario 5: DELETE
// then UPDATE in a single delta is rejected.
func TestMerge_DeleteThenUpdate_IsIrrational(t *testing.T) {
	d := New()
	require.NoError(t, d.Merge(Delete("e", map[string]entity.Value{"x": "old"})))
	err := d.Merge(Update("e", map[string]entity.Value{"x": "old"}, map[string]entity.Value{"x": "new"}))
	require.ErrorIs(t, err, ErrIrrational)
}

func TestReversed_InvertsOrderAndFields(t *testing.T) {
	d := New()
	require.NoError(t, d.Merge(Create("first", map[string]entity.Value{"a": 1})))
	require.NoError(t, d.Merge(Create("second", map[string]entity.Value{"a": 2})))

	r := d.Reversed()
	changes := r.Changes()
	require.Len(t, changes, 2)
	require.Equal(t, "second", changes[0].EntityId)
	require.Equal(t, "first", changes[1].EntityId)
	require.Equal(t, KindDelete, changes[0].KindOf())
}
