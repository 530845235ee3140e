// Package delta implements the Change/Delta algebra: per-entity
// reverse+forward field maps, merge-with-priority, inversion, and
// squish (spec §4.1).
package delta

import "entitydb/pkg/entity"

// Kind classifies a Change by the non-emptiness of its two field maps.
type Kind int

const (
	// KindEmpty is a no-op change (both maps empty).
	KindEmpty Kind = iota
	// KindCreate has only a forward map: the full serialized entity.
	KindCreate
	// KindUpdate has both maps: only the fields that actually changed.
	KindUpdate
	// KindDelete has only a reverse map: the full serialized entity.
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "CREATE"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	default:
		return "EMPTY"
	}
}

// Change is a single entity's edit: reverse fields undo it, forward
// fields redo it.
type Change struct {
	EntityId string
	Reverse  map[string]entity.Value
	Forward  map[string]entity.Value
}

// KindOf classifies c by the non-emptiness table in spec §3.
func (c Change) KindOf() Kind {
	switch {
	case len(c.Reverse) == 0 && len(c.Forward) == 0:
		return KindEmpty
	case len(c.Reverse) == 0:
		return KindCreate
	case len(c.Forward) == 0:
		return KindDelete
	default:
		return KindUpdate
	}
}

// Empty returns the zero Change for id, used as an accumulator seed.
func Empty(id string) Change {
	return Change{EntityId: id}
}

// Create builds a CREATE change: forward is the entity's full
// serialized form.
func Create(id string, full map[string]entity.Value) Change {
	return Change{EntityId: id, Forward: full}
}

// Delete builds a DELETE change: reverse is the entity's full
// serialized form at time of removal.
func Delete(id string, full map[string]entity.Value) Change {
	return Change{EntityId: id, Reverse: full}
}

// Update builds an UPDATE change from only the fields that changed.
func Update(id string, reverse, forward map[string]entity.Value) Change {
	return Change{EntityId: id, Reverse: reverse, Forward: forward}
}

// Reversed swaps a Change's reverse and forward maps, inverting its
// effect. Reversing KindEmpty yields KindEmpty; reversing is its own
// inverse for any single Change (P2: reverse(reverse(c)) == c).
func (c Change) Reversed() Change {
	return Change{EntityId: c.EntityId, Reverse: c.Forward, Forward: c.Reverse}
}

func cloneFields(m map[string]entity.Value) map[string]entity.Value {
	if m == nil {
		return nil
	}
	out := make(map[string]entity.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
