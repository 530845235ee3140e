package delta

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrIrrational is returned when merging two Changes for the same
// entity produces a sequence the algebra has no meaning for (e.g.
// DELETE followed by UPDATE) — spec §4.1, §7 Integrity.
var ErrIrrational = errors.New("delta: irrational change sequence")

// Delta is an ordered collection of Changes keyed by entity id, at
// most one Change per entity. Order is insertion order of each
// entity's first appearance, because Reversed must emit Changes in
// reverse insertion order.
type Delta struct {
	order []string
	byID  map[string]Change
}

// New returns an empty Delta.
func New() *Delta {
	return &Delta{byID: make(map[string]Change)}
}

// Len reports the number of entities with a non-empty net Change.
func (d *Delta) Len() int {
	n := 0
	for _, id := range d.order {
		if d.byID[id].KindOf() != KindEmpty {
			n++
		}
	}
	return n
}

// Changes returns the Delta's Changes in insertion order. The slice is
// a fresh copy; mutating it does not affect d.
func (d *Delta) Changes() []Change {
	out := make([]Change, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id])
	}
	return out
}

// Get returns the Change for entityId, if any.
func (d *Delta) Get(entityId string) (Change, bool) {
	c, ok := d.byID[entityId]
	return c, ok
}

// Merge folds next into d's existing Change for next.EntityId (or
// inserts it fresh), applying the merge-with-priority table of spec
// §4.1. Returns ErrIrrational for a disallowed sequence.
func (d *Delta) Merge(next Change) error {
	existing, ok := d.byID[next.EntityId]
	if !ok {
		d.order = append(d.order, next.EntityId)
		d.byID[next.EntityId] = next
		return nil
	}
	merged, err := mergeChanges(existing, next)
	if err != nil {
		return err
	}
	d.byID[next.EntityId] = merged
	return nil
}

// FromChanges builds a Delta by merging changes in order, per entity.
func FromChanges(changes []Change) (*Delta, error) {
	d := New()
	for _, c := range changes {
		if err := d.Merge(c); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// mergeChanges implements the F\N merge table of spec §4.1. first is
// the earlier Change, next is the later one for the same entity.
func mergeChanges(first, next Change) (Change, error) {
	fk, nk := first.KindOf(), next.KindOf()

	if fk == KindEmpty {
		return next, nil
	}
	if nk == KindEmpty {
		return first, nil
	}

	switch fk {
	case KindCreate:
		switch nk {
		case KindCreate:
			return Change{}, irrational(first.EntityId, fk, nk)
		case KindUpdate:
			forward := cloneFields(first.Forward)
			for k, v := range next.Forward {
				forward[k] = v
			}
			return Change{EntityId: first.EntityId, Forward: forward}, nil
		case KindDelete:
			return Empty(first.EntityId), nil
		}
	case KindUpdate:
		switch nk {
		case KindCreate:
			return Change{}, irrational(first.EntityId, fk, nk)
		case KindUpdate:
			forward := cloneFields(first.Forward)
			for k, v := range next.Forward {
				forward[k] = v
			}
			reverse := cloneFields(next.Reverse)
			for k, v := range first.Reverse {
				reverse[k] = v
			}
			return Change{EntityId: first.EntityId, Reverse: reverse, Forward: forward}, nil
		case KindDelete:
			reverse := cloneFields(next.Reverse)
			for k, v := range first.Reverse {
				reverse[k] = v
			}
			return Change{EntityId: first.EntityId, Reverse: reverse}, nil
		}
	case KindDelete:
		switch nk {
		case KindCreate:
			return Change{EntityId: first.EntityId, Reverse: cloneFields(first.Reverse), Forward: cloneFields(next.Forward)}, nil
		case KindUpdate, KindDelete:
			return Change{}, irrational(first.EntityId, fk, nk)
		}
	}

	return Change{}, irrational(first.EntityId, fk, nk)
}

func irrational(id string, first, next Kind) error {
	return fmt.Errorf("%w: entity %q, %s followed by %s", ErrIrrational, id, first, next)
}

// Squish folds a sequence of Deltas into a single equivalent Delta via
// left fold with merge-with-priority (spec §4.1).
func Squish(deltas []*Delta) (*Delta, error) {
	out := New()
	for _, d := range deltas {
		for _, c := range d.Changes() {
			if err := out.Merge(c); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// deltaJSON is Delta's wire form: the ordered Changes list, since order
// matters for Reversed (spec §4.1).
type deltaJSON struct {
	Changes []Change `json:"changes"`
}

// MarshalJSON serializes d as its ordered Changes list, for storage in
// a Commit's deltaData (spec §4.4).
func (d *Delta) MarshalJSON() ([]byte, error) {
	return json.Marshal(deltaJSON{Changes: d.Changes()})
}

// UnmarshalJSON rebuilds d from its ordered Changes list.
func (d *Delta) UnmarshalJSON(data []byte) error {
	var dj deltaJSON
	if err := json.Unmarshal(data, &dj); err != nil {
		return err
	}
	d.order = nil
	d.byID = make(map[string]Change, len(dj.Changes))
	for _, c := range dj.Changes {
		d.order = append(d.order, c.EntityId)
		d.byID[c.EntityId] = c
	}
	return nil
}

// Reversed inverts each Change and reverses the Delta's order, so that
// applying d then d.Reversed() is a no-op on state (spec §4.1, P3).
func (d *Delta) Reversed() *Delta {
	out := New()
	for i := len(d.order) - 1; i >= 0; i-- {
		id := d.order[i]
		c := d.byID[id].Reversed()
		out.order = append(out.order, id)
		out.byID[id] = c
	}
	return out
}
