package hashtree

import (
	"errors"
	"fmt"

	"entitydb/pkg/delta"
	"entitydb/pkg/entity"
)

var (
	// ErrOrphanSubtree is a hard error raised at hash-compute time when
	// a staged child never found its parent (spec §4.3).
	ErrOrphanSubtree = errors.New("hashtree: orphan subtree at hash compute")
	// ErrTombstoneHasChildren is returned when a removed node still has
	// live (non-tombstoned) children; non-leaf removal is an error.
	ErrTombstoneHasChildren = errors.New("hashtree: cannot remove a node with live children")
	// ErrUnknownEntity is returned when Update/Remove targets an id with
	// no existing node.
	ErrUnknownEntity = errors.New("hashtree: unknown entity id")
	// ErrMissingEntityForCreate/Update is returned when the integration
	// helper's lookup function cannot find the entity a Change refers to.
	ErrMissingEntityForCreate = errors.New("hashtree: entity missing after apply for CREATE")
	ErrMissingEntityForUpdate = errors.New("hashtree: entity missing after apply for UPDATE")
)

// Tree is the hash tree for one head state: a single super-root whose
// descendants mirror the entity parent forest.
type Tree struct {
	superRoot     *Node
	nodes         map[string]*Node   // entityId -> node, excludes the super-root
	orphans       map[string][]*Node // parentId -> staged children awaiting that parent
	cleanupNeeded bool
}

// New returns an empty Tree (a bare super-root).
func New() *Tree {
	return &Tree{
		superRoot: newNode(KindSuperRoot, ""),
		nodes:     make(map[string]*Node),
		orphans:   make(map[string][]*Node),
	}
}

// Insert adds a node for e under e.ParentId (the super-root if empty),
// staging it in the orphan side-map if the parent is not yet present.
func (t *Tree) Insert(e *entity.Entity) error {
	dataHash, err := EntityDataHash(e)
	if err != nil {
		return err
	}

	kind := KindNonRoot
	if e.ParentId == "" {
		kind = KindRoot
	}
	node := newNode(kind, e.Id)
	node.entityDataHash = dataHash
	t.nodes[e.Id] = node

	t.attach(node, e.ParentId)

	// Any children that were staged waiting on this id can now attach.
	if staged, ok := t.orphans[e.Id]; ok {
		for _, child := range staged {
			node.attachChild(child)
		}
		delete(t.orphans, e.Id)
	}
	return nil
}

// attach wires node under parentId (the super-root if empty), or
// stages it in orphans if parentId names a not-yet-present entity.
func (t *Tree) attach(node *Node, parentId string) {
	if parentId == "" {
		t.superRoot.attachChild(node)
		return
	}
	if parent, ok := t.nodes[parentId]; ok {
		parent.attachChild(node)
		return
	}
	t.orphans[parentId] = append(t.orphans[parentId], node)
}

// Update rehashes the entity data for an existing node and marks it
// outdated; it also re-parents the node if e.ParentId changed.
func (t *Tree) Update(e *entity.Entity) error {
	node, ok := t.nodes[e.Id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEntity, e.Id)
	}

	dataHash, err := EntityDataHash(e)
	if err != nil {
		return err
	}
	node.entityDataHash = dataHash
	node.markOutdated()

	newParentId := e.ParentId
	oldParentId := ""
	if node.parent != nil && node.parent.Kind != KindSuperRoot {
		oldParentId = node.parent.EntityId
	}
	if newParentId != oldParentId {
		if node.parent != nil {
			node.parent.detachChild(node.EntityId)
			node.parent.markOutdated()
		}
		node.Kind = KindNonRoot
		if newParentId == "" {
			node.Kind = KindRoot
		}
		t.attach(node, newParentId)
	}
	return nil
}

// Remove tombstones the node for entityId. Removing a node with live
// (non-tombstoned) children is a hard error; removal only takes effect
// on the next UpdateRootHash sweep.
func (t *Tree) Remove(entityId string) error {
	node, ok := t.nodes[entityId]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEntity, entityId)
	}
	for _, c := range node.children {
		if !c.removed {
			return fmt.Errorf("%w: %q", ErrTombstoneHasChildren, entityId)
		}
	}
	node.removed = true
	node.markOutdated()
	t.cleanupNeeded = true
	return nil
}

// UpdateRootHash asserts there are no orphan subtrees, sweeps
// tombstoned leaves, sorts children where flagged, then recomputes
// every outdated node bottom-up, returning the new snapshot digest.
func (t *Tree) UpdateRootHash() (Hash, error) {
	if len(t.orphans) > 0 {
		for parentId := range t.orphans {
			return Hash{}, fmt.Errorf("%w: waiting on parent %q", ErrOrphanSubtree, parentId)
		}
	}

	if t.cleanupNeeded {
		t.sweep(t.superRoot)
		t.cleanupNeeded = false
	}

	t.recompute(t.superRoot)
	return t.superRoot.Hash(), nil
}

// sweep removes tombstoned leaf nodes from the tree, recursively.
// Non-leaf tombstones were already rejected in Remove, so any
// tombstone reaching here is childless.
func (t *Tree) sweep(n *Node) {
	for id, c := range n.children {
		t.sweep(c)
		if c.removed && len(c.children) == 0 {
			delete(n.children, id)
			delete(t.nodes, id)
			n.needsSort = true
		}
	}
}

// recompute sorts children where flagged and recomputes hash for every
// outdated node, children-first.
func (t *Tree) recompute(n *Node) {
	n.sortChildren()
	for _, c := range n.childOrder {
		if c.outdated {
			t.recompute(c)
		}
	}
	if n.outdated {
		n.recomputeHash()
	}
}

// RootHash returns the last-computed snapshot digest without
// recomputing (call UpdateRootHash first after any mutation).
func (t *Tree) RootHash() Hash {
	return t.superRoot.Hash()
}

// ApplyDelta applies d's Changes to t, using lookup to fetch the
// current entity for CREATE/UPDATE changes (expected to be the head
// store after the same Delta has already been applied there), then
// recomputes and returns the new root hash (spec §4.3's
// updateHashTree(tree, store, delta)).
func ApplyDelta(t *Tree, lookup func(id string) (*entity.Entity, bool), d *delta.Delta) (Hash, error) {
	for _, c := range d.Changes() {
		switch c.KindOf() {
		case delta.KindCreate:
			e, ok := lookup(c.EntityId)
			if !ok {
				return Hash{}, fmt.Errorf("%w: %q", ErrMissingEntityForCreate, c.EntityId)
			}
			if err := t.Insert(e); err != nil {
				return Hash{}, err
			}
		case delta.KindUpdate:
			e, ok := lookup(c.EntityId)
			if !ok {
				return Hash{}, fmt.Errorf("%w: %q", ErrMissingEntityForUpdate, c.EntityId)
			}
			if err := t.Update(e); err != nil {
				return Hash{}, err
			}
		case delta.KindDelete:
			if err := t.Remove(c.EntityId); err != nil {
				return Hash{}, err
			}
		}
	}
	return t.UpdateRootHash()
}

// Build constructs a fresh Tree from a full entity set in any order,
// staging out-of-order children transparently, and returns its root
// hash. This is "buildHashTree(S)" of spec §8 P5, used to verify an
// incrementally maintained tree against a from-scratch rebuild.
func Build(entities []*entity.Entity) (*Tree, Hash, error) {
	t := New()
	for _, e := range entities {
		if err := t.Insert(e); err != nil {
			return nil, Hash{}, err
		}
	}
	h, err := t.UpdateRootHash()
	return t, h, err
}
