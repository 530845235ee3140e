// Package hashtree implements the parent-child hash tree of spec
// §4.3: a rooted tree mirroring the entity parent relation, where
// every node's composite hash folds in its own data hash and its
// children's hashes, yielding a single deterministic snapshot digest
// at the super-root.
package hashtree

import (
	"crypto/sha256"
	"sort"

	"entitydb/pkg/entity"
)

// Kind distinguishes the three node roles spec §4.3 describes.
type Kind int

const (
	// KindSuperRoot is the single synthetic root (empty id).
	KindSuperRoot Kind = iota
	// KindRoot is an entity whose parentId is empty.
	KindRoot
	// KindNonRoot is any other entity.
	KindNonRoot
)

// Hash is a SHA-256 digest.
type Hash [32]byte

// Node is one tree node: either the super-root, or mirrors one entity.
type Node struct {
	Kind     Kind
	EntityId string // empty for the super-root

	entityDataHash Hash
	hash           Hash
	hashValid      bool

	children     map[string]*Node
	childOrder   []*Node // sorted ascending by EntityId once needsSort is cleared
	needsSort    bool
	outdated     bool
	removed      bool
	parent       *Node
}

func newNode(kind Kind, entityId string) *Node {
	return &Node{
		Kind:     kind,
		EntityId: entityId,
		children: make(map[string]*Node),
		outdated: true,
	}
}

// Hash returns the node's last-computed composite hash. Call
// Tree.UpdateRootHash first if any mutation happened since.
func (n *Node) Hash() Hash { return n.hash }

// markOutdated flags n and propagates upward to the super-root,
// stopping at an already-outdated ancestor (spec §4.3).
func (n *Node) markOutdated() {
	node := n
	for node != nil && !node.outdated {
		node.outdated = true
		node = node.parent
	}
}

// attachChild wires child under n, marking sort + outdated flags.
func (n *Node) attachChild(child *Node) {
	n.children[child.EntityId] = child
	child.parent = n
	n.needsSort = true
	n.markOutdated()
}

// detachChild is used only as part of tombstone sweep (see tree.go);
// removing a non-leaf node directly is a hard error enforced by the
// caller before this is reached.
func (n *Node) detachChild(id string) {
	delete(n.children, id)
	n.needsSort = true
}

// sortChildren rebuilds childOrder ascending by EntityId and clears
// needsSort.
func (n *Node) sortChildren() {
	if !n.needsSort {
		return
	}
	order := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		order = append(order, c)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].EntityId < order[j].EntityId })
	n.childOrder = order
	n.needsSort = false
}

// recomputeHash recomputes hash = SHA256(entityDataHash || concat(child
// hashes in id order)) assuming children are already up to date and
// sorted. The super-root's entityDataHash is empty.
func (n *Node) recomputeHash() {
	h := sha256.New()
	h.Write(n.entityDataHash[:])
	for _, c := range n.childOrder {
		ch := c.hash
		h.Write(ch[:])
	}
	copy(n.hash[:], h.Sum(nil))
	n.outdated = false
	n.hashValid = true
}

// EntityDataHash computes the SHA-256 of e's canonical JSON form (spec
// §4.3's "hash of its entity alone").
func EntityDataHash(e *entity.Entity) (Hash, error) {
	data, err := entity.CanonicalJSON(entity.Dump(e))
	if err != nil {
		return Hash{}, err
	}
	return sha256.Sum256(data), nil
}
