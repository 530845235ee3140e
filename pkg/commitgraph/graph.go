package commitgraph

import (
	"errors"
	"fmt"
)

var (
	// ErrBranchExists is returned by AddBranch for a duplicate name.
	ErrBranchExists = errors.New("commitgraph: branch already exists")
	// ErrUnknownBranch is returned when a branch name has no entry.
	ErrUnknownBranch = errors.New("commitgraph: unknown branch")
	// ErrUnknownCommit is returned when a commit id has no entry.
	ErrUnknownCommit = errors.New("commitgraph: unknown commit")
	// ErrDanglingHead violates invariant G1: a branch head not present
	// in the commit map.
	ErrDanglingHead = errors.New("commitgraph: branch head not in commit map")
	// ErrAncestryCycle violates invariant G2: parentId walk never
	// reaches the empty string.
	ErrAncestryCycle = errors.New("commitgraph: cycle in commit ancestry")
	// ErrRemoveCurrentBranch guards against removing the branch a
	// Repository currently has checked out (spec §4.4 pull semantics).
	ErrRemoveCurrentBranch = errors.New("commitgraph: cannot remove the current branch")
)

// Graph is a branch list plus a commit id -> Commit map (spec §4.4's
// CommitGraph). Branch order is seniority order, lower index senior.
type Graph struct {
	branches []Branch
	commits  map[string]Commit
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{commits: make(map[string]Commit)}
}

// Branches returns the seniority-ordered branch list. The slice is a
// fresh copy.
func (g *Graph) Branches() []Branch {
	out := make([]Branch, len(g.branches))
	copy(out, g.branches)
	return out
}

// SeniorityRank returns the index of name in the branch list, lower is
// more senior.
func (g *Graph) SeniorityRank(name string) (int, bool) {
	for i, b := range g.branches {
		if b.Name == name {
			return i, true
		}
	}
	return 0, false
}

// AddBranch appends a new branch at the end of the seniority order
// (least senior), per normal device-joins-later semantics.
func (g *Graph) AddBranch(name string) error {
	if _, ok := g.SeniorityRank(name); ok {
		return fmt.Errorf("%w: %q", ErrBranchExists, name)
	}
	g.branches = append(g.branches, Branch{Name: name})
	return nil
}

// GetBranch returns the named branch.
func (g *Graph) GetBranch(name string) (Branch, error) {
	if i, ok := g.SeniorityRank(name); ok {
		return g.branches[i], nil
	}
	return Branch{}, fmt.Errorf("%w: %q", ErrUnknownBranch, name)
}

// SetBranchHead advances name's headCommitId.
func (g *Graph) SetBranchHead(name, commitId string) error {
	i, ok := g.SeniorityRank(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBranch, name)
	}
	if commitId != "" {
		if _, ok := g.commits[commitId]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownCommit, commitId)
		}
	}
	g.branches[i].HeadCommitId = commitId
	return nil
}

// RemoveBranch deletes name from the branch list. current is the
// caller's currently checked-out branch, removal of which is refused
// (spec §4.4: "Removing the current branch is an error").
func (g *Graph) RemoveBranch(name, current string) error {
	if name == current {
		return fmt.Errorf("%w: %q", ErrRemoveCurrentBranch, name)
	}
	i, ok := g.SeniorityRank(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBranch, name)
	}
	g.branches = append(g.branches[:i], g.branches[i+1:]...)
	return nil
}

// AddCommit files c into the commit map. Callers are expected to call
// SetBranchHead separately (the Graph does not infer which branch a
// commit belongs to from its shape alone).
func (g *Graph) AddCommit(c Commit) {
	g.commits[c.Id] = c
}

// RemoveCommit deletes id from the commit map (used by reset/pull when
// rebasing or pruning history).
func (g *Graph) RemoveCommit(id string) {
	delete(g.commits, id)
}

// GetCommit returns the commit for id.
func (g *Graph) GetCommit(id string) (Commit, error) {
	c, ok := g.commits[id]
	if !ok {
		return Commit{}, fmt.Errorf("%w: %q", ErrUnknownCommit, id)
	}
	return c, nil
}

// HasCommit reports whether id is present.
func (g *Graph) HasCommit(id string) bool {
	_, ok := g.commits[id]
	return ok
}

// CommitIds returns every commit id currently in the map, in no
// particular order.
func (g *Graph) CommitIds() []string {
	out := make([]string, 0, len(g.commits))
	for id := range g.commits {
		out = append(out, id)
	}
	return out
}

// Log walks parentId from headId back to the root, newest first
// (invariant G3: chronological order on a branch is the reverse-parent
// walk from head).
func (g *Graph) Log(headId string) ([]Commit, error) {
	var out []Commit
	seen := make(map[string]bool)
	cur := headId
	for cur != "" {
		if seen[cur] {
			return nil, ErrAncestryCycle
		}
		seen[cur] = true
		c, err := g.GetCommit(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		cur = c.ParentId
	}
	return out, nil
}

// ValidateInvariants checks G1 (every branch head, if set, resolves in
// the commit map) and G2 (every head's ancestry walk terminates at ""
// without a cycle).
func (g *Graph) ValidateInvariants() error {
	for _, b := range g.branches {
		if b.HeadCommitId == "" {
			continue
		}
		if !g.HasCommit(b.HeadCommitId) {
			return fmt.Errorf("%w: branch %q -> %q", ErrDanglingHead, b.Name, b.HeadCommitId)
		}
		if _, err := g.Log(b.HeadCommitId); err != nil {
			return err
		}
	}
	return nil
}

// AncestryPath returns the commits strictly between from (exclusive)
// and to (inclusive), oldest first: the path walked backward from to
// until from is reached. Used to compute commitsBehind for pull (spec
// §4.4) — the supplemented commitgraph.CommitsBehind wraps this with a
// from/to branch-head pair (SPEC_FULL §4.8).
func (g *Graph) AncestryPath(from, to string) ([]Commit, error) {
	log, err := g.Log(to)
	if err != nil {
		return nil, err
	}
	var out []Commit
	for _, c := range log {
		if c.Id == from {
			break
		}
		out = append(out, c)
	}
	// reverse to oldest-first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CommitsBehind returns the commits on branch's current head that are
// not yet reachable from localHeadId, oldest first: the ancestry path
// from localHeadId to the branch's head. A convenience wrapper over
// AncestryPath for callers that only have a branch name and not
// already have both endpoints' commit ids in hand.
func CommitsBehind(g *Graph, branchName, localHeadId string) ([]Commit, error) {
	b, err := g.GetBranch(branchName)
	if err != nil {
		return nil, err
	}
	if b.HeadCommitId == "" {
		return nil, nil
	}
	return g.AncestryPath(localHeadId, b.HeadCommitId)
}
