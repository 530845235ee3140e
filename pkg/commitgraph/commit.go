// Package commitgraph implements spec §3/§4.4's Commit, Branch and
// CommitGraph types: per-device branches ordered by seniority, commit
// ancestry via parentId chains, and chronological log traversal. It
// generalizes the teacher's linear single-branch commit chain
// (pkg/store/commit.go) to a multi-branch graph.
package commitgraph

import (
	"entitydb/pkg/delta"
	"entitydb/pkg/hashtree"
)

// Commit is one snapshot transition: applying deltaData to the
// parent's snapshot yields a head state whose hash-tree root digest is
// snapshotHash. parentId is empty only for a branch's first commit.
// Commit ids are fresh random strings, never content-derived (spec
// §4.5's squish-safety depends on this).
type Commit struct {
	Id           string       `json:"id"`
	ParentId     string       `json:"parentId"`
	SnapshotHash hashtree.Hash `json:"snapshotHash"`
	Timestamp    int64        `json:"timestamp"`
	Message      string       `json:"message"`
	DeltaData    *delta.Delta `json:"deltaData"`
}

// Metadata strips DeltaData, the shape used for removedCommits in an
// InternalRepoUpdate (spec §6): identity and ancestry without payload.
type Metadata struct {
	Id           string       `json:"id"`
	ParentId     string       `json:"parentId"`
	SnapshotHash hashtree.Hash `json:"snapshotHash"`
	Timestamp    int64        `json:"timestamp"`
	Message      string       `json:"message"`
}

// AsMetadata strips c's delta payload.
func (c Commit) AsMetadata() Metadata {
	return Metadata{
		Id:           c.Id,
		ParentId:     c.ParentId,
		SnapshotHash: c.SnapshotHash,
		Timestamp:    c.Timestamp,
		Message:      c.Message,
	}
}

// Branch is a named pointer to the tip of one device's commit chain.
// Branches are stored in an order; position in that order is the
// branch's seniority rank — lower index is more senior (spec §3).
type Branch struct {
	Name          string `json:"name"`
	HeadCommitId  string `json:"headCommitId"` // empty means no commits yet
}
