// Package storageadapter implements the storage adapter contract of
// spec §6: the one required boundary a Repository talks to, treating
// the adapter as the source of truth and its own in-memory cache as
// derived. Grounded on the teacher's FileCAS atomic write pattern
// (pkg/cas/cas.go) and BranchManager ref layout (pkg/branch/manager.go).
package storageadapter

import (
	"context"

	"entitydb/pkg/commitgraph"
)

// Adapter is the storage adapter contract of spec §6. Implementations
// must apply Update atomically: partial application is a correctness
// bug, not a recoverable error.
type Adapter interface {
	GetCommitGraph(ctx context.Context) (*commitgraph.Graph, error)
	GetCommits(ctx context.Context, ids []string) ([]commitgraph.Commit, error)
	ApplyUpdate(ctx context.Context, update Update) error
	Close() error
	EraseStorage() error
}

// Update is InternalRepoUpdate of spec §6: the minimal diff a
// Repository pushes to its adapter after a commit, reset, or pull.
type Update struct {
	AddedCommits    []commitgraph.Commit
	RemovedCommits  []commitgraph.Metadata
	AddedBranches   []commitgraph.Branch
	UpdatedBranches []commitgraph.Branch
	RemovedBranches []string
}

// IsEmpty reports whether Update carries no changes at all.
func (u Update) IsEmpty() bool {
	return len(u.AddedCommits) == 0 && len(u.RemovedCommits) == 0 &&
		len(u.AddedBranches) == 0 && len(u.UpdatedBranches) == 0 && len(u.RemovedBranches) == 0
}
