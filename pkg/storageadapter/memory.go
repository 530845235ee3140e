package storageadapter

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"entitydb/pkg/commitgraph"
)

// Memory is the in-memory test Adapter of spec §6 ("at least three
// adapters are expected: in-memory (test)...").
type Memory struct {
	mu    sync.Mutex
	graph *commitgraph.Graph
	log   *zap.SugaredLogger
}

// NewMemory returns an empty Memory adapter.
func NewMemory() *Memory {
	return &Memory{graph: commitgraph.New(), log: zap.NewNop().Sugar()}
}

// SetLogger installs a logger for this adapter's lifetime; a nil
// logger is ignored, leaving the existing (possibly no-op) one.
func (m *Memory) SetLogger(log *zap.SugaredLogger) {
	if log == nil {
		return
	}
	m.log = log
}

// GetCommitGraph returns a snapshot of the adapter's graph.
func (m *Memory) GetCommitGraph(ctx context.Context) (*commitgraph.Graph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneGraph(m.graph), nil
}

// GetCommits returns the requested commits, erroring if any id is
// missing (spec §4.4: "Sanity-check the slim update: the supplied
// full-commit list must cover every added id").
func (m *Memory) GetCommits(ctx context.Context, ids []string) ([]commitgraph.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]commitgraph.Commit, 0, len(ids))
	for _, id := range ids {
		c, err := m.graph.GetCommit(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ApplyUpdate applies update to the adapter's graph atomically: it
// builds the new graph fully before swapping it in, so a failure
// midway never leaves the live graph half-updated.
func (m *Memory) ApplyUpdate(ctx context.Context, update Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := cloneGraph(m.graph)
	if err := applyUpdateToGraph(next, update); err != nil {
		return err
	}
	m.graph = next
	m.log.Debugw("memory adapter update applied",
		"commitsAdded", len(update.AddedCommits), "commitsRemoved", len(update.RemovedCommits),
		"branchesAdded", len(update.AddedBranches), "branchesUpdated", len(update.UpdatedBranches))
	return nil
}

// Close is a no-op for the in-memory adapter.
func (m *Memory) Close() error { return nil }

// EraseStorage discards all graph state.
func (m *Memory) EraseStorage() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph = commitgraph.New()
	m.log.Infow("memory adapter storage erased")
	return nil
}

// applyUpdateToGraph folds update into g in place: removed commits
// first, then added commits, then branch adds/updates/removes, in
// that order so a removed+re-added id round-trips cleanly.
func applyUpdateToGraph(g *commitgraph.Graph, update Update) error {
	for _, rc := range update.RemovedCommits {
		g.RemoveCommit(rc.Id)
	}
	for _, c := range update.AddedCommits {
		g.AddCommit(c)
	}
	for _, b := range update.AddedBranches {
		if err := g.AddBranch(b.Name); err != nil {
			return err
		}
		if b.HeadCommitId != "" {
			if err := g.SetBranchHead(b.Name, b.HeadCommitId); err != nil {
				return err
			}
		}
	}
	for _, b := range update.UpdatedBranches {
		if err := g.SetBranchHead(b.Name, b.HeadCommitId); err != nil {
			return err
		}
	}
	for _, name := range update.RemovedBranches {
		if err := g.RemoveBranch(name, ""); err != nil {
			return err
		}
	}
	return nil
}

// cloneGraph deep-copies g's branch list and commit map. Commits are
// copied before branches so SetBranchHead's existence check passes.
func cloneGraph(g *commitgraph.Graph) *commitgraph.Graph {
	out := commitgraph.New()
	for _, id := range g.CommitIds() {
		c, _ := g.GetCommit(id)
		out.AddCommit(c)
	}
	for _, b := range g.Branches() {
		_ = out.AddBranch(b.Name)
		if b.HeadCommitId != "" {
			_ = out.SetBranchHead(b.Name, b.HeadCommitId)
		}
	}
	return out
}
