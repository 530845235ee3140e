// Package repository implements spec §4.4's Repository: the object
// that ties an indexed head store, a commit graph, a hash tree, and a
// storage adapter together behind commit/reset/pull. Grounded on the
// teacher's Store (pkg/store/store.go), generalized from a single
// linear HEAD to a multi-branch commit graph.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"entitydb/pkg/automerge"
	"entitydb/pkg/broadcast"
	"entitydb/pkg/clock"
	"entitydb/pkg/commitgraph"
	"entitydb/pkg/delta"
	"entitydb/pkg/entity"
	"entitydb/pkg/entitystore"
	"entitydb/pkg/hashtree"
	"entitydb/pkg/idgen"
	"entitydb/pkg/storageadapter"
)

var (
	// ErrNoBranch is returned when no current branch is set.
	ErrNoBranch = errors.New("repository: no current branch set")
	// ErrResetDirection is returned for Reset calls with k >= 0 (spec
	// §4.4: "Forward reset and k > 0 are unsupported").
	ErrResetDirection = errors.New("repository: reset only supports a negative relativeToHead")
	// ErrNotEnoughHistory is returned when Reset asks for more trailing
	// commits than the branch has.
	ErrNotEnoughHistory = errors.New("repository: not enough commit history to reset that far")
	// ErrHashMismatch is the hard error for reset/pull snapshot
	// verification failing (spec §4.4 "Failure semantics").
	ErrHashMismatch = errors.New("repository: resulting snapshot hash does not match expected commit hash")
	// ErrMissingCommitDelta is returned when a remote's slim update
	// names an added commit id the remote didn't supply full data for.
	ErrMissingCommitDelta = errors.New("repository: remote did not supply delta data for an added commit")
)

// Repository is one replica's view of a project: head store + commit
// graph + hash tree + current branch + storage adapter.
type Repository struct {
	mu sync.Mutex

	store  *entitystore.Store
	tree   *hashtree.Tree
	graph  *commitgraph.Graph
	branch string

	adapter storageadapter.Adapter
	clock   clock.Clock
	ids     idgen.Generator
	log     *zap.SugaredLogger

	broadcastCh *broadcast.Channel
	replicaId   string
	projectId   string
	unsubscribe func()
}

// Options bundles the collaborators a Repository needs beyond its
// storage adapter (spec §6/§9's "collaborator surface"). Logger is
// optional; a nil Logger logs nowhere (zap.NewNop()). Broadcast is
// optional; a nil Broadcast means the repository never publishes or
// reacts to repo-update messages (spec §5/§6), which is the correct
// behavior for a single-shot CLI invocation that always pulls fresh on
// open anyway.
type Options struct {
	Registry     *entity.Registry
	IndexConfigs []entitystore.IndexConfig
	Branch       string
	Adapter      storageadapter.Adapter
	Clock        clock.Clock
	IDs          idgen.Generator
	Logger       *zap.SugaredLogger
	Broadcast    *broadcast.Channel
	ReplicaId    string
	ProjectId    string
}

func newEmpty(opts Options) (*Repository, error) {
	store, err := entitystore.New(opts.Registry, opts.IndexConfigs)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Repository{
		store:       store,
		tree:        hashtree.New(),
		graph:       commitgraph.New(),
		branch:      opts.Branch,
		adapter:     opts.Adapter,
		clock:       opts.Clock,
		ids:         opts.IDs,
		log:         logger,
		broadcastCh: opts.Broadcast,
		replicaId:   opts.ReplicaId,
		projectId:   opts.ProjectId,
	}, nil
}

// Create initializes a brand-new project: an empty head store and
// hash tree, and the configured default branch created on the adapter
// (spec §4.4).
func Create(ctx context.Context, opts Options) (*Repository, error) {
	r, err := newEmpty(opts)
	if err != nil {
		return nil, err
	}
	if err := r.graph.AddBranch(r.branch); err != nil {
		return nil, err
	}
	if _, err := r.tree.UpdateRootHash(); err != nil {
		return nil, err
	}
	err = r.adapter.ApplyUpdate(ctx, storageadapter.Update{
		AddedBranches: []commitgraph.Branch{{Name: r.branch}},
	})
	if err != nil {
		return nil, err
	}
	r.log.Infow("repository created", "branch", r.branch)
	r.unsubscribe = r.Subscribe(ctx, r.adapter)
	return r, nil
}

// Open loads the commit graph from the adapter, then pulls from the
// adapter to populate the head store and hash tree (spec §4.4).
func Open(ctx context.Context, opts Options) (*Repository, error) {
	r, err := newEmpty(opts)
	if err != nil {
		return nil, err
	}
	if _, err := r.tree.UpdateRootHash(); err != nil {
		return nil, err
	}
	if err := r.Pull(ctx, r.adapter); err != nil {
		return nil, err
	}
	r.log.Infow("repository opened", "branch", r.branch)
	r.unsubscribe = r.Subscribe(ctx, r.adapter)
	return r, nil
}

// Subscribe starts a background goroutine that issues a Pull against
// remote whenever a repo-update message arrives on this repository's
// broadcast channel whose origin is not this replica (spec §5: "a
// replica that receives a message not originating from itself ...
// issues a pull"). It returns a stop function that unsubscribes and
// waits for the goroutine to exit. If no Broadcast channel was
// configured (Options.Broadcast is nil), it does nothing and returns a
// no-op stop function. Create and Open call this automatically against
// their own adapter; callers embedding multiple replicas in one
// process over a shared broadcast.Channel get cross-replica pull
// notifications for free.
func (r *Repository) Subscribe(ctx context.Context, remote storageadapter.Adapter) (stop func()) {
	if r.broadcastCh == nil {
		return func() {}
	}
	msgs, unsubscribe := r.broadcastCh.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if msg.OriginReplicaId == r.replicaId {
					continue
				}
				if err := r.Pull(ctx, remote); err != nil {
					r.log.Warnw("pull triggered by repo-update message failed", "error", err)
				}
			}
		}
	}()
	return func() {
		unsubscribe()
		<-done
	}
}

// Close stops this repository's background repo-update subscription,
// if one was started. It does not close the storage adapter, which the
// caller owns. Safe to call on a repository with no broadcast channel
// configured; it is then a no-op.
func (r *Repository) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

// CurrentBranch returns the repository's checked-out branch name.
func (r *Repository) CurrentBranch() string { return r.branch }

// EnsureBranch registers the repository's current branch, locally and
// on the adapter, if it isn't already known — a no-op otherwise. This
// lets a caller Open an existing project and lazily register a brand
// new per-replica branch against it in one step, without discarding
// whatever Open already pulled from other branches.
func (r *Repository) EnsureBranch(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.graph.GetBranch(r.branch); err == nil {
		return nil
	}
	if err := r.graph.AddBranch(r.branch); err != nil {
		return err
	}
	if err := r.adapter.ApplyUpdate(ctx, storageadapter.Update{
		AddedBranches: []commitgraph.Branch{{Name: r.branch}},
	}); err != nil {
		return err
	}
	r.log.Infow("branch registered", "branch", r.branch)
	return nil
}

// Head returns the current branch's head commit id, or "" if the
// branch has no commits yet.
func (r *Repository) Head() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.graph.GetBranch(r.branch)
	if err != nil {
		return "", err
	}
	return b.HeadCommitId, nil
}

// Get returns a deep copy of the entity for id from the head store.
func (r *Repository) Get(id string) (*entity.Entity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Get(id)
}

// Find runs filter against the head store (see entitystore.Store.Find).
func (r *Repository) Find(filter entitystore.Filter) []*entity.Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Entity
	for e := range r.store.Find(filter) {
		out = append(out, e)
	}
	return out
}

// Graph returns a snapshot copy of the repository's in-memory commit
// graph, for read-only inspection (e.g. by pkg/automerge's Reconcile).
func (r *Repository) Graph() *commitgraph.Graph {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.graphSnapshotLocked()
}

// graphSnapshotLocked builds the same copy Graph returns, for callers
// that already hold r.mu (e.g. publishLocked).
func (r *Repository) graphSnapshotLocked() *commitgraph.Graph {
	snapshot := commitgraph.New()
	for _, id := range r.graph.CommitIds() {
		c, _ := r.graph.GetCommit(id)
		snapshot.AddCommit(c)
	}
	for _, b := range r.graph.Branches() {
		_ = snapshot.AddBranch(b.Name)
		if b.HeadCommitId != "" {
			_ = snapshot.SetBranchHead(b.Name, b.HeadCommitId)
		}
	}
	return snapshot
}

// RepoUpdate is the payload of the "repo-update" broadcast message
// (spec §6): the repository's current commit graph plus whichever
// commits just arrived, so a subscriber can decide locally whether it
// needs to pull rather than always paying a round trip.
type RepoUpdate struct {
	CommitGraph *commitgraph.Graph
	NewCommits  []commitgraph.Commit
}

// publishLocked pushes a repo-update message over the configured
// broadcast channel, if one was supplied. Must be called with r.mu
// held; it only touches r.graph (via graphSnapshotLocked) and the
// broadcast Channel, which has its own independent lock, so this
// cannot deadlock against r.mu.
func (r *Repository) publishLocked(newCommits []commitgraph.Commit) {
	if r.broadcastCh == nil || len(newCommits) == 0 {
		return
	}
	r.broadcastCh.Publish(broadcast.Message{
		ProjectId:       r.projectId,
		OriginReplicaId: r.replicaId,
		Update: RepoUpdate{
			CommitGraph: r.graphSnapshotLocked(),
			NewCommits:  newCommits,
		},
	})
}

// FastForward adopts commit directly as the current branch's new head
// without generating a fresh id: used by automerge.Reconcile to bring
// the local branch in line with a more senior branch's already-hydrated
// commit (spec §4.5: "Apply the dominant commit locally"). commit must
// already chain onto the current head via ParentId.
func (r *Repository) FastForward(ctx context.Context, commit commitgraph.Commit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.branch == "" {
		return ErrNoBranch
	}
	branch, err := r.graph.GetBranch(r.branch)
	if err != nil {
		return err
	}
	if commit.ParentId != branch.HeadCommitId {
		return fmt.Errorf("repository: fast-forward commit %q does not chain onto current head %q", commit.Id, branch.HeadCommitId)
	}

	if err := r.store.ApplyDelta(commit.DeltaData); err != nil {
		return err
	}
	h, err := hashtree.ApplyDelta(r.tree, r.store.Get, commit.DeltaData)
	if err != nil {
		return err
	}
	if h != commit.SnapshotHash {
		return ErrHashMismatch
	}

	r.graph.AddCommit(commit)
	if err := r.graph.SetBranchHead(r.branch, commit.Id); err != nil {
		return err
	}
	if err := r.adapter.ApplyUpdate(ctx, storageadapter.Update{
		UpdatedBranches: []commitgraph.Branch{{Name: r.branch, HeadCommitId: commit.Id}},
	}); err != nil {
		return err
	}
	r.log.Debugw("fast-forwarded", "branch", r.branch, "commitId", commit.Id)
	return nil
}

// Log returns the current branch's commits, newest first.
func (r *Repository) Log() ([]commitgraph.Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.graph.GetBranch(r.branch)
	if err != nil {
		return nil, err
	}
	if b.HeadCommitId == "" {
		return nil, nil
	}
	return r.graph.Log(b.HeadCommitId)
}

// Commit applies d to the head store, updates the hash tree, appends a
// new Commit to the current branch, and persists the minimal update
// through the adapter (spec §4.4).
func (r *Repository) Commit(ctx context.Context, d *delta.Delta, message string) (commitgraph.Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.branch == "" {
		return commitgraph.Commit{}, ErrNoBranch
	}

	branch, err := r.graph.GetBranch(r.branch)
	if err != nil {
		return commitgraph.Commit{}, err
	}

	if err := r.store.ApplyDelta(d); err != nil {
		return commitgraph.Commit{}, err
	}
	h, err := hashtree.ApplyDelta(r.tree, r.store.Get, d)
	if err != nil {
		return commitgraph.Commit{}, err
	}

	commit := commitgraph.Commit{
		Id:           r.ids.New(),
		ParentId:     branch.HeadCommitId,
		SnapshotHash: h,
		Timestamp:    r.clock.Now(),
		Message:      message,
		DeltaData:    d,
	}
	r.graph.AddCommit(commit)
	if err := r.graph.SetBranchHead(r.branch, commit.Id); err != nil {
		return commitgraph.Commit{}, err
	}

	err = r.adapter.ApplyUpdate(ctx, storageadapter.Update{
		AddedCommits:    []commitgraph.Commit{commit},
		UpdatedBranches: []commitgraph.Branch{{Name: r.branch, HeadCommitId: commit.Id}},
	})
	if err != nil {
		return commitgraph.Commit{}, err
	}
	r.log.Infow("commit created", "branch", r.branch, "commitId", commit.Id, "changes", d.Len())
	r.publishLocked([]commitgraph.Commit{commit})
	return commit, nil
}

// Reset rewinds the current branch by -relativeToHead commits (only
// negative values are supported), restoring head-store and hash-tree
// state to exactly what it was before those commits, verified against
// the target commit's recorded snapshot hash (spec §4.4).
func (r *Repository) Reset(ctx context.Context, relativeToHead int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if relativeToHead >= 0 {
		return ErrResetDirection
	}
	k := -relativeToHead

	branch, err := r.graph.GetBranch(r.branch)
	if err != nil {
		return err
	}
	log, err := r.graph.Log(branch.HeadCommitId)
	if err != nil {
		return err
	}
	if len(log) < k {
		return ErrNotEnoughHistory
	}
	trailing := log[:k] // newest first

	reversedDeltas := make([]*delta.Delta, k)
	for i, c := range trailing {
		reversedDeltas[i] = c.DeltaData.Reversed()
	}
	net, err := delta.Squish(reversedDeltas)
	if err != nil {
		return err
	}

	if err := r.store.ApplyDelta(net); err != nil {
		return err
	}
	h, err := hashtree.ApplyDelta(r.tree, r.store.Get, net)
	if err != nil {
		return err
	}

	targetId := trailing[k-1].ParentId
	targetHash, err := r.expectedHashFor(targetId)
	if err != nil {
		return err
	}
	if h != targetHash {
		return ErrHashMismatch
	}

	removed := make([]commitgraph.Metadata, k)
	for i, c := range trailing {
		removed[i] = c.AsMetadata()
		r.graph.RemoveCommit(c.Id)
	}
	if err := r.graph.SetBranchHead(r.branch, targetId); err != nil {
		return err
	}

	if err := r.adapter.ApplyUpdate(ctx, storageadapter.Update{
		RemovedCommits:  removed,
		UpdatedBranches: []commitgraph.Branch{{Name: r.branch, HeadCommitId: targetId}},
	}); err != nil {
		return err
	}
	r.log.Infow("reset", "branch", r.branch, "commitsRemoved", k, "newHead", targetId)
	return nil
}

// expectedHashFor returns the snapshot hash a reset to targetId should
// produce: the empty-tree hash for "" (no commits left), else the
// recorded snapshot hash of targetId.
func (r *Repository) expectedHashFor(targetId string) (hashtree.Hash, error) {
	if targetId == "" {
		empty := hashtree.New()
		return empty.UpdateRootHash()
	}
	c, err := r.graph.GetCommit(targetId)
	if err != nil {
		return hashtree.Hash{}, err
	}
	return c.SnapshotHash, nil
}

// Pull reconciles this repository's cache and adapter with remote,
// per spec §4.4: a slim diff of commit graphs, hydrated to full
// commits, persisted through the adapter, then mirrored into the
// in-memory cache by squishing the commits the current branch is
// behind and verifying the resulting hash. It then runs the
// seniority-ordered automerge reconciliation (spec §4.5) against every
// other branch in the graph, since pullLocked only fast-forwards the
// straightforward, non-conflicting case. If the current branch is not
// registered yet (e.g. Open before EnsureBranch), there is no local
// chronology to reconcile and Pull stops after the mirror step.
func (r *Repository) Pull(ctx context.Context, remote storageadapter.Adapter) error {
	r.mu.Lock()
	err := r.pullLocked(ctx, remote)
	_, branchErr := r.graph.GetBranch(r.branch)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	if branchErr != nil {
		return nil
	}
	// Reconcile's own calls (Reset/Commit/FastForward/Graph) each take
	// r.mu independently, so it must run outside the lock above.
	return automerge.Reconcile(ctx, r)
}

func (r *Repository) pullLocked(ctx context.Context, remote storageadapter.Adapter) error {
	remoteGraph, err := remote.GetCommitGraph(ctx)
	if err != nil {
		return err
	}

	addedIds, removedIds := diffCommitIds(r.graph, remoteGraph)
	addedBranches, updatedBranches, removedBranches, err := diffBranches(r.graph, remoteGraph, r.branch)
	if err != nil {
		return err
	}

	var hydrated []commitgraph.Commit
	if len(addedIds) > 0 {
		hydrated, err = remote.GetCommits(ctx, addedIds)
		if err != nil {
			return err
		}
		if len(hydrated) != len(addedIds) {
			return ErrMissingCommitDelta
		}
	}

	removedMeta := make([]commitgraph.Metadata, 0, len(removedIds))
	for _, id := range removedIds {
		c, err := r.graph.GetCommit(id)
		if err != nil {
			return err
		}
		removedMeta = append(removedMeta, c.AsMetadata())
	}

	// Only mirror the diff into r.adapter when remote is a distinct
	// store: if remote is r.adapter itself (Open's initial pull, or any
	// self-pull), the "added" branches/commits already live there and
	// re-applying them as an insert would collide with ErrBranchExists.
	if remote != storageadapter.Adapter(r.adapter) {
		update := storageadapter.Update{
			AddedCommits:    hydrated,
			RemovedCommits:  removedMeta,
			AddedBranches:   addedBranches,
			UpdatedBranches: updatedBranches,
			RemovedBranches: removedBranches,
		}
		if err := r.adapter.ApplyUpdate(ctx, update); err != nil {
			return err
		}
	}

	for _, id := range removedIds {
		r.graph.RemoveCommit(id)
	}
	for _, c := range hydrated {
		r.graph.AddCommit(c)
	}

	// Rebuild the branch list in remote's order rather than appending
	// newly-discovered branches at the end of local's list: seniority
	// is branch-creation order, and remote (the shared store) is the
	// authority on it. Appending in pull-discovery order would let a
	// branch's local seniority rank depend on when each replica
	// happened to learn about it, breaking automerge's determinism.
	if err := r.rebuildBranchOrder(remoteGraph, removedBranches); err != nil {
		return err
	}

	if r.branch != "" {
		if err := r.mirrorCurrentBranch(ctx, remoteGraph); err != nil {
			return err
		}
	}
	r.log.Debugw("pulled", "branch", r.branch, "commitsAdded", len(hydrated), "commitsRemoved", len(removedIds))
	r.publishLocked(hydrated)
	return nil
}

// rebuildBranchOrder replaces r.graph's branch list with one ordered
// like remoteGraph's (remote is authoritative for seniority), carrying
// over commits. Every branch remote reports takes remote's head, except
// the current branch, which keeps its existing local head (left unset
// if newly discovered), since only mirrorCurrentBranch may advance it,
// and only after verification. Branches only local knows keep their
// local head.
// excluded names branches diffBranches determined remote no longer
// has; dropping the current branch this way is refused upstream.
func (r *Repository) rebuildBranchOrder(remoteGraph *commitgraph.Graph, excluded []string) error {
	excludedSet := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		excludedSet[name] = true
	}

	localHeads := make(map[string]string)
	for _, b := range r.graph.Branches() {
		localHeads[b.Name] = b.HeadCommitId
	}

	next := commitgraph.New()
	for _, id := range r.graph.CommitIds() {
		c, _ := r.graph.GetCommit(id)
		next.AddCommit(c)
	}

	place := func(name, head string) error {
		if err := next.AddBranch(name); err != nil {
			return err
		}
		if head != "" {
			return next.SetBranchHead(name, head)
		}
		return nil
	}

	remoteOrder := remoteGraph.Branches()
	remoteNames := make(map[string]bool, len(remoteOrder))
	for _, b := range remoteOrder {
		remoteNames[b.Name] = true
		if excludedSet[b.Name] {
			continue
		}
		head := b.HeadCommitId
		if b.Name == r.branch {
			head = localHeads[b.Name] // "" if not seenLocally yet
		}
		if err := place(b.Name, head); err != nil {
			return err
		}
	}
	// Branches local knows about that remote hasn't reported (not yet
	// pushed anywhere else, or mid-propagation), preserved at the end
	// in their existing relative order.
	for _, b := range r.graph.Branches() {
		if remoteNames[b.Name] || excludedSet[b.Name] {
			continue
		}
		if err := place(b.Name, b.HeadCommitId); err != nil {
			return err
		}
	}

	r.graph = next
	return nil
}

// mirrorCurrentBranch squishes the commits the local branch is behind
// the remote branch's head, applies the net delta to the head store
// and hash tree, and verifies the resulting hash against the remote
// head's recorded snapshotHash, before the branch head itself is
// advanced.
func (r *Repository) mirrorCurrentBranch(ctx context.Context, remoteGraph *commitgraph.Graph) error {
	remoteBranch, err := remoteGraph.GetBranch(r.branch)
	if err != nil {
		// Remote doesn't know this branch yet; nothing to mirror.
		return nil
	}
	localBranch, err := r.graph.GetBranch(r.branch)
	if err != nil {
		return err
	}
	if remoteBranch.HeadCommitId == localBranch.HeadCommitId {
		return nil
	}

	behind, err := r.graph.AncestryPath(localBranch.HeadCommitId, remoteBranch.HeadCommitId)
	if err != nil {
		return err
	}
	deltas := make([]*delta.Delta, len(behind))
	for i, c := range behind {
		deltas[i] = c.DeltaData
	}
	net, err := delta.Squish(deltas)
	if err != nil {
		return err
	}

	if err := r.store.ApplyDelta(net); err != nil {
		return err
	}
	h, err := hashtree.ApplyDelta(r.tree, r.store.Get, net)
	if err != nil {
		return err
	}

	remoteHeadCommit, err := r.graph.GetCommit(remoteBranch.HeadCommitId)
	if err != nil {
		return err
	}
	if h != remoteHeadCommit.SnapshotHash {
		return ErrHashMismatch
	}

	if err := r.graph.SetBranchHead(r.branch, remoteBranch.HeadCommitId); err != nil {
		return err
	}
	r.log.Debugw("mirrored current branch", "branch", r.branch, "head", remoteBranch.HeadCommitId)
	return nil
}

// diffCommitIds returns (added, removed): commit ids present in
// remote but not local, and present in local but not remote.
func diffCommitIds(local, remote *commitgraph.Graph) (added, removed []string) {
	remoteSet := make(map[string]bool)
	for _, id := range remote.CommitIds() {
		remoteSet[id] = true
	}
	localSet := make(map[string]bool)
	for _, id := range local.CommitIds() {
		localSet[id] = true
		if !remoteSet[id] {
			removed = append(removed, id)
		}
	}
	for id := range remoteSet {
		if !localSet[id] {
			added = append(added, id)
		}
	}
	return added, removed
}

// diffBranches computes branch adds/updates/removes by branch-name
// set and head-id delta. Removing current is refused per spec §4.4.
func diffBranches(local, remote *commitgraph.Graph, current string) (added, updated []commitgraph.Branch, removed []string, err error) {
	remoteByName := make(map[string]commitgraph.Branch)
	for _, b := range remote.Branches() {
		remoteByName[b.Name] = b
	}
	localByName := make(map[string]commitgraph.Branch)
	for _, b := range local.Branches() {
		localByName[b.Name] = b
		if _, ok := remoteByName[b.Name]; !ok {
			if b.Name == current {
				return nil, nil, nil, fmt.Errorf("%w: %q", commitgraph.ErrRemoveCurrentBranch, b.Name)
			}
			removed = append(removed, b.Name)
		}
	}
	for name, rb := range remoteByName {
		if lb, ok := localByName[name]; !ok {
			added = append(added, rb)
		} else if lb.HeadCommitId != rb.HeadCommitId {
			updated = append(updated, rb)
		}
	}
	return added, updated, removed, nil
}
