// Package automerge implements spec §4.5's auto-merge/sync protocol:
// deterministic seniority-ordered reconciliation of concurrent commits
// across per-device branches, invoked from Repository.Pull. It has no
// direct teacher analogue — microprolly has a single linear history —
// so it is grounded on the teacher's Delta/diff algebra (pkg/tree/diff.go)
// extended with the seniority rule spec.md states directly, plus the
// commit-ancestry-walk idiom of pkg/store/commit.go's Log.
package automerge

import (
	"context"
	"errors"

	"entitydb/pkg/commitgraph"
	"entitydb/pkg/delta"
	"entitydb/pkg/entity"
)

// ErrNoDominant signals an internal inconsistency: dominantAt was
// asked to pick among candidates that dropShorterThan should already
// have excluded.
var ErrNoDominant = errors.New("automerge: no candidate branch has a commit at this position")

// Repo is the subset of repository.Repository's surface Reconcile
// needs. Defined here (rather than imported) to avoid a repository <->
// automerge import cycle — repository.Repository satisfies this
// interface structurally.
type Repo interface {
	CurrentBranch() string
	Graph() *commitgraph.Graph
	Reset(ctx context.Context, relativeToHead int) error
	FastForward(ctx context.Context, commit commitgraph.Commit) error
	Commit(ctx context.Context, d *delta.Delta, message string) (commitgraph.Commit, error)
}

// Reconcile runs the lockstep merge algorithm of spec §4.5 against
// repo's current branch: it walks position p upward, comparing
// repo's local chronology to the most-senior still-live branch's
// commit at each position, rebasing and re-committing repo's own
// commits past any point of divergence. It returns once no senior
// branch has any more commits to compare against.
func Reconcile(ctx context.Context, repo Repo) error {
	local := repo.CurrentBranch()
	// live is R from spec §4.5 step 2: the set of branches still in
	// contention for dominance. It only ever shrinks — once a branch
	// drops out (too short, or diverging from the chosen dominant at
	// some position) it must never re-enter at a later position, or a
	// junior branch with an unrelated, longer history could outlive a
	// senior branch it already lost to (see dropDivergent).
	live := seniorBranches(repo.Graph(), local)

	p := 0
	for {
		g := repo.Graph()

		localHead, err := headOf(g, local)
		if err != nil {
			return err
		}
		localChrono, err := chronologyOf(g, localHead)
		if err != nil {
			return err
		}

		live = dropShorterThan(g, live, p+1)
		if len(live) == 0 {
			return nil
		}

		dominant, err := dominantAt(g, live, p)
		if err != nil {
			return err
		}
		live = dropDivergent(g, live, dominant, p)

		if p < len(localChrono) && localChrono[p].Id == dominant.Id {
			p++
			continue
		}

		ahead := append([]commitgraph.Commit(nil), localChrono[p:]...)
		if len(ahead) > 0 {
			if err := repo.Reset(ctx, -len(ahead)); err != nil {
				return err
			}
		}
		if err := repo.FastForward(ctx, dominant); err != nil {
			return err
		}
		for _, c := range ahead {
			filtered, err := FilterDelta(dominant.DeltaData, c.DeltaData)
			if err != nil {
				return err
			}
			if filtered.Len() > 0 {
				if _, err := repo.Commit(ctx, filtered, c.Message); err != nil {
					return err
				}
			}
		}
		p++
	}
}

func headOf(g *commitgraph.Graph, name string) (string, error) {
	b, err := g.GetBranch(name)
	if err != nil {
		return "", err
	}
	return b.HeadCommitId, nil
}

// chronologyOf returns a branch's commits oldest-first (the reverse of
// Graph.Log, which walks newest-first).
func chronologyOf(g *commitgraph.Graph, headId string) ([]commitgraph.Commit, error) {
	if headId == "" {
		return nil, nil
	}
	log, err := g.Log(headId)
	if err != nil {
		return nil, err
	}
	out := make([]commitgraph.Commit, len(log))
	for i, c := range log {
		out[len(log)-1-i] = c
	}
	return out, nil
}

// seniorBranches returns every branch but local, in the graph's
// existing (seniority) order.
func seniorBranches(g *commitgraph.Graph, local string) []commitgraph.Branch {
	var out []commitgraph.Branch
	for _, b := range g.Branches() {
		if b.Name != local {
			out = append(out, b)
		}
	}
	return out
}

// dropShorterThan filters candidates to those with at least minLen
// commits in their chronology (spec §4.5 step 2a).
func dropShorterThan(g *commitgraph.Graph, candidates []commitgraph.Branch, minLen int) []commitgraph.Branch {
	var out []commitgraph.Branch
	for _, b := range candidates {
		chrono, err := chronologyOf(g, b.HeadCommitId)
		if err != nil {
			continue
		}
		if len(chrono) >= minLen {
			out = append(out, b)
		}
	}
	return out
}

// dropDivergent permanently removes from candidates any branch whose
// commit at position p is not dominant (spec §4.5 step 2b's second
// clause: "drop from R any branch whose commit at p differs from
// dominant"). Branches shorter than p+1 have already been removed by
// dropShorterThan, so every remaining candidate has a commit at p.
func dropDivergent(g *commitgraph.Graph, candidates []commitgraph.Branch, dominant commitgraph.Commit, p int) []commitgraph.Branch {
	var out []commitgraph.Branch
	for _, b := range candidates {
		chrono, err := chronologyOf(g, b.HeadCommitId)
		if err != nil || p >= len(chrono) || chrono[p].Id != dominant.Id {
			continue
		}
		out = append(out, b)
	}
	return out
}

// dominantAt returns the commit at position p on the most-senior
// candidate branch that has one (spec §4.5 step 2b). candidates must
// already be filtered by dropShorterThan for this p.
func dominantAt(g *commitgraph.Graph, candidates []commitgraph.Branch, p int) (commitgraph.Commit, error) {
	for _, b := range candidates {
		chrono, err := chronologyOf(g, b.HeadCommitId)
		if err != nil {
			return commitgraph.Commit{}, err
		}
		if len(chrono) > p {
			return chrono[p], nil
		}
	}
	return commitgraph.Commit{}, ErrNoDominant
}

// FilterDelta applies spec §4.5's per-key conflict rule: local's
// Changes are dropped or trimmed against dominant's Changes for the
// same entity id, producing the Delta that should be re-committed on
// top of dominant.
//
//   - dominant CREATE or DELETE on e: drop local's Change for e entirely.
//   - dominant UPDATE on e:
//   - local CREATE or DELETE on e: drop.
//   - local UPDATE on e: drop only the keys dominant.Forward also
//     touches; keep the rest.
func FilterDelta(dominant, local *delta.Delta) (*delta.Delta, error) {
	out := delta.New()
	for _, c := range local.Changes() {
		dc, ok := dominant.Get(c.EntityId)
		if !ok {
			if err := out.Merge(c); err != nil {
				return nil, err
			}
			continue
		}

		switch dc.KindOf() {
		case delta.KindCreate, delta.KindDelete:
			continue
		case delta.KindUpdate:
			switch c.KindOf() {
			case delta.KindCreate, delta.KindDelete:
				continue
			case delta.KindUpdate:
				trimmed := trimUpdate(c, dc)
				if trimmed.KindOf() == delta.KindEmpty {
					continue
				}
				if err := out.Merge(trimmed); err != nil {
					return nil, err
				}
			default:
				continue
			}
		default:
			if err := out.Merge(c); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// trimUpdate drops from local's field maps any key that dominant's
// forward map also touches, keeping the rest paired.
func trimUpdate(local, dominant delta.Change) delta.Change {
	forward := make(map[string]entity.Value)
	reverse := make(map[string]entity.Value)
	for k, v := range local.Forward {
		if _, touched := dominant.Forward[k]; touched {
			continue
		}
		forward[k] = v
		if rv, ok := local.Reverse[k]; ok {
			reverse[k] = rv
		}
	}
	if len(forward) == 0 {
		return delta.Empty(local.EntityId)
	}
	return delta.Update(local.EntityId, reverse, forward)
}
