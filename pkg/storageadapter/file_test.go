package storageadapter

import (
	"context"
	"testing"

	"entitydb/pkg/commitgraph"

	"github.com/stretchr/testify/require"
)

func TestFile_ApplyUpdateThenReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f, err := OpenFile(dir)
	require.NoError(t, err)

	c1 := commitgraph.Commit{Id: "c1", Timestamp: 1}
	c2 := commitgraph.Commit{Id: "c2", ParentId: "c1", Timestamp: 2}
	require.NoError(t, f.ApplyUpdate(ctx, Update{
		AddedCommits:  []commitgraph.Commit{c1, c2},
		AddedBranches: []commitgraph.Branch{{Name: "main", HeadCommitId: "c2"}},
	}))
	require.NoError(t, f.Close())

	f2, err := OpenFile(dir)
	require.NoError(t, err)
	defer f2.Close()

	g, err := f2.GetCommitGraph(ctx)
	require.NoError(t, err)
	b, err := g.GetBranch("main")
	require.NoError(t, err)
	require.Equal(t, "c2", b.HeadCommitId)

	log, err := g.Log("c2")
	require.NoError(t, err)
	require.Len(t, log, 2)
}

func TestFile_SecondOpenFailsWhileLocked(t *testing.T) {
	dir := t.TempDir()

	f, err := OpenFile(dir)
	require.NoError(t, err)
	defer f.Close()

	_, err = OpenFile(dir)
	require.Error(t, err)
}

func TestFile_EraseStorageRemovesCommitsAndRefs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f, err := OpenFile(dir)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.ApplyUpdate(ctx, Update{
		AddedCommits:  []commitgraph.Commit{{Id: "c1"}},
		AddedBranches: []commitgraph.Branch{{Name: "main", HeadCommitId: "c1"}},
	}))
	require.NoError(t, f.EraseStorage())

	g, err := f.GetCommitGraph(ctx)
	require.NoError(t, err)
	require.Empty(t, g.Branches())
}
