package storageadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"entitydb/pkg/commitgraph"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

var (
	// ErrCommitNotFound mirrors the teacher's cas.ErrHashNotFound shape
	// for the file-backed commit store.
	ErrCommitNotFound = errors.New("storageadapter: commit not found on disk")
)

// File is the embedded production-client Adapter of spec §6, laid out
// the way the teacher lays out its CAS objects and branch refs:
// one JSON file per commit under commits/, one ref file per branch
// under refs/heads/, and a small branch_order.json recording seniority
// order. All writes follow the teacher's write-temp, fsync, rename
// pattern (pkg/cas/cas.go), and a gofrs/flock lock file gives each
// replica process exclusive write access while it holds the adapter.
type File struct {
	baseDir string
	lock    *flock.Flock
	watcher *fsnotify.Watcher
	log     *zap.SugaredLogger
}

// SetLogger installs a logger for this adapter's lifetime; a nil
// logger is ignored, leaving the existing (possibly no-op) one.
func (f *File) SetLogger(log *zap.SugaredLogger) {
	if log == nil {
		return
	}
	f.log = log
}

// OpenFile opens (creating if needed) a File adapter rooted at
// baseDir, taking an exclusive file lock for the adapter's lifetime.
func OpenFile(baseDir string) (*File, error) {
	for _, dir := range []string{baseDir, filepath.Join(baseDir, "commits"), filepath.Join(baseDir, "refs", "heads")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	lock := flock.New(filepath.Join(baseDir, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("storageadapter: acquiring lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("storageadapter: data dir %q is locked by another replica", baseDir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		_, _ = lock.TryUnlock()
		return nil, err
	}
	if err := watcher.Add(filepath.Join(baseDir, "refs", "heads")); err != nil {
		_ = watcher.Close()
		_, _ = lock.TryUnlock()
		return nil, err
	}

	f := &File{baseDir: baseDir, lock: lock, watcher: watcher, log: zap.NewNop().Sugar()}
	f.log.Infow("file adapter opened", "baseDir", baseDir)
	return f, nil
}

// Watch returns a channel that receives a signal whenever another
// process sharing baseDir mutates a branch ref, so a replica can
// re-pull without its own broadcast message (spec §5: "a replica that
// receives a message... issues a pull"). The channel is closed when
// the File adapter is closed.
func (f *File) Watch(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-f.watcher.Events:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case _, ok := <-f.watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out
}

func (f *File) branchOrderPath() string { return filepath.Join(f.baseDir, "branch_order.json") }
func (f *File) refPath(name string) string {
	return filepath.Join(f.baseDir, "refs", "heads", name)
}
func (f *File) commitPath(id string) string {
	return filepath.Join(f.baseDir, "commits", id+".json")
}

// atomicWrite writes data to path via a temp file in the same
// directory, fsync, then rename (the teacher's FileCAS.Write pattern).
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (f *File) readBranchOrder() ([]string, error) {
	data, err := os.ReadFile(f.branchOrderPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (f *File) writeBranchOrder(names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return atomicWrite(f.branchOrderPath(), data)
}

// GetCommitGraph reconstructs the graph from refs/heads/* and
// branch_order.json.
func (f *File) GetCommitGraph(ctx context.Context) (*commitgraph.Graph, error) {
	names, err := f.readBranchOrder()
	if err != nil {
		return nil, err
	}

	g := commitgraph.New()
	for _, name := range names {
		headId, err := f.readRef(name)
		if err != nil {
			return nil, err
		}
		// Commits must be present before SetBranchHead's existence check.
		if headId != "" {
			if err := f.loadAncestryInto(g, headId); err != nil {
				return nil, err
			}
		}
		if err := g.AddBranch(name); err != nil {
			return nil, err
		}
		if headId != "" {
			if err := g.SetBranchHead(name, headId); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// loadAncestryInto reads headId and every ancestor commit file into g,
// stopping at ids already present or at the root.
func (f *File) loadAncestryInto(g *commitgraph.Graph, headId string) error {
	cur := headId
	for cur != "" && !g.HasCommit(cur) {
		c, err := f.readCommit(cur)
		if err != nil {
			return err
		}
		g.AddCommit(c)
		cur = c.ParentId
	}
	return nil
}

func (f *File) readRef(name string) (string, error) {
	data, err := os.ReadFile(f.refPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *File) readCommit(id string) (commitgraph.Commit, error) {
	data, err := os.ReadFile(f.commitPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return commitgraph.Commit{}, fmt.Errorf("%w: %q", ErrCommitNotFound, id)
	}
	if err != nil {
		return commitgraph.Commit{}, err
	}
	var c commitgraph.Commit
	if err := json.Unmarshal(data, &c); err != nil {
		return commitgraph.Commit{}, err
	}
	return c, nil
}

// GetCommits returns the requested commits, erroring on the first
// missing id.
func (f *File) GetCommits(ctx context.Context, ids []string) ([]commitgraph.Commit, error) {
	out := make([]commitgraph.Commit, 0, len(ids))
	for _, id := range ids {
		c, err := f.readCommit(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ApplyUpdate persists update to disk. Commit files are written before
// any ref is updated to point at them, branch_order.json is rewritten
// after the ref files, and removed commit files are deleted only after
// that, so a crash mid-update never leaves a ref pointing at a missing
// commit file.
func (f *File) ApplyUpdate(ctx context.Context, update Update) error {
	for _, c := range update.AddedCommits {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if err := atomicWrite(f.commitPath(c.Id), data); err != nil {
			return err
		}
	}

	names, err := f.readBranchOrder()
	if err != nil {
		return err
	}
	index := make(map[string]bool, len(names))
	for _, n := range names {
		index[n] = true
	}

	for _, b := range update.AddedBranches {
		if !index[b.Name] {
			names = append(names, b.Name)
			index[b.Name] = true
		}
		if err := atomicWrite(f.refPath(b.Name), []byte(b.HeadCommitId)); err != nil {
			return err
		}
	}
	for _, b := range update.UpdatedBranches {
		if err := atomicWrite(f.refPath(b.Name), []byte(b.HeadCommitId)); err != nil {
			return err
		}
	}
	for _, name := range update.RemovedBranches {
		delete(index, name)
		filtered := names[:0]
		for _, n := range names {
			if n != name {
				filtered = append(filtered, n)
			}
		}
		names = filtered
		_ = os.Remove(f.refPath(name))
	}
	if err := f.writeBranchOrder(names); err != nil {
		return err
	}

	for _, rc := range update.RemovedCommits {
		_ = os.Remove(f.commitPath(rc.Id))
	}
	f.log.Debugw("file adapter update applied",
		"commitsAdded", len(update.AddedCommits), "commitsRemoved", len(update.RemovedCommits),
		"branchesAdded", len(update.AddedBranches), "branchesUpdated", len(update.UpdatedBranches))
	return nil
}

// Close releases the watcher and the lock file.
func (f *File) Close() error {
	werr := f.watcher.Close()
	_, lerr := f.lock.TryUnlock()
	if werr != nil {
		return werr
	}
	f.log.Infow("file adapter closed", "baseDir", f.baseDir)
	return lerr
}

// EraseStorage removes everything under baseDir except the lock file.
func (f *File) EraseStorage() error {
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == filepath.Base(f.lock.Path()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(f.baseDir, e.Name())); err != nil {
			return err
		}
	}
	f.log.Infow("file adapter storage erased", "baseDir", f.baseDir)
	return nil
}
