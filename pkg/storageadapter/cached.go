package storageadapter

import (
	"context"
	"fmt"
	"time"

	"entitydb/pkg/commitgraph"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// CachedRemote wraps any Adapter — intended for a remote-service
// wrapper talking over a network, the third adapter kind spec §6
// expects — with a bounded commit cache and retry-with-backoff around
// every GetCommitGraph, GetCommits and ApplyUpdate call (Close and
// EraseStorage are passed through once), so repeated GetCommits calls
// against a slow backing adapter are cheap and transient network errors don't bubble up as
// hard failures.
type CachedRemote struct {
	backing Adapter
	cache   *ristretto.Cache
	retry   func(context.Context, func() error) error
	log     *zap.SugaredLogger
}

// SetLogger installs a logger for this adapter's lifetime; a nil
// logger is ignored, leaving the existing (possibly no-op) one.
func (c *CachedRemote) SetLogger(log *zap.SugaredLogger) {
	if log == nil {
		return
	}
	c.log = log
}

// NewCachedRemote wraps backing with a ristretto commit cache and
// exponential-backoff retry.
func NewCachedRemote(backing Adapter) (*CachedRemote, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 20, // each commit is cached with cost 1, so ~1M commits
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("storageadapter: building commit cache: %w", err)
	}
	return &CachedRemote{
		backing: backing,
		cache:   cache,
		retry:   retryWithBackoff,
		log:     zap.NewNop().Sugar(),
	}, nil
}

// retryWithBackoff retries op with exponential backoff, bounded to a
// few seconds total, honoring ctx cancellation.
func retryWithBackoff(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	return backoff.Retry(op, b)
}

// GetCommitGraph always goes to the backing adapter: the commit graph
// is small and must reflect the latest branch heads.
func (c *CachedRemote) GetCommitGraph(ctx context.Context) (*commitgraph.Graph, error) {
	var g *commitgraph.Graph
	err := c.retry(ctx, func() error {
		var opErr error
		g, opErr = c.backing.GetCommitGraph(ctx)
		return opErr
	})
	return g, err
}

// GetCommits serves from cache where possible; commits are immutable
// once written, so a cache hit never needs revalidation.
func (c *CachedRemote) GetCommits(ctx context.Context, ids []string) ([]commitgraph.Commit, error) {
	out := make([]commitgraph.Commit, 0, len(ids))
	var missing []string
	for _, id := range ids {
		if v, ok := c.cache.Get(id); ok {
			out = append(out, v.(commitgraph.Commit))
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	var fetched []commitgraph.Commit
	err := c.retry(ctx, func() error {
		var opErr error
		fetched, opErr = c.backing.GetCommits(ctx, missing)
		return opErr
	})
	if err != nil {
		c.log.Warnw("fetching commits from backing adapter failed after retries", "missing", len(missing), "error", err)
		return nil, err
	}
	c.log.Debugw("cached remote commit fetch", "hits", len(ids)-len(missing), "misses", len(missing))
	for _, commit := range fetched {
		c.cache.SetWithTTL(commit.Id, commit, 1, 24*time.Hour)
		out = append(out, commit)
	}
	return out, nil
}

// ApplyUpdate forwards to the backing adapter with retry, and primes
// the cache with any newly added commits.
func (c *CachedRemote) ApplyUpdate(ctx context.Context, update Update) error {
	err := c.retry(ctx, func() error {
		return c.backing.ApplyUpdate(ctx, update)
	})
	if err != nil {
		return err
	}
	for _, commit := range update.AddedCommits {
		c.cache.SetWithTTL(commit.Id, commit, 1, 24*time.Hour)
	}
	for _, rc := range update.RemovedCommits {
		c.cache.Del(rc.Id)
	}
	return nil
}

// Close closes the cache and the backing adapter.
func (c *CachedRemote) Close() error {
	c.cache.Close()
	return c.backing.Close()
}

// EraseStorage clears the cache and the backing adapter's storage.
func (c *CachedRemote) EraseStorage() error {
	c.cache.Clear()
	return c.backing.EraseStorage()
}
