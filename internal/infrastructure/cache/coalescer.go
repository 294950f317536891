package cache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Coalescer merges concurrent identical in-flight requests into one upstream
// call. It is an injected dependency, not a singleton, so tests can use a
// fresh instance per case and deployments can shard by scope.
type Coalescer struct {
	group singleflight.Group
}

// NewCoalescer creates an empty coalescer
func NewCoalescer() *Coalescer {
	return &Coalescer{}
}

// Do executes fn under the key, guaranteeing at most one concurrent execution
// per key. Concurrent callers receive the first completer's result or error.
// The in-flight entry is removed once fn returns, on success and on failure.
func (c *Coalescer) Do(ctx context.Context, key string, fn func() (interface{}, error)) (interface{}, bool, error) {
	ch := c.group.DoChan(key, fn)
	select {
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Forget drops any in-flight entry for the key
func (c *Coalescer) Forget(key string) {
	c.group.Forget(key)
}
