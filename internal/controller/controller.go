// Package controller drives incremental loading of a feed: it pulls pages
// from a source on demand, keeps at most one fetch in flight, appends pages
// in order and remembers when the source is exhausted.
package controller

import (
	"context"
	"errors"
	"sync"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/matheuskafuri/pinfeed/internal/cache"
	"github.com/matheuskafuri/pinfeed/internal/source"
)

var (
	ErrNotInitialized  = errors.New("controller: not initialized")
	ErrInvalidPageSize = errors.New("controller: page size must be positive")
)

type Option func(*Controller)

func WithLogger(l log.Logger) Option {
	return func(c *Controller) { c.log = log.NewHelper(log.With(l, "component", "controller")) }
}

// WithThreshold sets how many items from the end count as "near the end"
// for MaybeLoadMore.
func WithThreshold(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.threshold = n
		}
	}
}

// Controller owns one FeedState. All mutation goes through its methods.
type Controller struct {
	src       source.PageSource
	threshold int
	log       *log.Helper

	mu       sync.Mutex
	gen      uint64 // bumped by Reset; results from older generations are dropped
	pageSize int
	state    State
	items    []cache.Pin
	seen     map[string]struct{}
	next     int
	err      error
}

func New(src source.PageSource, opts ...Option) *Controller {
	c := &Controller{
		src:  src,
		log:  log.NewHelper(log.DefaultLogger),
		seen: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize starts a fresh feed and eagerly loads its first page. A failed
// first fetch leaves the feed empty and Idle, ready for LoadMore to retry.
func (c *Controller) Initialize(ctx context.Context, pageSize int) error {
	if pageSize <= 0 {
		return ErrInvalidPageSize
	}
	c.mu.Lock()
	c.gen++
	c.pageSize = pageSize
	c.state = Idle
	c.items = nil
	c.seen = make(map[string]struct{})
	c.next = 0
	c.err = nil
	c.mu.Unlock()

	_, err := c.LoadMore(ctx)
	return err
}

// Reset discards the current feed, including the result of any fetch still
// in flight, and initializes a new one.
func (c *Controller) Reset(ctx context.Context, pageSize int) error {
	c.log.Infow("msg", "resetting feed", "page_size", pageSize)
	return c.Initialize(ctx, pageSize)
}

// LoadMore fetches the next page and appends it. It is a no-op returning
// (0, nil) while a fetch is already in flight or once the feed is exhausted,
// so any number of proximity signals can call it concurrently.
func (c *Controller) LoadMore(ctx context.Context) (int, error) {
	c.mu.Lock()
	if c.pageSize == 0 {
		c.mu.Unlock()
		return 0, ErrNotInitialized
	}
	if c.state != Idle {
		c.mu.Unlock()
		return 0, nil
	}
	gen, index, size := c.gen, c.next, c.pageSize
	c.state = Fetching
	c.mu.Unlock()

	page, err := c.src.FetchPage(ctx, index, size)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.log.Debugw("msg", "discarding page from a previous feed", "page", index)
		return 0, nil
	}
	if err != nil {
		ferr := &FetchError{Page: index, Err: err}
		c.state = Idle
		c.err = ferr
		c.mu.Unlock()
		c.log.Warnw("msg", "page fetch failed", "page", index, "err", err)
		return 0, ferr
	}

	appended, dups := c.appendLocked(page.Items)
	if page.Last(size) {
		c.state = Exhausted
	} else {
		c.state = Idle
		c.next++
	}
	c.err = nil
	var ierr *InvariantError
	if len(dups) > 0 {
		ierr = &InvariantError{Page: index, Keys: dups, Err: ErrDuplicateKey}
		c.err = ierr
	}
	state, total := c.state, len(c.items)
	c.mu.Unlock()

	c.log.Debugw("msg", "page appended", "page", index, "items", appended, "total", total, "state", state.String())
	if ierr != nil {
		c.log.Errorw("msg", "dropped items with duplicate keys", "page", index, "keys", dups)
		return appended, ierr
	}
	return appended, nil
}

// appendLocked appends pins in order, skipping keys already in the feed.
func (c *Controller) appendLocked(pins []cache.Pin) (int, []string) {
	var dups []string
	n := 0
	for _, p := range pins {
		if _, ok := c.seen[p.Key]; ok {
			dups = append(dups, p.Key)
			continue
		}
		c.seen[p.Key] = struct{}{}
		c.items = append(c.items, p)
		n++
	}
	return n, dups
}

// NearEnd reports whether lastVisible (an index into the feed) is within the
// threshold of the end and a fetch could start.
func (c *Controller) NearEnd(lastVisible int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle || c.pageSize == 0 {
		return false
	}
	return lastVisible >= len(c.items)-1-c.threshold
}

// MaybeLoadMore is the proximity signal: it loads the next page only when
// lastVisible is near the end of the feed.
func (c *Controller) MaybeLoadMore(ctx context.Context, lastVisible int) (int, error) {
	if !c.NearEnd(lastVisible) {
		return 0, nil
	}
	return c.LoadMore(ctx)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Items:    append([]cache.Pin(nil), c.items...),
		NextPage: c.next,
		State:    c.state,
		Err:      c.err,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Controller) PageSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageSize
}
