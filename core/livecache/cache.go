package livecache

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/vocsite/chuo/core"
)

// Record is the minimal shape a cached row must expose. Ids are assigned by
// the gateway; the cache never fabricates them.
type Record interface {
	RecordID() string
	RecordCreatedAt() time.Time
}

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one inbound change-feed notification for a collection.
type Event[T Record] struct {
	Type EventType
	Row  T
}

// Source is the read side of one remote collection: a bulk query ordered by
// creation time descending, plus its change feed.
type Source[T Record] interface {
	Query(ctx context.Context) ([]T, error)
	Changes(ctx context.Context) (<-chan Event[T], error)
}

// Cache mirrors one remote collection in memory, newest-first by creation
// timestamp. All mutation funnels through Apply: the change feed and the
// direct write-through results use the same reduction, so a row arriving
// twice (direct result then push confirmation, in either order) is applied
// once.
type Cache[T Record] struct {
	src    Source[T]
	logger core.Logger

	mu      sync.RWMutex
	rows    []T
	loading bool
	loadErr error

	cancel context.CancelFunc
	done   chan struct{}
}

func New[T Record](src Source[T], logger core.Logger) *Cache[T] {
	return &Cache[T]{src: src, logger: logger, loading: true}
}

// Start performs the initial bulk load, then consumes the change feed until
// Stop is called or ctx is done. A failed load leaves the cache empty and
// not loading; LoadErr discriminates that from empty-with-no-data.
func (c *Cache[T]) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	events, err := c.src.Changes(ctx)
	if err != nil {
		cancel()
		close(c.done)
		c.setLoadResult(nil, errors.Wrap(err, "subscribing to changes"))
		return c.LoadErr()
	}

	rows, err := c.src.Query(ctx)
	if err != nil {
		c.setLoadResult(nil, errors.Wrap(err, "loading collection"))
	} else {
		c.setLoadResult(rows, nil)
	}

	go c.reduce(events)
	return c.LoadErr()
}

// Stop unsubscribes from the change feed and waits for the reducer to drain.
func (c *Cache[T]) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *Cache[T]) setLoadResult(rows []T, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	c.loadErr = err
	if err == nil {
		c.rows = rows
	}
}

func (c *Cache[T]) reduce(events <-chan Event[T]) {
	defer close(c.done)
	for evt := range events {
		c.Apply(evt)
	}
}

// List returns a snapshot of the collection, newest-first. It never blocks
// on the gateway; before the initial load completes it returns empty.
func (c *Cache[T]) List() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.rows))
	copy(out, c.rows)
	return out
}

// Get looks the row up in memory. Absence is an expected condition, reported
// via the bool, never an error.
func (c *Cache[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, row := range c.rows {
		if row.RecordID() == id {
			return row, true
		}
	}
	var zero T
	return zero, false
}

func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

func (c *Cache[T]) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

func (c *Cache[T]) LoadErr() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadErr
}

// Apply reduces one event into the collection:
//   - insert: dropped if the id is already present, otherwise merged at its
//     timestamp position (newest-first), not simply prepended;
//   - update: replaces the matching row in place, preserving its position;
//     if the row is absent (race with a missed insert) it is appended rather
//     than dropped;
//   - delete: removes the matching row, a no-op when already absent.
func (c *Cache[T]) Apply(evt Event[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch evt.Type {
	case EventInsert:
		// existence is re-checked under the lock, not against a stale snapshot
		if c.indexOf(evt.Row.RecordID()) >= 0 {
			return
		}
		c.insertOrdered(evt.Row)
	case EventUpdate:
		if i := c.indexOf(evt.Row.RecordID()); i >= 0 {
			c.rows[i] = evt.Row
		} else {
			c.rows = append(c.rows, evt.Row)
		}
	case EventDelete:
		if i := c.indexOf(evt.Row.RecordID()); i >= 0 {
			c.rows = append(c.rows[:i], c.rows[i+1:]...)
		}
	}
}

func (c *Cache[T]) indexOf(id string) int {
	for i, row := range c.rows {
		if row.RecordID() == id {
			return i
		}
	}
	return -1
}

func (c *Cache[T]) insertOrdered(row T) {
	at := len(c.rows)
	for i, existing := range c.rows {
		if existing.RecordCreatedAt().Before(row.RecordCreatedAt()) {
			at = i
			break
		}
	}
	c.rows = append(c.rows, row)
	copy(c.rows[at+1:], c.rows[at:])
	c.rows[at] = row
}
