package livecache

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type row struct {
	id      string
	created time.Time
}

func (r row) RecordID() string           { return r.id }
func (r row) RecordCreatedAt() time.Time { return r.created }

type stubSource struct {
	rows     []row
	queryErr error
	events   chan Event[row]
}

func newStubSource(rows ...row) *stubSource {
	return &stubSource{rows: rows, events: make(chan Event[row], 16)}
}

func (s *stubSource) Query(context.Context) ([]row, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.rows, nil
}

func (s *stubSource) Changes(ctx context.Context) (<-chan Event[row], error) {
	go func() {
		<-ctx.Done()
		close(s.events)
	}()
	return s.events, nil
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

type noopLogger struct{ *log.Logger }

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}

func newStarted(t *testing.T, src *stubSource) *Cache[row] {
	t.Helper()
	c := New[row](src, noopLogger{quietLogger()})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}

func ids(rows []row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.id)
	}
	return out
}

func TestCacheInitialLoad(t *testing.T) {
	now := time.Now().UTC()
	src := newStubSource(
		row{id: "b", created: now.Add(-time.Minute)},
		row{id: "a", created: now.Add(-2 * time.Minute)},
	)

	c := newStarted(t, src)

	assert.False(t, c.Loading())
	assert.NoError(t, c.LoadErr())
	assert.Equal(t, []string{"b", "a"}, ids(c.List()))
}

func TestCacheLoadFailure(t *testing.T) {
	src := newStubSource()
	src.queryErr = errors.New("gateway down")

	c := New[row](src, noopLogger{quietLogger()})
	err := c.Start(context.Background())
	t.Cleanup(c.Stop)

	// empty+error is distinct from empty+loading and empty+no-data
	assert.Error(t, err)
	assert.False(t, c.Loading())
	assert.Error(t, c.LoadErr())
	assert.Empty(t, c.List())
}

func TestCacheInsertOrdering(t *testing.T) {
	// inserts with creation timestamps t1 > t2 > t3 arriving in order
	// t2, t3, t1 must end up ordered t1, t2, t3 (newest-first), not in
	// arrival order
	now := time.Now().UTC()
	t1 := row{id: "t1", created: now}
	t2 := row{id: "t2", created: now.Add(-time.Minute)}
	t3 := row{id: "t3", created: now.Add(-2 * time.Minute)}

	c := newStarted(t, newStubSource())
	for _, r := range []row{t2, t3, t1} {
		c.Apply(Event[row]{Type: EventInsert, Row: r})
	}

	assert.Equal(t, []string{"t1", "t2", "t3"}, ids(c.List()))
}

func TestCacheInsertDeduplicates(t *testing.T) {
	now := time.Now().UTC()
	r := row{id: "x", created: now}

	c := newStarted(t, newStubSource())

	// direct-call result and feed confirmation, in either order, apply once
	c.Apply(Event[row]{Type: EventInsert, Row: r})
	c.Apply(Event[row]{Type: EventInsert, Row: r})

	assert.Equal(t, 1, c.Len())
}

func TestCacheUpdateInPlace(t *testing.T) {
	now := time.Now().UTC()
	src := newStubSource(
		row{id: "c", created: now},
		row{id: "b", created: now.Add(-time.Minute)},
		row{id: "a", created: now.Add(-2 * time.Minute)},
	)

	c := newStarted(t, src)

	// an update must not re-sort, only replace in place
	c.Apply(Event[row]{Type: EventUpdate, Row: row{id: "b", created: now.Add(-time.Minute)}})
	assert.Equal(t, []string{"c", "b", "a"}, ids(c.List()))

	// an update for an unknown id is kept, not dropped
	c.Apply(Event[row]{Type: EventUpdate, Row: row{id: "z", created: now}})
	_, ok := c.Get("z")
	assert.True(t, ok)
}

func TestCacheDeleteIdempotent(t *testing.T) {
	now := time.Now().UTC()
	src := newStubSource(
		row{id: "b", created: now},
		row{id: "a", created: now.Add(-time.Minute)},
	)

	c := newStarted(t, src)

	evt := Event[row]{Type: EventDelete, Row: row{id: "b", created: now}}
	c.Apply(evt)
	once := ids(c.List())
	c.Apply(evt)
	twice := ids(c.List())

	assert.Equal(t, []string{"a"}, once)
	assert.Equal(t, once, twice)
}

func TestCacheFeedDelivery(t *testing.T) {
	now := time.Now().UTC()
	src := newStubSource()

	c := newStarted(t, src)
	src.events <- Event[row]{Type: EventInsert, Row: row{id: "a", created: now}}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.Len() == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("feed event was not reduced into the cache")
}

func TestCacheGetAbsent(t *testing.T) {
	c := newStarted(t, newStubSource())
	_, ok := c.Get("nope")
	assert.False(t, ok)
}
