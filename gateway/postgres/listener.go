package postgresgw

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/vocsite/chuo/core"
	"github.com/vocsite/chuo/core/livecache"
)

const (
	listenMinReconnect = 10 * time.Second
	listenMaxReconnect = time.Minute
)

// notification is the payload emitted by the *_notify triggers: the
// operation name as postgres spells it (INSERT/UPDATE/DELETE) plus the full
// row as JSON.
type notification struct {
	Op  string          `json:"op"`
	Row json.RawMessage `json:"row"`
}

// changeFeed bridges one LISTEN channel onto a typed event stream. Events
// are delivered in notification order; the channel is closed once ctx is
// done.
func changeFeed[T livecache.Record](
	ctx context.Context,
	conf *core.Config,
	channel string,
	decode func(json.RawMessage) (T, error),
	logger core.Logger,
) (<-chan livecache.Event[T], error) {
	listener := pq.NewListener(dsn(conf.Database.Name, false, conf), listenMinReconnect, listenMaxReconnect, nil)
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, errors.Wrapf(err, "listening on %s", channel)
	}

	events := make(chan livecache.Event[T])
	go func() {
		defer close(events)
		defer func() { _ = listener.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				if n == nil { // reconnect marker
					continue
				}
				evt, err := decodeNotification(n.Extra, decode)
				if err != nil {
					logger.Error(fmt.Sprintf("decoding %s notification: %v", channel, err), err)
					continue
				}
				select {
				case events <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}

func decodeNotification[T livecache.Record](payload string, decode func(json.RawMessage) (T, error)) (livecache.Event[T], error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return livecache.Event[T]{}, errors.Wrap(err, "unmarshalling payload")
	}

	var typ livecache.EventType
	switch n.Op {
	case "INSERT":
		typ = livecache.EventInsert
	case "UPDATE":
		typ = livecache.EventUpdate
	case "DELETE":
		typ = livecache.EventDelete
	default:
		return livecache.Event[T]{}, errors.Errorf("unknown op %q", n.Op)
	}

	row, err := decode(n.Row)
	if err != nil {
		return livecache.Event[T]{}, errors.Wrap(err, "decoding row")
	}
	return livecache.Event[T]{Type: typ, Row: row}, nil
}
