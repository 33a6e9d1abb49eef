package client

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/zeroxbob/pinstr/internal/model"
	"github.com/zeroxbob/pinstr/internal/relay"
)

// Fetch runs one subscription against every read-enabled relay and returns
// the merged, deduplicated results.
//
// Each relay gets the same fresh subscription ID. Relays race; emission order
// across relays is unspecified, but any event ID appears at most once. The
// call ends when every joined relay reports end-of-stream, when the limit is
// reached, or when the deadline set once at start elapses, whichever comes
// first. A timeout yields the partial result, not an error. Zero joined
// relays yield an empty result, not an error.
func (c *Client) Fetch(ctx context.Context, f model.Filter, relays []model.RelayConfig, timeout time.Duration) ([]model.Event, error) {
	readRelays := model.ReadRelays(relays)
	if len(readRelays) == 0 {
		return nil, nil
	}

	subID, err := newSubID()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	merged := make(chan *model.Event, 64)

	var wg sync.WaitGroup
	for _, rc := range readRelays {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			c.fetchFromRelay(ctx, url, subID, f, merged)
		}(rc.URL)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	seen := make(map[string]struct{})
	var out []model.Event

collect:
	for {
		select {
		case ev, ok := <-merged:
			if !ok {
				break collect
			}
			if _, dup := seen[ev.ID]; dup {
				continue
			}
			seen[ev.ID] = struct{}{}
			out = append(out, *ev)
			if f.Limit > 0 && len(out) >= f.Limit {
				cancel()
				break collect
			}
		case <-ctx.Done():
			break collect
		}
	}

	// Newest first, ID for tie-break.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// fetchFromRelay joins one relay and forwards its events until end-of-stream,
// connection loss or cancellation. Join failures are logged and absorbed:
// an unreachable relay only costs the global deadline, never the whole fetch.
func (c *Client) fetchFromRelay(ctx context.Context, url, subID string, f model.Filter, merged chan<- *model.Event) {
	sub, err := c.pool.Subscribe(ctx, url, subID, f)
	if err != nil {
		c.log.Debug("relay join failed", zap.String("relay", url), zap.Error(err))
		return
	}
	defer c.pool.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.ConnDone:
			drainEvents(ctx, sub, merged)
			return
		case reason := <-sub.EndOfStream:
			if reason != "" {
				c.log.Debug("subscription closed by relay",
					zap.String("relay", sub.URL), zap.String("reason", reason))
			}
			drainEvents(ctx, sub, merged)
			return
		case ev := <-sub.Events:
			select {
			case merged <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// drainEvents forwards events still queued when end-of-stream (or connection
// loss) is observed. The read loop delivers frames in arrival order, so by the
// time the end-of-stream signal is visible every earlier event is already in
// the queue; without this drain, select fairness could discard them.
func drainEvents(ctx context.Context, sub *relay.Subscription, merged chan<- *model.Event) {
	for {
		select {
		case ev := <-sub.Events:
			select {
			case merged <- ev:
			case <-ctx.Done():
				return
			}
		default:
			return
		}
	}
}

func newSubID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return "pin-" + id.String(), nil
}
