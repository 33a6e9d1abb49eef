package relay

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/zeroxbob/pinstr/internal/errs"
	"github.com/zeroxbob/pinstr/internal/model"
	"github.com/zeroxbob/pinstr/internal/wire"
)

// Pool shares connections across concurrent subscriptions and publishes,
// keyed by normalized relay URL. Dial attempts are serialized per key:
// concurrent callers for the same URL await one in-flight attempt.
// Connections are reference counted and closed when the last user releases.
type Pool struct {
	log   *zap.Logger
	group singleflight.Group

	mu    sync.Mutex
	conns map[string]*poolEntry
}

type poolEntry struct {
	conn *Conn
	refs int
}

// NewPool constructs an empty connection pool.
func NewPool(log *zap.Logger) *Pool {
	return &Pool{log: log, conns: make(map[string]*poolEntry)}
}

// acquire returns a live connection for url, dialing if needed, and takes a
// reference. A concurrent release can close the pooled connection between the
// dial and this caller's reference, so a lost entry redials instead of
// surfacing a failure for a dial that succeeded.
func (p *Pool) acquire(ctx context.Context, rawURL string) (*Conn, error) {
	url, err := model.NormalizeRelayURL(rawURL)
	if err != nil {
		return nil, err
	}

	for {
		_, err, _ := p.group.Do(url, func() (any, error) {
			p.mu.Lock()
			e, ok := p.conns[url]
			if ok && e.conn.Alive() {
				p.mu.Unlock()
				return nil, nil
			}
			if ok {
				// Dead connection left behind by its last user.
				delete(p.conns, url)
			}
			p.mu.Unlock()

			conn, err := Dial(ctx, url, p.log)
			if err != nil {
				return nil, err
			}
			p.mu.Lock()
			p.conns[url] = &poolEntry{conn: conn}
			p.mu.Unlock()
			return nil, nil
		})
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		e, ok := p.conns[url]
		if ok && e.conn.Alive() {
			e.refs++
			p.mu.Unlock()
			return e.conn, nil
		}
		p.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// release drops one reference; the connection closes when nobody holds it.
func (p *Pool) release(c *Conn) {
	p.mu.Lock()
	e, ok := p.conns[c.URL()]
	if !ok || e.conn != c {
		p.mu.Unlock()
		c.Close()
		return
	}
	e.refs--
	if e.refs > 0 {
		p.mu.Unlock()
		return
	}
	delete(p.conns, c.URL())
	p.mu.Unlock()
	c.Close()
}

// Subscription is one live per-relay subscription handed to a coordinator.
// Events is bounded; EndOfStream fires once on EOSE or CLOSED (carrying the
// CLOSED reason, empty for EOSE); ConnDone fires if the connection dies.
type Subscription struct {
	ID          string
	URL         string
	Events      <-chan *model.Event
	EndOfStream <-chan string
	ConnDone    <-chan struct{}

	conn *Conn
}

// Subscribe opens (or reuses) a connection to url and sends a REQ for the filter.
func (p *Pool) Subscribe(ctx context.Context, url, subID string, f model.Filter) (*Subscription, error) {
	frame, err := wire.EncodeReq(subID, f)
	if err != nil {
		return nil, err
	}
	conn, err := p.acquire(ctx, url)
	if err != nil {
		return nil, err
	}
	sub := conn.subscribe(subID)
	if err := conn.Send(frame); err != nil {
		conn.unsubscribe(subID)
		p.release(conn)
		return nil, err
	}
	return &Subscription{
		ID:          subID,
		URL:         conn.URL(),
		Events:      sub.events,
		EndOfStream: sub.eose,
		ConnDone:    conn.Done(),
		conn:        conn,
	}, nil
}

// Unsubscribe sends CLOSE (best effort), tears down routing and releases the
// subscription's connection reference. Shared connections other subscriptions
// still hold stay open.
func (p *Pool) Unsubscribe(s *Subscription) {
	if frame, err := wire.EncodeClose(s.ID); err == nil {
		_ = s.conn.Send(frame)
	}
	s.conn.unsubscribe(s.ID)
	p.release(s.conn)
}

// Publish sends one signed event to url and waits for the matching OK,
// bounded by ctx.
func (p *Pool) Publish(ctx context.Context, url string, ev *model.Event) (Ack, error) {
	frame, err := wire.EncodeEvent(ev)
	if err != nil {
		return Ack{}, err
	}
	conn, err := p.acquire(ctx, url)
	if err != nil {
		return Ack{}, err
	}
	defer p.release(conn)

	ackCh, cancel := conn.awaitOK(ev.ID)
	defer cancel()

	if err := conn.Send(frame); err != nil {
		return Ack{}, err
	}
	select {
	case ack := <-ackCh:
		return ack, nil
	case <-conn.Done():
		return Ack{}, fmt.Errorf("publish to %s: %w", conn.URL(), errs.ErrConnectionClosed)
	case <-ctx.Done():
		return Ack{}, ctx.Err()
	}
}

// Close tears down every pooled connection. Intended for process shutdown.
func (p *Pool) Close() {
	p.mu.Lock()
	entries := make([]*poolEntry, 0, len(p.conns))
	for url, e := range p.conns {
		entries = append(entries, e)
		delete(p.conns, url)
	}
	p.mu.Unlock()
	for _, e := range entries {
		e.conn.Close()
	}
}
