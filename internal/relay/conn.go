// Package relay owns websocket connections to relays and the shared pool
// that lets concurrent subscriptions and publishes reuse them.
package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zeroxbob/pinstr/internal/errs"
	"github.com/zeroxbob/pinstr/internal/model"
	"github.com/zeroxbob/pinstr/internal/wire"
)

// subscriptionBuffer bounds the per-subscription event queue. When a consumer
// falls behind, delivery blocks the connection's read loop, so backpressure
// reaches the socket instead of growing an unbounded buffer.
const subscriptionBuffer = 512

// Ack is a relay's response to a published event.
type Ack struct {
	Accepted bool
	Reason   string
}

type subChans struct {
	events chan *model.Event
	eose   chan string
	done   chan struct{}
	once   sync.Once
}

func (s *subChans) end() {
	s.once.Do(func() { close(s.done) })
}

// Conn is one duplex websocket connection to one relay. A read loop decodes
// inbound frames and routes them to registered subscriptions and OK waiters.
type Conn struct {
	url string
	ws  *websocket.Conn
	log *zap.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	subs      map[string]*subChans
	okWaiters map[string]chan Ack

	done      chan struct{}
	closeOnce sync.Once
}

// Dial opens a connection to a normalized relay URL.
func Dial(ctx context.Context, rawURL string, log *zap.Logger) (*Conn, error) {
	u, err := model.NormalizeRelayURL(rawURL)
	if err != nil {
		return nil, err
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w: %w", u, errs.ErrConnectionFailed, err)
	}
	c := &Conn{
		url:       u,
		ws:        ws,
		log:       log,
		subs:      make(map[string]*subChans),
		okWaiters: make(map[string]chan Ack),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// URL returns the normalized relay address.
func (c *Conn) URL() string { return c.url }

// Done is closed when the connection has terminated for any reason.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Alive reports whether the connection is still usable.
func (c *Conn) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Send writes one text frame. Sends on a closed connection return
// errs.ErrConnectionClosed rather than being silently dropped.
func (c *Conn) Send(frame string) error {
	if !c.Alive() {
		return fmt.Errorf("send to %s: %w", c.url, errs.ErrConnectionClosed)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		c.Close()
		return fmt.Errorf("send to %s: %w", c.url, err)
	}
	return nil
}

// Close terminates the connection and unblocks every subscriber and waiter.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
		c.mu.Lock()
		for _, sub := range c.subs {
			sub.end()
		}
		c.mu.Unlock()
	})
}

func (c *Conn) readLoop() {
	defer c.Close()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.log.Debug("relay read loop ended", zap.String("relay", c.url), zap.Error(err))
			return
		}
		c.dispatch(data)
	}
}

func (c *Conn) dispatch(data []byte) {
	msg := wire.Decode(data)
	switch msg.Type {
	case wire.MsgEvent:
		c.mu.Lock()
		sub := c.subs[msg.SubID]
		c.mu.Unlock()
		if sub == nil {
			return
		}
		select {
		case sub.events <- msg.Event:
		case <-sub.done:
		case <-c.done:
		}

	case wire.MsgEOSE, wire.MsgClosed:
		c.mu.Lock()
		sub := c.subs[msg.SubID]
		c.mu.Unlock()
		if sub == nil {
			return
		}
		select {
		case sub.eose <- msg.Reason:
		default:
		}

	case wire.MsgOK:
		c.mu.Lock()
		waiter := c.okWaiters[msg.EventID]
		c.mu.Unlock()
		if waiter == nil {
			return
		}
		select {
		case waiter <- Ack{Accepted: msg.Accepted, Reason: msg.Reason}:
		default:
		}

	case wire.MsgNotice:
		c.log.Info("relay notice", zap.String("relay", c.url), zap.String("message", msg.Reason))

	default:
		c.log.Warn("unrecognized relay frame dropped", zap.String("relay", c.url))
	}
}

// subscribe registers routing for subID. The caller must pair it with unsubscribe.
func (c *Conn) subscribe(subID string) *subChans {
	sub := &subChans{
		events: make(chan *model.Event, subscriptionBuffer),
		eose:   make(chan string, 1),
		done:   make(chan struct{}),
	}
	c.mu.Lock()
	c.subs[subID] = sub
	c.mu.Unlock()
	return sub
}

func (c *Conn) unsubscribe(subID string) {
	c.mu.Lock()
	sub := c.subs[subID]
	delete(c.subs, subID)
	c.mu.Unlock()
	if sub != nil {
		sub.end()
	}
}

// awaitOK registers a waiter for the OK acknowledging eventID.
// The returned cancel must be called once the wait is over.
func (c *Conn) awaitOK(eventID string) (<-chan Ack, func()) {
	ch := make(chan Ack, 1)
	c.mu.Lock()
	c.okWaiters[eventID] = ch
	c.mu.Unlock()
	cancel := func() {
		c.mu.Lock()
		if c.okWaiters[eventID] == ch {
			delete(c.okWaiters, eventID)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}
