// Package esl implements the duplex Event Socket client that drives the
// softswitch: one connection subscribed to asynchronous channel events, one
// reserved for synchronous API commands.
package esl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vocira/vocira/shared/backoff"
)

const (
	dialTimeout     = 5 * time.Second
	apiReplyTimeout = 10 * time.Second

	// subscriberBuffer bounds each per-call event channel. Events of one
	// call are delivered in arrival order; a subscriber that falls this far
	// behind loses events and is logged loudly.
	subscriberBuffer = 128
)

type Config struct {
	Host     string
	Port     int
	Password string
}

func (c Config) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Subscription is a per-call event stream. C is closed when the channel is
// destroyed, the subscription is closed, or the provider disconnects.
type Subscription struct {
	C      <-chan *Event
	cancel func()
}

// NewSubscription wraps a raw event channel in a Subscription, for event
// sources other than a live client.
func NewSubscription(ch <-chan *Event, cancel func()) *Subscription {
	if cancel == nil {
		cancel = func() {}
	}
	return &Subscription{C: ch, cancel: cancel}
}

func (s *Subscription) Close() {
	s.cancel()
}

type subscriber struct {
	ch     chan *Event
	closed bool
}

// Client maintains the two Event Socket connections. All methods are safe
// for concurrent use; API commands are serialised on the api connection.
type Client struct {
	cfg Config

	apiMu   sync.Mutex
	apiConn *conn

	eventConn *conn
	eventMu   sync.Mutex

	subsMu sync.Mutex
	subs   map[string]*subscriber

	connected bool
	stateMu   sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		subs: make(map[string]*subscriber),
	}
}

// Connect establishes both connections and starts the event read loop. The
// loop reconnects itself with bounded backoff until ctx is cancelled.
func (c *Client) Connect(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connectOnce(); err != nil {
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.readLoop()
	}()

	slog.Info("esl: connected", "addr", c.cfg.addr())
	return nil
}

func (c *Client) connectOnce() error {
	ev, err := dialESL(c.cfg.addr(), c.cfg.Password, dialTimeout)
	if err != nil {
		return fmt.Errorf("event connection: %w", err)
	}
	if err := ev.send("event plain " + strings.Join(subscribedEvents, " ")); err != nil {
		ev.close()
		return fmt.Errorf("subscribe events: %w", err)
	}
	reply, err := ev.readMessage()
	if err != nil || !strings.HasPrefix(reply.replyText(), "+OK") {
		ev.close()
		return fmt.Errorf("event subscription refused: %v %s", err, reply.replyText())
	}

	api, err := dialESL(c.cfg.addr(), c.cfg.Password, dialTimeout)
	if err != nil {
		ev.close()
		return fmt.Errorf("api connection: %w", err)
	}

	c.eventMu.Lock()
	c.eventConn = ev
	c.eventMu.Unlock()

	c.apiMu.Lock()
	c.apiConn = api
	c.apiMu.Unlock()

	c.setConnected(true)
	return nil
}

func (c *Client) setConnected(v bool) {
	c.stateMu.Lock()
	c.connected = v
	c.stateMu.Unlock()
}

func (c *Client) IsConnected() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.connected
}

// readLoop reads events until the connection fails, then tears down all
// subscriptions and reconnects with backoff. Open calls receive a synthetic
// PROVIDER_DISCONNECTED event; the softswitch tears their channels down on
// its side.
func (c *Client) readLoop() {
	for {
		err := c.readEvents()
		if c.ctx.Err() != nil {
			return
		}

		slog.Warn("esl: event connection lost, reconnecting", "error", err)
		c.setConnected(false)
		c.dropAllSubscriptions()
		c.closeConns()

		err = backoff.RetryWithCallback(c.ctx, backoff.Standard, func(ctx context.Context, attempt int) error {
			return c.connectOnce()
		}, func(attempt int, err error, delay time.Duration) {
			slog.Warn("esl: reconnect attempt failed", "attempt", attempt, "error", err, "retry_in", delay)
		})
		if err != nil {
			slog.Error("esl: reconnect exhausted", "error", err)
			return
		}
		slog.Info("esl: reconnected", "addr", c.cfg.addr())
	}
}

func (c *Client) readEvents() error {
	c.eventMu.Lock()
	ev := c.eventConn
	c.eventMu.Unlock()
	if ev == nil {
		return fmt.Errorf("no event connection")
	}

	for {
		if c.ctx.Err() != nil {
			return c.ctx.Err()
		}

		msg, err := ev.readMessage()
		if err != nil {
			return err
		}

		switch msg.contentType() {
		case "text/event-plain":
			event, err := parseEventBody(msg.body)
			if err != nil {
				slog.Warn("esl: dropping unparseable event", "error", err)
				continue
			}
			c.dispatch(event)
		case "text/disconnect-notice":
			return fmt.Errorf("disconnect notice from softswitch")
		default:
			// Replies to the subscription command or other chatter on the
			// event connection are ignored.
		}
	}
}

func (c *Client) dispatch(ev *Event) {
	callID := ev.UniqueID()
	if callID == "" {
		return
	}

	c.subsMu.Lock()
	sub, ok := c.subs[callID]
	if !ok || sub.closed {
		c.subsMu.Unlock()
		return
	}

	select {
	case sub.ch <- ev:
	default:
		slog.Error("esl: subscriber queue full, dropping event", "call_id", callID, "event", ev.Name)
	}

	// Channel destruction ends the stream.
	if ev.Name == EventChannelDestroy {
		sub.closed = true
		close(sub.ch)
		delete(c.subs, callID)
	}
	c.subsMu.Unlock()
}

// Subscribe returns the event stream for one channel identifier. The stream
// must be drained by exactly one goroutine.
func (c *Client) Subscribe(callID string) *Subscription {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	sub := &subscriber{ch: make(chan *Event, subscriberBuffer)}
	c.subs[callID] = sub

	return &Subscription{
		C: sub.ch,
		cancel: func() {
			c.subsMu.Lock()
			defer c.subsMu.Unlock()
			if s, ok := c.subs[callID]; ok && !s.closed {
				s.closed = true
				close(s.ch)
				delete(c.subs, callID)
			}
		},
	}
}

func (c *Client) dropAllSubscriptions() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	for callID, sub := range c.subs {
		if sub.closed {
			continue
		}
		select {
		case sub.ch <- syntheticDisconnect(callID):
		default:
		}
		sub.closed = true
		close(sub.ch)
	}
	c.subs = make(map[string]*subscriber)
}

// ExecApi issues one synchronous API command and returns the reply body.
// The client never waits for asynchronous events here; waiting for a
// specific event is the caller's concern.
func (c *Client) ExecApi(ctx context.Context, command string) (string, error) {
	c.apiMu.Lock()
	defer c.apiMu.Unlock()

	if c.apiConn == nil {
		return "", ErrDisconnected
	}

	deadline := time.Now().Add(apiReplyTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.apiConn.setReadDeadline(deadline)
	defer c.apiConn.setReadDeadline(time.Time{})

	if err := c.apiConn.send("api " + command); err != nil {
		return "", fmt.Errorf("send api command: %w", err)
	}

	for {
		msg, err := c.apiConn.readMessage()
		if err != nil {
			return "", fmt.Errorf("read api reply: %w", err)
		}
		switch msg.contentType() {
		case "api/response":
			body := strings.TrimSpace(msg.body)
			if strings.HasPrefix(body, failureSentinel) {
				return "", apiError(body)
			}
			return body, nil
		case "command/reply":
			reply := strings.TrimSpace(msg.replyText())
			if strings.HasPrefix(reply, failureSentinel) {
				return "", apiError(reply)
			}
			return reply, nil
		default:
			// The api connection receives no events; skip stray frames.
		}
	}
}

func (c *Client) closeConns() {
	c.eventMu.Lock()
	if c.eventConn != nil {
		c.eventConn.close()
		c.eventConn = nil
	}
	c.eventMu.Unlock()

	c.apiMu.Lock()
	if c.apiConn != nil {
		c.apiConn.close()
		c.apiConn = nil
	}
	c.apiMu.Unlock()
}

// Close shuts the client down and closes every open subscription.
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.setConnected(false)
	c.closeConns()
	c.dropAllSubscriptions()
	c.wg.Wait()
	slog.Info("esl: closed")
}
