package client

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/example/snipsync/internal/types"
)

const (
	dialTimeout        = 5 * time.Second
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// EventHandler receives decoded broadcast events.
type EventHandler func(types.Event)

// Channel consumes the snippet event stream over a WebSocket. It is an
// explicitly owned handle with Connect/Close lifecycle methods: nothing is
// dialed at package load time, and tests can construct as many channels as
// they like.
//
// The channel does not exclude the sender; self-echo suppression is the
// synchronization controller's job.
type Channel struct {
	url      string
	clientID types.ClientID
	logger   zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	cancel    context.CancelFunc
	connected bool
	handlers  map[int]EventHandler
	nextID    int
}

// NewChannel builds a channel handle for the given websocket URL.
func NewChannel(rawURL string, clientID types.ClientID, logger zerolog.Logger) *Channel {
	return &Channel{
		url:      rawURL,
		clientID: clientID,
		logger:   logger,
		handlers: make(map[int]EventHandler),
	}
}

// Subscribe registers a handler for inbound events and returns its
// unsubscribe function. Handlers registered before Connect survive
// reconnects.
func (c *Channel) Subscribe(fn EventHandler) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.handlers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
	}
}

// Connected reports whether the channel currently holds a live connection.
// A disconnected channel degrades mutations to store-only operation; it never
// blocks them.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect starts the receive loop. It keeps reconnecting with bounded
// backoff until Close is called or the context ends.
func (c *Channel) Connect(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		cancel()
		return
	}
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx)
}

// Close tears down the connection and stops reconnecting. All subscription
// handles stay valid but receive nothing further.
func (c *Channel) Close() {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	c.cancel = nil
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Channel) run(ctx context.Context) {
	backoff := reconnectBaseDelay
	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.consume(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn().Err(err).Dur("backoff", backoff).Msg("broadcast channel interrupted; reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			if backoff *= 2; backoff > reconnectMaxDelay {
				backoff = reconnectMaxDelay
			}
		}
	}
}

func (c *Channel) consume(ctx context.Context) error {
	target, err := url.Parse(c.url)
	if err != nil {
		return err
	}
	q := target.Query()
	q.Set("client_id", string(c.clientID))
	target.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.logger.Info().Str("url", target.String()).Msg("broadcast channel connected")

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.connected = false
		c.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		evt, err := types.DecodeEvent(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("dropping undecodable broadcast event")
			continue
		}
		c.dispatch(evt)
	}
}

func (c *Channel) dispatch(evt types.Event) {
	c.mu.Lock()
	handlers := make([]EventHandler, 0, len(c.handlers))
	for _, fn := range c.handlers {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(evt)
	}
}

// SubscriptionSet collects unsubscribe functions so a consuming component can
// release every handler it attached in one call, on every exit path.
type SubscriptionSet struct {
	mu      sync.Mutex
	cancels []func()
}

// Add retains an unsubscribe function.
func (s *SubscriptionSet) Add(cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels = append(s.cancels, cancel)
}

// Release unsubscribes everything that was added, exactly once.
func (s *SubscriptionSet) Release() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
