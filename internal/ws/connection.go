package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	opcodeContinuation = 0x0
	opcodeText         = 0x1
	opcodeBinary       = 0x2
	opcodeClose        = 0x8
	opcodePing         = 0x9
	opcodePong         = 0xA

	closeNormalClosure       = 1000
	closeGoingAway           = 1001
	closeUnsupportedData     = 1003
	closeInternalServerError = 1011
	closeTryAgainLater       = 1013
)

var errSendBufferFull = errors.New("send buffer full")

type connectionOptions struct {
	heartbeatInterval  time.Duration
	heartbeatTolerance int
	sendBufferSize     int
	writeTimeout       time.Duration
}

// Connection represents an upgraded WebSocket subscriber. Subscribers receive
// snippet events as JSON text frames; mutations travel over the REST surface,
// so inbound data frames are rejected.
type Connection struct {
	conn      net.Conn
	clientID  string
	registry  *ConnectionRegistry
	logger    zerolog.Logger
	send      chan outboundMessage
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	opts connectionOptions

	lastPong atomic.Int64
	onClose  func()
}

type outboundMessage struct {
	opcode  byte
	payload []byte
}

func newConnection(netConn net.Conn, clientID string, registry *ConnectionRegistry, logger zerolog.Logger, opts connectionOptions, onClose func()) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:     netConn,
		clientID: clientID,
		registry: registry,
		logger:   logger,
		send:     make(chan outboundMessage, opts.sendBufferSize),
		ctx:      ctx,
		cancel:   cancel,
		opts:     opts,
		onClose:  onClose,
	}
	c.lastPong.Store(time.Now().UnixNano())
	return c
}

// ClientID returns the subscriber's self-reported identifier.
func (c *Connection) ClientID() string { return c.clientID }

// SendText enqueues a text payload for the writer goroutine.
func (c *Connection) SendText(payload []byte) error {
	msg := outboundMessage{opcode: opcodeText, payload: payload}
	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn().Str("client", c.clientID).Msg("send buffer full; closing connection")
		c.closeWithFrame(closeTryAgainLater, "backpressure")
		return errSendBufferFull
	}
}

// Run starts the read/write pumps until the connection is closed.
func (c *Connection) Run() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()
	go func() {
		defer wg.Done()
		c.heartbeatLoop()
	}()

	if err := c.readLoop(); err != nil {
		c.logger.Debug().Err(err).Msg("read loop exited")
	}
	c.Close()
	wg.Wait()
}

// Close tears the connection down exactly once, detaching it from the
// registry on every exit path.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		// The send channel stays open; senders bail out through ctx instead,
		// so a concurrent SendText can never hit a closed channel.
		c.cancel()
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose()
		}
	})
}

func (c *Connection) readLoop() error {
	for {
		select {
		case <-c.ctx.Done():
			return c.ctx.Err()
		default:
		}

		opcode, payload, err := readFrame(c.conn)
		if err != nil {
			return err
		}

		switch opcode {
		case opcodeClose:
			c.closeWithFrame(closeNormalClosure, "bye")
			return nil
		case opcodePing:
			_ = c.enqueueControl(opcodePong, payload)
		case opcodePong:
			c.lastPong.Store(time.Now().UnixNano())
		case opcodeText, opcodeBinary:
			// The event stream is one-way; clients mutate via the HTTP API.
			c.closeWithFrame(closeUnsupportedData, "event stream is read-only")
			return fmt.Errorf("unexpected data frame from subscriber")
		case opcodeContinuation:
			return fmt.Errorf("fragmented frames not supported")
		default:
			return fmt.Errorf("unsupported opcode %d", opcode)
		}
	}
}

func (c *Connection) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := writeFrame(c.conn, msg.opcode, msg.payload, c.opts.writeTimeout); err != nil {
				c.logger.Debug().Err(err).Msg("write loop error")
				c.closeWithFrame(closeInternalServerError, "write error")
				return
			}
		}
	}
}

func (c *Connection) heartbeatLoop() {
	if c.opts.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.opts.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.enqueueControl(opcodePing, nil); err != nil {
				c.logger.Debug().Err(err).Msg("heartbeat ping failed")
				c.closeWithFrame(closeGoingAway, "ping failed")
				return
			}
			if c.opts.heartbeatTolerance > 0 {
				last := time.Unix(0, c.lastPong.Load())
				allowed := c.opts.heartbeatInterval * time.Duration(c.opts.heartbeatTolerance)
				if time.Since(last) > allowed {
					c.logger.Debug().Msg("heartbeat tolerance exceeded")
					c.closeWithFrame(closeGoingAway, "missed heartbeats")
					return
				}
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) closeWithFrame(code int, reason string) {
	_ = c.enqueueControl(opcodeClose, encodeClosePayload(code, reason))
}

func (c *Connection) enqueueControl(opcode byte, payload []byte) error {
	msg := outboundMessage{opcode: opcode, payload: payload}
	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		return errSendBufferFull
	}
}

func encodeClosePayload(code int, reason string) []byte {
	if len(reason) > 123 {
		reason = reason[:123]
	}
	payload := make([]byte, 2+len(reason))
	payload[0] = byte(code >> 8)
	payload[1] = byte(code)
	copy(payload[2:], []byte(reason))
	return payload
}
