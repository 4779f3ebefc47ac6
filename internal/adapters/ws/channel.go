// Package ws is the gorilla/websocket implementation of the session channel.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/averko/supportline/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

const (
	sendBuffer        = 32
	writeTimeout      = 5 * time.Second
	defaultPingPeriod = 54 * time.Second
)

type channel struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *channel) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *channel) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// Dialer opens one websocket per Dial call. Each connection gets its own
// write and read pumps; inbound frames reach onFrame from the single read
// goroutine, so handlers never run concurrently for one channel.
type Dialer struct {
	ReadLimit  int64
	PingPeriod time.Duration
}

func (d *Dialer) Dial(ctx context.Context, url string, onFrame core.FrameSink, onClosed func()) (core.SignalChannel, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}

	c := &channel{
		conn: conn,
		send: make(chan core.Frame, sendBuffer),
	}
	go d.writePump(ctx, c)
	go d.readPump(c, onFrame, onClosed)
	return c, nil
}

func (d *Dialer) writePump(ctx context.Context, c *channel) {
	period := d.PingPeriod
	if period <= 0 {
		period = defaultPingPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "ws").Msg("writePump ctx done")
			c.Close()
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump ping error")
				c.Close()
				return
			}
		}
	}
}

func (d *Dialer) readPump(c *channel, onFrame core.FrameSink, onClosed func()) {
	defer func() {
		// A locally closed channel already ran its teardown; onClosed is
		// reserved for the remote end going away.
		local := c.isClosed()
		c.Close()
		if !local && onClosed != nil {
			onClosed()
		}
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("module", "ws").Msg("readPump exiting")
			return
		}
		if onFrame != nil {
			onFrame(data)
		}
	}
}
