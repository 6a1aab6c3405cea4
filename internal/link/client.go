package link

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"avl-gateway/internal/pipeline"
)

// ErrNotConnected is returned by Write while the proxy link is down.
var ErrNotConnected = errors.New("link: not connected")

// Client streams measurements to a socket proxy as NDJSON, redialing when
// the connection drops.
type Client struct {
	addr   string
	logger *slog.Logger

	RetryDelay     time.Duration
	ReconnectDelay time.Duration

	mu   sync.Mutex
	conn net.Conn
}

func New(addr string, lg *slog.Logger) *Client {
	if lg == nil {
		lg = slog.Default()
	}
	return &Client{
		addr:           addr,
		logger:         lg.With("component", "link"),
		RetryDelay:     5 * time.Second,
		ReconnectDelay: 2 * time.Second,
	}
}

// Run keeps the link up until ctx is done.
func (c *Client) Run(ctx context.Context) {
	var d net.Dialer
	stop := context.AfterFunc(ctx, func() {
		if conn := c.getConn(); conn != nil {
			_ = conn.Close()
		}
	})
	defer stop()

	for ctx.Err() == nil {
		conn, err := d.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			c.logger.Error("link: dial failed", "addr", c.addr, "err", err)
			sleep(ctx, c.RetryDelay)
			continue
		}

		c.setConn(conn)
		c.logger.Info("link: connected", "remote", conn.RemoteAddr().String())

		c.readLoop(conn)

		c.clearConn(conn)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("link: connection closed, reconnecting")
		sleep(ctx, c.ReconnectDelay)
	}
}

// Connected reports whether a proxy connection is currently up.
func (c *Client) Connected() bool {
	return c.getConn() != nil
}

func (c *Client) setConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *Client) clearConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) getConn() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// The proxy may send lines back; they are only logged.
func (c *Client) readLoop(conn net.Conn) {
	r := bufio.NewScanner(conn)
	for r.Scan() {
		c.logger.Info("link: incoming line", "line", r.Text())
	}
	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		c.logger.Warn("link: read error", "err", err)
	}
}

// Write sends one NDJSON line per measurement.
func (c *Client) Write(ctx context.Context, ms []pipeline.Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	var buf []byte
	for _, m := range ms {
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		buf = append(append(buf, b...), '\n')
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	_, err := c.conn.Write(buf)
	return err
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
