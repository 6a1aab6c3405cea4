package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"avl-gateway/internal/dispatcher"
	"avl-gateway/internal/observability"
	"avl-gateway/internal/utilities"
)

// Handler runs the device protocol for one connection's frames.
type Handler interface {
	ProcessIncoming(ctx context.Context, peer dispatcher.Peer, w io.Writer, data []byte) error
	Disconnect(ctx context.Context, peer dispatcher.Peer) error
}

type Options struct {
	Handler Handler
	Logger  *slog.Logger
	// FrameLog, if set, receives every inbound chunk.
	FrameLog *utilities.FrameLog
	// ReadBuffer is the largest frame accepted in one read.
	ReadBuffer int
	// IdleTimeout closes connections that stay silent this long.
	IdleTimeout time.Duration
	// CloseTimeout bounds the finalization of a closed connection.
	CloseTimeout time.Duration
}

type TcpServer struct {
	handler      Handler
	logger       *slog.Logger
	frames       *utilities.FrameLog
	bufSize      int
	idleTimeout  time.Duration
	closeTimeout time.Duration

	wg sync.WaitGroup
}

func New(opts Options) *TcpServer {
	s := &TcpServer{
		handler:      opts.Handler,
		logger:       opts.Logger,
		frames:       opts.FrameLog,
		bufSize:      opts.ReadBuffer,
		idleTimeout:  opts.IdleTimeout,
		closeTimeout: opts.CloseTimeout,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "tcp")
	if s.bufSize <= 0 {
		s.bufSize = 2048
	}
	if s.closeTimeout <= 0 {
		s.closeTimeout = 10 * time.Second
	}
	return s
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *TcpServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("error starting TCP server: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections until ctx is done, then closes the listener
// and every open connection and waits for their finalization.
func (s *TcpServer) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("TCP server listening", "addr", ln.Addr().String())
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Error("accept error", "err", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		observability.TCPConnections.Inc()
		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.HandleConnection(ctx, c)
		}(conn)
	}
}

// HandleConnection reads frames from conn in order until it closes, then
// finalizes the device session.
func (s *TcpServer) HandleConnection(ctx context.Context, conn net.Conn) {
	peer := peerOf(conn)
	lg := s.logger.With(peer.Attrs()...)

	observability.ActiveConnections.Inc()
	defer observability.ActiveConnections.Dec()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(60 * time.Second)
	}

	lg.Info("connection opened")
	defer func() {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.closeTimeout)
		defer cancel()
		if err := s.handler.Disconnect(fctx, peer); err != nil {
			lg.Error("connection finalization failed", "kind", dispatcher.Kind(err), "err", err)
		}
		lg.Info("connection closed")
	}()

	buffer := make([]byte, s.bufSize)
	for {
		if s.idleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		n, err := conn.Read(buffer)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			case errors.Is(err, os.ErrDeadlineExceeded):
				lg.Info("idle timeout")
			default:
				lg.Warn("read error", "err", err)
			}
			return
		}
		if n == 0 {
			continue
		}

		data := make([]byte, n)
		copy(data, buffer[:n])
		s.frames.Record(conn.RemoteAddr().String(), data)

		if err := s.handler.ProcessIncoming(ctx, peer, conn, data); err != nil {
			lg.Warn("frame dropped", "kind", dispatcher.Kind(err), "bytes", n, "err", err)
		}
	}
}

func peerOf(conn net.Conn) dispatcher.Peer {
	p := dispatcher.Peer{ID: uuid.NewString()}
	switch a := conn.RemoteAddr().(type) {
	case *net.TCPAddr:
		p.Addr, p.Port = a.IP.String(), a.Port
	default:
		p.Addr = a.String()
	}
	return p
}
