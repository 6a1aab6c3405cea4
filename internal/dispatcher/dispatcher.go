package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"avl-gateway/internal/codec"
	"avl-gateway/internal/observability"
	"avl-gateway/internal/pipeline"
)

// Peer identifies one TCP connection.
type Peer struct {
	ID   string
	Addr string
	Port int
}

// Key is the session store key of the connection.
func (p Peer) Key() string {
	return "imei/" + p.Addr + "/" + strconv.Itoa(p.Port)
}

func (p Peer) Attrs() []any {
	return []any{"conn_id", p.ID, "remote_ip", p.Addr, "remote_port", p.Port}
}

// SessionStore maps a connection key to the IMEI it authenticated as.
type SessionStore interface {
	Get(ctx context.Context, key string) (imei string, ok bool, err error)
	Set(ctx context.Context, key, imei string) error
	Delete(ctx context.Context, key string) error
}

// Registry accepts an IMEI by returning nil.
type Registry interface {
	Lookup(ctx context.Context, imei string) error
}

type Options struct {
	Sessions SessionStore
	Registry Registry
	Sink     pipeline.Sink
	Logger   *slog.Logger
	// CallTimeout bounds each registry, session store and sink call.
	CallTimeout time.Duration
	// MaxInFlight caps concurrent outbound calls across all connections.
	MaxInFlight int64
	Now         func() time.Time
}

// Dispatcher runs the device protocol for inbound frames. It holds no
// per-connection state; a connection's identity lives in the session store.
type Dispatcher struct {
	sessions    SessionStore
	registry    Registry
	sink        pipeline.Sink
	logger      *slog.Logger
	callTimeout time.Duration
	limit       *semaphore.Weighted
	now         func() time.Time
}

func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		sessions:    opts.Sessions,
		registry:    opts.Registry,
		sink:        opts.Sink,
		logger:      opts.Logger,
		callTimeout: opts.CallTimeout,
		now:         opts.Now,
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.logger = d.logger.With("component", "dispatcher")
	if d.callTimeout <= 0 {
		d.callTimeout = 10 * time.Second
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 64
	}
	d.limit = semaphore.NewWeighted(opts.MaxInFlight)
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// ProcessIncoming handles one inbound chunk and writes the protocol reply,
// if any, to w. A returned error concerns this frame only; the connection
// stays usable. Handshakes with a non-IMEI length are dropped silently.
func (d *Dispatcher) ProcessIncoming(ctx context.Context, peer Peer, w io.Writer, data []byte) error {
	err := d.process(ctx, peer, w, data)
	if errors.Is(err, codec.ErrIMEILength) {
		d.logger.DebugContext(ctx, "handshake ignored", append(peer.Attrs(), "err", err)...)
		return nil
	}
	if err != nil {
		observability.FrameErrors.WithLabelValues(Kind(err)).Inc()
	}
	return err
}

func (d *Dispatcher) process(ctx context.Context, peer Peer, w io.Writer, data []byte) error {
	kind, err := codec.Classify(data)
	if err != nil {
		return err
	}
	if kind == codec.FrameHandshake {
		return d.handshake(ctx, peer, w, data)
	}
	return d.data(ctx, peer, w, data)
}

func (d *Dispatcher) handshake(ctx context.Context, peer Peer, w io.Writer, data []byte) error {
	hs, err := codec.DecodeHandshake(data)
	if err != nil {
		return err
	}

	err = d.call(ctx, func(ctx context.Context) error {
		return d.registry.Lookup(ctx, hs.IMEI)
	})
	if err != nil {
		observability.HandshakeRejected.Inc()
		return fmt.Errorf("%w: imei %s: %w", ErrRegistryUnavailable, hs.IMEI, err)
	}

	err = d.call(ctx, func(ctx context.Context) error {
		return d.sessions.Set(ctx, peer.Key(), hs.IMEI)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSessionStoreUnavailable, err)
	}

	if _, err := w.Write(codec.HandshakeAck); err != nil {
		return fmt.Errorf("write handshake ack: %w", err)
	}
	observability.HandshakeOK.Inc()
	d.logger.InfoContext(ctx, "device accepted", append(peer.Attrs(), "imei", hs.IMEI)...)

	return d.emitStatus(ctx, peer, hs.IMEI, pipeline.StatusOnline)
}

func (d *Dispatcher) data(ctx context.Context, peer Peer, w io.Writer, data []byte) error {
	observability.PacketsRecv.Inc()
	start := time.Now()
	pkt, err := codec.DecodeDataFrame(data)
	observability.ObserveParseLatency(start)
	if err != nil {
		return err
	}

	imei, ok, err := d.session(ctx, peer)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d records dropped", ErrUnauthenticated, len(pkt.Records))
	}

	ms := pipeline.BuildRecords(imei, peer.Addr, pkt.Records, d.now())
	if err := d.write(ctx, ms); err != nil {
		return err
	}

	if _, err := w.Write(codec.Ack(pkt.Qty1)); err != nil {
		return fmt.Errorf("write data ack: %w", err)
	}
	observability.RecordsAck.Add(float64(pkt.Qty1))
	d.logger.DebugContext(ctx, "frame accepted", append(peer.Attrs(),
		"imei", imei,
		"records", len(pkt.Records),
		"measurements", len(ms),
	)...)
	return nil
}

// Disconnect finalizes a closed connection: an authenticated device gets an
// OFFLINE status and its session is removed. Connections that never
// authenticated leave no trace.
func (d *Dispatcher) Disconnect(ctx context.Context, peer Peer) error {
	imei, ok, err := d.session(ctx, peer)
	if err != nil || !ok {
		return err
	}

	var errs []error
	if err := d.emitStatus(ctx, peer, imei, pipeline.StatusOffline); err != nil {
		errs = append(errs, err)
	}
	err = d.call(ctx, func(ctx context.Context) error {
		return d.sessions.Delete(ctx, peer.Key())
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrSessionStoreUnavailable, err))
	}
	d.logger.InfoContext(ctx, "device disconnected", append(peer.Attrs(), "imei", imei)...)
	return errors.Join(errs...)
}

func (d *Dispatcher) session(ctx context.Context, peer Peer) (string, bool, error) {
	var (
		imei string
		ok   bool
	)
	err := d.call(ctx, func(ctx context.Context) error {
		var err error
		imei, ok, err = d.sessions.Get(ctx, peer.Key())
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrSessionStoreUnavailable, err)
	}
	return imei, ok, nil
}

func (d *Dispatcher) emitStatus(ctx context.Context, peer Peer, imei string, status pipeline.Status) error {
	m := pipeline.BuildStatus(imei, peer.Addr, peer.Port, status, d.now())
	if err := d.write(ctx, []pipeline.Measurement{m}); err != nil {
		return fmt.Errorf("%s status: %w", status, err)
	}
	observability.StatusEvents.WithLabelValues(string(status)).Inc()
	return nil
}

func (d *Dispatcher) write(ctx context.Context, ms []pipeline.Measurement) error {
	start := time.Now()
	err := d.call(ctx, func(ctx context.Context) error {
		return d.sink.Write(ctx, ms)
	})
	observability.ObserveSinkLatency(start)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	}
	return nil
}

// call runs fn under the per-call timeout and the in-flight limit.
func (d *Dispatcher) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()
	if err := d.limit.Acquire(ctx, 1); err != nil {
		return err
	}
	defer d.limit.Release(1)
	return fn(ctx)
}
