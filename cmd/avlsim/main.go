// Command avlsim plays a Codec 8E tracker against a gateway: it identifies
// with an IMEI and then sends batches of synthetic AVL records, checking
// each acknowledgement.
package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avl-gateway/internal/codec"
)

type options struct {
	addr     string
	imei     string
	records  int
	interval time.Duration
	count    int
}

func main() {
	var o options
	flag.StringVar(&o.addr, "addr", "127.0.0.1:8877", "gateway address")
	flag.StringVar(&o.imei, "imei", "356307042441013", "device IMEI")
	flag.IntVar(&o.records, "records", 2, "records per data frame")
	flag.DurationVar(&o.interval, "interval", 5*time.Second, "delay between data frames")
	flag.IntVar(&o.count, "count", 0, "data frames to send, 0 for unlimited")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := simulate(ctx, o, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("simulation failed", "err", err)
		os.Exit(1)
	}
}

func simulate(ctx context.Context, o options, logger *slog.Logger) error {
	if len(o.imei) != codec.IMEILength {
		return fmt.Errorf("imei must have %d digits", codec.IMEILength)
	}
	if o.records < 1 || o.records > 255 {
		return fmt.Errorf("records must be within 1..255")
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", o.addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	context.AfterFunc(ctx, func() { _ = conn.Close() })

	if _, err := conn.Write(codec.EncodeHandshake(o.imei)); err != nil {
		return err
	}
	reply := make([]byte, 1)
	if err := readReply(conn, reply); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if !bytes.Equal(reply, codec.HandshakeAck) {
		return fmt.Errorf("handshake rejected: % x", reply)
	}
	logger.Info("handshake accepted", "imei", o.imei)

	track := newTrack()
	for sent := 0; o.count == 0 || sent < o.count; sent++ {
		frame, err := codec.EncodeDataFrame(track.next(o.records))
		if err != nil {
			return err
		}
		if _, err := conn.Write(frame); err != nil {
			return err
		}
		ack := make([]byte, 4)
		if err := readReply(conn, ack); err != nil {
			return fmt.Errorf("frame %d: %w", sent, err)
		}
		if got := binary.BigEndian.Uint32(ack); got != uint32(o.records) {
			return fmt.Errorf("frame %d: acked %d of %d records", sent, got, o.records)
		}
		logger.Info("frame acked", "frame", sent, "records", o.records, "bytes", len(frame))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.interval):
		}
	}
	return nil
}

func readReply(conn net.Conn, buf []byte) error {
	if err := conn.SetReadDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	_, err := io.ReadFull(conn, buf)
	return err
}

// track is a device drifting around a fixed point with a draining battery.
type track struct {
	lon, lat float64
	battery  int64
	odometer int64
}

func newTrack() *track {
	return &track{lon: 25.2797, lat: 54.6872, battery: 4100, odometer: 120000}
}

func (t *track) next(n int) []codec.AVLRecord {
	records := make([]codec.AVLRecord, n)
	now := time.Now().UTC()
	for i := range records {
		t.lon += (rand.Float64() - 0.5) / 1000
		t.lat += (rand.Float64() - 0.5) / 1000
		t.odometer += rand.Int64N(50)
		if t.battery > 3500 {
			t.battery--
		}
		speed := int32(rand.IntN(90))
		records[i] = codec.AVLRecord{
			Timestamp: now.Add(time.Duration(i-n) * time.Second),
			Priority:  1,
			GPS: codec.GPSData{
				Longitude:  t.lon,
				Latitude:   t.lat,
				Altitude:   int32(100 + rand.IntN(20)),
				Angle:      int32(rand.IntN(360)),
				Satellites: uint8(6 + rand.IntN(8)),
				Speed:      speed,
			},
			IO: []codec.IOElement{
				{ID: 239, Width: codec.Width1, Value: 1},
				{ID: 24, Width: codec.Width2, Value: int64(speed)},
				{ID: 67, Width: codec.Width2, Value: t.battery},
				{ID: 16, Width: codec.Width4, Value: t.odometer},
				{ID: codec.IOPackedA, Width: codec.Width4, Value: 3<<16 | 7},
				{ID: 11, Width: codec.Width8, Value: 89370100000000000},
			},
		}
	}
	return records
}
