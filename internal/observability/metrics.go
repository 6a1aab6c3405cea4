package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TCPConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avlgw_tcp_connections_total",
		Help: "Total accepted TCP connections",
	})
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "avlgw_tcp_connections_active",
		Help: "Currently open TCP connections",
	})
	HandshakeOK = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avlgw_handshake_ok_total",
		Help: "Total accepted IMEI handshakes",
	})
	HandshakeRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avlgw_handshake_rejected_total",
		Help: "Total IMEI handshakes refused by the device registry",
	})
	PacketsRecv = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avlgw_packets_received_total",
		Help: "Total AVL data frames received",
	})
	RecordsAck = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avlgw_records_ack_total",
		Help: "Total AVL records acknowledged to devices",
	})
	FrameErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avlgw_frame_errors_total",
		Help: "Frames dropped, by error kind",
	}, []string{"kind"})
	StatusEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avlgw_status_events_total",
		Help: "ONLINE/OFFLINE status measurements emitted",
	}, []string{"status"})
	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avlgw_sink_errors_total",
		Help: "Failed measurement sink writes, by sink",
	}, []string{"sink"})
	ParseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "avlgw_parse_latency_seconds",
		Help:    "Data frame decode latency",
		Buckets: prometheus.DefBuckets,
	})
	SinkLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "avlgw_sink_write_latency_seconds",
		Help:    "Measurement sink write latency",
		Buckets: prometheus.DefBuckets,
	})
)

func ObserveParseLatency(start time.Time) {
	ParseLatency.Observe(time.Since(start).Seconds())
}

func ObserveSinkLatency(start time.Time) {
	SinkLatency.Observe(time.Since(start).Seconds())
}

// StartMetricsServer serves /metrics and /healthz until ctx is done.
func StartMetricsServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
