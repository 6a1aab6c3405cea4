package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"avl-gateway/internal/observability"
)

type namedSink struct {
	name string
	sink Sink
}

// Fanout writes every batch to its primary sinks and fails if any of them
// did. Auxiliary sinks are fed only after the primaries succeeded; their
// failures are logged and counted but never returned.
type Fanout struct {
	primary   []namedSink
	auxiliary []namedSink
	logger    *slog.Logger
}

func NewFanout(lg *slog.Logger) *Fanout {
	if lg == nil {
		lg = slog.Default()
	}
	return &Fanout{logger: lg.With("component", "fanout")}
}

// Add registers a sink whose failure rejects the batch.
func (f *Fanout) Add(name string, s Sink) {
	f.primary = append(f.primary, namedSink{name: name, sink: s})
}

// AddAuxiliary registers a best-effort sink.
func (f *Fanout) AddAuxiliary(name string, s Sink) {
	f.auxiliary = append(f.auxiliary, namedSink{name: name, sink: s})
}

func (f *Fanout) Len() int { return len(f.primary) + len(f.auxiliary) }

func (f *Fanout) Write(ctx context.Context, ms []Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	var errs []error
	for _, s := range f.primary {
		if err := s.sink.Write(ctx, ms); err != nil {
			observability.SinkErrors.WithLabelValues(s.name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for _, s := range f.auxiliary {
		if err := s.sink.Write(ctx, ms); err != nil {
			observability.SinkErrors.WithLabelValues(s.name).Inc()
			f.logger.WarnContext(ctx, "auxiliary sink write failed",
				"sink", s.name,
				"measurements", len(ms),
				"err", err,
			)
		}
	}
	return nil
}

// LogSink only logs measurements. It stands in when no store is configured.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Write(ctx context.Context, ms []Measurement) error {
	for _, m := range ms {
		s.Logger.DebugContext(ctx, "measurement",
			"name", m.Name,
			"tags", m.Tags,
			"fields", m.Fields,
			"time", m.Time,
		)
	}
	return nil
}
