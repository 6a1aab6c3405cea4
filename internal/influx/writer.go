package influx

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"avl-gateway/internal/pipeline"
)

type Options struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Writer stores measurements in an InfluxDB v2 bucket, one blocking write
// per batch.
type Writer struct {
	client influxdb2.Client
	api    api.WriteAPIBlocking
}

func New(opts Options) *Writer {
	client := influxdb2.NewClient(opts.URL, opts.Token)
	return &Writer{
		client: client,
		api:    client.WriteAPIBlocking(opts.Org, opts.Bucket),
	}
}

func (w *Writer) Write(ctx context.Context, ms []pipeline.Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(ms))
	for _, m := range ms {
		points = append(points, toPoint(m))
	}
	if err := w.api.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx write %d points: %w", len(points), err)
	}
	return nil
}

func (w *Writer) Close() {
	w.client.Close()
}

func toPoint(m pipeline.Measurement) *write.Point {
	return influxdb2.NewPoint(m.Name, m.Tags, m.Fields, m.Time)
}
