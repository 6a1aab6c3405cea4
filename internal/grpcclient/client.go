package grpcclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"avl-gateway/internal/pipeline"
)

// DefaultMethod is the unary method measurements are forwarded to. Request
// and reply are google.protobuf.Struct, so the receiving side needs no
// gateway-specific schema.
const DefaultMethod = "/forwarder.Forwarder/SendMeasurements"

// Forwarder pushes measurement batches to a gRPC service.
type Forwarder struct {
	conn    *grpc.ClientConn
	method  string
	timeout time.Duration
}

func NewForwarder(addr, method string, opts ...grpc.DialOption) (*Forwarder, error) {
	if method == "" {
		method = DefaultMethod
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", addr, err)
	}
	return &Forwarder{conn: conn, method: method, timeout: 5 * time.Second}, nil
}

func (f *Forwarder) Close() error {
	return f.conn.Close()
}

func (f *Forwarder) Write(ctx context.Context, ms []pipeline.Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	req, err := toStruct(ms)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	res := &structpb.Struct{}
	if err := f.conn.Invoke(ctx, f.method, req, res); err != nil {
		return fmt.Errorf("forward %d measurements: %w", len(ms), err)
	}
	if v, ok := res.GetFields()["success"]; ok && !v.GetBoolValue() {
		return errors.New("forwarder refused measurements")
	}
	return nil
}

func toStruct(ms []pipeline.Measurement) (*structpb.Struct, error) {
	list := make([]any, 0, len(ms))
	for _, m := range ms {
		tags := make(map[string]any, len(m.Tags))
		for k, v := range m.Tags {
			tags[k] = v
		}
		list = append(list, map[string]any{
			"name":   m.Name,
			"tags":   tags,
			"fields": m.Fields,
			"time":   m.Time.UTC().Format(time.RFC3339Nano),
		})
	}
	s, err := structpb.NewStruct(map[string]any{"measurements": list})
	if err != nil {
		return nil, fmt.Errorf("encode measurements: %w", err)
	}
	return s, nil
}
