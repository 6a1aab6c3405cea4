package grpcclient

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"avl-gateway/internal/pipeline"
)

type received struct {
	method string
	req    *structpb.Struct
}

// startForwarder serves any method, replying with {"success": success}.
func startForwarder(t *testing.T, success bool) (*Forwarder, <-chan received) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	got := make(chan received, 1)

	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
		method, _ := grpc.MethodFromServerStream(stream)
		req := &structpb.Struct{}
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		got <- received{method: method, req: req}
		res, _ := structpb.NewStruct(map[string]any{"success": success})
		return stream.SendMsg(res)
	}))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	f, err := NewForwarder("passthrough:///bufnet", "",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f, got
}

func TestForwarderWrite(t *testing.T) {
	f, got := startForwarder(t, true)

	at := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	ms := []pipeline.Measurement{{
		Name:   "356307042441013",
		Tags:   map[string]string{"ioID": "66"},
		Fields: map[string]any{"ioValue": int64(4660), "longitude": 25.27},
		Time:   at,
	}}
	require.NoError(t, f.Write(context.Background(), ms))

	r := <-got
	assert.Equal(t, DefaultMethod, r.method)
	list := r.req.GetFields()["measurements"].GetListValue().GetValues()
	require.Len(t, list, 1)
	m := list[0].GetStructValue().AsMap()
	assert.Equal(t, "356307042441013", m["name"])
	assert.Equal(t, "2026-10-19T10:00:00Z", m["time"])
	assert.Equal(t, map[string]any{"ioID": "66"}, m["tags"])
	assert.Equal(t, map[string]any{"ioValue": float64(4660), "longitude": 25.27}, m["fields"])
}

func TestForwarderRefused(t *testing.T) {
	f, _ := startForwarder(t, false)

	m := pipeline.BuildStatus("356307042441013", "10.0.0.5", 1, pipeline.StatusOnline, time.Now())
	err := f.Write(context.Background(), []pipeline.Measurement{m})
	assert.EqualError(t, err, "forwarder refused measurements")
}

func TestForwarderEmptyBatch(t *testing.T) {
	f, err := NewForwarder("passthrough:///unused", "/x.Y/Z")
	require.NoError(t, err)
	defer f.Close()
	assert.NoError(t, f.Write(context.Background(), nil))
}
