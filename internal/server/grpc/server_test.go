package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	livesensev1 "github.com/rzbill/livesense/api/livesense/v1"
	cfgpkg "github.com/rzbill/livesense/internal/config"
	"github.com/rzbill/livesense/internal/runtime"
	pebblestore "github.com/rzbill/livesense/internal/storage/pebble"
	logpkg "github.com/rzbill/livesense/pkg/log"
)

const bufSize = 1 << 20

func dialer(s *grpc.Server) func(context.Context, string) (net.Conn, error) {
	lis := bufconn.Listen(bufSize)
	go func() { _ = s.Serve(lis) }()
	return func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
}

func startServer(t *testing.T) (*grpc.ClientConn, *runtime.Runtime) {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.Plots = 2
	cfg.Page.Delay = cfgpkg.Slider{Start: 0.001, End: 0.25, Value: 0.002, Step: 0.001}
	logger, _ := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text", Outputs: []string{"null"}})
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever, Config: cfg, Logger: logger})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("rt start: %v", err)
	}
	srv := New(rt, logger)
	t.Cleanup(srv.Close)
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer(srv.grpc)),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, rt
}

func TestHealthOverGRPC(t *testing.T) {
	conn, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c := healthpb.NewHealthClient(conn)
	for _, svc := range []string{"", livesensev1.Dashboard_ServiceName} {
		res, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		if err != nil {
			t.Fatalf("check %q: %v", svc, err)
		}
		if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			t.Fatalf("service %q status %v", svc, res.GetStatus())
		}
	}
}

func TestGetLayout(t *testing.T) {
	conn, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := livesensev1.NewDashboardClient(conn).GetLayout(ctx, &emptypb.Empty{})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	page := res.GetFields()["page"].GetStructValue()
	if page.GetFields()["title"].GetStringValue() != "Real Time Sensor Data" {
		t.Fatalf("unexpected page %v", page)
	}
	if n := len(res.GetFields()["plots"].GetListValue().GetValues()); n != 2 {
		t.Fatalf("plots: %d", n)
	}
}

func TestSetControls(t *testing.T) {
	conn, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c := livesensev1.NewDashboardClient(conn)

	req, _ := structpb.NewStruct(map[string]any{"plotting": false, "window": 0.0, "delay": 0.0101})
	res, err := c.SetControls(ctx, req)
	if err != nil {
		t.Fatalf("set controls: %v", err)
	}
	f := res.GetFields()
	if f["plotting"].GetBoolValue() || f["window"].GetNumberValue() != 1 || f["delay"].GetNumberValue() != 0.01 {
		t.Fatalf("unexpected controls %v", res)
	}

	bad := []map[string]any{{}, {"bogus": 1.0}, {"plotting": "yes"}, {"window": "wide"}}
	for _, m := range bad {
		req, _ := structpb.NewStruct(m)
		_, err := c.SetControls(ctx, req)
		if status.Code(err) != codes.InvalidArgument {
			t.Fatalf("%v: expected InvalidArgument, got %v", m, err)
		}
	}
}

func TestWatchOrderAndFilter(t *testing.T) {
	conn, rt := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	want := rt.Document().PlotIDs()[1]
	req, _ := structpb.NewStruct(map[string]any{"filter": `plot == "` + want + `"`, "buf": 64.0})
	stream, err := livesensev1.NewDashboardClient(conn).Watch(ctx, req)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	var types []string
	for len(types) < 4 {
		ev, err := stream.Recv()
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		typ := ev.GetFields()["type"].GetStringValue()
		types = append(types, typ)
		if typ == "sample" {
			plot := ev.GetFields()["sample"].GetStructValue().GetFields()["plot"].GetStringValue()
			if plot != want {
				t.Fatalf("filter let through plot %q", plot)
			}
		}
	}
	if types[0] != "layout" || types[1] != "snapshot" {
		t.Fatalf("unexpected event order %v", types)
	}
}

func TestWatchBadFilter(t *testing.T) {
	conn, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := structpb.NewStruct(map[string]any{"filter": "x +"})
	stream, err := livesensev1.NewDashboardClient(conn).Watch(ctx, req)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if _, err := stream.Recv(); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}
