package transports

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	livesensev1 "github.com/rzbill/livesense/api/livesense/v1"
	"github.com/rzbill/livesense/internal/dashboard"
)

// GrpcTransport talks to livesense.v1.Dashboard.
type GrpcTransport struct {
	dial func(ctx context.Context) (*grpc.ClientConn, error)
}

// NewGrpcTransport constructs a new GrpcTransport using the provided dialer.
func NewGrpcTransport(dial func(ctx context.Context) (*grpc.ClientConn, error)) *GrpcTransport {
	return &GrpcTransport{dial: dial}
}

func (t *GrpcTransport) withClient(ctx context.Context, fn func(cli livesensev1.DashboardClient) error) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return fn(livesensev1.NewDashboardClient(conn))
}

// SetControls applies a control update over gRPC.
func (t *GrpcTransport) SetControls(ctx context.Context, u dashboard.ControlUpdate) (dashboard.Controls, error) {
	var out dashboard.Controls
	fields := map[string]any{}
	if u.Plotting != nil {
		fields["plotting"] = *u.Plotting
	}
	if u.Window != nil {
		fields["window"] = *u.Window
	}
	if u.Delay != nil {
		fields["delay"] = *u.Delay
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return out, err
	}
	err = t.withClient(ctx, func(cli livesensev1.DashboardClient) error {
		res, err := cli.SetControls(ctx, req)
		if err != nil {
			return err
		}
		f := res.GetFields()
		out.Plotting = f["plotting"].GetBoolValue()
		out.Window = int(f["window"].GetNumberValue())
		out.Delay = f["delay"].GetNumberValue()
		return nil
	})
	return out, err
}

// Watch streams dashboard events and invokes onEvent for each one.
func (t *GrpcTransport) Watch(ctx context.Context, req WatchRequest, onEvent func(*structpb.Struct) error) error {
	fields := map[string]any{}
	if req.Filter != "" {
		fields["filter"] = req.Filter
	}
	if req.Buffer > 0 {
		fields["buf"] = float64(req.Buffer)
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return t.withClient(ctx, func(cli livesensev1.DashboardClient) error {
		stream, err := cli.Watch(ctx, in)
		if err != nil {
			return err
		}
		samples := 0
		for {
			ev, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
					return nil
				}
				return err
			}
			if err := onEvent(ev); err != nil {
				return err
			}
			if ev.GetFields()["type"].GetStringValue() == string(dashboard.EventSample) {
				samples++
				if req.Limit > 0 && samples >= req.Limit {
					return nil
				}
			}
		}
	})
}
