package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	livesensev1 "github.com/rzbill/livesense/api/livesense/v1"
	"github.com/rzbill/livesense/internal/dashboard"
	"github.com/rzbill/livesense/internal/runtime"
	logpkg "github.com/rzbill/livesense/pkg/log"
)

type dashboardSvc struct {
	livesensev1.UnimplementedDashboardServer
	rt     *runtime.Runtime
	logger logpkg.Logger
}

func (s *dashboardSvc) GetLayout(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	l, err := s.rt.Document().Layout(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(l)
}

func (s *dashboardSvc) SetControls(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	u, err := controlUpdate(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	c, err := s.rt.Document().SetControls(ctx, u)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(c)
}

func (s *dashboardSvc) Watch(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	opts := dashboard.SubscribeOptions{}
	for k, v := range req.GetFields() {
		switch k {
		case "filter":
			opts.Filter = v.GetStringValue()
		case "buf":
			opts.Buffer = int(v.GetNumberValue())
		default:
			return status.Errorf(codes.InvalidArgument, "unknown watch option %q", k)
		}
	}
	ctx := stream.Context()
	sub, err := s.rt.Document().Subscribe(ctx, opts)
	if err != nil {
		return toStatus(err)
	}
	defer sub.Close()
	s.logger.Debug("watch started", logpkg.Str("subscription", sub.ID.String()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events:
			if !ok {
				return status.Error(codes.Unavailable, "dashboard stopped")
			}
			msg, err := toStruct(ev)
			if err != nil {
				return err
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// controlUpdate reads plotting (bool), window and delay (numbers).
func controlUpdate(req *structpb.Struct) (dashboard.ControlUpdate, error) {
	var u dashboard.ControlUpdate
	for k, v := range req.GetFields() {
		switch k {
		case "plotting":
			b, ok := v.GetKind().(*structpb.Value_BoolValue)
			if !ok {
				return u, fmt.Errorf("plotting must be a bool")
			}
			u.Plotting = &b.BoolValue
		case "window", "delay":
			n, ok := v.GetKind().(*structpb.Value_NumberValue)
			if !ok {
				return u, fmt.Errorf("%s must be a number", k)
			}
			f := n.NumberValue
			if k == "window" {
				u.Window = &f
			} else {
				u.Delay = &f
			}
		default:
			return u, fmt.Errorf("unknown control %q", k)
		}
	}
	if u.Empty() {
		return u, errors.New("no control values given")
	}
	return u, nil
}

// toStruct converts a JSON-tagged value into a Struct via its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(b, st); err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	return st, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, dashboard.ErrBadFilter):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, dashboard.ErrUnknownPlot):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, dashboard.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Internal, err.Error())
}
