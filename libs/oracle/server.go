package oracle

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "batfeed.oracle.v1.Oracle"

type oracleServer interface {
	backend() Oracle
}

type server struct {
	o Oracle
}

func (s *server) backend() Oracle { return s.o }

// Register exposes o on the gRPC server under ServiceName.
func Register(s grpc.ServiceRegistrar, o Oracle) {
	s.RegisterService(&serviceDesc, &server{o: o})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*oracleServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListUnitTypes", func(ctx context.Context, o Oracle, _ *structpb.Struct) (any, error) {
			types, err := o.ListUnitTypes(ctx)
			return listUnitTypesResponse{UnitTypes: types}, err
		}),
		unary("ListUnits", func(ctx context.Context, o Oracle, in *structpb.Struct) (any, error) {
			var req listUnitsRequest
			if err := fromStruct(in, &req); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			units, err := o.ListUnits(ctx, req.UnitType, req.IDs)
			return listUnitsResponse{Units: units}, err
		}),
		unary("DefaultValue", func(ctx context.Context, o Oracle, in *structpb.Struct) (any, error) {
			var req defaultValueRequest
			if err := fromStruct(in, &req); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			v, err := o.DefaultValue(ctx, req.UnitType, req.EventType)
			return defaultValueResponse{Value: v}, err
		}),
		unary("EventType", func(ctx context.Context, o Oracle, in *structpb.Struct) (any, error) {
			var req eventTypeRequest
			if err := fromStruct(in, &req); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			t, err := o.EventType(ctx, req.ID)
			return eventTypeResponse{EventType: t}, err
		}),
		unary("ListEventTypes", func(ctx context.Context, o Oracle, _ *structpb.Struct) (any, error) {
			types, err := o.ListEventTypes(ctx)
			return listEventTypesResponse{EventTypes: types}, err
		}),
		unary("Events", func(ctx context.Context, o Oracle, in *structpb.Struct) (any, error) {
			var req eventsRequest
			if err := fromStruct(in, &req); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			start, err := time.Parse(time.RFC3339Nano, req.Start)
			if err != nil {
				return nil, status.Error(codes.InvalidArgument, "invalid start")
			}
			end, err := time.Parse(time.RFC3339Nano, req.End)
			if err != nil {
				return nil, status.Error(codes.InvalidArgument, "invalid end")
			}
			events, err := o.Events(ctx, req.EventType, req.Units, start, end)
			return eventsResponse{Events: events}, err
		}),
		unary("MatchingUnits", func(ctx context.Context, o Oracle, in *structpb.Struct) (any, error) {
			var req matchingUnitsRequest
			if err := fromStruct(in, &req); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			res, err := o.MatchingUnits(ctx, req.EventType, req.Units, req.Query)
			return matchingUnitsResponse{Result: res}, err
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "batfeed/oracle/v1",
}

type unaryFunc func(ctx context.Context, o Oracle, in *structpb.Struct) (any, error)

func unary(name string, fn unaryFunc) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	call := func(ctx context.Context, srv any, in *structpb.Struct) (any, error) {
		resp, err := fn(ctx, srv.(oracleServer).backend(), in)
		if err != nil {
			return nil, toStatus(err)
		}
		return toStruct(resp)
	}
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(ctx, srv, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(ctx, srv, req.(*structpb.Struct))
			})
		},
	}
}

func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
