package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/batfeed/libs/grpcx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client talks to a remote oracle served by Register.
type Client struct {
	conn   grpc.ClientConnInterface
	closer func() error
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial connects to the oracle at addr using the shared gRPC dial options.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	if addr == "" {
		return nil, errors.New("oracle address is required")
	}
	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, closer: conn.Close}, nil
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// ReadyCheck asks the remote health service whether the oracle is serving.
func (c *Client) ReadyCheck() func(context.Context) error {
	return func(ctx context.Context) error {
		resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			return err
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("oracle status %s", resp.GetStatus())
		}
		return nil
	}
}

func (c *Client) ListUnitTypes(ctx context.Context) ([]UnitType, error) {
	var resp listUnitTypesResponse
	if err := c.invoke(ctx, "ListUnitTypes", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return resp.UnitTypes, nil
}

func (c *Client) ListUnits(ctx context.Context, unitType string, ids []string) ([]Unit, error) {
	var resp listUnitsResponse
	if err := c.invoke(ctx, "ListUnits", listUnitsRequest{UnitType: unitType, IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return resp.Units, nil
}

func (c *Client) DefaultValue(ctx context.Context, unitType, eventType string) (int64, error) {
	var resp defaultValueResponse
	if err := c.invoke(ctx, "DefaultValue", defaultValueRequest{UnitType: unitType, EventType: eventType}, &resp); err != nil {
		return 0, err
	}
	return resp.Value, nil
}

func (c *Client) EventType(ctx context.Context, id string) (EventType, error) {
	var resp eventTypeResponse
	if err := c.invoke(ctx, "EventType", eventTypeRequest{ID: id}, &resp); err != nil {
		return EventType{}, err
	}
	return resp.EventType, nil
}

func (c *Client) ListEventTypes(ctx context.Context) ([]EventType, error) {
	var resp listEventTypesResponse
	if err := c.invoke(ctx, "ListEventTypes", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return resp.EventTypes, nil
}

func (c *Client) Events(ctx context.Context, eventType string, units []Unit, start, end time.Time) (map[string][]Event, error) {
	req := eventsRequest{
		EventType: eventType,
		Units:     units,
		Start:     start.Format(time.RFC3339Nano),
		End:       end.Format(time.RFC3339Nano),
	}
	var resp eventsResponse
	if err := c.invoke(ctx, "Events", req, &resp); err != nil {
		return nil, err
	}
	if resp.Events == nil {
		resp.Events = map[string][]Event{}
	}
	return resp.Events, nil
}

func (c *Client) MatchingUnits(ctx context.Context, eventType string, units []Unit, q MatchQuery) (MatchingResult, error) {
	var resp matchingUnitsResponse
	if err := c.invoke(ctx, "MatchingUnits", matchingUnitsRequest{EventType: eventType, Units: units, Query: q}, &resp); err != nil {
		return MatchingResult{}, err
	}
	return resp.Result, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return fmt.Errorf("oracle %s: encode: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return fromStatus(method, err)
	}
	if err := fromStruct(out, resp); err != nil {
		return fmt.Errorf("oracle %s: decode: %w", method, err)
	}
	return nil
}

func fromStatus(method string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("oracle %s: %w", method, err)
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("oracle %s: %s: %w", method, st.Message(), ErrNotFound)
	case codes.Canceled:
		return fmt.Errorf("oracle %s: %w", method, context.Canceled)
	case codes.DeadlineExceeded:
		return fmt.Errorf("oracle %s: %w", method, context.DeadlineExceeded)
	default:
		return fmt.Errorf("oracle %s: %w", method, err)
	}
}

var _ Oracle = (*Client)(nil)
