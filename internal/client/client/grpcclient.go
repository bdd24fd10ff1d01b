package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dmitrijs2005/lendkeeper/internal/common"
	"github.com/dmitrijs2005/lendkeeper/internal/logging"
	"github.com/dmitrijs2005/lendkeeper/internal/principal"
	"github.com/dmitrijs2005/lendkeeper/internal/result"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Lending pool methods.
const (
	MethodIsAuthenticated    = "/lending.v1.LendingPool/IsAuthenticated"
	MethodGetUserInfo        = "/lending.v1.LendingPool/GetUserInfo"
	MethodRegisterUser       = "/lending.v1.LendingPool/RegisterUser"
	MethodUpdateBalance      = "/lending.v1.LendingPool/UpdateBalance"
	MethodGetEarnPositions   = "/lending.v1.LendingPool/GetEarnPositions"
	MethodGetBorrowPositions = "/lending.v1.LendingPool/GetBorrowPositions"
)

// Caller issues one call against a canister. *agent.Agent implements it.
type Caller interface {
	Call(ctx context.Context, canisterID, method string, req, reply proto.Message) error
}

// GRPCClient implements Client over a Caller.
type GRPCClient struct {
	caller     Caller
	canisterID string
	log        logging.Logger
}

var _ Client = (*GRPCClient)(nil)

// NewGRPCClient binds the service at canisterID. The client takes ownership
// of caller and closes it in Close when it is an io.Closer.
func NewGRPCClient(caller Caller, canisterID string, log logging.Logger) (*GRPCClient, error) {
	if canisterID == "" {
		return nil, fmt.Errorf("%w: lending canister id is empty", common.ErrConfigInvalid)
	}
	if log == nil {
		log = logging.Nop()
	}
	return &GRPCClient{
		caller:     caller,
		canisterID: canisterID,
		log:        log.With("canister", canisterID),
	}, nil
}

func (c *GRPCClient) Close() error {
	if cl, ok := c.caller.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

func (c *GRPCClient) IsAuthenticated(ctx context.Context) (bool, error) {
	reply := &wrapperspb.BoolValue{}
	if err := c.caller.Call(ctx, c.canisterID, MethodIsAuthenticated, &emptypb.Empty{}, reply); err != nil {
		return false, err
	}
	return reply.GetValue(), nil
}

func (c *GRPCClient) GetUserInfo(ctx context.Context, p principal.Principal) (result.Result[UserRecord], error) {
	args := map[string]any{"principal": p.Text()}
	return callResult(ctx, c, MethodGetUserInfo, args, userRecordWire.model)
}

func (c *GRPCClient) RegisterUser(ctx context.Context, p principal.Principal, username string) (result.Result[UserRecord], error) {
	args := map[string]any{"principal": p.Text(), "username": username}
	return callResult(ctx, c, MethodRegisterUser, args, userRecordWire.model)
}

func (c *GRPCClient) UpdateBalance(ctx context.Context, amount float64) (result.Result[float64], error) {
	args := map[string]any{"amount": amount}
	return callResult(ctx, c, MethodUpdateBalance, args, func(v float64) float64 { return v })
}

func (c *GRPCClient) GetEarnPositions(ctx context.Context) (result.Result[[]Position], error) {
	return callResult(ctx, c, MethodGetEarnPositions, nil, positions)
}

func (c *GRPCClient) GetBorrowPositions(ctx context.Context) (result.Result[[]Position], error) {
	return callResult(ctx, c, MethodGetBorrowPositions, nil, positions)
}

func positions(ws []positionWire) []Position {
	out := make([]Position, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.model())
	}
	return out
}

// callResult sends args as a Struct and decodes the {ok}/{err} reply. The ok
// payload is decoded into W and converted with conv.
func callResult[W, T any](ctx context.Context, c *GRPCClient, method string, args map[string]any, conv func(W) T) (result.Result[T], error) {
	req, err := structpb.NewStruct(args)
	if err != nil {
		return result.Result[T]{}, fmt.Errorf("encode %s args: %w", method, err)
	}

	reply := &structpb.Struct{}
	if err := c.caller.Call(ctx, c.canisterID, method, req, reply); err != nil {
		return result.Result[T]{}, err
	}

	fields := reply.GetFields()
	if msg, ok := fields["err"]; ok {
		c.log.Debug(ctx, "service returned err", "method", method, "message", msg.GetStringValue())
		return result.Err[T](msg.GetStringValue()), nil
	}

	okVal, ok := fields["ok"]
	if !ok {
		return result.Result[T]{}, fmt.Errorf("%w: %s", ErrMalformedReply, method)
	}

	raw, err := protojson.Marshal(okVal)
	if err != nil {
		return result.Result[T]{}, fmt.Errorf("%w: %s: %w", ErrMalformedReply, method, err)
	}
	var w W
	if err := json.Unmarshal(raw, &w); err != nil {
		return result.Result[T]{}, fmt.Errorf("%w: %s: %w", ErrMalformedReply, method, err)
	}
	return result.Ok(conv(w)), nil
}
