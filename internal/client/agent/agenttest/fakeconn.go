// Package agenttest provides an in-memory grpc.ClientConnInterface for
// exercising agents and the clients built on them without a network.
package agenttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/lendkeeper/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// Handler answers one unary call.
type Handler func(ctx context.Context, req proto.Message) (proto.Message, error)

// Call is a recorded invocation.
type Call struct {
	Method     string
	CanisterID string
	Metadata   metadata.MD
	Request    proto.Message
}

// FakeConn routes unary calls to per-method handlers and records them.
type FakeConn struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
}

func NewFakeConn() *FakeConn {
	return &FakeConn{handlers: make(map[string]Handler)}
}

// Handle registers h for the fully qualified method name.
func (f *FakeConn) Handle(method string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

// Calls returns a copy of the recorded calls.
func (f *FakeConn) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls for one method.
func (f *FakeConn) CallsTo(method string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeConn) Invoke(ctx context.Context, method string, args, reply any, _ ...grpc.CallOption) error {
	md, _ := metadata.FromOutgoingContext(ctx)
	req, _ := args.(proto.Message)

	canister := ""
	if v := md.Get(common.CanisterIDHeader); len(v) > 0 {
		canister = v[0]
	}

	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, CanisterID: canister, Metadata: md.Copy(), Request: req})
	h, ok := f.handlers[method]
	f.mu.Unlock()

	if !ok {
		return status.Errorf(codes.Unimplemented, "method %s not registered", method)
	}

	resp, err := h(ctx, req)
	if err != nil {
		return err
	}
	out, ok := reply.(proto.Message)
	if !ok {
		return fmt.Errorf("reply %T is not a proto message", reply)
	}
	if resp != nil {
		proto.Reset(out)
		proto.Merge(out, resp)
	}
	return nil
}

func (f *FakeConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, status.Error(codes.Unimplemented, "streams not supported")
}
