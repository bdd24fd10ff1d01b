// Package agent provides the network connection a session calls through.
//
// An Agent is bound to exactly one Identity and one host for its whole
// lifetime; when the identity changes the session builds a new Agent and
// closes the old one. Every outbound call is signed by the identity and
// carries its principal and public key as gRPC metadata.
package agent

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/lendkeeper/internal/common"
	"github.com/dmitrijs2005/lendkeeper/internal/identity"
	"github.com/dmitrijs2005/lendkeeper/internal/logging"
	"github.com/dmitrijs2005/lendkeeper/internal/retry"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// StatusMethod returns the network root key.
const StatusMethod = "/network.v1.Network/Status"

// Options configure a new Agent.
type Options struct {
	Host     string
	Identity identity.Identity

	// FetchRootKey is set for local/test networks whose root of trust is not
	// baked into the client.
	FetchRootKey bool
	RootKeyRetry retry.Policy

	// Insecure disables TLS; used for local replicas.
	Insecure bool

	// RateLimit caps outgoing calls per second; zero disables the limiter.
	RateLimit float64

	Logger logging.Logger
}

// DefaultRootKeyRetry is three attempts one second apart.
func DefaultRootKeyRetry() retry.Policy {
	return retry.Policy{Attempts: 3, Delay: time.Second}
}

type canisterKey struct{}

// Agent is a signed call surface over one gRPC connection.
type Agent struct {
	conn     grpc.ClientConnInterface
	closer   io.Closer
	identity identity.Identity
	host     string
	rootKey  []byte
	limiter  *rate.Limiter
	log      logging.Logger
}

// New dials opts.Host and, when required, fetches the root key before
// returning. The fetch is retried per opts.RootKeyRetry and is fatal only once
// the attempts are exhausted.
func New(ctx context.Context, opts Options) (*Agent, error) {
	if opts.Host == "" {
		return nil, ErrNoHost
	}

	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if opts.Insecure {
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.NewClient(opts.Host, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.Host, err)
	}

	a, err := NewWithConn(ctx, conn, opts)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	a.closer = conn
	return a, nil
}

// NewWithConn builds an Agent over an existing connection. The caller keeps
// ownership of conn.
func NewWithConn(ctx context.Context, conn grpc.ClientConnInterface, opts Options) (*Agent, error) {
	if opts.Identity == nil {
		return nil, ErrNoIdentity
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	a := &Agent{
		identity: opts.Identity,
		host:     opts.Host,
		log:      log.With("host", opts.Host, "principal", opts.Identity.Principal().Text()),
	}
	a.conn = &interceptedConn{inner: conn, intercept: a.signingInterceptor}

	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	if opts.FetchRootKey {
		policy := opts.RootKeyRetry
		if policy.Attempts == 0 {
			policy = DefaultRootKeyRetry()
		}
		policy.OnRetry = func(attempt int, err error) {
			a.log.Warn(ctx, "root key fetch failed, retrying", "attempt", attempt, "error", err)
		}

		key, err := retry.DoValue(ctx, policy, a.fetchRootKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRootKeyUnavailable, err)
		}
		a.rootKey = key
		a.log.Debug(ctx, "root key fetched", "size", len(key))
	}

	return a, nil
}

func (a *Agent) fetchRootKey(ctx context.Context) ([]byte, error) {
	reply := &wrapperspb.BytesValue{}
	if err := a.Call(ctx, "", StatusMethod, &emptypb.Empty{}, reply); err != nil {
		return nil, err
	}
	if len(reply.GetValue()) == 0 {
		return nil, fmt.Errorf("empty root key")
	}
	return reply.GetValue(), nil
}

// Call invokes method on canisterID. Transport failures are mapped to
// ErrUnavailable / ErrUnauthorized where they apply.
func (a *Agent) Call(ctx context.Context, canisterID, method string, req, reply proto.Message) error {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	ctx = context.WithValue(ctx, canisterKey{}, canisterID)
	if err := a.conn.Invoke(ctx, method, req, reply); err != nil {
		return mapError(err)
	}
	return nil
}

// Identity returns the identity the agent signs with.
func (a *Agent) Identity() identity.Identity { return a.identity }

// Host returns the endpoint the agent was built for.
func (a *Agent) Host() string { return a.host }

// RootKey returns the fetched root key, or nil when none was required.
func (a *Agent) RootKey() []byte { return a.rootKey }

// Close releases the connection if the agent owns it.
func (a *Agent) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// signingInterceptor attaches sender metadata and a signature over the
// target, method and proto encoded request.
func (a *Agent) signingInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	canisterID, _ := ctx.Value(canisterKey{}).(string)
	requestID := uuid.NewString()

	md := metadata.Pairs(
		common.CanisterIDHeader, canisterID,
		common.SenderHeader, a.identity.Principal().Text(),
		common.RequestIDHeader, requestID,
	)

	if !a.identity.IsAnonymous() {
		msg, ok := req.(proto.Message)
		if !ok {
			return fmt.Errorf("request %T is not a proto message", req)
		}
		payload, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		sig, err := a.identity.Sign(SigningMessage(canisterID, method, payload))
		if err != nil {
			return fmt.Errorf("sign request: %w", err)
		}
		md.Set(common.SenderPubKeyHeader, hex.EncodeToString(a.identity.PublicKey()))
		md.Set(common.SignatureHeader, hex.EncodeToString(sig))
		if d, ok := a.identity.(interface{ Delegation() string }); ok {
			md.Set(common.DelegationHeader, d.Delegation())
		}
	}

	ctx = metadata.NewOutgoingContext(ctx, metadata.Join(outgoing(ctx), md))
	a.log.Debug(ctx, "call", "method", method, "canister", canisterID, "request_id", requestID)

	return invoker(ctx, method, req, reply, cc, opts...)
}

// SigningMessage is the byte string a sender signs for one call:
// canisterID || 0x00 || method || 0x00 || sha256(payload).
func SigningMessage(canisterID, method string, payload []byte) []byte {
	digest := sha256.Sum256(payload)
	msg := make([]byte, 0, len(canisterID)+len(method)+2+len(digest))
	msg = append(msg, canisterID...)
	msg = append(msg, 0)
	msg = append(msg, method...)
	msg = append(msg, 0)
	return append(msg, digest[:]...)
}

func outgoing(ctx context.Context) metadata.MD {
	md, _ := metadata.FromOutgoingContext(ctx)
	return md
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.Canceled:
		return context.Canceled
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

// interceptedConn runs a unary interceptor in front of any
// grpc.ClientConnInterface, so fakes see the same metadata as real calls.
type interceptedConn struct {
	inner     grpc.ClientConnInterface
	intercept grpc.UnaryClientInterceptor
}

func (c *interceptedConn) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	invoker := func(ctx context.Context, method string, req, reply any, _ *grpc.ClientConn, opts ...grpc.CallOption) error {
		return c.inner.Invoke(ctx, method, req, reply, opts...)
	}
	return c.intercept(ctx, method, args, reply, nil, invoker, opts...)
}

func (c *interceptedConn) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return c.inner.NewStream(ctx, desc, method, opts...)
}
