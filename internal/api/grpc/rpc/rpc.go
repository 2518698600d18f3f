// Package rpc declares the smartbank gRPC services. Requests and responses are
// google.protobuf.Struct documents, so no generated code is needed.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	AuthServiceName    = "smartbank.Auth"
	LedgerServiceName  = "smartbank.Ledger"
	ProfileServiceName = "smartbank.Profile"
)

// AuthServer is served without authentication.
type AuthServer interface {
	RequestChallenge(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Logout(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	SessionStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ExtendSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// LedgerServer requires a bearer session.
type LedgerServer interface {
	Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Withdraw(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetStatistics(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	WithdrawFees(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ProfileServer requires a bearer session.
type ProfileServer interface {
	GetProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SetRole(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// method builds a unary method descriptor that routes through the server interceptor chain.
func method[S any, R any](service, name string, call func(S, context.Context, *structpb.Struct) (R, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		method(AuthServiceName, "RequestChallenge", AuthServer.RequestChallenge),
		method(AuthServiceName, "Register", AuthServer.Register),
		method(AuthServiceName, "Login", AuthServer.Login),
		method(AuthServiceName, "Logout", AuthServer.Logout),
		method(AuthServiceName, "SessionStatus", AuthServer.SessionStatus),
		method(AuthServiceName, "ExtendSession", AuthServer.ExtendSession),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "smartbank/auth",
}

var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: LedgerServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		method(LedgerServiceName, "Deposit", LedgerServer.Deposit),
		method(LedgerServiceName, "Withdraw", LedgerServer.Withdraw),
		method(LedgerServiceName, "GetBalance", LedgerServer.GetBalance),
		method(LedgerServiceName, "GetHistory", LedgerServer.GetHistory),
		method(LedgerServiceName, "GetStatistics", LedgerServer.GetStatistics),
		method(LedgerServiceName, "WithdrawFees", LedgerServer.WithdrawFees),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "smartbank/ledger",
}

var ProfileServiceDesc = grpc.ServiceDesc{
	ServiceName: ProfileServiceName,
	HandlerType: (*ProfileServer)(nil),
	Methods: []grpc.MethodDesc{
		method(ProfileServiceName, "GetProfile", ProfileServer.GetProfile),
		method(ProfileServiceName, "UpdateProfile", ProfileServer.UpdateProfile),
		method(ProfileServiceName, "SetRole", ProfileServer.SetRole),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "smartbank/profile",
}

func RegisterAuthServer(s grpc.ServiceRegistrar, srv AuthServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

func RegisterProfileServer(s grpc.ServiceRegistrar, srv ProfileServer) {
	s.RegisterService(&ProfileServiceDesc, srv)
}

// Client calls smartbank methods over an established connection.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Call invokes service/method with req and decodes the Struct response.
func (c *Client) Call(ctx context.Context, service, method string, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+service+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Logout is the one call with an Empty response.
func (c *Client) Logout(ctx context.Context, token string, opts ...grpc.CallOption) error {
	in, err := structpb.NewStruct(map[string]any{"token": token})
	if err != nil {
		return err
	}
	return c.conn.Invoke(ctx, "/"+AuthServiceName+"/Logout", in, new(emptypb.Empty), opts...)
}
