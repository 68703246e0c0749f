package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	LedgerService_ServiceName               = "ledger.v1.LedgerService"
	LedgerService_Apply_FullMethodName       = "/ledger.v1.LedgerService/Apply"
	LedgerService_GetBalance_FullMethodName  = "/ledger.v1.LedgerService/GetBalance"
	LedgerService_ListEntries_FullMethodName = "/ledger.v1.LedgerService/ListEntries"
	LedgerService_GetEntry_FullMethodName    = "/ledger.v1.LedgerService/GetEntry"
	LedgerService_OpenAccount_FullMethodName = "/ledger.v1.LedgerService/OpenAccount"
)

// LedgerServiceClient is the client API for LedgerService.
type LedgerServiceClient interface {
	Apply(ctx context.Context, in *ApplyRequest, opts ...grpc.CallOption) (*ApplyResponse, error)
	GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error)
	ListEntries(ctx context.Context, in *ListEntriesRequest, opts ...grpc.CallOption) (*ListEntriesResponse, error)
	GetEntry(ctx context.Context, in *GetEntryRequest, opts ...grpc.CallOption) (*GetEntryResponse, error)
	OpenAccount(ctx context.Context, in *OpenAccountRequest, opts ...grpc.CallOption) (*OpenAccountResponse, error)
}

type ledgerServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerServiceClient(cc grpc.ClientConnInterface) LedgerServiceClient {
	return &ledgerServiceClient{cc}
}

func (c *ledgerServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *ledgerServiceClient) Apply(ctx context.Context, in *ApplyRequest, opts ...grpc.CallOption) (*ApplyResponse, error) {
	out := new(ApplyResponse)
	if err := c.invoke(ctx, LedgerService_Apply_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerServiceClient) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error) {
	out := new(GetBalanceResponse)
	if err := c.invoke(ctx, LedgerService_GetBalance_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerServiceClient) ListEntries(ctx context.Context, in *ListEntriesRequest, opts ...grpc.CallOption) (*ListEntriesResponse, error) {
	out := new(ListEntriesResponse)
	if err := c.invoke(ctx, LedgerService_ListEntries_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerServiceClient) GetEntry(ctx context.Context, in *GetEntryRequest, opts ...grpc.CallOption) (*GetEntryResponse, error) {
	out := new(GetEntryResponse)
	if err := c.invoke(ctx, LedgerService_GetEntry_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerServiceClient) OpenAccount(ctx context.Context, in *OpenAccountRequest, opts ...grpc.CallOption) (*OpenAccountResponse, error) {
	out := new(OpenAccountResponse)
	if err := c.invoke(ctx, LedgerService_OpenAccount_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// LedgerServiceServer is the server API for LedgerService.
// Implementations should embed UnimplementedLedgerServiceServer.
type LedgerServiceServer interface {
	Apply(context.Context, *ApplyRequest) (*ApplyResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error)
	ListEntries(context.Context, *ListEntriesRequest) (*ListEntriesResponse, error)
	GetEntry(context.Context, *GetEntryRequest) (*GetEntryResponse, error)
	OpenAccount(context.Context, *OpenAccountRequest) (*OpenAccountResponse, error)
}

type UnimplementedLedgerServiceServer struct{}

func (UnimplementedLedgerServiceServer) Apply(context.Context, *ApplyRequest) (*ApplyResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Apply not implemented")
}

func (UnimplementedLedgerServiceServer) GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBalance not implemented")
}

func (UnimplementedLedgerServiceServer) ListEntries(context.Context, *ListEntriesRequest) (*ListEntriesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListEntries not implemented")
}

func (UnimplementedLedgerServiceServer) GetEntry(context.Context, *GetEntryRequest) (*GetEntryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetEntry not implemented")
}

func (UnimplementedLedgerServiceServer) OpenAccount(context.Context, *OpenAccountRequest) (*OpenAccountResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method OpenAccount not implemented")
}

func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerService_ServiceDesc, srv)
}

// unaryHandler builds the method handler for one RPC.
func unaryHandler[Req any](fullMethod string, call func(LedgerServiceServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var LedgerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: LedgerService_ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Apply",
			Handler: unaryHandler(LedgerService_Apply_FullMethodName, func(s LedgerServiceServer, ctx context.Context, in *ApplyRequest) (any, error) {
				return s.Apply(ctx, in)
			}),
		},
		{
			MethodName: "GetBalance",
			Handler: unaryHandler(LedgerService_GetBalance_FullMethodName, func(s LedgerServiceServer, ctx context.Context, in *GetBalanceRequest) (any, error) {
				return s.GetBalance(ctx, in)
			}),
		},
		{
			MethodName: "ListEntries",
			Handler: unaryHandler(LedgerService_ListEntries_FullMethodName, func(s LedgerServiceServer, ctx context.Context, in *ListEntriesRequest) (any, error) {
				return s.ListEntries(ctx, in)
			}),
		},
		{
			MethodName: "GetEntry",
			Handler: unaryHandler(LedgerService_GetEntry_FullMethodName, func(s LedgerServiceServer, ctx context.Context, in *GetEntryRequest) (any, error) {
				return s.GetEntry(ctx, in)
			}),
		},
		{
			MethodName: "OpenAccount",
			Handler: unaryHandler(LedgerService_OpenAccount_FullMethodName, func(s LedgerServiceServer, ctx context.Context, in *OpenAccountRequest) (any, error) {
				return s.OpenAccount(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "proto/ledger.go",
}
