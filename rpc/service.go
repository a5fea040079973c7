package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName                    = "depthbridge.MarketDataService"
	GetOrderBookSnapshotFullMethod = "/" + ServiceName + "/GetOrderBookSnapshot"
	ListSymbolsFullMethod          = "/" + ServiceName + "/ListSymbols"
)

// MarketDataServiceServer answers order book queries. Requests and responses are
// well-known protobuf types.
type MarketDataServiceServer interface {
	// GetOrderBookSnapshot expects {"market": "BTCUSDT", "maxDepth": 10}.
	GetOrderBookSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSymbols(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func RegisterMarketDataServiceServer(s grpc.ServiceRegistrar, srv MarketDataServiceServer) {
	s.RegisterService(&MarketDataService_ServiceDesc, srv)
}

var MarketDataService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MarketDataServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetOrderBookSnapshot",
			Handler:    _MarketDataService_GetOrderBookSnapshot_Handler,
		},
		{
			MethodName: "ListSymbols",
			Handler:    _MarketDataService_ListSymbols_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "depthbridge/market_data.proto",
}

func _MarketDataService_GetOrderBookSnapshot_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MarketDataServiceServer).GetOrderBookSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetOrderBookSnapshotFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MarketDataServiceServer).GetOrderBookSnapshot(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _MarketDataService_ListSymbols_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MarketDataServiceServer).ListSymbols(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ListSymbolsFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MarketDataServiceServer).ListSymbols(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

type MarketDataServiceClient interface {
	GetOrderBookSnapshot(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListSymbols(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type marketDataServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMarketDataServiceClient(cc grpc.ClientConnInterface) MarketDataServiceClient {
	return &marketDataServiceClient{cc}
}

func (c *marketDataServiceClient) GetOrderBookSnapshot(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetOrderBookSnapshotFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *marketDataServiceClient) ListSymbols(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListSymbolsFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
