package rpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/depthbridge/domain"
	"github.com/spooky-finn/depthbridge/maintainer"
	"github.com/spooky-finn/depthbridge/usecase"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

var logger = logrus.WithField("component", "rpc")

type StatusReporter interface {
	Status() []maintainer.SymbolStatus
}

type server struct {
	orderbookSnapshotUseCase *usecase.OrderBookSnapshotUseCase
	validationService        *ValidationService
	status                   StatusReporter
}

func NewServer(
	orderbookSnapshotUseCase *usecase.OrderBookSnapshotUseCase,
	reporter StatusReporter,
	conf *ValidationServiceConfig,
) *server {
	return &server{
		orderbookSnapshotUseCase: orderbookSnapshotUseCase,
		validationService:        NewValidationService(conf),
		status:                   reporter,
	}
}

func (s *server) GetOrderBookSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()

	symbol, err := s.validationService.ParseMarket(fields["market"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	rawDepth := fields["maxDepth"].GetNumberValue()
	if rawDepth != math.Trunc(rawDepth) || math.Abs(rawDepth) > math.MaxInt32 {
		return nil, status.Errorf(codes.InvalidArgument, "maxDepth must be an integer, got %v", rawDepth)
	}

	depth, err := s.validationService.Depth(int(rawDepth))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	snapshot, err := s.orderbookSnapshotUseCase.GetOrderBookSnapshot(ctx, symbol, depth)
	if err != nil {
		return nil, toStatus(err)
	}

	return snapshotToStruct(snapshot)
}

func (s *server) ListSymbols(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	symbols := make([]interface{}, 0)
	for _, st := range s.status.Status() {
		symbols = append(symbols, map[string]interface{}{
			"symbol":       st.Symbol.String(),
			"phase":        st.Phase.String(),
			"lastUpdateId": strconv.FormatUint(st.LastUpdateID, 10),
			"pending":      st.Pending,
		})
	}

	return structpb.NewStruct(map[string]interface{}{"symbols": symbols})
}

func snapshotToStruct(snapshot *domain.OrderBookSnapshot) (*structpb.Struct, error) {
	result, err := structpb.NewStruct(map[string]interface{}{
		"source":       string(snapshot.Source),
		"symbol":       snapshot.Symbol.String(),
		"lastUpdateId": strconv.FormatUint(snapshot.LastUpdateID, 10),
		"bids":         levelsToList(snapshot.Bids),
		"asks":         levelsToList(snapshot.Asks),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return result, nil
}

func levelsToList(levels []domain.PriceLevel) []interface{} {
	result := make([]interface{}, 0, len(levels))
	for _, level := range domain.SerializePriceLevels(levels) {
		result = append(result, []interface{}{level[0], level[1]})
	}
	return result
}

func toStatus(err error) error {
	var transient *domain.TransientFetchError
	var malformed *domain.MalformedResponseError

	switch {
	case errors.Is(err, domain.ErrSymbolNotTracked):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &transient), errors.As(err, &malformed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// NewGRPCServer registers srv and the standard health service on a new grpc.Server.
func NewGRPCServer(srv MarketDataServiceServer, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor))
	s := grpc.NewServer(opts...)

	RegisterMarketDataServiceServer(s, srv)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	return s
}

// Serve listens on addr until ctx is done, then stops gracefully.
func Serve(ctx context.Context, addr string, srv MarketDataServiceServer) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := NewGRPCServer(srv)
	stop := context.AfterFunc(ctx, s.GracefulStop)
	defer stop()

	logger.Infof("grpc server listening at %v", lis.Addr())
	if err := s.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	entry := logger.WithFields(logrus.Fields{
		"method":   info.FullMethod,
		"code":     status.Code(err).String(),
		"duration": time.Since(start),
	})
	if err != nil {
		entry.WithError(err).Warn("rpc failed")
	} else {
		entry.Debug("rpc served")
	}

	return resp, err
}
