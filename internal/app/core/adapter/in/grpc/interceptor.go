package grpc

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
	pb "github.com/JoeShih716/go-bank-ledger/proto"
)

// RequestIDHeader is read from incoming metadata and echoed back in the response header.
const RequestIDHeader = "x-request-id"

// UnaryLoggingInterceptor attaches a request id to the context and logs every call.
func UnaryLoggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		requestID := requestIDFrom(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID))

		ctx = log.WithRequestID(ctx, requestID)
		ctx = log.WithField(ctx, "method", info.FullMethod)

		resp, err := handler(ctx, req)

		code := status.Code(err)
		ctx = log.WithFields(ctx, map[string]any{
			"code":        code.String(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		switch code {
		case codes.OK:
			log.Debug(ctx, "grpc call")
		case codes.Internal, codes.Unavailable, codes.Unknown:
			log.Error(ctx, "grpc call failed", err)
		default:
			log.Info(ctx, "grpc call rejected")
		}
		return resp, err
	}
}

// UnaryRecoveryInterceptor turns a handler panic into codes.Internal.
func UnaryRecoveryInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				ctx = log.WithFields(ctx, map[string]any{
					"method": info.FullMethod,
					"stack":  string(debug.Stack()),
				})
				log.Error(ctx, "grpc handler panic", fmt.Errorf("%v", r))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func requestIDFrom(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(RequestIDHeader); len(ids) > 0 && ids[0] != "" {
			return ids[0]
		}
	}
	return uuid.NewString()
}

// ServerOptions returns the interceptor chain used by cmd/core.
func ServerOptions(log *logger.Logger) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			UnaryRecoveryInterceptor(log),
			UnaryLoggingInterceptor(log),
		),
	}
}

// NewServer builds a gRPC server with the ledger and health services registered.
func NewServer(ledger Ledger, log *logger.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(append(ServerOptions(log), opts...)...)
	pb.RegisterLedgerServiceServer(s, NewGrpcServer(ledger))

	hs := health.NewServer()
	hs.SetServingStatus(pb.LedgerService_ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}
