package client

import (
	"context"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	transports "github.com/rzbill/livesense/internal/cmd/client/transports"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// grpcAddrFromEnv returns the gRPC server address from LIVESENSE_GRPC or a default.
func grpcAddrFromEnv() string {
	if addr := os.Getenv("LIVESENSE_GRPC"); addr != "" {
		return addr
	}
	return "127.0.0.1:50051"
}

// dialGRPCContext creates a client for the livesense gRPC endpoint with insecure transport for local/dev.
func dialGRPCContext(_ context.Context) (*grpc.ClientConn, error) {
	return grpc.NewClient(grpcAddrFromEnv(), grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func grpcTransport() *transports.GrpcTransport {
	return transports.NewGrpcTransport(dialGRPCContext)
}

func httpTransport(baseURL BaseURLFunc) *transports.HTTPTransport {
	return transports.NewHTTPTransport(baseURL(), nil)
}
