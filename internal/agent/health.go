package agent

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthChecker queries the collector's grpc.health.v1 service.
type GRPCHealthChecker struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
}

// NewGRPCHealthChecker prepares a client for address. No connection is made
// until Check is called.
func NewGRPCHealthChecker(address string) (*GRPCHealthChecker, error) {
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &GRPCHealthChecker{conn: conn, client: healthpb.NewHealthClient(conn)}, nil
}

// Check returns nil when the collector reports SERVING.
func (h *GRPCHealthChecker) Check(ctx context.Context) error {
	resp, err := h.client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("collector status %s", resp.GetStatus())
	}
	return nil
}

func (h *GRPCHealthChecker) Close() error {
	return h.conn.Close()
}
