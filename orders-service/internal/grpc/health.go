package grpc

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name checkers can ask for in addition to the overall "" entry.
const ServiceName = "orders-service"

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter keeps the gRPC health status in step with database reachability.
type HealthReporter struct {
	health   *health.Server
	db       Pinger
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
	serving  bool
}

func NewHealthReporter(db Pinger, interval time.Duration, log *zap.Logger) *HealthReporter {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	h := &HealthReporter{
		health:   health.NewServer(),
		db:       db,
		interval: interval,
		timeout:  interval / 2,
		log:      log,
	}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// NewServer builds the gRPC server exposing the health and reflection services.
func NewServer(reporter *HealthReporter) *grpc.Server {
	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(srv, reporter.health)
	reflection.Register(srv)
	return srv
}

// Run checks the database every interval until ctx is cancelled, then reports NOT_SERVING for good.
func (h *HealthReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

// Check pings the database once and updates the served status.
func (h *HealthReporter) Check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	err := h.db.Ping(pingCtx)
	switch {
	case err != nil && h.serving:
		h.log.Warn("database unreachable, reporting NOT_SERVING", zap.Error(err))
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	case err == nil && !h.serving:
		h.log.Info("database reachable, reporting SERVING")
		h.set(healthpb.HealthCheckResponse_SERVING)
	}
}

func (h *HealthReporter) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.serving = status == healthpb.HealthCheckResponse_SERVING
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}
