package status

import (
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthIndicator reports SERVING on the gRPC health service once the
// device has shown any state, i.e. once the assistant finished starting.
type HealthIndicator struct {
	srv     *health.Server
	service string
}

func NewHealthIndicator(srv *health.Server, service string) *HealthIndicator {
	srv.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthIndicator{srv: srv, service: service}
}

func (h *HealthIndicator) SetState(s State) {
	st := healthpb.HealthCheckResponse_SERVING
	if s == Unknown {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus(h.service, st)
}
