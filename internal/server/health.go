package server

import (
	"encoding/json"
	"net/http"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// healthServices are the service names tracked by the health server. Readiness
// requires every one of them to be SERVING.
var healthServices = []string{
	"envoy.service.auth.v3.Authorization",
}

// newHealthServer creates a gRPC health server with every tracked service
// registered as NOT_SERVING. SetReady flips them once startup completes.
func newHealthServer() *health.Server {
	srv := health.NewServer()
	for _, service := range healthServices {
		srv.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return srv
}

// SetReady marks every tracked service as SERVING
func (s *Server) SetReady() {
	for _, service := range healthServices {
		s.healthServer.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
	}
}

// handleLiveness answers the kubelet-style liveness probe. The process being
// able to answer is the whole check.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeHealth(w, http.StatusOK, map[string]string{
		"status": "OK",
	})
}

// handleReadiness reports SERVING only when every tracked service is serving;
// otherwise it names the first one that is not.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	for _, service := range healthServices {
		resp, err := s.healthServer.Check(r.Context(), &healthpb.HealthCheckRequest{
			Service: service,
		})
		if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			writeHealth(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "NOT_SERVING",
				"service": service,
			})
			return
		}
	}

	writeHealth(w, http.StatusOK, map[string]string{
		"status": "SERVING",
	})
}

func writeHealth(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
