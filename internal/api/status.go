package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fleetsim/fleetsim-core/internal/publisher"
)

// statusResponse is the payload for GET /api/v1/status.
type statusResponse struct {
	Service  string          `json:"service"`
	Version  string          `json:"version"`
	Uptime   string          `json:"uptime"`
	Cache    cacheStatus     `json:"cache"`
	Pipeline publisher.Stats `json:"pipeline"`
	Broker   brokerStatus    `json:"broker"`
}

type cacheStatus struct {
	Sites       int       `json:"sites"`
	DeviceTypes int       `json:"device_types"`
	Devices     int       `json:"devices"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

type brokerStatus struct {
	Connected bool `json:"connected"`
}

// handleHealthz answers liveness probes.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
}

// handleStatus reports cache freshness, pipeline counters, and broker
// connectivity.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Cache.Snapshot()

	resp := statusResponse{
		Service:  s.deps.Config.Service.Name,
		Version:  s.deps.Version,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Pipeline: s.deps.Pipeline.Stats(),
		Cache: cacheStatus{
			Sites:       len(snap.Sites),
			DeviceTypes: len(snap.DeviceTypes),
			Devices:     snap.DeviceCount(),
			RefreshedAt: snap.RefreshedAt,
		},
	}
	if s.deps.Broker != nil {
		resp.Broker.Connected = s.deps.Broker.IsConnected()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("status encode failed", "error", err)
	}
}
