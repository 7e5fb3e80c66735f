package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mbell/sensorium/internal/models"
)

// staleThreshold marks a device unhealthy when its newest reading is older
// than this. Devices report every few minutes; half an hour of silence means
// something is wrong.
const staleThreshold = 30 * time.Minute

type HealthStatus struct {
	Status  string         `json:"status"`
	Runtime string         `json:"runtime"`
	Devices []DeviceHealth `json:"devices"`
	Errors  []string       `json:"errors,omitempty"`
}

type DeviceHealth struct {
	DeviceID   string    `json:"device_id"`
	LastSeen   time.Time `json:"last_seen"`
	AgeMinutes int       `json:"age_minutes"`
	Stale      bool      `json:"stale"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	deployments, err := s.store.Deployments(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": err.Error()})
		return
	}

	health := HealthStatus{
		Status:  "ok",
		Runtime: s.runner.RuntimeState().String(),
		Devices: make([]DeviceHealth, 0, len(deployments)),
	}

	now := time.Now()
	seen := make(map[string]bool)
	for _, dep := range deployments {
		if dep.EndedAt != nil || seen[dep.DeviceID] {
			continue
		}
		seen[dep.DeviceID] = true

		last, err := s.store.LatestReadingTime(r.Context(), dep.DeviceID)
		if err != nil {
			health.Errors = append(health.Errors, dep.DeviceID+": "+err.Error())
			continue
		}

		dh := DeviceHealth{DeviceID: dep.DeviceID}
		if !last.IsZero() {
			dh.LastSeen = last
			dh.AgeMinutes = int(now.Sub(last).Minutes())
			dh.Stale = now.Sub(last) > staleThreshold
		} else {
			dh.Stale = true
			dh.AgeMinutes = -1
		}

		if dh.Stale {
			health.Status = "degraded"
		}
		health.Devices = append(health.Devices, dh)
	}

	if len(health.Errors) > 0 {
		health.Status = "error"
	}

	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleDeployments(w http.ResponseWriter, r *http.Request) {
	deployments, err := s.store.Deployments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if deployments == nil {
		deployments = []models.Deployment{}
	}
	writeJSON(w, http.StatusOK, deployments)
}

func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req models.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decode request: "+err.Error())
		return
	}
	if len(req.DeploymentIDs) == 0 {
		writeError(w, http.StatusBadRequest, "deployment_ids required")
		return
	}
	if req.End.IsZero() {
		req.End = time.Now()
	}

	result, err := s.runner.Run(r.Context(), req, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleForecastHourly(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "device_id required")
		return
	}

	points, err := s.forecaster.Hourly(r.Context(), deviceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleForecastDaily(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "device_id required")
		return
	}

	days, err := s.forecaster.Daily(r.Context(), deviceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, days)
}
