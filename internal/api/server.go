package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbell/sensorium/internal/analysis"
	"github.com/mbell/sensorium/internal/forecast"
	"github.com/mbell/sensorium/internal/store"
)

// Server exposes the JSON API the dashboard consumes.
type Server struct {
	store      *store.Store
	runner     *analysis.Runner
	forecaster *forecast.Forecaster
	port       string
	loc        *time.Location
}

func NewServer(st *store.Store, runner *analysis.Runner, fc *forecast.Forecaster, port string, loc *time.Location) *Server {
	return &Server{
		store:      st,
		runner:     runner,
		forecaster: fc,
		port:       port,
		loc:        loc,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/deployments", s.handleDeployments)
	mux.HandleFunc("/api/analyses", s.handleAnalyses)
	mux.HandleFunc("/api/forecast/hourly", s.handleForecastHourly)
	mux.HandleFunc("/api/forecast/daily", s.handleForecastDaily)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
