package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightsched/internal/config"
	"github.com/dokzlo13/lightsched/internal/ledger"
	"github.com/dokzlo13/lightsched/internal/metrics"
	"github.com/dokzlo13/lightsched/internal/store"
	"github.com/dokzlo13/lightsched/internal/syncer"
)

// HealthService provides HTTP health check, state and metrics endpoints.
type HealthService struct {
	cfg    *config.Config
	store  *store.Store
	syncer *syncer.Syncer
	server *http.Server

	mu       sync.RWMutex
	lastSync *ledger.Entry
}

// NewHealthService creates a new HealthService.
func NewHealthService(cfg *config.Config, st *store.Store, sy *syncer.Syncer) *HealthService {
	return &HealthService{
		cfg:    cfg,
		store:  st,
		syncer: sy,
	}
}

// ObserveSync remembers the outcome of the latest finished fetch or save.
func (s *HealthService) ObserveSync(e ledger.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSync = &e
}

type readiness struct {
	Status    string    `json:"status"`
	InFlight  string    `json:"in_flight,omitempty"`
	LastSync  string    `json:"last_sync,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	At        time.Time `json:"at,omitzero"`
}

// Handler returns the HTTP routes served by the health server.
func (s *HealthService) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// Ready once the schedule endpoint answered successfully
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		last := s.lastSync
		s.mu.RUnlock()

		resp := readiness{Status: "not_ready", InFlight: string(s.syncer.InFlight())}
		code := http.StatusServiceUnavailable
		if last != nil {
			resp.LastSync = string(last.Operation)
			resp.LastError = last.Error
			resp.At = last.Timestamp
			if last.EventType == ledger.EventSyncSucceeded {
				resp.Status = "ready"
				code = http.StatusOK
			}
		}
		writeJSON(w, code, resp)
	})

	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.store.State())
	})

	mux.Handle("/metrics", metrics.Handler())

	return mux
}

// Start begins the health check server if enabled.
func (s *HealthService) Start(ctx context.Context) {
	if !s.cfg.Healthcheck.Enabled {
		return
	}

	go s.run(ctx)
}

func (s *HealthService) run(ctx context.Context) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Healthcheck.Host, s.cfg.Healthcheck.Port)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("Starting health check server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Health check server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Health check server error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
