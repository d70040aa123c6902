package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightsched/internal/config"
	"github.com/dokzlo13/lightsched/internal/db"
	"github.com/dokzlo13/lightsched/internal/edit"
	"github.com/dokzlo13/lightsched/internal/errreport"
	"github.com/dokzlo13/lightsched/internal/eventbus"
	"github.com/dokzlo13/lightsched/internal/ledger"
	"github.com/dokzlo13/lightsched/internal/metrics"
	"github.com/dokzlo13/lightsched/internal/remote"
	"github.com/dokzlo13/lightsched/internal/store"
	"github.com/dokzlo13/lightsched/internal/syncer"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus

	// Scheduler state
	Store    *store.Store
	Client   *remote.Client
	Reporter errreport.Reporter
	Syncer   *syncer.Syncer
	Edit     *edit.Handlers

	// High-level services
	Health *HealthService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	metrics.Register()

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	var recorder syncer.Recorder
	if cfg.Ledger.Enabled {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.DB = database
		s.Ledger = ledger.New(database.DB)
		recorder = newBusRecorder(s.Ledger, s.Bus)
	} else {
		recorder = newBusRecorder(nil, s.Bus)
	}

	s.Store = store.New(s.Bus)
	s.Store.Subscribe(func(c store.Change) {
		metrics.SetUnsaved(c.State.Status.UnsavedChanges)
	})

	s.Client = remote.NewClient(remote.Options{
		URL:          cfg.Schedule.URL,
		AuthHeader:   cfg.Schedule.AuthHeader,
		Token:        cfg.Schedule.Token,
		Timeout:      cfg.Schedule.Timeout.Duration(),
		RateLimitRPS: cfg.Schedule.RateLimitRPS,
	})

	if cfg.ErrorReport.Enabled && cfg.ErrorReport.URL != "" {
		s.Reporter = errreport.NewHTTPReporter(errreport.HTTPOptions{
			URL:         cfg.ErrorReport.URL,
			AuthHeader:  cfg.Schedule.AuthHeader,
			Token:       cfg.ErrorReport.Token,
			ServiceName: cfg.ErrorReport.ServiceName,
			Timeout:     cfg.ErrorReport.Timeout.Duration(),
		})
	} else {
		s.Reporter = errreport.LogReporter{}
	}

	s.Syncer = syncer.New(s.Store, s.Client, s.Reporter, recorder)
	s.Edit = edit.New(s.Store)

	s.Health = NewHealthService(cfg, s.Store, s.Syncer)
	s.Bus.Subscribe(eventbus.TopicSyncFinished, func(e eventbus.Event) {
		if entry, ok := e.Payload.(ledger.Entry); ok {
			s.Health.ObserveSync(entry)
		}
	})

	return s, nil
}

// Start fetches the schedule once and starts all background services.
// A failed initial fetch is not fatal: the store keeps its placeholder
// document and the error flag is raised.
func (s *Services) Start(ctx context.Context) error {
	if err := s.Syncer.Fetch(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial schedule fetch failed")
	}

	if s.Ledger != nil && s.cfg.Ledger.RetentionPeriod > 0 {
		go s.runLedgerCleanup(ctx)
	}
	s.Health.Start(ctx)

	return nil
}

// runLedgerCleanup periodically cleans up old ledger entries.
func (s *Services) runLedgerCleanup(ctx context.Context) {
	retention := s.cfg.Ledger.RetentionPeriod.Duration()
	interval := s.cfg.Ledger.CleanupInterval.Duration()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupLedger(retention)
		}
	}
}

func (s *Services) cleanupLedger(retention time.Duration) {
	deleted, err := s.Ledger.DeleteOlderThan(retention)
	if err != nil {
		log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
	} else if deleted > 0 {
		log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
	}
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources. Pending notifications and error reports
// get up to the shutdown timeout to drain.
func (s *Services) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
	defer cancel()

	if s.Bus != nil {
		s.Bus.Close(ctx)
	}
	if r, ok := s.Reporter.(*errreport.HTTPReporter); ok {
		r.Flush(ctx)
	}
	if s.Client != nil {
		s.Client.Close()
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}
}
