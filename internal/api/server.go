package api

import (
	"os"

	"vintrail/internal/auth"
	"vintrail/internal/config"
	"vintrail/internal/routing"
	"vintrail/internal/store"
	"vintrail/internal/webhooks"
)

type Server struct {
	Store      store.Store
	Pub        *webhooks.Publisher
	Auth       *auth.Verifier
	Broker     EventBroker
	Directions routing.Provider
	Cfg        *config.Config

	saves *saveLimiters
}

// NewServer wires a Server from config. With no DatabaseURL it runs on the
// in-memory store; with no RedisURL events stay process-local.
func NewServer(cfg *config.Config) (*Server, error) {
	var s store.Store
	if cfg.DatabaseURL == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		// Dev helper; a real deploy runs migrations out of band.
		if os.Getenv("DB_MIGRATE") != "false" {
			_ = sp.MigrateDir("db/migrations")
		}
		s = sp
	}

	var broker EventBroker
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		broker = rb
	} else {
		broker = NewBroker()
	}

	return &Server{
		Store:      s,
		Pub:        webhooks.NewPublisher(s),
		Auth:       auth.New(cfg.AuthMode, cfg.AuthHMACSecret),
		Broker:     broker,
		Directions: routing.Estimator{SpeedKmh: cfg.RouteSpeedKmh},
		Cfg:        cfg,
		saves:      newSaveLimiters(cfg.SaveRatePerSec, cfg.SaveBurst),
	}, nil
}

// NewWebhookWorker creates the background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Cfg.WebhookMaxAttempts)
}
