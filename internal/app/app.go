package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/luvo/internal/config"
	"github.com/dokzlo13/luvo/internal/db"
	"github.com/dokzlo13/luvo/internal/fleet"
	"github.com/dokzlo13/luvo/internal/ledger"
)

// App wires configuration, the lamp fleet and the optional command ledger.
type App struct {
	cfg *config.Config

	// Core infrastructure (nil when database.path is empty)
	DB     *db.DB
	Ledger *ledger.Ledger

	Fleet *fleet.Client
}

// New creates a new App. It opens the ledger database if one is configured
// but makes no network calls.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg}

	opts := []fleet.Option{
		fleet.WithBaseURL(cfg.Cloud.BaseURL),
		fleet.WithTimeout(cfg.Cloud.Timeout.Duration()),
		fleet.WithRateLimit(cfg.Cloud.RateLimitRPS),
	}

	if cfg.Database.Path != "" {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		a.DB = database
		a.Ledger = ledger.New(database.DB)
		opts = append(opts, fleet.WithRecorder(a.Ledger))

		removed, err := a.Ledger.DeleteOlderThan(cfg.Ledger.Retention())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to apply ledger retention")
		} else if removed > 0 {
			log.Debug().Int64("removed", removed).Msg("Ledger retention applied")
		}
	}

	a.Fleet = fleet.New(cfg.Cloud.Token, opts...)
	return a, nil
}

// Close releases connections and the database
func (a *App) Close() error {
	if a.Fleet != nil {
		a.Fleet.Close()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
