package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mfreeman451/nodeverify/pkg/config"
	"github.com/mfreeman451/nodeverify/pkg/db"
	"github.com/mfreeman451/nodeverify/pkg/logger"
	"github.com/mfreeman451/nodeverify/pkg/metrics"
	"github.com/mfreeman451/nodeverify/pkg/models"
	"github.com/mfreeman451/nodeverify/pkg/tunnel"
	"github.com/mfreeman451/nodeverify/pkg/verifier"
)

// app holds everything one command invocation needs.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	tunnel   *tunnel.SSHTunnel
	store    *db.DB
	metrics  *metrics.Manager
	verifier *verifier.Service
}

func setup(ctx context.Context) (*app, error) {
	if err := config.LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	mode := cfg.LogMode
	if logMode != "" {
		mode = logMode
	}

	log, err := logger.New(mode)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}

	dsn := cfg.Database.DSN

	if cfg.SSH != nil {
		a.tunnel, err = tunnel.NewSSHTunnel(cfg.SSH, log)
		if err != nil {
			return nil, err
		}

		if err = a.tunnel.Start(ctx); err != nil {
			return nil, err
		}

		dsn, err = db.RedirectDSN(cfg.Database.Driver, dsn, a.tunnel.LocalAddr())
		if err != nil {
			a.close()

			return nil, err
		}
	}

	a.store, err = db.Open(ctx, db.Options{
		Driver:       cfg.Database.Driver,
		DSN:          dsn,
		Schema:       cfg.Database.Schema,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}, log)
	if err != nil {
		a.close()

		return nil, fmt.Errorf("%w: %w", verifier.ErrConnectivity, err)
	}

	a.metrics = metrics.NewManager(models.MetricsConfig{Enabled: cfg.Metrics.Enabled})

	a.verifier = verifier.New(a.store, verifier.Options{
		RecencyWindow: time.Duration(cfg.RecencyWindow),
		Recorder:      a.metrics,
	}, log)

	log.Info("Store ready",
		"driver", a.store.Dialect().Name,
		"schema", cfg.Database.Schema,
		"tunnel", cfg.SSH != nil)

	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("Error closing store", "error", err)
		}
	}

	if a.tunnel != nil {
		if err := a.tunnel.Stop(context.Background()); err != nil {
			a.log.Warn("Error closing tunnel", "error", err)
		}
	}

	a.log.Sync()
}
