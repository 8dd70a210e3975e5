package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/audit"
	"github.com/ebogdum/mediasource/audit/postgres"
	"github.com/ebogdum/mediasource/audit/sqlite"
	"github.com/ebogdum/mediasource/config"
	"github.com/ebogdum/mediasource/core"
	"github.com/ebogdum/mediasource/internal/errs"
	"github.com/ebogdum/mediasource/locks"
)

// cliActor is the audit actor of commands run from the terminal.
const cliActor = "cli"

// app holds the components shared by the server and the CLI commands.
type app struct {
	cfg      config.AppConfig
	logger   *zap.Logger
	audit    audit.Store
	locks    locks.Manager
	probes   *core.ProbeCache
	registry *core.Registry
	engine   *core.TransferEngine
}

// openApp loads the configuration and opens every source and store.
func openApp(ctx context.Context, configFilePath string) (*app, error) {
	cfg, err := config.LoadConfigFromFile(configFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initializeLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	logger.Info("Initializing audit store", zap.String("type", cfg.Audit.Type))
	if a.audit, err = openAudit(ctx, cfg.Audit, logger); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize audit store: %w", err)
	}

	logger.Info("Initializing lock manager", zap.String("type", cfg.DLM.Type))
	if a.locks, err = locks.New(cfg.DLM, logger); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize lock manager: %w", err)
	}

	a.probes = core.NewProbeCache(cfg.Transfer.ProbeCacheTTL, cfg.Transfer.ProbeCacheSize)

	logger.Info("Opening media sources", zap.Int("count", len(cfg.Sources)))
	if a.registry, err = core.NewRegistry(ctx, cfg, a.audit, a.probes, logger); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to open sources: %w", err)
	}

	a.engine = core.NewTransferEngine(cfg.Transfer, a.locks, a.audit, logger)
	return a, nil
}

// close releases everything openApp opened.
func (a *app) close() {
	var result *multierror.Error

	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if a.probes != nil {
		a.probes.Stop()
	}
	if a.locks != nil {
		if err := a.locks.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		a.logger.Warn("Failed to close resources", zap.Error(err))
	}
	if err := a.logger.Sync(); err != nil {
		// Log to stderr since logger may not be working
		fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", err)
	}
}

// cliContext tags ctx with the terminal audit actor.
func cliContext(ctx context.Context) context.Context {
	return audit.WithActor(ctx, cliActor)
}

// openAudit builds the audit store selected by cfg.Type.
func openAudit(ctx context.Context, cfg config.AuditConfig, logger *zap.Logger) (audit.Store, error) {
	switch cfg.Type {
	case "", "log":
		return audit.NewLogStore(logger, 0), nil
	case "sqlite":
		store, err := sqlite.NewSQLiteStore(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := postgres.NewPostgresStore(ctx, cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, errs.Newf(errs.KindInvalidInput, "unsupported audit type %q", cfg.Type)
	}
}
