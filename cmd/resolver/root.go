package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/scrypster/resolver/internal/config"
	"github.com/scrypster/resolver/internal/engine"
	"github.com/scrypster/resolver/internal/logger"
	"github.com/scrypster/resolver/internal/storage"
	"github.com/scrypster/resolver/internal/storage/guard"
	"github.com/scrypster/resolver/internal/storage/postgres"
	"github.com/scrypster/resolver/internal/storage/sqlite"
)

// app carries state shared by subcommands once the root pre-run has loaded
// the configuration.
type app struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "resolver",
		Short:         "Resolve free-text mentions to catalog entities",
		Long:          `resolver maps mentions such as "Acme" to canonical entities using the alias glossary, exact and fuzzy name matching, and embedding similarity.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file (default: $RESOLVER_CONFIG)")

	root.AddCommand(
		newServeCmd(a),
		newResolveCmd(a),
		newBatchCmd(a),
		newSuggestCmd(a),
	)
	return root
}

func (a *app) load() error {
	var cfg *config.Config
	var err error
	if a.configPath != "" {
		cfg, err = config.Load(a.configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return err
	}
	if err := logger.Initialize(cfg.Log.JSON, cfg.Log.Level); err != nil {
		return errors.Wrap(err, "initialize logger")
	}
	a.cfg = cfg
	return nil
}

// openBackend opens the configured storage engine.
func (a *app) openBackend() (storage.Store, io.Closer, error) {
	switch a.cfg.Storage.Engine {
	case "postgres":
		store, err := postgres.NewStoreWithPool(a.cfg.Storage.PostgresDSN, a.cfg.Storage.PoolOptions())
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		if err := os.MkdirAll(a.cfg.Storage.DataPath, 0o755); err != nil {
			return nil, nil, errors.Wrapf(err, "create data directory %s", a.cfg.Storage.DataPath)
		}
		store, err := sqlite.NewStore(a.cfg.Storage.SQLitePath())
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
}

// openResolver opens the backend behind the circuit breaker and builds a
// Resolver over it. The returned closer releases the backend.
func (a *app) openResolver() (*engine.Resolver, *guard.Store, io.Closer, error) {
	backend, closer, err := a.openBackend()
	if err != nil {
		return nil, nil, nil, err
	}
	guarded := guard.New(backend, a.cfg.Breaker.GuardConfig())
	resolver := engine.NewResolver(guarded, a.cfg.Resolver.EngineConfig())
	return resolver, guarded, closer, nil
}

// withResolver runs fn with a freshly opened resolver and closes the backend
// afterwards.
func (a *app) withResolver(ctx context.Context, fn func(ctx context.Context, r *engine.Resolver) error) error {
	resolver, _, closer, err := a.openResolver()
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Logger.Warnw("failed to close store", "error", err)
		}
	}()
	return fn(ctx, resolver)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
