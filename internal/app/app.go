// Package app assembles the server from configuration: keyspaces,
// placements, tables, the writer, the HTTP surface and the maintenance
// sweeper, with one shutdown path.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deltastore/internal/maintenance"
	"deltastore/pkg/api"
	"deltastore/pkg/auth"
	"deltastore/pkg/cluster"
	"deltastore/pkg/config"
	"deltastore/pkg/httpx"
	"deltastore/pkg/logger"
	"deltastore/pkg/sor"
	"deltastore/pkg/table"
)

// App is the assembled server.
type App struct {
	cfg        *config.Config
	keyspaces  map[string]*cluster.Keyspace
	placements map[string]*cluster.Placement
	registry   *table.Registry
	writer     *sor.Writer
	server     *httpx.Server

	stopSweeper context.CancelFunc
}

// New builds the app from a validated configuration, opening every
// declared keyspace.
func New(cfg *config.Config) (*App, error) {
	a := &App{
		cfg:        cfg,
		keyspaces:  make(map[string]*cluster.Keyspace),
		placements: make(map[string]*cluster.Placement),
		registry:   table.NewRegistry(),
	}

	writerCfg := sor.Config{
		MaxBatchSize:      cfg.Writer.MaxBatchSize,
		MaxPendingSize:    cfg.Writer.MaxPendingSize,
		MaxFrameSize:      int(cfg.Writer.MaxFrameSize),
		MaxDeltaSize:      int(cfg.Writer.MaxDeltaSize),
		BlockSize:         int(cfg.Writer.BlockSize),
		DeltaPrefixLength: cfg.Writer.DeltaPrefixLength,
		PurgeBatchSize:    cfg.Writer.PurgeBatchSize,
		HistoryTTL:        time.Duration(cfg.Writer.HistoryTTL),
	}
	a.writer = sor.NewWriter(writerCfg, nil)
	effective := a.writer.Config()

	if err := a.openKeyspaces(effective.MaxFrameSize); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildPlacements(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.registerTables(); err != nil {
		a.Close()
		return nil, err
	}

	a.server = httpx.NewServer(cfg.Server.Engine, cfg.Server.Address, a.handler())
	return a, nil
}

func (a *App) openKeyspaces(defaultFrameLimit int) error {
	for _, kc := range a.cfg.Storage.Keyspaces {
		path := kc.Path
		if path == "" {
			path = filepath.Join(a.cfg.Storage.DataDir, kc.Name)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create data dir for keyspace %s: %w", kc.Name, err)
		}
		frameLimit := int(kc.FrameSize)
		if frameLimit <= 0 {
			frameLimit = defaultFrameLimit
		}
		ks, err := cluster.OpenKeyspace(kc.Name, path, frameLimit)
		if err != nil {
			return err
		}
		a.keyspaces[kc.Name] = ks
	}
	return nil
}

func (a *App) buildPlacements() error {
	for _, pc := range a.cfg.Storage.Placements {
		ks, ok := a.keyspaces[pc.Keyspace]
		if !ok {
			return fmt.Errorf("placement %s references unknown keyspace %s", pc.Name, pc.Keyspace)
		}
		deltaCF := pc.DeltaCF
		if deltaCF == "" {
			deltaCF = "delta"
		}
		historyCF := pc.HistoryCF
		if historyCF == "" {
			historyCF = "history"
		}
		a.placements[pc.Name] = cluster.NewPlacement(pc.Name, ks,
			cluster.ColumnFamily(deltaCF), cluster.ColumnFamily(historyCF))
	}
	return nil
}

func (a *App) registerTables() error {
	for _, tc := range a.cfg.Tables {
		placements := make([]*cluster.Placement, 0, len(tc.Placements))
		for _, name := range tc.Placements {
			p, ok := a.placements[name]
			if !ok {
				return fmt.Errorf("table %s references unknown placement %s", tc.Name, name)
			}
			placements = append(placements, p)
		}
		a.registry.Register(table.NewStatic(tc.Name, placements...))
	}
	logger.Info("tables_registered", "count", len(a.cfg.Tables))
	return nil
}

// handler composes the full HTTP surface: the versioned API behind the
// auth middleware, plus unauthenticated health and metrics endpoints.
func (a *App) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/v1/", api.Router(api.Deps{Registry: a.registry, Writer: a.writer}))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		for name, ks := range a.keyspaces {
			if !ks.Ready() {
				http.Error(w, fmt.Sprintf("keyspace %s not ready", name), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	return auth.Middleware(auth.Config{
		BackendKeys: auth.KeySet(a.cfg.Security.APIKeys.Backend),
		AdminKeys:   auth.KeySet(a.cfg.Security.APIKeys.Admin),
		RPS:         a.cfg.Security.RateLimit.RPS,
		Burst:       a.cfg.Security.RateLimit.Burst,
	}, mux)
}

// sweepPlacements returns the configured placements in name order so
// sweep logs and metrics attribute stably run-to-run.
func (a *App) sweepPlacements() []*cluster.Placement {
	placements := make([]*cluster.Placement, 0, len(a.placements))
	for _, p := range a.placements {
		placements = append(placements, p)
	}
	sort.Slice(placements, func(i, j int) bool { return placements[i].Name() < placements[j].Name() })
	return placements
}

// Run starts the maintenance sweeper (when enabled) and serves HTTP
// until the listener fails or Shutdown is called.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Maintenance.Enabled {
		sweeper := maintenance.NewSweeper(a.sweepPlacements(), a.writer.Config().PurgeBatchSize)
		cancel, err := sweeper.Start(ctx, a.cfg.Maintenance.Cron)
		if err != nil {
			return err
		}
		a.stopSweeper = cancel
	}
	return a.server.ListenAndServe(a.cfg.Server.TLS.CertFile, a.cfg.Server.TLS.KeyFile)
}

// Shutdown stops the HTTP server gracefully and the sweeper.
func (a *App) Shutdown(ctx context.Context) error {
	if a.stopSweeper != nil {
		a.stopSweeper()
	}
	if a.server != nil {
		return a.server.Shutdown(ctx)
	}
	return nil
}

// Close releases every open keyspace.
func (a *App) Close() {
	for name, ks := range a.keyspaces {
		if err := ks.Close(); err != nil {
			logger.Error("keyspace_close_failed", "name", name, "error", err)
		}
	}
}

// Registry exposes the table registry (used by tests and tooling).
func (a *App) Registry() *table.Registry { return a.registry }

// Writer exposes the write path.
func (a *App) Writer() *sor.Writer { return a.writer }
