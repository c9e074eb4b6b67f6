// Command ce-inventory loads a port inventory and a set of interface
// declarations, builds the network's global interfaces and their LTPs, and
// exposes inventory and capacity metrics over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/signalsfoundry/ce-endpoints/capacity"
	"github.com/signalsfoundry/ce-endpoints/core"
	"github.com/signalsfoundry/ce-endpoints/internal/config"
	"github.com/signalsfoundry/ce-endpoints/internal/logging"
	"github.com/signalsfoundry/ce-endpoints/internal/observability"
	"github.com/signalsfoundry/ce-endpoints/kb"
	"github.com/signalsfoundry/ce-endpoints/kb/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logging.NewFromEnv().Error(context.Background(), "failed to load config",
				logging.String("path", *configPath), logging.Err(err))
			os.Exit(1)
		}
		cfg = loaded
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	log := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, nil); err != nil {
		log.Error(ctx, "ce-inventory exited", logging.Err(err))
		os.Exit(1)
	}
}

// run bootstraps the inventory and blocks serving metrics until ctx is
// cancelled. A nil lis makes run listen on cfg.MetricsAddr.
func run(ctx context.Context, cfg *config.Config, log logging.Logger, lis net.Listener) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	invMetrics, err := observability.NewInventoryCollector(reg)
	if err != nil {
		return fmt.Errorf("init inventory metrics: %w", err)
	}
	capMetrics, err := observability.NewCapacityCollector(reg)
	if err != nil {
		return fmt.Errorf("init capacity metrics: %w", err)
	}

	env, err := bootstrap(ctx, cfg, log, invMetrics, capMetrics)
	if err != nil {
		return err
	}
	defer env.Close()

	if lis == nil {
		lis, err = net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("listen for metrics: %w", err)
		}
	}
	srv := serveMetrics(lis, invMetrics, log)

	<-ctx.Done()
	log.Info(context.Background(), "shutting down ce-inventory")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// environment is everything bootstrap builds.
type environment struct {
	Resolver core.PortResolver
	Registry *core.Registry
	Ledger   *capacity.Ledger
	LTPs     []*core.LogicalTerminationPoint
	Service  []core.NetworkInterface
	// Inventory is the in-memory KB; nil when the sqlite backend is used.
	Inventory *kb.KnowledgeBase

	closers []func() error
}

// Close releases the inventory backend.
func (e *environment) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func bootstrap(ctx context.Context, cfg *config.Config, log logging.Logger, invMetrics *observability.InventoryCollector, capMetrics *observability.CapacityCollector) (*environment, error) {
	if err := core.ValidateRoleTables(); err != nil {
		return nil, err
	}

	env := &environment{Registry: core.NewRegistry()}
	source, err := openInventory(ctx, cfg.Inventory, log, env)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Resolver = kb.NewInstrumented(source, cfg.Inventory.Source, invMetrics, log)

	if cfg.InterfacesPath != "" {
		set, err := loadInterfaces(ctx, env.Registry, env.Resolver, cfg.InterfacesPath)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Service = set.Service
		log.Info(ctx, "loaded interface declarations",
			logging.String("path", cfg.InterfacesPath),
			logging.Int("global", len(set.GlobalIDs)),
			logging.Int("service", len(set.Service)),
		)
	}

	env.Ledger = capacity.NewLedger(capacity.WithLogger(log), capacity.WithMetrics(capMetrics))
	for _, ni := range env.Registry.List() {
		if err := env.Ledger.Track(ni); err != nil {
			env.Close()
			return nil, err
		}
	}

	if env.Inventory != nil {
		unsubscribe := watchPorts(ctx, env.Inventory, env.Registry, log)
		env.closers = append(env.closers, func() error { unsubscribe(); return nil })
	}

	env.LTPs, err = env.Registry.GlobalLTPs()
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("build global LTPs: %w", err)
	}
	for _, ltp := range env.LTPs {
		log.Debug(ctx, "global LTP", logging.Stringer("ltp", ltp))
	}

	counts := env.Registry.CountByType()
	capMetrics.SetInterfaceCounts(lo.MapKeys(counts, func(_ int, t core.Type) string { return string(t) }))
	log.Info(ctx, "inventory ready",
		logging.String("backend", cfg.Inventory.Source),
		logging.Int("interfaces", env.Registry.Len()),
		logging.Int("ltps", len(env.LTPs)),
		logging.Bool("tracing", cfg.Tracing.Enabled),
	)
	return env, nil
}

func openInventory(ctx context.Context, inv config.InventoryConfig, log logging.Logger, env *environment) (kb.SpeedSource, error) {
	switch inv.Source {
	case config.SourceSQLite:
		store, err := sqlite.New(inv.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite inventory: %w", err)
		}
		env.closers = append(env.closers, store.Close)
		if inv.SeedPath != "" {
			seed := kb.NewKnowledgeBase()
			if _, err := kb.LoadInventoryFile(seed, inv.SeedPath); err != nil {
				return nil, err
			}
			if err := store.Import(ctx, seed); err != nil {
				return nil, err
			}
			log.Info(ctx, "seeded sqlite inventory", logging.String("path", inv.SeedPath))
		}
		return store, nil
	default:
		base := kb.NewKnowledgeBase()
		summary, err := kb.LoadInventoryFile(base, inv.Path)
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "loaded inventory",
			logging.String("path", inv.Path),
			logging.Int("devices", len(summary.DeviceIDs)),
			logging.Int("ports", summary.Ports),
		)
		env.Inventory = base
		return base, nil
	}
}

// watchPorts logs inventory changes that land on a registered interface.
// Interfaces keep the capacity they were built with, so a changed or removed
// port only takes effect once the interface is rebuilt.
func watchPorts(ctx context.Context, inv *kb.KnowledgeBase, reg *core.Registry, log logging.Logger) (unsubscribe func()) {
	return inv.Subscribe(func(ev kb.Event) {
		cp := ev.Port.ConnectPoint()
		ni := reg.Get(cp)
		if ni == nil {
			return
		}
		switch ev.Type {
		case kb.EventPortUpdated:
			if ev.Port.Speed == ni.Capacity() {
				return
			}
			log.Warn(ctx, "port speed differs from registered interface capacity",
				logging.Stringer("connect_point", cp),
				logging.Stringer("port_speed", ev.Port.Speed),
				logging.Stringer("capacity", ni.Capacity()),
				logging.String("type", string(ni.Type())),
			)
		case kb.EventPortRemoved:
			log.Warn(ctx, "port removed under registered interface",
				logging.Stringer("connect_point", cp),
				logging.String("type", string(ni.Type())),
			)
		}
	})
}

func loadInterfaces(ctx context.Context, reg *core.Registry, resolver core.PortResolver, path string) (*core.InterfaceSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open interfaces %q: %w", path, err)
	}
	defer f.Close()
	return core.LoadInterfaces(ctx, reg, resolver, f)
}

func serveMetrics(lis net.Listener, collector *observability.InventoryCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", lis.Addr().String()))
	return srv
}
