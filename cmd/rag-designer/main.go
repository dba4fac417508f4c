package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/ritzau/rag-pipeline-designer/pkg/config"
	"github.com/ritzau/rag-pipeline-designer/pkg/designer"
	"github.com/ritzau/rag-pipeline-designer/pkg/logging"
	"github.com/ritzau/rag-pipeline-designer/pkg/model"
	"github.com/ritzau/rag-pipeline-designer/pkg/output"
	"github.com/ritzau/rag-pipeline-designer/pkg/persistence"
	"github.com/ritzau/rag-pipeline-designer/pkg/presets"
	"github.com/ritzau/rag-pipeline-designer/pkg/pubsub"
	"github.com/ritzau/rag-pipeline-designer/pkg/simulation"
	"github.com/ritzau/rag-pipeline-designer/pkg/watcher"
	"github.com/ritzau/rag-pipeline-designer/pkg/web"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// Debounce settings for --watch
const (
	watchQuietPeriod = 200 * time.Millisecond
	watchMaxWait     = 2 * time.Second
)

func main() {
	// Parse command-line flags
	flags := pflag.NewFlagSet("rag-designer", pflag.ExitOnError)
	flags.Bool("web", false, "Start web server instead of printing to console")
	flags.Int("port", 8080, "Port for web server (only used with --web)")
	flags.Bool("open", false, "Open the browser (only used with --web)")
	flags.String("graph", "", "Pipeline document to load and save (default pipeline if empty)")
	flags.String("presets", "", "TOML file with additional presets")
	flags.Bool("simulate", false, "Run one simulation and print its trace")
	flags.Bool("watch", false, "Follow the published pipeline projection")
	flags.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	flags.CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
	flags.Bool("json_logs", false, "Log as JSON")
	flags.String("store.driver", "file", "Projection store: file, memory or postgres")
	flags.String("store.path", "active_pipeline.json", "Projection file (file driver)")
	flags.String("store.dsn", "", "Postgres connection string (postgres driver)")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if cfg.JSONLogs {
		logging.SetJSONOutput(cfg.LogLevel())
	} else {
		logging.SetLevel(cfg.LogLevel())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Watch {
		if err := runWatch(ctx, cfg); err != nil {
			logging.Fatal("watch failed", "error", err)
		}
		return
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logging.Fatal("failed to open projection store", "driver", cfg.Store.Driver, "error", err)
	}
	defer closeStore()

	registry := presets.NewRegistry()
	if cfg.Presets != "" {
		registry, err = presets.Load(cfg.Presets)
		if err != nil {
			logging.Fatal("failed to load presets", "error", err)
		}
	}

	graph, fromFile := persistence.LoadGraph(cfg.GraphFile)
	source := cfg.GraphFile
	if !fromFile {
		source = "default pipeline"
	}

	bridge := persistence.NewBridge(store)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := bridge.Flush(flushCtx); err != nil {
			logging.Warn("pipeline projection not flushed", "error", err)
		}
		bridge.Close()
	}()

	bus := pubsub.NewBus()
	defer bus.Close()
	// late subscribers get the latest simulation progress
	bus.ConfigureTopic(pubsub.TopicSimulation, pubsub.TopicConfig{BufferSize: 1})

	d := designer.New(designer.Options{
		Graph:           graph,
		HistoryCapacity: cfg.History.Capacity,
		Presets:         registry,
		Events:          bus,
		Bridge:          bridge,
	})
	engine := simulation.NewEngine(d, bus, cfg.SimulationTiming())

	switch {
	case cfg.WebMode:
		runWeb(ctx, cfg, d, engine, bus)
	case cfg.Simulate:
		if !runSimulation(ctx, cfg, d, engine, bus) {
			os.Exit(1)
		}
	default:
		output.PrintPipelineReport(os.Stdout, source, d.Snapshot().Nodes, d.ActivePreset())
	}
}

// openStore builds the projection publisher selected by store.driver
func openStore(ctx context.Context, cfg *config.Config) (persistence.PipelinePublisher, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		return persistence.NewMemoryStore(), func() {}, nil
	case "postgres":
		store, err := persistence.OpenPostgresStore(ctx, cfg.Store.DSN, cfg.Store.Key)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return persistence.NewFileStore(cfg.Store.Path), func() {}, nil
	}
}

func runWeb(ctx context.Context, cfg *config.Config, d *designer.Designer, engine *simulation.Engine, bus *pubsub.Bus) {
	server := web.NewServer(d, engine, bus)

	if cfg.Open {
		go func() {
			// Wait a moment for server to start
			time.Sleep(500 * time.Millisecond)
			openBrowser(fmt.Sprintf("http://localhost:%d", cfg.Port))
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		engine.Cancel()
		waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return engine.Wait(waitCtx)
	})
	if err := g.Wait(); err != nil {
		logging.Error("web server stopped", "error", err)
	}

	if cfg.GraphFile != "" {
		g, err := model.FromSnapshot(d.Snapshot())
		if err == nil {
			err = persistence.SaveGraph(cfg.GraphFile, g)
		}
		if err != nil {
			logging.Error("failed to save pipeline", "path", cfg.GraphFile, "error", err)
			return
		}
		logging.Info("pipeline saved", "path", cfg.GraphFile)
	}
}

// runSimulation runs one traversal in the terminal. Returns false if it could not start.
func runSimulation(ctx context.Context, cfg *config.Config, d *designer.Designer, engine *simulation.Engine, bus *pubsub.Bus) bool {
	// the trace must outlive an interrupt so the cancelled event is printed
	traceCtx := context.WithoutCancel(ctx)
	sub, err := bus.Subscribe(traceCtx, pubsub.TopicSimulation)
	if err != nil {
		logging.Error("failed to subscribe to simulation", "error", err)
		return false
	}
	defer sub.Close()

	if err := engine.Start(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Cannot simulate: %v\n", err)
		return false
	}

	if _, err := output.TraceSimulation(traceCtx, os.Stdout, sub, d.Node, cfg.VerboseCnt > 0); err != nil {
		logging.Error("simulation trace failed", "error", err)
		return false
	}
	return true
}

// runWatch follows the projection file and prints a summary on every change
func runWatch(ctx context.Context, cfg *config.Config) error {
	if cfg.Store.Driver != "file" {
		return fmt.Errorf("--watch needs the file store, got %q", cfg.Store.Driver)
	}

	pw, err := watcher.NewProjectionWatcher(cfg.Store.Path, watchQuietPeriod, watchMaxWait)
	if err != nil {
		return err
	}
	if err := pw.Start(ctx); err != nil {
		return err
	}
	defer pw.Stop()

	for update := range pw.Updates() {
		output.PrintProjection(os.Stdout, update.Projection, update.Present)
	}
	return nil
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		logging.Warn("cannot open browser on this platform", "os", runtime.GOOS)
		return
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		logging.Warn("failed to open browser", "error", err)
	}
}
