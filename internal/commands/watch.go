package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/appctx"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/config"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore/backends"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/observability"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/output"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/resilience"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/server"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/watchdog"
)

// WatchSummary is printed when `watch` exits.
type WatchSummary struct {
	Backend  string                       `json:"backend"`
	Location string                       `json:"location"`
	Interval string                       `json:"interval"`
	Listen   bool                         `json:"listen"`
	HTTPAddr string                       `json:"http_addr,omitempty"`
	Stats    observability.SessionMetrics `json:"stats"`
	Last     *watchdog.Result             `json:"last_result,omitempty"`
}

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	var (
		interval time.Duration
		httpAddr string
		noListen bool
		runFor   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the records healthy until interrupted",
		Long: `Start the watchdog: an immediate sweep, one sweep per interval, and a
listener that re-checks records as soon as another process changes them.

Runs until SIGINT or SIGTERM. With --http, also serves the status API:

  GET  /healthz      liveness
  GET  /status       latest result (503 when unhealthy)
  POST /check        run a sweep
  POST /check/:key   check one record
  POST /repair       force-repair every record
  GET  /metrics      Prometheus metrics

Examples:
  storewatch watch
  storewatch watch --interval 30s --http 127.0.0.1:9464
  storewatch watch --backend sqlite --dir ./data -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			config.ApplyOverrides(app.Config, config.FlagOverrides{
				Interval: interval,
				HTTPAddr: httpAddr,
				NoListen: noListen,
			})
			if err := app.Config.Validate(); err != nil {
				return output.ErrConfig(err)
			}
			if !app.Config.Watchdog.Enabled {
				return output.ErrUsageHint("watchdog is disabled by configuration",
					"Set watchdog.enabled: true or STOREWATCH_ENABLED=1")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if runFor > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, runFor)
				defer cancel()
			}

			return runWatch(ctx, app)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between sweeps (default from config, 10s)")
	cmd.Flags().StringVar(&httpAddr, "http", "", "Serve the status API on this address")
	cmd.Flags().BoolVar(&noListen, "no-listen", false, "Do not react to changes from other processes")
	cmd.Flags().DurationVar(&runFor, "for", 0, "Stop after this long")

	return cmd
}

func runWatch(ctx context.Context, app *appctx.App) error {
	reg, err := app.LoadRegistry()
	if err != nil {
		return err
	}
	store, err := app.OpenStore()
	if err != nil {
		return err
	}
	defer store.Close()

	cfg := app.StoreConfig()
	pid := os.Getpid()
	origin := store.Origin()

	runState := app.RunState()
	if err := runState.Register(resilience.WatcherInfo{
		PID:     pid,
		Origin:  origin,
		Backend: cfg.Backend,
	}); err != nil {
		app.Logger.Warn("could not register watcher", "error", err)
	}
	defer func() {
		if err := runState.Unregister(pid); err != nil {
			app.Logger.Warn("could not unregister watcher", "error", err)
		}
	}()

	publish := watchdog.ObserverFuncs{
		OnHealthCheck: func(r watchdog.Result) {
			if err := runState.RecordResult(pid, origin, r); err != nil {
				app.Logger.Warn("could not record result", "error", err)
			}
		},
	}

	wc := app.Config.Watchdog
	if !app.IsMachineOutput() {
		fmt.Fprintf(app.Stderr, "Watching %s store at %s every %s (Ctrl+C to stop)\n",
			cfg.Backend, backends.Location(cfg), wc.Interval)
	}

	wd, err := watchdog.Configure(reg, store, app.WatchdogOptions(true, publish))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		wd.Stop()
		return nil
	})
	if addr := app.Config.HTTP.Addr; addr != "" {
		srv := server.New(wd, app.Metrics.Handler(), app.Logger)
		g.Go(func() error {
			if err := srv.ListenAndRun(gctx, addr); err != nil {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	summary := WatchSummary{
		Backend:  cfg.Backend,
		Location: backends.Location(cfg),
		Interval: wc.Interval.String(),
		Listen:   wc.Listen,
		HTTPAddr: app.Config.HTTP.Addr,
		Stats:    app.Collector.Summary(),
		Last:     wd.HealthStatus(),
	}
	text := fmt.Sprintf("Stopped after %d %s", summary.Stats.TotalChecks,
		pluralize(summary.Stats.TotalChecks, "check", "checks"))
	if summary.Stats.TotalRepairs > 0 {
		text += fmt.Sprintf(", %d %s", summary.Stats.TotalRepairs,
			pluralize(summary.Stats.TotalRepairs, "repair", "repairs"))
	}
	return app.OK(summary, output.WithSummary(text))
}
