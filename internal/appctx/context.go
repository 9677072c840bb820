// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/config"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore/backends"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/observability"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/output"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/registry"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/resilience"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/watchdog"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config *config.Config
	Output *output.Writer
	Logger *slog.Logger

	// Observability
	Collector *observability.SessionCollector
	Hooks     *observability.CLIHooks
	Metrics   *observability.Metrics

	// Stdout and Stderr are where output and traces go.
	Stdout io.Writer
	Stderr io.Writer

	// RunStateDir overrides the base directory of the run state file.
	RunStateDir string

	// Flags holds the global flag values
	Flags GlobalFlags
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON   bool
	Quiet  bool
	MD     bool // Literal Markdown syntax output
	Styled bool // Force ANSI styled output (even when piped)

	// Store selection flags
	ConfigFile string
	Backend    string
	Dir        string
	Registry   string

	// Behavior flags
	Verbose int // 0=off, 1=passes and repairs, 2=every record (stacks with -v -v or -vv)
	Stats   bool
}

// NewApp creates a new App writing to the process's stdout and stderr.
func NewApp(cfg *config.Config) *App {
	return NewAppWithWriters(cfg, os.Stdout, os.Stderr)
}

// NewAppWithWriters creates a new App with explicit output streams.
func NewAppWithWriters(cfg *config.Config, stdout, stderr io.Writer) *App {
	// Collector always runs to gather stats; hooks control output verbosity.
	// Level 0 initially; ApplyFlags sets the actual level from -v flags.
	collector := observability.NewSessionCollector()
	traceWriter := observability.NewTraceWriterTo(stderr)
	hooks := observability.NewCLIHooks(0, collector, traceWriter)

	return &App{
		Config:    cfg,
		Collector: collector,
		Hooks:     hooks,
		Metrics:   observability.NewMetrics(),
		Stdout:    stdout,
		Stderr:    stderr,
		Logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		})),
		Output: output.New(output.Options{
			Format: output.ParseFormat(cfg.Format),
			Writer: stdout,
		}),
	}
}

// ApplyFlags applies global flag values to the app configuration.
func (a *App) ApplyFlags() {
	format := output.Format(-1)
	switch {
	case a.Flags.Quiet:
		format = output.FormatQuiet
	case a.Flags.JSON:
		format = output.FormatJSON
	case a.Flags.Styled:
		format = output.FormatStyled
	case a.Flags.MD:
		format = output.FormatMarkdown
	}
	if format >= 0 {
		a.Output = output.New(output.Options{Format: format, Writer: a.Stdout})
	}

	verboseLevel := a.VerboseLevel()

	if a.Hooks != nil {
		a.Hooks.SetLevel(verboseLevel)
	}

	if verboseLevel > 0 {
		a.Logger = slog.New(slog.NewTextHandler(a.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
}

// VerboseLevel resolves verbosity from the -v flags and STOREWATCH_DEBUG,
// taking the highest.
func (a *App) VerboseLevel() int {
	level := a.Flags.Verbose
	if debugEnv := os.Getenv("STOREWATCH_DEBUG"); debugEnv != "" {
		// "1", "2", or "true" (treated as 2 for full debug)
		if n, err := strconv.Atoi(debugEnv); err == nil {
			if n > level {
				level = n
			}
		} else if debugEnv == "true" {
			level = 2
		}
	}
	return min(level, 2)
}

// StoreConfig returns the backend selection for the resolved configuration.
func (a *App) StoreConfig() backends.Config {
	return backends.Config{
		Backend:       a.Config.Store.Backend,
		Dir:           a.Config.Store.Dir,
		MaxValueBytes: a.Config.Store.MaxValueBytes,
		Logger:        a.Logger,
	}
}

// OpenStore opens a new execution context on the configured backend.
func (a *App) OpenStore() (kvstore.Store, error) {
	s, err := backends.Open(a.StoreConfig())
	if err != nil {
		return nil, output.ErrStore(err)
	}
	return s, nil
}

// LoadRegistry returns the configured registry, or the built-in one.
func (a *App) LoadRegistry() (*registry.Registry, error) {
	if a.Config.Registry.Path == "" {
		return registry.Default(), nil
	}
	reg, err := registry.LoadFile(a.Config.Registry.Path)
	if err != nil {
		return nil, output.ErrConfig(err)
	}
	return reg, nil
}

// WatchdogOptions maps the configuration onto watchdog options. The session
// hooks and Prometheus metrics are always attached as observers.
func (a *App) WatchdogOptions(enabled bool, extra ...watchdog.Observer) watchdog.Options {
	wc := a.Config.Watchdog
	observers := []watchdog.Observer{a.Hooks, a.Metrics}
	observers = append(observers, extra...)
	return watchdog.Options{
		Enabled:     watchdog.Bool(enabled),
		Interval:    wc.Interval,
		Listen:      watchdog.Bool(wc.Listen),
		RepairRate:  rate.Limit(wc.RepairRate),
		RepairBurst: wc.RepairBurst,
		Observers:   observers,
		Logger:      a.Logger,
	}
}

// RunState returns the run state store for the configured backend. Each
// store location gets its own state file.
func (a *App) RunState() *resilience.Store {
	base := a.RunStateDir
	if base == "" {
		base = resilience.NewStore("").Dir()
	}
	cfg := a.StoreConfig()
	loc := backends.Location(cfg)
	if abs, err := filepath.Abs(loc); err == nil && cfg.Backend != backends.Memory {
		loc = abs
	}
	sum := sha256.Sum256([]byte(cfg.Backend + "\x00" + loc))
	return resilience.NewStore(filepath.Join(base, hex.EncodeToString(sum[:6])))
}

// OK outputs a success response, automatically including stats if --stats flag is set.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.Flags.Stats && a.Collector != nil {
		stats := a.Collector.Summary()
		opts = append(opts, output.WithStats(&stats))
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response, printing stats to stderr if --stats flag is set.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}

	if a.Flags.Stats && a.Collector != nil && !a.IsMachineOutput() {
		stats := a.Collector.Summary()
		if parts := stats.FormatParts(); len(parts) > 0 {
			fmt.Fprintf(a.Stderr, "\nStats: %s\n", strings.Join(parts, " | "))
		}
	}
	return nil
}

// IsMachineOutput returns true if the output mode is intended for programmatic consumption.
func (a *App) IsMachineOutput() bool {
	if a.Flags.Quiet || a.Flags.JSON {
		return true
	}
	if a.Config != nil && (a.Config.Format == "quiet" || a.Config.Format == "json") {
		return true
	}
	return false
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
