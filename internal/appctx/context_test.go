package appctx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/config"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/output"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/registry"
)

func newTestApp(t *testing.T) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("STOREWATCH_DEBUG", "")
	cfg := config.Default()
	cfg.Store.Backend = "memory"
	var stdout, stderr bytes.Buffer
	app := NewAppWithWriters(cfg, &stdout, &stderr)
	app.RunStateDir = t.TempDir()
	return app, &stdout, &stderr
}

func TestNewApp(t *testing.T) {
	cfg := config.Default()
	app := NewApp(cfg)

	if app == nil {
		t.Fatal("NewApp returned nil")
	}
	if app.Config != cfg {
		t.Error("Config not set correctly")
	}
	if app.Output == nil {
		t.Error("Output writer not initialized")
	}
	if app.Collector == nil || app.Hooks == nil || app.Metrics == nil {
		t.Error("observability not initialized")
	}
	if app.Logger == nil {
		t.Error("Logger not initialized")
	}
}

func TestWithAppAndFromContext(t *testing.T) {
	app := NewApp(config.Default())

	ctx := WithApp(context.Background(), app)
	if FromContext(ctx) != app {
		t.Error("FromContext did not retrieve the same app")
	}
}

func TestFromContextEmpty(t *testing.T) {
	if app := FromContext(context.Background()); app != nil {
		t.Error("expected nil from empty context")
	}
}

func TestApplyFlagsFormat(t *testing.T) {
	tests := []struct {
		name string
		set  func(*GlobalFlags)
		want output.Format
	}{
		{"json", func(f *GlobalFlags) { f.JSON = true }, output.FormatJSON},
		{"quiet", func(f *GlobalFlags) { f.Quiet = true }, output.FormatQuiet},
		{"styled", func(f *GlobalFlags) { f.Styled = true }, output.FormatStyled},
		{"markdown", func(f *GlobalFlags) { f.MD = true }, output.FormatMarkdown},
		{"quiet wins over json", func(f *GlobalFlags) { f.Quiet = true; f.JSON = true }, output.FormatQuiet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _, _ := newTestApp(t)
			tt.set(&app.Flags)
			app.ApplyFlags()
			if got := app.Output.Format(); got != tt.want {
				t.Errorf("format = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyFlagsKeepsConfigFormat(t *testing.T) {
	app, _, _ := newTestApp(t)
	app.Config.Format = "markdown"
	app = NewAppWithWriters(app.Config, app.Stdout, app.Stderr)

	app.ApplyFlags()
	if got := app.Output.Format(); got != output.FormatMarkdown {
		t.Errorf("format = %v, want markdown", got)
	}
}

func TestVerboseLevel(t *testing.T) {
	app, _, _ := newTestApp(t)
	if got := app.VerboseLevel(); got != 0 {
		t.Errorf("default level = %d, want 0", got)
	}

	app.Flags.Verbose = 5
	if got := app.VerboseLevel(); got != 2 {
		t.Errorf("clamped level = %d, want 2", got)
	}

	app.Flags.Verbose = 1
	t.Setenv("STOREWATCH_DEBUG", "0")
	if got := app.VerboseLevel(); got != 1 {
		t.Errorf("flag level = %d, want 1", got)
	}

	t.Setenv("STOREWATCH_DEBUG", "true")
	if got := app.VerboseLevel(); got != 2 {
		t.Errorf("env level = %d, want 2", got)
	}
}

func TestApplyFlagsVerboseSetsHooks(t *testing.T) {
	app, _, _ := newTestApp(t)
	app.Flags.Verbose = 2
	app.ApplyFlags()
	if got := app.Hooks.Level(); got != 2 {
		t.Errorf("hooks level = %d, want 2", got)
	}
}

func TestOpenStoreMemory(t *testing.T) {
	app, _, _ := newTestApp(t)
	s, err := app.OpenStore()
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()

	if err := s.Set("k", []byte("1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	app, _, _ := newTestApp(t)
	app.Config.Store.Backend = "etcd"
	_, err := app.OpenStore()
	if err == nil {
		t.Fatal("expected error")
	}
	var e *output.Error
	if !errors.As(err, &e) || e.Code != output.CodeStore {
		t.Errorf("err = %v, want store error", err)
	}
}

func TestLoadRegistryDefault(t *testing.T) {
	app, _, _ := newTestApp(t)
	reg, err := app.LoadRegistry()
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if reg.Len() != registry.Default().Len() {
		t.Errorf("len = %d, want built-in", reg.Len())
	}
}

func TestLoadRegistryMissingFile(t *testing.T) {
	app, _, _ := newTestApp(t)
	app.Config.Registry.Path = filepath.Join(t.TempDir(), "nope.yaml")
	_, err := app.LoadRegistry()
	var e *output.Error
	if !errors.As(err, &e) || e.Code != output.CodeConfig {
		t.Errorf("err = %v, want config error", err)
	}
}

func TestWatchdogOptions(t *testing.T) {
	app, _, _ := newTestApp(t)
	app.Config.Watchdog.Listen = false

	opts := app.WatchdogOptions(false)
	if *opts.Enabled {
		t.Error("Enabled should be false")
	}
	if *opts.Listen {
		t.Error("Listen should follow config")
	}
	if opts.Interval != app.Config.Watchdog.Interval {
		t.Errorf("interval = %v", opts.Interval)
	}
	if len(opts.Observers) != 2 {
		t.Errorf("observers = %d, want hooks and metrics", len(opts.Observers))
	}
}

func TestRunStatePerLocation(t *testing.T) {
	app, _, _ := newTestApp(t)
	app.Config.Store.Backend = "file"
	app.Config.Store.Dir = filepath.Join(t.TempDir(), "a")
	first := app.RunState().Dir()

	if again := app.RunState().Dir(); again != first {
		t.Errorf("run state dir not stable: %q vs %q", first, again)
	}

	app.Config.Store.Dir = filepath.Join(t.TempDir(), "b")
	if other := app.RunState().Dir(); other == first {
		t.Error("different store dirs share a run state dir")
	}
	if !strings.HasPrefix(first, app.RunStateDir) {
		t.Errorf("run state dir %q not under %q", first, app.RunStateDir)
	}
}

func TestOKWithStats(t *testing.T) {
	app, stdout, _ := newTestApp(t)
	app.Flags.JSON = true
	app.Flags.Stats = true
	app.ApplyFlags()

	if err := app.OK(map[string]any{"key": "users"}); err != nil {
		t.Fatalf("OK: %v", err)
	}

	var resp struct {
		OK   bool           `json:"ok"`
		Meta map[string]any `json:"meta"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK {
		t.Error("ok should be true")
	}
	if _, ok := resp.Meta["stats"]; !ok {
		t.Error("expected meta.stats")
	}
}

func TestErrStatsSkippedForMachineOutput(t *testing.T) {
	app, stdout, stderr := newTestApp(t)
	app.Flags.JSON = true
	app.Flags.Stats = true
	app.ApplyFlags()

	if err := app.Err(output.ErrUsage("bad")); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if !strings.Contains(stdout.String(), `"code": "usage"`) {
		t.Errorf("stdout = %q", stdout.String())
	}
	if strings.Contains(stderr.String(), "Stats:") {
		t.Error("stats should not be printed for JSON output")
	}
}
