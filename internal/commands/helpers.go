package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/appctx"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/output"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/registry"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/watchdog"
)

// session is one command's view of the store: its own execution context,
// the registry, and a watchdog that is not started.
type session struct {
	app   *appctx.App
	store kvstore.Store
	reg   *registry.Registry
	wd    *watchdog.Watchdog
}

// requireApp returns the app from the command context.
func requireApp(cmd *cobra.Command) (*appctx.App, error) {
	app := appctx.FromContext(cmd.Context())
	if app == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	return app, nil
}

// completeRecordKeys completes the first argument with monitored record keys.
// It reads the --registry flag directly since completion skips config loading.
func completeRecordKeys(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	reg := registry.Default()
	if f := cmd.Flag("registry"); f != nil && f.Value.String() != "" {
		loaded, err := registry.LoadFile(f.Value.String())
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		reg = loaded
	}
	return reg.Keys(), cobra.ShellCompDirectiveNoFileComp
}

// openSession opens the configured store and registry and builds a manual
// watchdog over them. Callers must Close the session.
func openSession(cmd *cobra.Command, extra ...watchdog.Observer) (*session, error) {
	app, err := requireApp(cmd)
	if err != nil {
		return nil, err
	}
	reg, err := app.LoadRegistry()
	if err != nil {
		return nil, err
	}
	store, err := app.OpenStore()
	if err != nil {
		return nil, err
	}
	wd, err := watchdog.Configure(reg, store, app.WatchdogOptions(false, extra...))
	if err != nil {
		store.Close()
		return nil, err
	}
	return &session{app: app, store: store, reg: reg, wd: wd}, nil
}

// Close releases the store.
func (s *session) Close() error {
	s.wd.Stop()
	return s.store.Close()
}

// recordResult saves a manual pass to the run state so `status` can show it.
func (s *session) recordResult(res watchdog.Result) {
	if err := s.app.RunState().RecordResult(os.Getpid(), s.store.Origin(), res); err != nil {
		s.app.Logger.Warn("could not record result", "error", err)
	}
}

// writeResult renders a pass and turns an unhealthy result into the
// unhealthy exit code.
func writeResult(app *appctx.App, res watchdog.Result, crumbs ...output.Breadcrumb) error {
	opts := []output.ResponseOption{
		output.WithSummary(res.Summary()),
	}
	if !res.IsHealthy {
		crumbs = append(crumbs, output.Breadcrumb{
			Action:      "verbose",
			Cmd:         "storewatch check -vv",
			Description: "Show every record",
		})
	}
	if len(crumbs) > 0 {
		opts = append(opts, output.WithBreadcrumbs(crumbs...))
	}
	if err := app.OK(res, opts...); err != nil {
		return err
	}
	if !res.IsHealthy {
		return output.ErrUnhealthy(len(res.Errors))
	}
	return nil
}

// atomicWriteFile writes data to a temp file and renames it over path.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	err = os.Rename(tmpPath, path)
	if err != nil && runtime.GOOS == "windows" {
		// Windows: rename fails when destination exists.
		_ = os.Remove(path)
		err = os.Rename(tmpPath, path)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
	}
	return err
}
