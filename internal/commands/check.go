// Package commands implements the CLI commands.
package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore/backends"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/output"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/resilience"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/watchdog"
)

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [key]",
		Short: "Check and repair the monitored records",
		Long: `Run one health check over every monitored record, repairing what is
missing, corrupt or invalid. With a key, only that record is checked.

Exits with status 9 when a repair could not be written.

Examples:
  storewatch check              # Sweep every record
  storewatch check users        # Check one record
  storewatch check -vv --json   # Trace every record, JSON result`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeRecordKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			var res watchdog.Result
			if len(args) == 1 {
				var ok bool
				res, ok = s.wd.CheckKey(args[0])
				if !ok {
					return output.ErrNotFoundHint("Record", args[0], "Run: storewatch registry")
				}
			} else {
				res = s.wd.RunHealthCheck()
			}
			s.recordResult(res)

			return writeResult(s.app, res, output.Breadcrumb{
				Action:      "watch",
				Cmd:         "storewatch watch",
				Description: "Keep the records healthy",
			})
		},
	}
}

// NewRepairCmd creates the repair command.
func NewRepairCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "repair --all",
		Short: "Rewrite every monitored record with its default",
		Long: `Force-repair every monitored record, overwriting its current value with
the registered default whether or not it is healthy.

This discards data. It exists for recovering from a store that keeps
failing validation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all {
				return output.ErrUsageHint("repair overwrites every record", "Pass --all to confirm")
			}
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			res := s.wd.ForceRepairAll()
			s.recordResult(res)
			return writeResult(s.app, res)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Repair every record")

	return cmd
}

// StatusView is what `status` reports.
type StatusView struct {
	Backend   string                   `json:"backend"`
	Location  string                   `json:"location"`
	Watchers  []resilience.WatcherInfo `json:"watchers"`
	Healthy   *bool                    `json:"healthy,omitempty"`
	LastCheck string                   `json:"last_check,omitempty"`
	CheckedBy int                      `json:"checked_by,omitempty"`
	Scope     watchdog.Scope           `json:"scope,omitempty"`
	Errors    []string                 `json:"errors,omitempty"`
	Records   []watchdog.RecordStatus  `json:"records,omitempty"`
}

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest result and attached watchers",
		Long: `Show the most recent health check recorded for the configured store and
the watch processes currently attached to it. Works from any process.

--reset forgets the recorded result and watchers. A running watcher is
listed again only after it restarts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			runState := app.RunState()
			if reset {
				if err := runState.Clear(); err != nil {
					return fmt.Errorf("clearing run state: %w", err)
				}
				return app.OK(map[string]any{"reset": true, "dir": runState.Dir()},
					output.WithSummary("Run state cleared"))
			}

			state, err := runState.Snapshot()
			if err != nil {
				return err
			}

			cfg := app.StoreConfig()
			view := StatusView{
				Backend:  cfg.Backend,
				Location: backends.Location(cfg),
				Watchers: state.Watchers,
			}

			summary := "No health check recorded yet"
			var crumbs []output.Breadcrumb
			if lr := state.LastResult; lr != nil {
				res := lr.Result
				view.Healthy = &res.IsHealthy
				view.LastCheck = res.Timestamp.Format(time.RFC3339)
				view.CheckedBy = lr.PID
				view.Scope = res.Scope
				view.Errors = res.Errors
				view.Records = res.Records
				summary = res.Summary()
			} else {
				crumbs = append(crumbs, output.Breadcrumb{
					Action:      "check",
					Cmd:         "storewatch check",
					Description: "Run a health check",
				})
			}
			if len(state.Watchers) == 0 {
				crumbs = append(crumbs, output.Breadcrumb{
					Action:      "watch",
					Cmd:         "storewatch watch",
					Description: "Start a watchdog",
				})
			} else {
				summary = fmt.Sprintf("%s; %d %s attached", summary,
					len(state.Watchers), pluralize(len(state.Watchers), "watcher", "watchers"))
			}

			opts := []output.ResponseOption{output.WithSummary(summary)}
			if len(crumbs) > 0 {
				opts = append(opts, output.WithBreadcrumbs(crumbs...))
			}
			return app.OK(view, opts...)
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Forget the recorded result and watchers")

	return cmd
}

// pluralize returns singular or plural based on count.
func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
