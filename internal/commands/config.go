package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/config"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/output"
)

// ConfigValue is one resolved setting and where it came from.
type ConfigValue struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// NewConfigCmd creates the config command for managing configuration.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		Long: `Show the effective storewatch configuration.

Configuration is loaded from multiple sources with the following precedence:
  flags > env > --config file > local > global > system > defaults

Config locations:
  - System: /etc/storewatch/config.yaml
  - Global: ~/.config/storewatch/config.yaml
  - Local:  .storewatch/config.yaml`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show effective configuration",
			Args:  cobra.NoArgs,
			RunE:  runConfigShow,
		},
		newConfigInitCmd(),
	)

	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	app, err := requireApp(cmd)
	if err != nil {
		return err
	}
	cfg := app.Config

	verbose := "0"
	if cfg.Verbose != nil {
		verbose = strconv.Itoa(*cfg.Verbose)
	}

	values := []ConfigValue{
		{Key: "store.backend", Value: cfg.Store.Backend},
		{Key: "store.dir", Value: cfg.Store.Dir},
		{Key: "store.max_value_bytes", Value: strconv.Itoa(cfg.Store.MaxValueBytes)},
		{Key: "watchdog.enabled", Value: strconv.FormatBool(cfg.Watchdog.Enabled)},
		{Key: "watchdog.interval", Value: cfg.Watchdog.Interval.String()},
		{Key: "watchdog.listen", Value: strconv.FormatBool(cfg.Watchdog.Listen)},
		{Key: "watchdog.repair_rate", Value: strconv.FormatFloat(cfg.Watchdog.RepairRate, 'g', -1, 64)},
		{Key: "watchdog.repair_burst", Value: strconv.Itoa(cfg.Watchdog.RepairBurst)},
		{Key: "registry.path", Value: cfg.Registry.Path},
		{Key: "http.addr", Value: cfg.HTTP.Addr},
		{Key: "format", Value: cfg.Format},
		{Key: "verbose", Value: verbose},
	}
	for i := range values {
		values[i].Source = cfg.Source(values[i].Key)
	}

	return app.OK(values,
		output.WithSummary("Effective configuration"),
		output.WithBreadcrumbs(output.Breadcrumb{
			Action:      "init",
			Cmd:         "storewatch config init",
			Description: "Create a local config file",
		}),
	)
}

const configTemplate = `# storewatch configuration
store:
  backend: %s
  # dir: ./data
watchdog:
  interval: %s
  listen: true
# registry:
#   path: ./registry.yaml
# http:
#   addr: 127.0.0.1:9464
`

func newConfigInitCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file",
		Long:  "Create .storewatch/config.yaml in the current directory, or the global config with --global.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			configDir := ".storewatch"
			if global {
				configDir = config.GlobalConfigDir()
			}
			configFile := filepath.Join(configDir, config.FileName)

			if _, err := os.Stat(configFile); err == nil {
				return app.OK(map[string]any{
					"exists": true,
					"path":   configFile,
				}, output.WithSummary(fmt.Sprintf("Config file already exists: %s", configFile)))
			}

			if err := os.MkdirAll(configDir, 0700); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}

			defaults := config.Default()
			body := fmt.Sprintf(configTemplate, defaults.Store.Backend, defaults.Watchdog.Interval)
			if err := atomicWriteFile(configFile, []byte(body)); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}

			return app.OK(map[string]any{
				"created": true,
				"path":    configFile,
			}, output.WithSummary(fmt.Sprintf("Created: %s", configFile)))
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Create the global config file")

	return cmd
}
