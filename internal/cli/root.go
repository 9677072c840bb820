// Package cli wires the root command.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/appctx"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/commands"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/config"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/output"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/version"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:   "storewatch",
		Short: "Keep the records of a shared key-value store healthy",
		Long: `storewatch guards the records of a shared key-value store. It checks every
registered record, repairs missing, corrupt or invalid ones from their
defaults, and reacts when another process changes them.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip setup for help and version commands
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load(config.FlagOverrides{
				ConfigFile: flags.ConfigFile,
				Backend:    flags.Backend,
				Dir:        flags.Dir,
				Registry:   flags.Registry,
			})
			if err != nil {
				return output.ErrConfig(err)
			}

			resolvePreferences(cmd, cfg, &flags)

			app := appctx.NewAppWithWriters(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			app.Flags = flags
			app.ApplyFlags()

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}

	cmd.SetVersionTemplate(version.Full() + "\n")

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	// Output format flags
	cmd.PersistentFlags().BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	cmd.PersistentFlags().BoolVarP(&flags.MD, "md", "m", false, "Output as Markdown (portable)")
	cmd.PersistentFlags().BoolVar(&flags.MD, "markdown", false, "Output as Markdown (portable)")
	cmd.PersistentFlags().BoolVar(&flags.Styled, "styled", false, "Force styled output (ANSI colors)")

	// Store selection flags
	cmd.PersistentFlags().StringVarP(&flags.ConfigFile, "config", "c", "", "Config file (YAML)")
	cmd.PersistentFlags().StringVarP(&flags.Backend, "backend", "b", "", "Store backend: file, sqlite, badger or memory")
	cmd.PersistentFlags().StringVarP(&flags.Dir, "dir", "d", "", "Store directory")
	cmd.PersistentFlags().StringVarP(&flags.Registry, "registry", "r", "", "Registry file (YAML)")

	// Behavior flags
	cmd.PersistentFlags().CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for passes and repairs, -vv for every record)")
	cmd.PersistentFlags().BoolVar(&flags.Stats, "stats", false, "Show session statistics")

	return cmd
}

// AddCommands registers every subcommand on root.
func AddCommands(root *cobra.Command) {
	root.AddCommand(commands.NewCheckCmd())
	root.AddCommand(commands.NewRepairCmd())
	root.AddCommand(commands.NewStatusCmd())
	root.AddCommand(commands.NewWatchCmd())
	root.AddCommand(commands.NewRegistryCmd())
	root.AddCommand(commands.NewGetCmd())
	root.AddCommand(commands.NewSetCmd())
	root.AddCommand(commands.NewRmCmd())
	root.AddCommand(commands.NewKeysCmd())
	root.AddCommand(commands.NewClearCmd())
	root.AddCommand(commands.NewConfigCmd())
	root.AddCommand(commands.NewCommandsCmd())
}

// Execute runs the root command and exits.
func Execute() {
	os.Exit(Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	AddCommands(cmd)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	// Use ExecuteC to get the executed command (for correct context access)
	executedCmd, err := cmd.ExecuteContextC(ctx)
	if err == nil {
		return output.ExitOK
	}

	err = transformCobraError(err)
	apiErr := output.AsError(err)

	var app *appctx.App
	if executedCmd != nil && executedCmd.Context() != nil {
		app = appctx.FromContext(executedCmd.Context())
	}

	// The result of an unhealthy pass has already been written.
	if apiErr.Code == output.CodeUnhealthy {
		if app == nil || !app.IsMachineOutput() {
			fmt.Fprintln(stderr, apiErr.Error())
		}
		return apiErr.ExitCode()
	}

	// Try to use app.Err() if app is available (for --stats support)
	if app != nil {
		_ = app.Err(err)
		return apiErr.ExitCode()
	}

	// Fallback: output error directly (app not available, e.g., during setup)
	pf := cmd.PersistentFlags()
	format := output.FormatAuto
	quiet, _ := pf.GetBool("quiet")
	styled, _ := pf.GetBool("styled")
	md, _ := pf.GetBool("md")
	jsonFlag, _ := pf.GetBool("json")

	switch {
	case quiet:
		format = output.FormatQuiet
	case jsonFlag:
		format = output.FormatJSON
	case styled:
		format = output.FormatStyled
	case md:
		format = output.FormatMarkdown
	}

	writer := output.New(output.Options{
		Format: format,
		Writer: stdout,
	})
	_ = writer.Err(err)

	return apiErr.ExitCode()
}

// resolvePreferences fills flag values the user did not set from config.
func resolvePreferences(cmd *cobra.Command, cfg *config.Config, flags *appctx.GlobalFlags) {
	changed := cmd.Flags().Changed("verbose") || cmd.PersistentFlags().Changed("verbose")
	if !changed && cfg.Verbose != nil {
		flags.Verbose = *cfg.Verbose
	}
}

var shorthandRe = regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)

// transformCobraError turns Cobra's argument and flag errors into usage errors.
func transformCobraError(err error) error {
	msg := err.Error()

	// "flag needs an argument: --FLAG" → "--FLAG requires a value"
	if strings.HasPrefix(msg, "flag needs an argument: ") {
		flag := strings.TrimPrefix(msg, "flag needs an argument: ")
		return output.ErrUsage(flag + " requires a value")
	}

	if strings.HasPrefix(msg, "unknown flag: ") {
		flag := strings.TrimPrefix(msg, "unknown flag: ")
		return output.ErrUsage("Unknown option: " + flag)
	}

	if strings.HasPrefix(msg, "unknown shorthand flag: ") {
		if matches := shorthandRe.FindStringSubmatch(msg); len(matches) > 1 {
			return output.ErrUsage("Unknown option: " + matches[1])
		}
	}

	if strings.HasPrefix(msg, "unknown command ") {
		return output.ErrUsageHint(msg, "Run: storewatch commands")
	}

	if strings.Contains(msg, "invalid argument") {
		return output.ErrUsage(msg)
	}

	// "accepts N arg(s), received M" and friends
	if strings.Contains(msg, "arg(s)") {
		return output.ErrUsage(msg)
	}

	return err
}
