package commands

import (
	"github.com/spf13/cobra"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/output"
)

// CommandInfo describes a CLI command.
type CommandInfo struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Actions     []string `json:"actions,omitempty"`
}

// CommandCategory groups commands by category.
type CommandCategory struct {
	Name     string        `json:"name"`
	Commands []CommandInfo `json:"commands"`
}

// commandCategories returns all command categories for the catalog.
func commandCategories() []CommandCategory {
	return []CommandCategory{
		{
			Name: "Watchdog",
			Commands: []CommandInfo{
				{Name: "check", Category: "watchdog", Description: "Check and repair the monitored records"},
				{Name: "repair", Category: "watchdog", Description: "Rewrite every monitored record with its default"},
				{Name: "status", Category: "watchdog", Description: "Show the latest result and attached watchers"},
				{Name: "watch", Category: "watchdog", Description: "Keep the records healthy until interrupted"},
				{Name: "registry", Category: "watchdog", Description: "List the monitored records"},
			},
		},
		{
			Name: "Store",
			Commands: []CommandInfo{
				{Name: "get", Category: "store", Description: "Print a stored value"},
				{Name: "set", Category: "store", Description: "Write a value as another process would"},
				{Name: "rm", Category: "store", Description: "Remove a key"},
				{Name: "keys", Category: "store", Description: "List stored keys"},
				{Name: "clear", Category: "store", Description: "Remove every key from the store"},
			},
		},
		{
			Name: "Additional Commands",
			Commands: []CommandInfo{
				{Name: "config", Category: "additional", Description: "Show configuration", Actions: []string{"show", "init"}},
				{Name: "commands", Category: "additional", Description: "List all commands"},
				{Name: "completion", Category: "additional", Description: "Generate shell completion scripts", Actions: []string{"bash", "zsh", "fish", "powershell"}},
				{Name: "help", Category: "additional", Description: "Show help"},
				{Name: "version", Category: "additional", Description: "Show version"},
			},
		},
	}
}

// CatalogCommandNames returns all command names from the catalog.
// Used by tests to verify catalog matches registered commands.
func CatalogCommandNames() []string {
	categories := commandCategories()
	total := 0
	for _, cat := range categories {
		total += len(cat.Commands)
	}
	names := make([]string, 0, total)
	for _, cat := range categories {
		for _, cmd := range cat.Commands {
			names = append(names, cmd.Name)
		}
	}
	return names
}

// NewCommandsCmd creates the commands listing command.
func NewCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "commands",
		Aliases: []string{"cmds"},
		Short:   "List all available commands",
		Long:    "List all available storewatch commands organized by category.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			return app.OK(commandCategories(),
				output.WithSummary("All available storewatch commands"),
				output.WithBreadcrumbs(
					output.Breadcrumb{
						Action:      "help",
						Cmd:         "storewatch --help",
						Description: "View help",
					},
				),
			)
		},
	}
}
