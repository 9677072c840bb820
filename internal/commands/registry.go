package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/output"
)

// RecordInfo is one row of `registry`.
type RecordInfo struct {
	Key         string          `json:"key"`
	Required    bool            `json:"required"`
	Default     json.RawMessage `json:"default"`
	Description string          `json:"description,omitempty"`
}

// NewRegistryCmd creates the registry command.
func NewRegistryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "registry",
		Short: "List the monitored records",
		Long: `List the records the watchdog guards, with their defaults.

The built-in registry is used unless registry.path, STOREWATCH_REGISTRY or
--registry points at a YAML registry file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			reg, err := app.LoadRegistry()
			if err != nil {
				return err
			}

			records := reg.Records()
			infos := make([]RecordInfo, 0, len(records))
			required := 0
			for _, rec := range records {
				def, err := rec.DefaultJSON()
				if err != nil {
					return fmt.Errorf("encoding default for %s: %w", rec.Key, err)
				}
				if rec.Required {
					required++
				}
				infos = append(infos, RecordInfo{
					Key:         rec.Key,
					Required:    rec.Required,
					Default:     def,
					Description: rec.Description,
				})
			}

			source := "built-in"
			if p := app.Config.Registry.Path; p != "" {
				source = p
			}
			return app.OK(infos,
				output.WithSummary(fmt.Sprintf("%d records, %d required", len(infos), required)),
				output.WithContext("source", source),
			)
		},
	}
}
