package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/appctx"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/output"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/registry"
)

// KeyInfo is one row of `keys`.
type KeyInfo struct {
	Key       string `json:"key"`
	Bytes     int    `json:"bytes"`
	Monitored bool   `json:"monitored"`
	Required  bool   `json:"required"`
}

// ValueView is what `get` reports.
type ValueView struct {
	Key       string `json:"key"`
	Value     any    `json:"value"`
	JSON      bool   `json:"json"`
	Bytes     int    `json:"bytes"`
	Monitored bool   `json:"monitored"`
}

// storeError maps a store failure to a CLI error.
func storeError(key string, err error) error {
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		return output.ErrNotFoundHint("Key", key, "Run: storewatch keys")
	case errors.Is(err, kvstore.ErrInvalidKey):
		return output.ErrUsage(fmt.Sprintf("Invalid key %q", key))
	default:
		return output.ErrStore(err)
	}
}

// openStore opens a plain store context for the direct-access commands.
func openStore(cmd *cobra.Command) (*appctx.App, kvstore.Store, *registry.Registry, error) {
	app, err := requireApp(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	reg, err := app.LoadRegistry()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := app.OpenStore()
	if err != nil {
		return nil, nil, nil, err
	}
	return app, store, reg, nil
}

// NewGetCmd creates the get command.
func NewGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "get <key>",
		Short:             "Print a stored value",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeRecordKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, store, reg, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			key := args[0]
			raw, err := store.Get(key)
			if err != nil {
				return storeError(key, err)
			}

			view := ValueView{Key: key, Value: string(raw), Bytes: len(raw), Monitored: reg.Has(key)}
			if json.Valid(raw) {
				view.Value = json.RawMessage(raw)
				view.JSON = true
			}
			summary := fmt.Sprintf("%s (%d bytes)", key, len(raw))
			if !view.JSON {
				summary += ", not valid JSON"
			}
			return app.OK(view, output.WithSummary(summary))
		},
	}
}

// NewSetCmd creates the set command.
func NewSetCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "set <key> <value|->",
		Short: "Write a value as another process would",
		Long: `Write a value to the store from this process. Other watchers see the
change and re-check the record.

The value must be JSON unless --raw is given. Use - to read it from stdin.

Examples:
  storewatch set users '[{"name":"Ayşe"}]'
  storewatch set settings --raw 'not json'    # simulate corruption
  cat users.json | storewatch set users -`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeRecordKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := []byte(args[1])
			if args[1] == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				value = b
			}
			if !raw && !json.Valid(value) {
				return output.ErrUsageHint("Value is not valid JSON", "Pass --raw to store it as is")
			}

			app, store, reg, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Set(key, value); err != nil {
				return storeError(key, err)
			}

			opts := []output.ResponseOption{output.WithSummary(fmt.Sprintf("Wrote %s (%d bytes)", key, len(value)))}
			if reg.Has(key) {
				opts = append(opts, output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "check",
					Cmd:         "storewatch check " + key,
					Description: "Check the record",
				}))
			}
			return app.OK(KeyInfo{Key: key, Bytes: len(value), Monitored: reg.Has(key), Required: isRequired(reg, key)}, opts...)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Store the value without checking that it is JSON")

	return cmd
}

// NewRmCmd creates the rm command.
func NewRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "rm <key>",
		Aliases:           []string{"delete"},
		Short:             "Remove a key",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeRecordKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, store, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			key := args[0]
			if err := store.Delete(key); err != nil {
				return storeError(key, err)
			}
			return app.OK(map[string]any{"key": key, "removed": true},
				output.WithSummary("Removed "+key))
		},
	}
}

// NewKeysCmd creates the keys command.
func NewKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, store, reg, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			keys, err := store.Keys()
			if err != nil {
				return output.ErrStore(err)
			}
			sort.Strings(keys)

			infos := make([]KeyInfo, 0, len(keys))
			for _, k := range keys {
				info := KeyInfo{Key: k, Monitored: reg.Has(k), Required: isRequired(reg, k)}
				if v, err := store.Get(k); err == nil {
					info.Bytes = len(v)
				}
				infos = append(infos, info)
			}
			return app.OK(infos, output.WithSummary(fmt.Sprintf("%d %s", len(infos), pluralize(len(infos), "key", "keys"))))
		},
	}
}

// NewClearCmd creates the clear command.
func NewClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear --force",
		Short: "Remove every key from the store",
		Long: `Remove every key from the store, monitored or not. A running watchdog
restores the required records on its next check.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return output.ErrUsageHint("clear removes every key", "Pass --force to confirm")
			}
			app, store, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(); err != nil {
				return output.ErrStore(err)
			}
			return app.OK(map[string]any{"cleared": true},
				output.WithSummary("Store cleared"),
				output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "check",
					Cmd:         "storewatch check",
					Description: "Restore required records",
				}))
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm removing every key")

	return cmd
}

func isRequired(reg *registry.Registry, key string) bool {
	rec, ok := reg.Lookup(key)
	return ok && rec.Required
}
