// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprout-labs/farmassist/internal/prefs"
	"github.com/sprout-labs/farmassist/internal/ui/styles"
)

func newPrefsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Manage local preferences",
		Long: `Manage the local preference store.

Well-known keys: ` + strings.Join(prefs.KnownKeys, ", ") + `.
farmName is shown in the terminal shell header. Credential-like keys
are rejected.`,
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List all preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openPrefs()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.All(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				if entries == nil {
					entries = []prefs.Entry{}
				}
				return NewJSONResponse("prefs list", entries).Print(out)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, DimStyle.Render("no preferences stored"))
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s = %s\n", LabelStyle.Render(e.Key), ValueStyle.Render(styles.Truncate(e.Value, 60)))
			}
			return nil
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openPrefs()
			if err != nil {
				return err
			}
			defer store.Close()

			value, ok, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("preference %q is not set", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	set := &cobra.Command{
		Use:     "set <key> <value>",
		Short:   "Store a preference",
		Example: `  farmassist prefs set farmName "햇살 농장"`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openPrefs()
			if err != nil {
				return err
			}
			defer store.Close()

			value := strings.Join(args[1:], " ")
			if err := store.Set(cmd.Context(), args[0], value); err != nil {
				return err
			}
			a.logger.Debug("preference stored", "key", args[0])
			return nil
		},
	}

	del := &cobra.Command{
		Use:     "delete <key>",
		Aliases: []string{"rm"},
		Short:   "Remove a preference",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openPrefs()
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Delete(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(list, get, set, del)
	return cmd
}
