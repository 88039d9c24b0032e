package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/triage-ai/palisade/services/intent_guard/internal/registry"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the gated tool catalog",
	}
	cmd.AddCommand(newToolsListCmd(), newToolsValidateCmd())
	return cmd
}

func newToolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known tools with their class and target path argument",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog := registry.DefaultCatalog()
			out := cmd.OutOrStdout()
			for _, name := range catalog.Names() {
				td := catalog.GetTool(name)
				fmt.Fprintf(out, "%s\t%s", name, td.Class)
				if td.PathArgument != "" {
					fmt.Fprintf(out, "\tpath=%s", td.PathArgument)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func newToolsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <tool> <args-json>",
		Short: "Validate tool arguments against the tool's schema",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var toolArgs registry.Args
			if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
				return fmt.Errorf("parse arguments: %w", err)
			}
			if err := registry.DefaultCatalog().ValidateArguments(args[0], toolArgs); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
