package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/triage-ai/palisade/services/intent_guard/internal/intents"
)

func newIntentsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intents",
		Short: "List, show, select and validate workspace intents",
	}
	cmd.AddCommand(
		newIntentsListCmd(opts),
		newIntentsShowCmd(opts),
		newIntentsSelectCmd(opts),
		newIntentsValidateCmd(opts),
	)
	return cmd
}

func newIntentsListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List selectable intents; the active one is marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := opts.workspaceRoot()
			if err != nil {
				return err
			}
			doc := intents.NewFileRegistry(opts.logger()).Load(root)
			choices := doc.Choices()
			out := cmd.OutOrStdout()
			if len(choices) == 0 {
				fmt.Fprintln(out, "No intents found in", intents.FilePath(root))
				return nil
			}
			for _, c := range choices {
				marker := " "
				if c.ID == doc.ActiveIntentID {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\t%s\n", marker, c.ID, c.Label)
			}
			return nil
		},
	}
}

func newIntentsShowCmd(opts *rootOptions) *cobra.Command {
	var prompt bool
	cmd := &cobra.Command{
		Use:   "show [intent-id]",
		Short: "Show an intent (default: the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := opts.workspaceRoot()
			if err != nil {
				return err
			}
			reg := intents.NewFileRegistry(opts.logger())
			if prompt {
				if len(args) == 1 {
					return errors.New("--prompt renders the active intent only")
				}
				section := intents.PromptSection(reg, root)
				if section == "" {
					return errors.New("no active intent")
				}
				fmt.Fprint(cmd.OutOrStdout(), strings.TrimLeft(section, "\n"))
				return nil
			}
			doc := reg.Load(root)

			var (
				in *intents.Intent
				ok bool
			)
			if len(args) == 1 {
				in, ok = doc.Find(args[0])
				if !ok {
					return fmt.Errorf("unknown intent %q", args[0])
				}
			} else {
				in, ok = doc.Active()
				if !ok {
					return errors.New("no active intent")
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:    %s\n", in.ID)
			fmt.Fprintf(out, "Title: %s\n", in.Title)
			if in.Summary != "" {
				fmt.Fprintf(out, "Summary: %s\n", in.Summary)
			}
			if len(in.ScopePaths) == 0 {
				fmt.Fprintln(out, "Scope: (none, all writes blocked)")
			} else {
				fmt.Fprintf(out, "Scope: %s\n", strings.Join(in.ScopePaths, ", "))
			}
			for _, c := range in.Constraints {
				fmt.Fprintf(out, "Constraint: %s\n", c)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&prompt, "prompt", false, "Print the active intent as the system prompt section")
	return cmd
}

func newIntentsSelectCmd(opts *rootOptions) *cobra.Command {
	var clearActive bool
	cmd := &cobra.Command{
		Use:   "select <intent-id>",
		Short: "Set active_intent_id in the workspace registry",
		Args: func(cmd *cobra.Command, args []string) error {
			if clearActive {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := opts.workspaceRoot()
			if err != nil {
				return err
			}
			reg := intents.NewFileRegistry(opts.logger())
			if clearActive {
				if err := reg.SetActive(root, ""); err != nil {
					return fmt.Errorf("clear active intent: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Active intent cleared")
				return nil
			}

			id := strings.TrimSpace(args[0])
			if _, ok := reg.Load(root).Find(id); !ok {
				return fmt.Errorf("unknown intent %q", id)
			}
			if err := reg.SetActive(root, id); err != nil {
				return fmt.Errorf("select intent: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active intent: %s\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearActive, "clear", false, "Clear the active intent instead")
	return cmd
}

func newIntentsValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Lint a registry file (default: the workspace registry)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				root, err := opts.workspaceRoot()
				if err != nil {
					return err
				}
				path = intents.FilePath(root)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read registry: %w", err)
			}
			if err := intents.Lint(data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
			return nil
		},
	}
}
