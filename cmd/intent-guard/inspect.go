package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/triage-ai/palisade/services/intent_guard/internal/contenthash"
	"github.com/triage-ai/palisade/services/intent_guard/internal/policy"
	"github.com/triage-ai/palisade/services/intent_guard/internal/trace"
)

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file>...",
		Short: "Print the snapshot content hash of files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				sum, err := contenthash.File(path)
				if err != nil {
					return fmt.Errorf("hash %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, path)
			}
			return nil
		},
	}
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <command>",
		Short: "Classify a shell command as safe or destructive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := strings.Join(args, " ")
			risk, detail := policy.ExplainCommandRisk(command)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", risk, detail)
			return nil
		},
	}
}

func newTraceCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect the agent trace ledger",
	}

	var (
		intentID string
		asJSON   bool
	)
	show := &cobra.Command{
		Use:   "show",
		Short: "Print trace entries, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := opts.workspaceRoot()
			if err != nil {
				return err
			}
			entries, err := trace.ReadAll(root)
			if err != nil {
				return fmt.Errorf("read trace: %w", err)
			}
			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			for i := range entries {
				e := &entries[i]
				if intentID != "" && e.IntentID() != intentID {
					continue
				}
				if asJSON {
					if err := enc.Encode(e); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "%s  %s  %s\n", e.Timestamp.Format("2006-01-02T15:04:05Z07:00"), e.IntentID(), describeEntry(e))
			}
			return nil
		},
	}
	show.Flags().StringVar(&intentID, "intent", "", "Only show entries attributed to this intent")
	show.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON lines")
	cmd.AddCommand(show)
	return cmd
}

func describeEntry(e *trace.Entry) string {
	if len(e.Files) == 0 || len(e.Files[0].Conversations) == 0 {
		return e.ID
	}
	f := e.Files[0]
	c := f.Conversations[0]
	hash := ""
	if len(c.Ranges) > 0 {
		hash = c.Ranges[0].ContentHash
	}
	return fmt.Sprintf("%s %s %s %s", c.Tool.Name, f.RelativePath, c.MutationClass, hash)
}
