package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/triage-ai/palisade/services/intent_guard/internal/storage"
)

func newEventsCmd(opts *rootOptions) *cobra.Command {
	var (
		dsn    string
		filter storage.EventFilter
		since  time.Duration
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded gate decisions from ClickHouse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dsn == "" {
				dsn = os.Getenv("CLICKHOUSE_DSN")
			}
			if dsn == "" {
				return errors.New("no ClickHouse DSN (set --dsn or CLICKHOUSE_DSN)")
			}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			reader, err := storage.NewEventReader(dsn, opts.logger())
			if err != nil {
				return err
			}
			defer func() { _ = reader.Close() }()

			events, err := reader.ListEvents(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			for i := range events {
				e := &events[i]
				if asJSON {
					if err := enc.Encode(e); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "%s  %-13s  %-20s  %-8s  %s\n",
					e.Timestamp.Format(time.RFC3339), e.Hook, e.ToolName, e.Decision, e.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "ClickHouse DSN (default: $CLICKHOUSE_DSN)")
	cmd.Flags().StringVar(&filter.WorkspaceID, "workspace", "", "Filter by workspace id")
	cmd.Flags().StringVar(&filter.SessionID, "session", "", "Filter by session id")
	cmd.Flags().StringVar(&filter.Hook, "hook", "", "Filter by hook (pre_tool_use, post_tool_use, end_session)")
	cmd.Flags().StringVar(&filter.Decision, "decision", "", "Filter by decision (continue, blocked, handled)")
	cmd.Flags().DurationVar(&since, "since", 0, "Only events newer than this duration")
	cmd.Flags().IntVar(&filter.Limit, "limit", storage.DefaultListLimit, "Maximum number of events")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON lines")
	return cmd
}
