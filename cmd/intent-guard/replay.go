package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/triage-ai/palisade/services/intent_guard/internal/approval"
	"github.com/triage-ai/palisade/services/intent_guard/internal/dispatch"
	"github.com/triage-ai/palisade/services/intent_guard/internal/engine"
	"github.com/triage-ai/palisade/services/intent_guard/internal/engine/checks"
	"github.com/triage-ai/palisade/services/intent_guard/internal/intents"
	"github.com/triage-ai/palisade/services/intent_guard/internal/locking"
	"github.com/triage-ai/palisade/services/intent_guard/internal/recorder"
	"github.com/triage-ai/palisade/services/intent_guard/internal/registry"
)

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var (
		sessionID    string
		approve      string
		validateArgs bool
	)
	cmd := &cobra.Command{
		Use:   "replay <blocks.json|->",
		Short: "Run assistant tool-use blocks through the gate without executing writes",
		Long: `Replay reads a JSON array of assistant content blocks and prints one
tool_result per complete tool-use block, as JSON lines.

Only read_file and list_files are executed; every other allowed tool is
reported as not executed. select_active_intent blocks do update the
workspace registry.

--approve controls destructive command prompts: "ask" prompts on the
terminal, "yes" approves and "no" rejects without asking.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := opts.workspaceRoot()
			if err != nil {
				return err
			}
			blocks, err := readBlocks(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			provider, err := approvalProvider(approve, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			logger := opts.logger()
			catalog := registry.DefaultCatalog()
			reg := intents.NewFileRegistry(logger)
			store := locking.NewStore()
			cfg := engine.DefaultConfig()

			gateChecks := checks.Default(reg, store, provider, cfg, logger)
			if validateArgs {
				gateChecks = checks.WithArgumentSchemas(gateChecks, catalog)
			}
			gate := engine.NewIntentGuardEngine(catalog, reg, gateChecks, logger)
			post := recorder.New(catalog, locking.DefaultRecorders(store, reg, cfg.Limits, logger), nil, logger)
			d := dispatch.New(gate, post, &dryRunExecutor{root: root}, logger)

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, res := range d.Present(cmd.Context(), dispatch.Session{Root: root, SessionID: sessionID}, blocks) {
				if err := enc.Encode(res); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id for read snapshots (default: random)")
	cmd.Flags().StringVar(&approve, "approve", "ask", "Destructive command approval: ask, yes or no")
	cmd.Flags().BoolVar(&validateArgs, "validate-args", false, "Also block calls whose arguments fail the tool schema")
	return cmd
}

func readBlocks(stdin io.Reader, path string) ([]dispatch.Block, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read blocks: %w", err)
	}
	var blocks []dispatch.Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("parse blocks: %w", err)
	}
	return blocks, nil
}

func approvalProvider(mode string, prompt io.Writer) (approval.Provider, error) {
	switch mode {
	case "ask":
		return approval.NewTerminal(os.Stdin, prompt), nil
	case "yes":
		return approval.Static{Choice: approval.Approve}, nil
	case "no":
		return approval.Static{Choice: approval.Reject}, nil
	default:
		return nil, fmt.Errorf("invalid --approve %q (want ask, yes or no)", mode)
	}
}

// dryRunExecutor performs read-only tools against the workspace and
// reports everything else as skipped.
type dryRunExecutor struct {
	root string
}

func (e *dryRunExecutor) Execute(_ context.Context, toolName string, args registry.Args) (string, error) {
	switch toolName {
	case registry.ToolReadFile:
		rel, _ := args.String("path")
		data, err := os.ReadFile(locking.AbsPath(e.root, rel))
		if err != nil {
			return "", err
		}
		return string(data), nil
	case registry.ToolListFiles:
		rel, _ := args.String("path")
		entries, err := os.ReadDir(locking.AbsPath(e.root, rel))
		if err != nil {
			return "", err
		}
		names := make([]string, 0, len(entries))
		for _, de := range entries {
			name := de.Name()
			if de.IsDir() {
				name += "/"
			}
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) == 0 {
			return "No files found.", nil
		}
		return strings.Join(names, "\n"), nil
	default:
		return fmt.Sprintf("(dry run) %s was not executed", toolName), nil
	}
}
