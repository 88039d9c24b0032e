package checks

import (
	"context"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/intent_guard/internal/approval"
	"github.com/triage-ai/palisade/services/intent_guard/internal/engine"
	"github.com/triage-ai/palisade/services/intent_guard/internal/policy"
	"github.com/triage-ai/palisade/services/intent_guard/internal/registry"
)

// CommandApprovalCheck asks a human before a destructive command runs.
// Anything but an explicit approval rejects the command, including a
// provider failure.
type CommandApprovalCheck struct {
	provider approval.Provider
	logger   *zap.Logger
}

func NewCommandApprovalCheck(provider approval.Provider, logger *zap.Logger) *CommandApprovalCheck {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandApprovalCheck{provider: provider, logger: logger}
}

func (c *CommandApprovalCheck) Name() string {
	return "command_approval"
}

func (c *CommandApprovalCheck) Check(ctx context.Context, call *engine.Call) (*engine.Decision, error) {
	if call.ToolName != registry.ToolExecuteCommand {
		return nil, nil
	}
	command, ok := call.Args.String("command")
	if !ok {
		return nil, nil
	}
	risk, detail := policy.ExplainCommandRisk(command)
	if risk != policy.RiskDestructive {
		return nil, nil
	}

	choice, err := c.provider.Request(ctx, approval.CommandPrompt(call.SessionID, command))
	if err != nil {
		c.logger.Warn("approval provider failed, rejecting command",
			zap.String("provider", c.provider.Name()),
			zap.Error(err),
		)
		choice = approval.NoDecision
	}
	c.logger.Info("destructive command approval",
		zap.String("session_id", call.SessionID),
		zap.String("command", command),
		zap.String("detail", detail),
		zap.String("choice", string(choice)),
	)
	if !approval.Approved(choice) {
		return engine.Blocked(c.Name(), engine.MsgCommandRejected(command)), nil
	}
	return nil, nil
}
