package engine

import (
	"fmt"
	"strings"
)

// Agent-facing texts. They are part of the tool-loop contract.
const (
	MsgNoActiveIntent     = "Error: You must first declare an active intent using select_active_intent(intent_id) before performing any other actions."
	MsgMissingIntentID    = "Error: Write tools must include intent_id (must match the currently selected active intent)."
	MsgBadMutationClass   = "Error: Write tools must include mutation_class of either AST_REFACTOR or INTENT_EVOLUTION."
	MsgEmptyScope         = "Error: Out-of-scope write blocked. Active intent has no declared owned_scope/scope.paths; refusing to write."
	MsgHandshakeMissingID = "Error: You must cite a valid active Intent ID."
	MsgHandshakeFailed    = "Error: Failed to select active intent."
)

func MsgIntentMismatch(toolIntentID, activeID string) string {
	return fmt.Sprintf("Error: intent_id mismatch. Tool intent_id '%s' does not match active intent '%s'.", toolIntentID, activeID)
}

func MsgOutOfScope(relPath string, scope []string) string {
	return fmt.Sprintf("Error: Out-of-scope write blocked. Path '%s' is not within the active intent scope. Allowed scope globs: %s",
		relPath, strings.Join(scope, ", "))
}

func MsgNoSnapshot(relPath string) string {
	return fmt.Sprintf("Error: Stale File. No read snapshot recorded for '%s'. You must call read_file on this path before writing to it.", relPath)
}

func MsgStaleFile(relPath string) string {
	return fmt.Sprintf("Error: Stale File. '%s' has changed since last read. Re-read the file (read_file) and re-apply your change.", relPath)
}

func MsgUnverifiable(relPath string) string {
	return fmt.Sprintf("Error: Stale File. Unable to verify current state of '%s'. Re-read and retry.", relPath)
}

func MsgCommandRejected(command string) string {
	return "Error: Destructive command rejected by user: " + command
}

func MsgUnknownIntent(id string) string {
	return "Error: You must cite a valid active Intent ID. Unknown intent_id: " + id
}

func msgCheckFailed(check string, err error) string {
	return fmt.Sprintf("Error: policy check %s failed: %v", check, err)
}

func MsgInvalidArguments(toolName string, err error) string {
	return fmt.Sprintf("Error: Invalid arguments for %s: %v", toolName, err)
}
