package registry

// ToolClass groups tools by how the gate and recorders treat them.
type ToolClass string

const (
	ClassHandshake      ToolClass = "handshake"
	ClassRead           ToolClass = "read"
	ClassWrite          ToolClass = "write"
	ClassCommand        ToolClass = "command"
	ClassListing        ToolClass = "listing"
	ClassSearch         ToolClass = "search"
	ClassSemanticSearch ToolClass = "semantic_search"
	ClassResource       ToolClass = "resource"
	ClassOther          ToolClass = "other"
)

// Tool names known to the gate.
const (
	ToolSelectActiveIntent = "select_active_intent"
	ToolReadFile           = "read_file"
	ToolExecuteCommand     = "execute_command"
	ToolListFiles          = "list_files"
	ToolSearchFiles        = "search_files"
	ToolCodebaseSearch     = "codebase_search"
	ToolAccessMcpResource  = "access_mcp_resource"
	ToolUseMcpTool         = "use_mcp_tool"

	ToolWriteToFile      = "write_to_file"
	ToolApplyDiff        = "apply_diff"
	ToolApplyPatch       = "apply_patch"
	ToolEdit             = "edit"
	ToolEditFile         = "edit_file"
	ToolSearchAndReplace = "search_and_replace"
	ToolSearchReplace    = "search_replace"
	ToolGenerateImage    = "generate_image"
)

// Mutation classes accepted on write tools.
const (
	MutationASTRefactor     = "AST_REFACTOR"
	MutationIntentEvolution = "INTENT_EVOLUTION"
	MutationUnknown         = "UNKNOWN"
)

// ToolDefinition describes one tool the agent can call.
type ToolDefinition struct {
	ToolName    string
	Description string
	Class       ToolClass
	// PathArgument names the argument holding the workspace-relative
	// target path. Empty when the tool has no single target.
	PathArgument string
	// ContentArgument holds full new file content (full-file writers).
	ContentArgument string
	// DiffArgument holds a unified diff (diff appliers).
	DiffArgument   string
	ArgumentSchema map[string]any // JSON Schema, nil if not set
}

// IsWrite reports whether the tool mutates file content.
func (td *ToolDefinition) IsWrite() bool {
	return td != nil && td.Class == ClassWrite
}

// TargetPath returns the write target named by the path argument. Missing,
// non-string and empty values all report false.
func (td *ToolDefinition) TargetPath(args Args) (string, bool) {
	if td == nil || td.PathArgument == "" {
		return "", false
	}
	p, ok := args.String(td.PathArgument)
	if !ok || p == "" {
		return "", false
	}
	return p, true
}
