package registry

// ToolRegistry provides tool definitions by name.
type ToolRegistry interface {
	// GetTool returns the definition for toolName, or nil for an unknown tool.
	GetTool(toolName string) *ToolDefinition
}
