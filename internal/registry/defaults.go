package registry

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// writeSchema requires the attribution fields plus the tool's own arguments.
func writeSchema(pathArg string, extra map[string]any) map[string]any {
	props := map[string]any{
		"intent_id": stringProp("The active intent ID this change is attributable to (must match the currently selected active intent)."),
		"mutation_class": map[string]any{
			"type":        "string",
			"enum":        []any{MutationASTRefactor, MutationIntentEvolution},
			"description": "AST_REFACTOR for structurally equivalent refactors; INTENT_EVOLUTION for logic/behavior changes.",
		},
		pathArg: stringProp("The path of the file to modify, relative to the current workspace directory."),
	}
	required := []any{"intent_id", "mutation_class", pathArg}
	for name, prop := range extra {
		props[name] = prop
		required = append(required, name)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func defaultTools() []ToolDefinition {
	return []ToolDefinition{
		{
			ToolName:    ToolSelectActiveIntent,
			Description: "Select (or clear) the active intent for the current workspace. Required before any other tool.",
			Class:       ClassHandshake,
			ArgumentSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"intent_id": map[string]any{"type": []any{"string", "null"}},
				},
				"required":             []any{"intent_id"},
				"additionalProperties": false,
			},
		},
		{
			ToolName:     ToolReadFile,
			Description:  "Read a workspace file.",
			Class:        ClassRead,
			PathArgument: "path",
			ArgumentSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": stringProp("Workspace-relative path.")},
				"required":   []any{"path"},
			},
		},
		{
			ToolName:    ToolExecuteCommand,
			Description: "Run a shell command in the workspace.",
			Class:       ClassCommand,
			ArgumentSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"command": stringProp("Command line to execute.")},
				"required":   []any{"command"},
			},
		},
		{ToolName: ToolListFiles, Description: "List directory entries.", Class: ClassListing, PathArgument: "path"},
		{ToolName: ToolSearchFiles, Description: "Regex search across files.", Class: ClassSearch},
		{ToolName: ToolCodebaseSearch, Description: "Semantic code search.", Class: ClassSemanticSearch},
		{
			ToolName:    ToolAccessMcpResource,
			Description: "Fetch a resource from an MCP server.",
			Class:       ClassResource,
			ArgumentSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"server_name": stringProp("MCP server name."),
					"uri":         stringProp("Resource URI."),
				},
				"required": []any{"server_name", "uri"},
			},
		},
		{ToolName: ToolUseMcpTool, Description: "Invoke a tool on an MCP server.", Class: ClassOther},

		{
			ToolName:        ToolWriteToFile,
			Description:     "Write full content to a file.",
			Class:           ClassWrite,
			PathArgument:    "path",
			ContentArgument: "content",
			ArgumentSchema:  writeSchema("path", map[string]any{"content": stringProp("Complete new file content.")}),
		},
		{
			ToolName:       ToolApplyDiff,
			Description:    "Apply targeted modifications to an existing file.",
			Class:          ClassWrite,
			PathArgument:   "path",
			DiffArgument:   "diff",
			ArgumentSchema: writeSchema("path", map[string]any{"diff": stringProp("Diff describing the change.")}),
		},
		{
			ToolName:       ToolApplyPatch,
			Description:    "Apply a unified patch to a file.",
			Class:          ClassWrite,
			PathArgument:   "path",
			DiffArgument:   "patch",
			ArgumentSchema: writeSchema("path", map[string]any{"patch": stringProp("Unified diff.")}),
		},
		{ToolName: ToolEdit, Description: "Edit a file.", Class: ClassWrite, PathArgument: "file_path", ArgumentSchema: writeSchema("file_path", nil)},
		{ToolName: ToolEditFile, Description: "Edit a file.", Class: ClassWrite, PathArgument: "file_path", ArgumentSchema: writeSchema("file_path", nil)},
		{ToolName: ToolSearchAndReplace, Description: "Search and replace within a file.", Class: ClassWrite, PathArgument: "file_path", ArgumentSchema: writeSchema("file_path", nil)},
		{ToolName: ToolSearchReplace, Description: "Search and replace within a file.", Class: ClassWrite, PathArgument: "file_path", ArgumentSchema: writeSchema("file_path", nil)},
		{
			ToolName:       ToolGenerateImage,
			Description:    "Generate an image and write it to a file.",
			Class:          ClassWrite,
			PathArgument:   "path",
			ArgumentSchema: writeSchema("path", nil),
		},
	}
}
