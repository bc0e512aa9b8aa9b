package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/toolscript/exec"
	"github.com/jonwraymond/toolscript/protocol"
)

// DefaultName is the implementation name reported to clients.
const DefaultName = "toolscript"

// Instructions is sent to clients during initialization.
const Instructions = `This MCP server runs sandboxed Lua scripts that orchestrate registered tools.

Every registered tool is a global function inside the script: greet("Claude").
Tools can also be called by name with call_tool("greet", "Claude").
Tool handlers receive a single argument; several arguments are packed into an array.
print(...) writes to the script's output buffer.

Scripts are bounded by an operation budget, a tool-call budget and a timeout.
Tool calls past the budget return the string "ERROR: Maximum tool calls (N) exceeded"
instead of failing the script. The value of the script's last expression or
return statement is its output.

Use search_tools and describe_tool to discover tools before writing a script.
`

// Tool definitions.
var (
	ExecuteScriptTool = &mcp.Tool{
		Name:        "execute_script",
		Title:       "Execute Script",
		Description: "Execute a Lua script that can call registered tools. Returns the output, tool-call count and execution time.",
	}
	RegisterToolTool = &mcp.Tool{
		Name:        "register_tool",
		Title:       "Register Tool",
		Description: "Register a shell command as a tool callable from scripts. The JSON input is available as $input and on stdin.",
	}
	UnregisterToolTool = &mcp.Tool{
		Name:        "unregister_tool",
		Title:       "Unregister Tool",
		Description: "Remove a registered tool.",
	}
	ListToolsTool = &mcp.Tool{
		Name:        "list_tools",
		Title:       "List Tools",
		Description: "List all tools registered for scripts.",
	}
	SearchToolsTool = &mcp.Tool{
		Name:        "search_tools",
		Title:       "Search Tools",
		Description: "Search registered tools by name, description and tags.",
	}
	DescribeToolTool = &mcp.Tool{
		Name:        "describe_tool",
		Title:       "Describe Tool",
		Description: "Show the documentation of a registered tool.",
	}
)

// Options configures the MCP server.
type Options struct {
	// Name is the implementation name. Defaults to DefaultName.
	Name string

	// Version is the implementation version.
	Version string
}

// New creates an MCP server backed by e.
func New(e *exec.Exec, opts Options) *mcp.Server {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	impl := &mcp.Implementation{
		Name:    opts.Name,
		Title:   "Sandboxed Lua tool orchestration",
		Version: opts.Version,
	}
	server := mcp.NewServer(impl, &mcp.ServerOptions{Instructions: Instructions})
	Register(server, e)
	return server
}

// Register adds the toolscript tools to an existing server.
func Register(server *mcp.Server, e *exec.Exec) {
	h := &handlers{exec: e}
	mcp.AddTool(server, ExecuteScriptTool, h.executeScript)
	mcp.AddTool(server, RegisterToolTool, h.registerTool)
	mcp.AddTool(server, UnregisterToolTool, h.unregisterTool)
	mcp.AddTool(server, ListToolsTool, h.listTools)
	mcp.AddTool(server, SearchToolsTool, h.searchTools)
	mcp.AddTool(server, DescribeToolTool, h.describeTool)
}

type handlers struct {
	exec *exec.Exec
}

func (h *handlers) executeScript(ctx context.Context,
	_ *mcp.CallToolRequest, args protocol.ExecuteRequest,
) (*mcp.CallToolResult, protocol.ExecuteResponse, error) {
	resp := h.exec.Execute(ctx, args)
	text, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return nil, protocol.ExecuteResponse{}, err
	}
	return textResult(string(text)), resp, nil
}

func (h *handlers) registerTool(_ context.Context,
	_ *mcp.CallToolRequest, args protocol.RegisterToolRequest,
) (*mcp.CallToolResult, protocol.RegisterToolResponse, error) {
	resp, err := h.exec.HandleRegister(args)
	if err != nil {
		return nil, protocol.RegisterToolResponse{}, err
	}
	return textResult(resp.Message), resp, nil
}

func (h *handlers) unregisterTool(_ context.Context,
	_ *mcp.CallToolRequest, args protocol.UnregisterToolRequest,
) (*mcp.CallToolResult, protocol.UnregisterToolResponse, error) {
	resp := h.exec.HandleUnregister(args)
	return textResult(resp.Message), resp, nil
}

func (h *handlers) listTools(_ context.Context,
	_ *mcp.CallToolRequest, _ struct{},
) (*mcp.CallToolResult, protocol.ListToolsResponse, error) {
	resp := protocol.ListToolsResponse{Tools: exec.ToolInfos(h.exec.ListTools())}
	if len(resp.Tools) == 0 {
		return textResult("No tools registered"), resp, nil
	}
	names := make([]string, len(resp.Tools))
	for i, t := range resp.Tools {
		names[i] = t.Name
	}
	return textResult("Registered tools: " + strings.Join(names, ", ")), resp, nil
}

func (h *handlers) searchTools(ctx context.Context,
	_ *mcp.CallToolRequest, args protocol.SearchToolsRequest,
) (*mcp.CallToolResult, protocol.SearchToolsResponse, error) {
	hits, err := h.exec.SearchTools(ctx, args.Query, args.Limit)
	if err != nil {
		return nil, protocol.SearchToolsResponse{}, err
	}
	resp := protocol.SearchToolsResponse{Tools: exec.ToolInfos(hits)}
	if len(resp.Tools) == 0 {
		return textResult(fmt.Sprintf("No tools match %q", args.Query)), resp, nil
	}
	var sb strings.Builder
	for _, t := range resp.Tools {
		fmt.Fprintf(&sb, "%s: %s\n", t.Name, t.Description)
	}
	return textResult(strings.TrimSuffix(sb.String(), "\n")), resp, nil
}

func (h *handlers) describeTool(ctx context.Context,
	_ *mcp.CallToolRequest, args protocol.DescribeToolRequest,
) (*mcp.CallToolResult, protocol.DescribeToolResponse, error) {
	d, err := h.exec.DescribeTool(ctx, args.Name)
	if err != nil {
		return nil, protocol.DescribeToolResponse{}, err
	}
	resp := exec.DescribeResponse(d)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n%s\n", resp.Title, resp.Description)
	if resp.Notes != "" {
		fmt.Fprintf(&sb, "\n%s\n", resp.Notes)
	}
	if len(resp.Tags) > 0 {
		fmt.Fprintf(&sb, "\nTags: %s\n", strings.Join(resp.Tags, ", "))
	}
	return textResult(sb.String()), resp, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}
