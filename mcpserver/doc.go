// Package mcpserver exposes an [exec.Exec] as a Model Context Protocol server.
//
// The server offers execute_script, register_tool, unregister_tool,
// list_tools, search_tools and describe_tool. Each tool returns a
// human-readable text block plus structured content in the shape of the
// matching [protocol] response.
//
//	server := mcpserver.New(executor, mcpserver.Options{Version: version})
//	err := server.Run(ctx, &mcp.StdioTransport{})
package mcpserver
