// Package protocol defines the wire types shared by the MCP server, the
// HTTP API and the CLI.
//
// Field names are snake_case and match the remote projection of an
// execution: success, output, tool_calls_count, execution_time_ms and an
// optional error. Requests carry optional limit overrides that are applied
// on top of the server's default limits with [ExecuteRequest.Limits].
package protocol
