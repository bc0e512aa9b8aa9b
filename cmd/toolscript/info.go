package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolscript/catalog"
	"github.com/jonwraymond/toolscript/exec"
	"github.com/jonwraymond/toolscript/mcpserver"
	"github.com/jonwraymond/toolscript/script"
)

// Info describes the MCP surface and the configured limits.
type Info struct {
	Version    string                 `json:"version"`
	Accounting string                 `json:"accounting"`
	Limits     script.ExecutionLimits `json:"limits"`
	Scripts    []ScriptTool           `json:"script_tools"`
	Tools      []*mcp.Tool            `json:"mcp_tools"`
}

// ScriptTool is a tool callable from scripts.
type ScriptTool struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func newInfoCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show information about the MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.newExecutor(nil)
			if err != nil {
				return err
			}
			info, err := inspectInfo(cmd.Context(), e)
			if err != nil {
				return err
			}
			info.Accounting = a.cfg.Accounting
			j, err := json.MarshalIndent(info, "", "    ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(j))
			return err
		},
	}
	return cmd
}

// inspectInfo lists the server's tools through an in-memory client session.
func inspectInfo(ctx context.Context, e *exec.Exec) (*Info, error) {
	server := mcpserver.New(e, mcpserver.Options{Version: version})
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		return nil, err
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "client"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		return nil, err
	}
	toolsResult, err := clientSession.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, err
	}
	if err = clientSession.Close(); err != nil {
		return nil, err
	}
	if err = serverSession.Wait(); err != nil {
		return nil, err
	}

	info := &Info{
		Version: version,
		Limits:  e.DefaultLimits(),
		Scripts: []ScriptTool{},
		Tools:   toolsResult.Tools,
	}
	for _, t := range e.ListTools() {
		info.Scripts = append(info.Scripts, ScriptTool{
			Name:        t.Name,
			Title:       catalog.Title(t.Name),
			Description: t.Description,
		})
	}
	return info, nil
}
