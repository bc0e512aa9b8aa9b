// Package exec provides a unified facade for script execution in the toolscript ecosystem.
//
// The exec package combines the orchestrator, the tool catalog, shell-command
// tools and default limits into a single API. Servers (MCP, HTTP) and the CLI
// are built on it.
//
// # Overview
//
// An [Exec] instance handles the complete workflow:
//
//   - Tool registration, kept consistent between the orchestrator's registry
//     and the searchable catalog
//   - Shell-command tools
//   - Tool search and documentation
//   - Script execution with default limits and per-request overrides
//   - Direct tool invocation
//
// # Basic Usage
//
//	executor, err := exec.New(exec.Options{})
//	if err != nil {
//	    return err
//	}
//
//	_ = executor.RegisterFunc("greet", "Greets a user", func(ctx context.Context, input any) (string, error) {
//	    return fmt.Sprintf("Hello, %v!", input), nil
//	})
//
//	res, err := executor.ExecuteScript(ctx, `greet("Claude")`, script.DefaultLimits())
//	// res.Output == "Hello, Claude!"
//
// # Remote Requests
//
// [Exec.Execute] applies a [protocol.ExecuteRequest]'s optional overrides on
// top of the default limits and returns the wire projection:
//
//	resp := executor.Execute(ctx, protocol.ExecuteRequest{Script: src})
//
// # Search and Execute
//
//	hits, _ := executor.SearchTools(ctx, "weather", 5)
//	doc, _ := executor.DescribeTool(ctx, hits[0].Name)
//
// # Integration
//
// The exec package integrates with:
//
//   - [github.com/jonwraymond/toolscript/script] for orchestration
//   - [github.com/jonwraymond/toolscript/luaengine] as the default engine
//   - [github.com/jonwraymond/toolscript/catalog] for search and documentation
//   - [github.com/jonwraymond/toolscript/metrics] for Prometheus metrics
package exec
