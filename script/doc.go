// Package script provides the sandboxed orchestration layer that lets an
// agent submit a small script which calls host-provided tools in a single
// round trip.
//
// The package owns everything between the host and the script engine:
// resource limits, the value bridge between script values and JSON, the
// ordered audit trail of tool calls, and the typed error taxonomy. The
// engine itself (parser, compiler, virtual machine) is a collaborator behind
// [EngineFactory]; see the luaengine package for the bundled implementation.
//
// # Architecture
//
//   - [Orchestrator]: the entry point. It holds the tool [Registry] and, for
//     each [Orchestrator.Execute] call, creates a fresh [Engine], binds every
//     tool, compiles, evaluates and assembles an [ExecutionResult].
//
//   - [Session]: per-execution state. The call counter and audit log live in
//     an [AccountingStore], either the lock-guarded shared store or the
//     single-owner cooperative store, chosen once through [Config.Accounting].
//
//   - [Value]: the tagged variant engines produce. [Value.ToJSON] is the
//     total conversion used for tool input.
//
// # Execution Limits
//
// [ExecutionLimits] bounds operations, tool calls, wall-clock time and
// string/array/map sizes. Presets are [DefaultLimits], [QuickLimits] and
// [ExtendedLimits]; the With* methods derive variants.
//
// Operation and timeout breaches abort the execution with
// [MaxOperationsExceeded] or [Timeout]. Tool-call breaches do not: the
// script receives the string "ERROR: Maximum tool calls (N) exceeded" and
// keeps running, and the rejected call is not recorded.
//
// # Tool Calls
//
// A handler receives the call argument converted to JSON and returns text.
// Handler failures are also soft: the script receives "Tool error: <msg>"
// and the [ToolCallRecord] has Success=false. Handlers get a context whose
// deadline is the execution's timeout.
//
// Two builtins are bound next to the tools: print, which appends a line to
// [ExecutionResult].Stdout, and call_tool(name, input), which dispatches by
// name and fails the execution with [ToolNotFound] for unknown names.
//
// # Errors
//
// Every failure returned by Execute is an [*Error]. Use errors.Is with
// [ErrCompilation], [ErrExecution], [ErrMaxOperations], [ErrTimeout],
// [ErrLimitExceeded] or [ErrToolNotFound], or [ErrorKind.Class] to tell a
// buggy script from a runaway one from a misconfigured tool set.
package script
