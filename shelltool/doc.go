// Package shelltool provides tool handlers backed by shell commands.
//
// A [Tool] runs its Command through `sh -c`. The tool input is JSON-encoded
// and handed to the command twice: as the $input environment variable and
// on stdin. Trimmed stdout becomes the tool output; a non-zero exit becomes
// a handler error carrying trimmed stderr.
//
// Shell tools run with the privileges of the host process. They are not
// sandboxed.
//
//	t := shelltool.Tool{Name: "upper", Command: `printf %s "$input" | tr a-z A-Z`}
//	orch.Register(t.Name, t.Handler())
package shelltool
