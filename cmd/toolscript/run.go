package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolscript/protocol"
	"github.com/jonwraymond/toolscript/script"
)

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [FILE|-]",
		Short: "Run a script",
		Long: `Run a script from FILE, or from stdin when FILE is "-" or omitted.

The script's final value is printed to stdout, after anything the script
printed. Limits default to the configured preset.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAction(cmd, args)
		},
	}
	flags := cmd.Flags()
	flags.String("preset", "", "Limits preset [default, quick, extended]")
	flags.Duration("timeout", 0, "Wall-clock timeout, e.g. 5s")
	flags.Uint64("max-operations", 0, "Maximum number of operations")
	flags.Int("max-tool-calls", 0, "Maximum number of tool calls")
	flags.String("max-string-size", "", "Maximum string size, e.g. 1MB")
	flags.Bool("json", false, "Print the result as JSON")
	return cmd
}

func (a *app) runAction(cmd *cobra.Command, args []string) error {
	source, err := readScript(cmd, args)
	if err != nil {
		return err
	}

	limits, err := a.runLimits(cmd)
	if err != nil {
		return err
	}
	e, err := a.newExecutor(nil)
	if err != nil {
		return err
	}

	res, runErr := e.ExecuteScript(cmd.Context(), source, limits)

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(protocol.NewExecuteResponse(res, runErr)); err != nil {
			return err
		}
		return runErr
	}

	if res.Stdout != "" {
		fmt.Fprint(out, res.Stdout)
	}
	if runErr != nil {
		return runErr
	}
	if res.Output != "" {
		fmt.Fprintln(out, res.Output)
	}
	return nil
}

// runLimits applies the run flags on top of the configured limits.
func (a *app) runLimits(cmd *cobra.Command) (script.ExecutionLimits, error) {
	lc := a.cfg.Limits
	flags := cmd.Flags()
	if flags.Changed("preset") {
		lc.Preset, _ = flags.GetString("preset")
	}
	limits, err := lc.Resolve()
	if err != nil {
		return script.ExecutionLimits{}, err
	}

	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		if d <= 0 {
			return script.ExecutionLimits{}, errors.New("--timeout must be positive")
		}
		limits = limits.WithTimeout(d)
	}
	if flags.Changed("max-operations") {
		n, _ := flags.GetUint64("max-operations")
		limits = limits.WithMaxOperations(n)
	}
	if flags.Changed("max-tool-calls") {
		n, _ := flags.GetInt("max-tool-calls")
		if n < 0 {
			return script.ExecutionLimits{}, errors.New("--max-tool-calls must not be negative")
		}
		limits = limits.WithMaxToolCalls(n)
	}
	if flags.Changed("max-string-size") {
		raw, _ := flags.GetString("max-string-size")
		n, err := units.FromHumanSize(raw)
		if err != nil {
			return script.ExecutionLimits{}, fmt.Errorf("--max-string-size: %w", err)
		}
		limits = limits.WithMaxStringSize(int(n))
	}
	return limits, nil
}

func readScript(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(args[0])
	return string(b), err
}
