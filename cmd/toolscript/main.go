package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolscript/config"
	"github.com/jonwraymond/toolscript/exec"
	"github.com/jonwraymond/toolscript/metrics"
	"github.com/jonwraymond/toolscript/script"
	"github.com/jonwraymond/toolscript/shelltool"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newApp().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

// app holds state resolved by the root command before any subcommand runs.
type app struct {
	cfg config.Config
}

func newApp() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "toolscript",
		Short: "Sandboxed Lua scripting for tool orchestration",
		Example: `  Run a script file:
  $ toolscript run script.lua

  Run a script from stdin with tight limits:
  $ echo 'return 1 + 1' | toolscript run --preset quick -

  Serve MCP over stdio:
  $ toolscript serve --config toolscript.toml`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to a TOML or YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Set the logging level [trace, debug, info, warn, error]")
	rootCmd.PersistentFlags().String("log-format", "", "Set the logging format [text, json]")
	rootCmd.PersistentFlags().Bool("debug", false, "Debug mode")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return a.processGlobalFlags(cmd)
	}

	rootCmd.AddCommand(
		newRunCommand(a),
		newServeCommand(a),
		newServeHTTPCommand(a),
		newInfoCommand(a),
	)
	return rootCmd
}

// processGlobalFlags loads the config file, applies the environment and
// then the flags, and configures the standard logger.
func (a *app) processGlobalFlags(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	// --log-level overrides --debug
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}
	if l, _ := cmd.Flags().GetString("log-level"); l != "" {
		cfg.Log.Level = l
	}
	if f, _ := cmd.Flags().GetString("log-format"); f != "" {
		cfg.Log.Format = f
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logrus.StandardLogger()
	logger.SetOutput(os.Stderr)
	if err := cfg.Log.Configure(logger); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// newExecutor builds the facade from the config and registers the
// configured shell tools.
func (a *app) newExecutor(col *metrics.Collector) (*exec.Exec, error) {
	limits, err := a.cfg.Limits.Resolve()
	if err != nil {
		return nil, err
	}
	accounting, err := script.ParseAccounting(a.cfg.Accounting)
	if err != nil {
		return nil, err
	}

	e, err := exec.New(exec.Options{
		Accounting:    accounting,
		DefaultLimits: limits,
		Logger:        script.NewLogrusLogger(logrus.StandardLogger()),
		Metrics:       col,
	})
	if err != nil {
		return nil, err
	}

	for _, tc := range a.cfg.Tools {
		timeout, err := tc.TimeoutDuration()
		if err != nil {
			return nil, err
		}
		t := shelltool.Tool{
			Name:        tc.Name,
			Description: tc.Description,
			Command:     tc.Command,
			Timeout:     timeout,
			Dir:         tc.Dir,
			Env:         tc.Env,
		}
		if err := e.RegisterShellTool(t, tc.Tags); err != nil {
			return nil, fmt.Errorf("register tool %q: %w", tc.Name, err)
		}
		logrus.WithField("tool", tc.Name).Debug("registered shell tool")
	}
	return e, nil
}
