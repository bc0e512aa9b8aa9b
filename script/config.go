package script

import (
	"fmt"
	"strings"
)

// Config holds the configuration for an Orchestrator.
type Config struct {
	// Engine creates a fresh script engine for each execution.
	// Required.
	Engine EngineFactory

	// Accounting selects the per-execution AccountingStore.
	// Defaults to AccountingShared.
	Accounting Accounting

	// Logger is an optional logger for observability.
	Logger Logger

	// Observer is optionally notified of tool calls and finished executions.
	Observer Observer
}

// Validate checks that all required fields are set.
// Returns ErrConfiguration if any required field is missing.
func (c *Config) Validate() error {
	var missing []string

	if c.Engine == nil {
		missing = append(missing, "Engine")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s",
			ErrConfiguration, strings.Join(missing, ", "))
	}
	if c.Accounting != AccountingShared && c.Accounting != AccountingCooperative {
		return fmt.Errorf("%w: unknown accounting strategy %d", ErrConfiguration, int(c.Accounting))
	}
	return nil
}

// applyDefaults sets default values for optional fields.
func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
}
