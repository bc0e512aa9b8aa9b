package exec

import (
	"github.com/jonwraymond/toolscript/metrics"
	"github.com/jonwraymond/toolscript/script"
)

// Options configures an Exec instance.
type Options struct {
	// Engine creates script engines.
	// Default: luaengine.NewFactory()
	Engine script.EngineFactory

	// Accounting selects the tool-call accounting strategy.
	// Default: script.AccountingShared
	Accounting script.Accounting

	// DefaultLimits apply to executions that do not override them.
	// Default: script.DefaultLimits()
	DefaultLimits script.ExecutionLimits

	// Namespace groups tools in the catalog.
	// Default: catalog.DefaultNamespace
	Namespace string

	// Logger receives orchestrator and facade events.
	// Optional.
	Logger script.Logger

	// Observer receives execution events.
	// Optional.
	Observer script.Observer

	// Metrics, when set, observes executions and tracks the number of
	// registered tools.
	// Optional.
	Metrics *metrics.Collector
}

// applyDefaults sets default values for unset optional fields.
func (o *Options) applyDefaults() {
	if o.DefaultLimits == (script.ExecutionLimits{}) {
		o.DefaultLimits = script.DefaultLimits()
	}
}

// observer combines Observer and Metrics.
func (o *Options) observer() script.Observer {
	var obs script.Observers
	if o.Observer != nil {
		obs = append(obs, o.Observer)
	}
	if o.Metrics != nil {
		obs = append(obs, o.Metrics)
	}
	switch len(obs) {
	case 0:
		return nil
	case 1:
		return obs[0]
	}
	return obs
}
