package script

import (
	"sort"
	"strings"
	"time"
)

// MaxCallDepth is the maximum expression and call nesting depth allowed in
// a script. It is not configurable by callers.
const MaxCallDepth = 64

// Collection caps shared by all presets.
const (
	DefaultMaxStringSize = 10_000_000
	DefaultMaxArraySize  = 10_000
	DefaultMaxMapSize    = 1_000
)

// ExecutionLimits bounds a single execution.
//
// ExecutionLimits is an immutable value: the With* methods return modified
// copies. Fields are not validated. A zero MaxOperations or size cap leaves
// that axis unbounded at the engine; a zero MaxToolCalls rejects every tool
// call in-band.
type ExecutionLimits struct {
	// MaxOperations caps the number of engine operations.
	MaxOperations uint64 `json:"max_operations"`

	// MaxToolCalls caps the number of admitted tool calls. Calls past the
	// cap receive an in-band error string and are not recorded.
	MaxToolCalls int `json:"max_tool_calls"`

	// Timeout is the wall-clock budget for compile, evaluation and tool calls.
	Timeout time.Duration `json:"timeout"`

	// MaxStringSize caps the byte length of any string crossing the
	// engine boundary.
	MaxStringSize int `json:"max_string_size"`

	// MaxArraySize caps array lengths.
	MaxArraySize int `json:"max_array_size"`

	// MaxMapSize caps map entry counts.
	MaxMapSize int `json:"max_map_size"`
}

// DefaultLimits returns the balanced preset.
func DefaultLimits() ExecutionLimits {
	return ExecutionLimits{
		MaxOperations: 100_000,
		MaxToolCalls:  50,
		Timeout:       30 * time.Second,
		MaxStringSize: DefaultMaxStringSize,
		MaxArraySize:  DefaultMaxArraySize,
		MaxMapSize:    DefaultMaxMapSize,
	}
}

// QuickLimits returns a tight preset for simple scripts.
func QuickLimits() ExecutionLimits {
	return ExecutionLimits{
		MaxOperations: 10_000,
		MaxToolCalls:  10,
		Timeout:       5 * time.Second,
		MaxStringSize: DefaultMaxStringSize,
		MaxArraySize:  DefaultMaxArraySize,
		MaxMapSize:    DefaultMaxMapSize,
	}
}

// ExtendedLimits returns a generous preset for long-running orchestration.
func ExtendedLimits() ExecutionLimits {
	return ExecutionLimits{
		MaxOperations: 500_000,
		MaxToolCalls:  100,
		Timeout:       120 * time.Second,
		MaxStringSize: DefaultMaxStringSize,
		MaxArraySize:  DefaultMaxArraySize,
		MaxMapSize:    DefaultMaxMapSize,
	}
}

var presets = map[string]func() ExecutionLimits{
	"default":  DefaultLimits,
	"quick":    QuickLimits,
	"extended": ExtendedLimits,
}

// Preset resolves a preset by name (case-insensitive). An empty name
// resolves to the default preset.
func Preset(name string) (ExecutionLimits, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultLimits(), true
	}
	fn, ok := presets[name]
	if !ok {
		return ExecutionLimits{}, false
	}
	return fn(), true
}

// PresetNames returns the known preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WithMaxOperations returns a copy with the operation cap replaced.
func (l ExecutionLimits) WithMaxOperations(n uint64) ExecutionLimits {
	l.MaxOperations = n
	return l
}

// WithMaxToolCalls returns a copy with the tool-call cap replaced.
func (l ExecutionLimits) WithMaxToolCalls(n int) ExecutionLimits {
	l.MaxToolCalls = n
	return l
}

// WithTimeout returns a copy with the timeout replaced.
func (l ExecutionLimits) WithTimeout(d time.Duration) ExecutionLimits {
	l.Timeout = d
	return l
}

// WithTimeoutMs returns a copy with the timeout replaced, in milliseconds.
func (l ExecutionLimits) WithTimeoutMs(ms uint64) ExecutionLimits {
	l.Timeout = time.Duration(ms) * time.Millisecond
	return l
}

// WithMaxStringSize returns a copy with the string cap replaced.
func (l ExecutionLimits) WithMaxStringSize(n int) ExecutionLimits {
	l.MaxStringSize = n
	return l
}

// WithMaxArraySize returns a copy with the array cap replaced.
func (l ExecutionLimits) WithMaxArraySize(n int) ExecutionLimits {
	l.MaxArraySize = n
	return l
}

// WithMaxMapSize returns a copy with the map cap replaced.
func (l ExecutionLimits) WithMaxMapSize(n int) ExecutionLimits {
	l.MaxMapSize = n
	return l
}

// TimeoutMs returns the timeout in whole milliseconds.
func (l ExecutionLimits) TimeoutMs() uint64 {
	if l.Timeout <= 0 {
		return 0
	}
	return uint64(l.Timeout / time.Millisecond)
}

// engineConfig derives the numeric caps handed to a fresh engine.
func (l ExecutionLimits) engineConfig() EngineConfig {
	return EngineConfig{
		MaxOperations: l.MaxOperations,
		MaxCallDepth:  MaxCallDepth,
		MaxStringSize: l.MaxStringSize,
		MaxArraySize:  l.MaxArraySize,
		MaxMapSize:    l.MaxMapSize,
	}
}
