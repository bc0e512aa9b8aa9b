// Package config loads toolscript configuration from TOML or YAML files and
// the environment.
//
// # File Formats
//
// [Load] picks the decoder by extension. TOML files only override the keys
// they define; YAML files decode over [Default].
//
//	[log]
//	level = "debug"
//
//	[limits]
//	preset = "quick"
//	timeout = "250ms"
//	max_string_size = "1MB"
//
//	[[tools]]
//	name = "date"
//	command = "date -u"
//
// # Limits
//
// [LimitsConfig.Resolve] starts from a named preset and applies any
// overrides. Timeouts are Go duration strings and string caps accept human
// sizes such as "10MB".
//
// # Environment
//
// [Config.ApplyEnv] applies the TOOLSCRIPT_* variables after the file.
package config
