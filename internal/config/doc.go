// Package config loads and validates harness configuration.
//
// Configuration is YAML with ${VAR} environment expansion. Load parses,
// LoadWithDefaults fills in defaults, LoadAndValidate additionally
// validates.
package config
