// Package config loads, normalizes, and validates the TOML configuration that
// drives the reelsmith daemon and CLI. Defaults are defined in defaults.go,
// path expansion and env fallbacks in normalize.go, and cross-field checks in
// validate.go. A commented sample config is embedded for 'config init'.
package config
