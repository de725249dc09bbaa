// Package config holds scan configuration: CLI-populated options,
// validation, the optional YAML config file with per-site overrides,
// and the XDG directory helpers.
//
// Configuration flows one way: flags and the config file populate a
// Config, Validate() runs once before any scanning, and the value is
// passed down by dependency injection. Nothing in this package is
// global state.
package config
