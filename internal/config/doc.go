// Package config loads, validates, and normalizes slidecast configuration
// from TOML files and environment overrides.
package config
