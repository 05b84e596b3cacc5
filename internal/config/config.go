package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkRoot   string `toml:"work_root"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
	ProfileDir string `toml:"profile_dir"`
}

// Server contains the HTTP serving configuration.
type Server struct {
	Bind        string `toml:"bind"`
	BaseURL     string `toml:"base_url"`
	MaxUploadMB int    `toml:"max_upload_mb"`
}

// Converter contains configuration for the document-to-PDF step.
type Converter struct {
	Binary         string `toml:"binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Rasterizer contains configuration for the PDF-to-image step.
type Rasterizer struct {
	Binary         string `toml:"binary"`
	DPI            int    `toml:"dpi"`
	MaxDPI         int    `toml:"max_dpi"`
	Format         string `toml:"format"`
	JPEGQuality    int    `toml:"jpeg_quality"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Pipeline contains worker scheduling configuration.
type Pipeline struct {
	Workers int `toml:"workers"`
}

// Retention controls how long completed-job artifacts are kept.
//
// The conversion core never evicts on its own; retention is an explicit
// serving-boundary policy. Disabled means artifacts live until deleted
// through the API.
type Retention struct {
	Enabled              bool `toml:"enabled"`
	MaxAgeHours          int  `toml:"max_age_hours"`
	SweepIntervalSeconds int  `toml:"sweep_interval_seconds"`
}

// History configures the durable record of terminal jobs.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for slidecast.
//
// Sections by subsystem:
//   - Paths: workspace root, published image directory, LibreOffice profile
//   - Server: bind address, external base URL, upload limit
//   - Converter: soffice binary and timeout
//   - Rasterizer: pdftoppm binary, DPI bounds, output format
//   - Pipeline: conversion worker pool size
//   - Retention: artifact eviction policy
//   - History: terminal-job persistence
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Server     Server     `toml:"server"`
	Converter  Converter  `toml:"converter"`
	Rasterizer Rasterizer `toml:"rasterizer"`
	Pipeline   Pipeline   `toml:"pipeline"`
	Retention  Retention  `toml:"retention"`
	History    History    `toml:"history"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/slidecast/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	// A .env alongside the process augments the environment before overrides
	// are read; absence is not an error.
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// applyEnvOverrides layers process environment values over file configuration.
// These affect how returned image URLs are constructed and where the server
// listens, not conversion behavior.
func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("SLIDECAST_BASE_URL")); v != "" {
		c.Server.BaseURL = v
	} else if v := strings.TrimSpace(os.Getenv("API_BASE_URL")); v != "" {
		c.Server.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SLIDECAST_BIND")); v != "" {
		c.Server.Bind = v
	} else if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		host, _, err := splitBind(c.Server.Bind)
		if err != nil {
			host = "0.0.0.0"
		}
		c.Server.Bind = host + ":" + port
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("slidecast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for service operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkRoot, c.Paths.OutputDir, c.Paths.LogDir, c.Paths.ProfileDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) != "" {
		if err := os.MkdirAll(filepath.Dir(c.History.Path), 0o755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}
	return nil
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func splitBind(bind string) (host, port string, err error) {
	idx := strings.LastIndex(bind, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("bind address %q missing port", bind)
	}
	return bind[:idx], bind[idx+1:], nil
}
