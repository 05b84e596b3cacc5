package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateConverter(); err != nil {
		return err
	}
	if err := c.validateRasterizer(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind must be set")
	}
	if _, _, err := splitBind(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind: %w", err)
	}
	if strings.TrimSpace(c.Server.BaseURL) == "" {
		return errors.New("server.base_url must be set")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	return nil
}

func (c *Config) validateConverter() error {
	if strings.TrimSpace(c.Converter.Binary) == "" {
		return errors.New("converter.binary must be set")
	}
	if c.Converter.TimeoutSeconds <= 0 {
		return errors.New("converter.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRasterizer() error {
	if strings.TrimSpace(c.Rasterizer.Binary) == "" {
		return errors.New("rasterizer.binary must be set")
	}
	if c.Rasterizer.DPI <= 0 {
		return errors.New("rasterizer.dpi must be positive")
	}
	if c.Rasterizer.MaxDPI < c.Rasterizer.DPI {
		return errors.New("rasterizer.max_dpi must be at least rasterizer.dpi")
	}
	switch strings.ToLower(strings.TrimSpace(c.Rasterizer.Format)) {
	case "png", "jpg", "jpeg":
	default:
		return fmt.Errorf("rasterizer.format: unsupported value %q", c.Rasterizer.Format)
	}
	if c.Rasterizer.JPEGQuality < 1 || c.Rasterizer.JPEGQuality > 100 {
		return errors.New("rasterizer.jpeg_quality must be between 1 and 100")
	}
	if c.Rasterizer.TimeoutSeconds <= 0 {
		return errors.New("rasterizer.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Workers <= 0 {
		return errors.New("pipeline.workers must be positive")
	}
	return nil
}

func (c *Config) validateRetention() error {
	if !c.Retention.Enabled {
		return nil
	}
	if c.Retention.MaxAgeHours <= 0 {
		return errors.New("retention.max_age_hours must be positive when retention.enabled is true")
	}
	if c.Retention.SweepIntervalSeconds <= 0 {
		return errors.New("retention.sweep_interval_seconds must be positive when retention.enabled is true")
	}
	return nil
}
