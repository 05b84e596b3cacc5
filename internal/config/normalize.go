package config

import "strings"

// normalize expands filesystem paths and canonicalizes enum-like fields.
func (c *Config) normalize() error {
	var err error
	if c.Paths.WorkRoot, err = expandPath(c.Paths.WorkRoot); err != nil {
		return err
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.ProfileDir, err = expandPath(c.Paths.ProfileDir); err != nil {
		return err
	}
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return err
	}

	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")
	c.Converter.Binary = strings.TrimSpace(c.Converter.Binary)
	c.Rasterizer.Binary = strings.TrimSpace(c.Rasterizer.Binary)

	format := strings.ToLower(strings.TrimSpace(c.Rasterizer.Format))
	if format == "jpeg" {
		format = "jpg"
	}
	c.Rasterizer.Format = format

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
