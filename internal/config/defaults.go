package config

import "runtime"

const (
	defaultWorkRoot             = "~/.local/share/slidecast/work"
	defaultOutputDir            = "~/.local/share/slidecast/output"
	defaultLogDir               = "~/.local/share/slidecast/logs"
	defaultProfileDir           = "~/.local/share/slidecast/profile"
	defaultHistoryPath          = "~/.local/share/slidecast/history.db"
	defaultBind                 = "0.0.0.0:4000"
	defaultBaseURL              = "http://localhost:4000"
	defaultMaxUploadMB          = 100
	defaultConverterBinary      = "soffice"
	defaultConvertTimeout       = 120
	defaultRasterizerBinary     = "pdftoppm"
	defaultDPI                  = 150
	defaultMaxDPI               = 600
	defaultFormat               = "png"
	defaultJPEGQuality          = 95
	defaultRasterTimeout        = 180
	defaultRetentionMaxAgeHours = 24
	defaultSweepInterval        = 300
	defaultLogFormat            = ""
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkRoot:   defaultWorkRoot,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			ProfileDir: defaultProfileDir,
		},
		Server: Server{
			Bind:        defaultBind,
			BaseURL:     defaultBaseURL,
			MaxUploadMB: defaultMaxUploadMB,
		},
		Converter: Converter{
			Binary:         defaultConverterBinary,
			TimeoutSeconds: defaultConvertTimeout,
		},
		Rasterizer: Rasterizer{
			Binary:         defaultRasterizerBinary,
			DPI:            defaultDPI,
			MaxDPI:         defaultMaxDPI,
			Format:         defaultFormat,
			JPEGQuality:    defaultJPEGQuality,
			TimeoutSeconds: defaultRasterTimeout,
		},
		Pipeline: Pipeline{
			Workers: runtime.NumCPU(),
		},
		Retention: Retention{
			MaxAgeHours:          defaultRetentionMaxAgeHours,
			SweepIntervalSeconds: defaultSweepInterval,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
