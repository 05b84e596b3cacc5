package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"slidecast/internal/config"
)

// Requirement defines an external dependency slidecast relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ConverterName and RasterizerName are the stable tool keys used in health
// payloads.
const (
	ConverterName  = "converter"
	RasterizerName = "rasterizer"
)

// Requirements returns the external binaries the conversion pipeline needs.
func Requirements(cfg *config.Config) []Requirement {
	converter := "soffice"
	rasterizer := "pdftoppm"
	if cfg != nil {
		converter = cfg.Converter.Binary
		rasterizer = cfg.Rasterizer.Binary
	}
	return []Requirement{
		{
			Name:        ConverterName,
			Command:     converter,
			Description: "Renders presentations to PDF",
		},
		{
			Name:        RasterizerName,
			Command:     rasterizer,
			Description: "Rasterizes PDF pages to images",
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
// Lookups happen at call time so the health endpoint reflects the current
// state of the host, not a snapshot taken at startup.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
