package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrResource marks workspace or filesystem allocation failures.
	ErrResource = errors.New("resource error")
	// ErrTimeout marks an external tool exceeding its wall-clock budget.
	ErrTimeout = errors.New("timeout")
	// ErrConversionFailed marks document-to-PDF failures, including malformed input.
	ErrConversionFailed = errors.New("conversion failed")
	// ErrRasterizationFailed marks zero or inconsistent page output from the rasterizer.
	ErrRasterizationFailed = errors.New("rasterization failed")
	// ErrNotFound marks lookups for unknown identifiers.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks rejected client input (extension, size, parameters).
	ErrValidation = errors.New("validation error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrConversionFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to the taxonomy label reported on job views and API
// payloads. Unclassified errors report as conversion failures so no raw
// subprocess fault leaks upward unlabeled.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "ConversionTimeout"
	case errors.Is(err, ErrResource):
		return "ResourceError"
	case errors.Is(err, ErrRasterizationFailed):
		return "RasterizationFailed"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	default:
		return "ConversionFailed"
	}
}

// Detail returns the human-readable portion of a wrapped error, without the
// leading sentinel prefix.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, sentinel := range []error{ErrResource, ErrTimeout, ErrConversionFailed, ErrRasterizationFailed, ErrNotFound, ErrValidation} {
		prefix := sentinel.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
