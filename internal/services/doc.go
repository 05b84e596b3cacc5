// Package services holds the error taxonomy and context conventions shared
// by the external tool wrappers and the conversion pipeline.
package services
