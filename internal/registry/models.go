package registry

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status represents the lifecycle of a conversion job.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusConverting  Status = "converting"
	StatusRasterizing Status = "rasterizing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// ShutdownReason is the error detail set when in-flight jobs are failed
// because the server is stopping.
const ShutdownReason = "server stopped"

var allStatuses = []Status{
	StatusQueued,
	StatusConverting,
	StatusRasterizing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// forwardTransitions lists every legal non-failure advance. Failure is legal
// from any non-terminal state; nothing leaves a terminal state.
var forwardTransitions = map[Status]Status{
	StatusQueued:      StatusConverting,
	StatusConverting:  StatusRasterizing,
	StatusRasterizing: StatusCompleted,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a job may move from one status to another.
// Statuses only advance forward; failed is reachable from any non-terminal
// state.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	return forwardTransitions[from] == to
}

// PageImage is one rendered page. Immutable once recorded on a job.
type PageImage struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Format   string `json:"format"`
	DPI      int    `json:"dpi"`
	Bytes    int64  `json:"bytes"`
}

// Job represents one end-to-end conversion request.
type Job struct {
	ID              string      `json:"id"`
	SourceFilename  string      `json:"source_filename"`
	DisplayTitle    string      `json:"display_title"`
	Status          Status      `json:"status"`
	PageCount       int         `json:"page_count"`
	Pages           []PageImage `json:"pages,omitempty"`
	ProgressPercent float64     `json:"progress_percent"`
	ProgressMessage string      `json:"progress_message,omitempty"`
	ErrorKind       string      `json:"error_kind,omitempty"`
	ErrorDetail     string      `json:"error_detail,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
}

// SetProgress updates the progress fields together.
func (j *Job) SetProgress(message string, percent float64) {
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetFailed marks the job as failed with the given taxonomy kind and detail.
func (j *Job) SetFailed(kind, detail string) {
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.ErrorKind = kind
	j.ErrorDetail = detail
	j.ProgressMessage = detail
	j.CompletedAt = &now
}

// Clone returns a deep copy so callers never share mutable state with the
// registry.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.Pages != nil {
		cp.Pages = make([]PageImage, len(j.Pages))
		copy(cp.Pages, j.Pages)
	}
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		cp.CompletedAt = &completed
	}
	return &cp
}

var titleCaser = cases.Title(language.English)

// TitleFromFilename derives a human-readable title from an uploaded filename:
// extension stripped, separators spaced, words title-cased.
func TitleFromFilename(name string) string {
	base := strings.TrimSpace(name)
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return "Untitled"
	}
	return titleCaser.String(base)
}
