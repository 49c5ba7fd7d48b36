package models

import "time"

// FindingStatus represents the lifecycle state of a finding.
type FindingStatus string

const (
	StatusOpen        FindingStatus = "open"
	StatusResolved    FindingStatus = "resolved"
	StatusInvalidated FindingStatus = "invalidated"
	StatusDismissed   FindingStatus = "dismissed"
)

// Terminal reports whether the status is a terminal state.
func (s FindingStatus) Terminal() bool {
	return s == StatusResolved || s == StatusInvalidated || s == StatusDismissed
}

// Severity classifies how serious a finding is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// LineRange is a 1-indexed, inclusive span of lines within one file.
type LineRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Overlaps reports whether two ranges share at least one line.
func (r LineRange) Overlaps(o LineRange) bool {
	return r.Start <= o.End && o.Start <= r.End
}

// Contains reports whether o falls entirely within r.
func (r LineRange) Contains(o LineRange) bool {
	return r.Start <= o.Start && o.End <= r.End
}

// Finding is one discrete review issue tracked across analysis passes.
// The ID is derived from location and anchored content and never changes
// after creation; exactly one Finding per ID exists in a ReviewState.
type Finding struct {
	ID                 string        `json:"id" yaml:"id"`
	FilePath           string        `json:"file_path" yaml:"file_path"`
	Lines              LineRange     `json:"line_range" yaml:"line_range"`
	Category           string        `json:"category" yaml:"category"`
	Severity           Severity      `json:"severity" yaml:"severity"`
	Message            string        `json:"message" yaml:"message"`
	SuggestedFix       string        `json:"suggested_fix,omitempty" yaml:"suggested_fix,omitempty"`
	Status             FindingStatus `json:"status" yaml:"status"`
	ContentFingerprint string        `json:"content_fingerprint" yaml:"content_fingerprint"`
	FirstSeenCommit    string        `json:"first_seen_commit" yaml:"first_seen_commit"`
	LastSeenCommit     string        `json:"last_seen_commit" yaml:"last_seen_commit"`
	CreatedAt          time.Time     `json:"created_at" yaml:"created_at"`
	ResolvedAt         *time.Time    `json:"resolved_at,omitempty" yaml:"resolved_at,omitempty"`
}

// MarkResolved transitions the finding to resolved at the given time.
func (f *Finding) MarkResolved(now time.Time) {
	f.Status = StatusResolved
	f.ResolvedAt = &now
}

// MarkInvalidated transitions the finding to invalidated: its location
// vanished rather than the issue being fixed.
func (f *Finding) MarkInvalidated(now time.Time) {
	f.Status = StatusInvalidated
	f.ResolvedAt = &now
}

// MarkDismissed records a human dismissal. Dismissed findings are never
// auto-reopened.
func (f *Finding) MarkDismissed(now time.Time) {
	f.Status = StatusDismissed
	f.ResolvedAt = &now
}

// Clone returns a deep copy of the finding.
func (f *Finding) Clone() *Finding {
	c := *f
	if f.ResolvedAt != nil {
		t := *f.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}
