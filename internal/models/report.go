package models

import "time"

// SummaryCounts aggregates findings by status and, for open findings, by
// severity.
type SummaryCounts struct {
	Open        int `json:"open" yaml:"open"`
	Resolved    int `json:"resolved" yaml:"resolved"`
	Invalidated int `json:"invalidated" yaml:"invalidated"`
	Dismissed   int `json:"dismissed" yaml:"dismissed"`
	Errors      int `json:"errors" yaml:"errors"`
	Warnings    int `json:"warnings" yaml:"warnings"`
	Infos       int `json:"infos" yaml:"infos"`
}

// ResolvedEntry is the collapsed view of a finding that reached a terminal
// status.
type ResolvedEntry struct {
	ID         string        `json:"id" yaml:"id"`
	FilePath   string        `json:"file_path" yaml:"file_path"`
	Lines      LineRange     `json:"line_range" yaml:"line_range"`
	Category   string        `json:"category" yaml:"category"`
	Status     FindingStatus `json:"status" yaml:"status"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty" yaml:"resolved_at,omitempty"`
}

// Report is the published projection of one ReviewState: summary, sorted
// active findings, collapsed terminal findings. Identical states project
// to identical reports so the publisher can skip redundant updates.
type Report struct {
	Subject     ReviewSubject   `json:"subject" yaml:"subject"`
	Summary     SummaryCounts   `json:"summary" yaml:"summary"`
	Active      []Finding       `json:"active_findings" yaml:"active_findings"`
	Resolved    []ResolvedEntry `json:"resolved_findings" yaml:"resolved_findings"`
	Commits     int             `json:"reviewed_commits" yaml:"reviewed_commits"`
	LastUpdated *time.Time      `json:"last_updated,omitempty" yaml:"last_updated,omitempty"`
}
