package models

import "time"

// SchemaVersion is the current persisted-record schema version. Records
// with an older version are migrated by the store before use.
const SchemaVersion = 2

// ReviewState is the persisted unit: everything known about one review
// subject across analysis passes. Mutated only by the lifecycle
// controller's merge protocol.
type ReviewState struct {
	Subject         ReviewSubject       `json:"subject"`
	Findings        map[string]*Finding `json:"findings"`
	ReviewedCommits []string            `json:"reviewed_commits"`
	LastReviewAt    *time.Time          `json:"last_review_at,omitempty"`
	Paused          bool                `json:"paused"`
	PauseUntil      *time.Time          `json:"pause_until,omitempty"`
	SchemaVersion   int                 `json:"schema_version"`
}

// NewReviewState returns an empty state for a subject that has never been
// reviewed.
func NewReviewState(subject ReviewSubject) *ReviewState {
	return &ReviewState{
		Subject:         subject,
		Findings:        make(map[string]*Finding),
		ReviewedCommits: []string{},
		SchemaVersion:   SchemaVersion,
	}
}

// AddReviewedCommit appends a commit ref, keeping the sequence append-only
// and duplicate-free. Returns false if the ref was already recorded.
func (s *ReviewState) AddReviewedCommit(ref string) bool {
	if ref == "" {
		return false
	}
	for _, c := range s.ReviewedCommits {
		if c == ref {
			return false
		}
	}
	s.ReviewedCommits = append(s.ReviewedCommits, ref)
	return true
}

// LastReviewedCommit returns the most recently incorporated commit ref, or
// "" for a fresh state.
func (s *ReviewState) LastReviewedCommit() string {
	if len(s.ReviewedCommits) == 0 {
		return ""
	}
	return s.ReviewedCommits[len(s.ReviewedCommits)-1]
}

// OpenFindings returns the findings still open.
func (s *ReviewState) OpenFindings() []*Finding {
	var open []*Finding
	for _, f := range s.Findings {
		if f.Status == StatusOpen {
			open = append(open, f)
		}
	}
	return open
}

// PauseElapsed reports whether a timed pause has run out. An indefinite
// pause (PauseUntil nil) never elapses on its own.
func (s *ReviewState) PauseElapsed(now time.Time) bool {
	return s.Paused && s.PauseUntil != nil && !now.Before(*s.PauseUntil)
}

// Clone returns a deep copy of the state.
func (s *ReviewState) Clone() *ReviewState {
	c := *s
	c.Findings = make(map[string]*Finding, len(s.Findings))
	for id, f := range s.Findings {
		c.Findings[id] = f.Clone()
	}
	c.ReviewedCommits = append([]string(nil), s.ReviewedCommits...)
	if s.LastReviewAt != nil {
		t := *s.LastReviewAt
		c.LastReviewAt = &t
	}
	if s.PauseUntil != nil {
		t := *s.PauseUntil
		c.PauseUntil = &t
	}
	return &c
}
