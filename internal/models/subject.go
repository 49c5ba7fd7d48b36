package models

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultProvider is assumed when a subject string omits the provider.
const DefaultProvider = "github"

// ReviewSubject identifies one reviewable change-set (e.g. a pull request).
// Immutable once created; used as the store lookup key.
type ReviewSubject struct {
	Provider   string `json:"provider" yaml:"provider"`
	Repository string `json:"repository" yaml:"repository"` // owner/name
	Number     int    `json:"subject_number" yaml:"subject_number"`
}

// Key returns the store lookup key: provider:repository:number.
func (s ReviewSubject) Key() string {
	return fmt.Sprintf("%s:%s:%d", s.Provider, s.Repository, s.Number)
}

// String renders the subject in the CLI form provider/owner/repo#number.
func (s ReviewSubject) String() string {
	return fmt.Sprintf("%s/%s#%d", s.Provider, s.Repository, s.Number)
}

// ParseSubject parses "provider/owner/repo#number" or "owner/repo#number"
// (provider defaults to github).
func ParseSubject(raw string) (ReviewSubject, error) {
	idx := strings.LastIndex(raw, "#")
	if idx < 0 {
		return ReviewSubject{}, fmt.Errorf("invalid subject %q: missing #number", raw)
	}

	number, err := strconv.Atoi(raw[idx+1:])
	if err != nil || number <= 0 {
		return ReviewSubject{}, fmt.Errorf("invalid subject %q: bad number", raw)
	}

	parts := strings.Split(strings.Trim(raw[:idx], "/"), "/")
	switch len(parts) {
	case 2:
		return ReviewSubject{Provider: DefaultProvider, Repository: parts[0] + "/" + parts[1], Number: number}, nil
	case 3:
		return ReviewSubject{Provider: parts[0], Repository: parts[1] + "/" + parts[2], Number: number}, nil
	default:
		return ReviewSubject{}, fmt.Errorf("invalid subject %q: want [provider/]owner/repo#number", raw)
	}
}
