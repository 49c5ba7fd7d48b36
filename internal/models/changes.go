package models

import "sort"

// Hunk is a contiguous changed line range within one file, as reported by
// the hosting provider's diff. Line numbers refer to the new side of the
// diff.
type Hunk struct {
	FilePath string    `json:"file_path"`
	Lines    LineRange `json:"lines"`
}

// ChangeSet is everything that changed in a subject since a given commit:
// the touched hunks plus any files removed outright.
type ChangeSet struct {
	Hunks        []Hunk   `json:"hunks"`
	DeletedFiles []string `json:"deleted_files,omitempty"`
}

// Empty reports whether the change-set carries no changes at all.
func (c ChangeSet) Empty() bool {
	return len(c.Hunks) == 0 && len(c.DeletedFiles) == 0
}

// Touches reports whether any hunk in the set overlaps the given location.
func (c ChangeSet) Touches(filePath string, lines LineRange) bool {
	for _, h := range c.Hunks {
		if h.FilePath == filePath && h.Lines.Overlaps(lines) {
			return true
		}
	}
	return false
}

// FileDeleted reports whether the file was removed in this change-set.
func (c ChangeSet) FileDeleted(filePath string) bool {
	for _, f := range c.DeletedFiles {
		if f == filePath {
			return true
		}
	}
	return false
}

// Files returns the sorted, de-duplicated set of file paths the change-set
// touches, deletions included.
func (c ChangeSet) Files() []string {
	seen := make(map[string]struct{})
	for _, h := range c.Hunks {
		seen[h.FilePath] = struct{}{}
	}
	for _, f := range c.DeletedFiles {
		seen[f] = struct{}{}
	}
	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}
