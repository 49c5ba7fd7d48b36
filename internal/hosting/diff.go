package hosting

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/reviewloop/reviewloop/internal/models"
)

// hunkHeader matches "@@ -a,b +c,d @@" (counts optional).
var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// ParseUnifiedDiff extracts the changed hunks and deleted files from a
// unified diff. Line numbers refer to the new side. This consumes the
// platform's precomputed diff; no diffing happens here.
func ParseUnifiedDiff(diff string) models.ChangeSet {
	var cs models.ChangeSet
	var file string
	var oldFile string

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "--- "):
			oldFile = strings.TrimPrefix(strings.TrimPrefix(line, "--- "), "a/")
		case strings.HasPrefix(line, "+++ "):
			name := strings.TrimPrefix(line, "+++ ")
			if name == "/dev/null" {
				// Old side named a file, new side is gone: deletion.
				if oldFile != "" && oldFile != "/dev/null" {
					cs.DeletedFiles = append(cs.DeletedFiles, oldFile)
				}
				file = ""
				continue
			}
			file = strings.TrimPrefix(name, "b/")
		case strings.HasPrefix(line, "@@"):
			if file == "" {
				continue
			}
			if h, ok := parseHunkHeader(line); ok {
				cs.Hunks = append(cs.Hunks, models.Hunk{FilePath: file, Lines: h})
			}
		}
	}
	return cs
}

// parseHunkHeader reads the new-side range out of a hunk header. A count
// of zero (pure deletion) still yields a one-line range so the deletion
// site counts as touched.
func parseHunkHeader(line string) (models.LineRange, bool) {
	m := hunkHeader.FindStringSubmatch(line)
	if m == nil {
		return models.LineRange{}, false
	}

	start, _ := strconv.Atoi(m[1])
	count := 1
	if m[2] != "" {
		count, _ = strconv.Atoi(m[2])
	}
	if start < 1 {
		start = 1
	}
	end := start + count - 1
	if end < start {
		end = start
	}
	return models.LineRange{Start: start, End: end}, true
}
