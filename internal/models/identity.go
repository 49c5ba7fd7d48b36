package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// AnchorHash hashes the code excerpt surrounding a finding into a stable
// anchor. Whitespace is normalized and blank lines dropped so that
// unrelated edits above the finding (which only shift line numbers) do not
// change the anchor. An empty snippet yields an empty anchor; callers fall
// back to the line range in that case.
func AnchorHash(snippet string) string {
	var parts []string
	for _, line := range strings.Split(snippet, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		parts = append(parts, strings.Join(fields, " "))
	}
	if len(parts) == 0 {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}

// NormalizeCategory canonicalizes a category string for identity purposes.
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	return strings.ReplaceAll(c, " ", "-")
}

// ComputeFindingID derives the stable finding id from file path, category,
// and stable anchor. When the anchor is empty the line range stands in,
// which degrades identity stability to that of the original location.
func ComputeFindingID(filePath, category, anchor string, lines LineRange) string {
	loc := anchor
	if loc == "" {
		loc = fmt.Sprintf("%d-%d", lines.Start, lines.End)
	}
	content := fmt.Sprintf("%s:%s:%s", filePath, NormalizeCategory(category), loc)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// ContentFingerprint hashes a finding's semantic payload. Two candidates
// with equal fingerprints carry the same message, fix, and severity, so a
// re-detection with an unchanged fingerprint refreshes nothing.
func ContentFingerprint(message, suggestedFix string, severity Severity) string {
	sum := sha256.Sum256([]byte(message + "\x00" + suggestedFix + "\x00" + string(severity)))
	return hex.EncodeToString(sum[:])[:16]
}
