package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/internal/analysis"
	"github.com/reviewloop/reviewloop/internal/models"
)

func TestBuildPrompt(t *testing.T) {
	req := analysis.Request{
		Subject:    models.ReviewSubject{Provider: "github", Repository: "acme/widgets", Number: 42},
		HeadCommit: "abc1234",
		Diff:       "--- a/x.py\n+++ b/x.py\n@@ -1 +1 @@\n-old\n+new\n",
		Files:      []string{"x.py"},
	}

	system, user := buildPrompt(req)

	assert.Contains(t, system, "JSON array")
	assert.Contains(t, system, `"snippet"`)
	assert.Contains(t, user, "github/acme/widgets#42")
	assert.Contains(t, user, "abc1234")
	assert.Contains(t, user, "Changed files: x.py")
	assert.True(t, strings.Contains(user, req.Diff), "diff must be embedded verbatim")
}

func TestParseCandidates(t *testing.T) {
	raw := `[
		{
			"file_path": "app/db.py",
			"line_range": {"start": 12, "end": 14},
			"category": "security",
			"severity": "error",
			"message": "SQL built by string concatenation",
			"suggested_fix": "use a parameterized query",
			"snippet": "cursor.execute(\"SELECT * FROM t WHERE id = \" + user_id)"
		}
	]`

	candidates, err := parseCandidates(raw)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, "app/db.py", c.FilePath)
	assert.Equal(t, models.LineRange{Start: 12, End: 14}, c.Lines)
	assert.Equal(t, "security", c.Category)
	assert.Equal(t, models.SeverityError, c.Severity)
	assert.Equal(t, "use a parameterized query", c.SuggestedFix)
	assert.NotEmpty(t, c.Snippet)
}

func TestParseCandidates_MarkdownFenced(t *testing.T) {
	raw := "```json\n[{\"file_path\": \"a.py\", \"line_range\": {\"start\": 1, \"end\": 1}, \"category\": \"style\", \"severity\": \"info\", \"message\": \"m\", \"suggested_fix\": \"\", \"snippet\": \"s\"}]\n```"

	candidates, err := parseCandidates(raw)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "a.py", candidates[0].FilePath)
}

func TestParseCandidates_EmptyArray(t *testing.T) {
	candidates, err := parseCandidates("[]")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestParseCandidates_InvalidJSON(t *testing.T) {
	_, err := parseCandidates("I found no issues in this diff.")
	assert.Error(t, err)
}
