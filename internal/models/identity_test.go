package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnchorHash_IgnoresWhitespace(t *testing.T) {
	a := AnchorHash("if err != nil {\n\treturn err\n}")
	b := AnchorHash("  if err != nil {\n\n\t\treturn   err\n  }\n")
	assert.Equal(t, a, b, "whitespace and blank lines should not change the anchor")
}

func TestAnchorHash_DistinguishesContent(t *testing.T) {
	a := AnchorHash("return err")
	b := AnchorHash("return nil")
	assert.NotEqual(t, a, b)
}

func TestAnchorHash_Empty(t *testing.T) {
	assert.Empty(t, AnchorHash(""))
	assert.Empty(t, AnchorHash("  \n\t\n"))
}

func TestComputeFindingID_StableAcrossLineShifts(t *testing.T) {
	anchor := AnchorHash("rows, err := db.Query(q)")

	// Same file, category, and anchor: the id must not move with the
	// line numbers.
	a := ComputeFindingID("db.go", "bug", anchor, LineRange{Start: 10, End: 12})
	b := ComputeFindingID("db.go", "bug", anchor, LineRange{Start: 40, End: 42})
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestComputeFindingID_CategoryNormalized(t *testing.T) {
	anchor := AnchorHash("x := y")
	a := ComputeFindingID("a.go", "Security", anchor, LineRange{})
	b := ComputeFindingID("a.go", "security", anchor, LineRange{})
	assert.Equal(t, a, b)
}

func TestComputeFindingID_FallsBackToLines(t *testing.T) {
	a := ComputeFindingID("a.go", "bug", "", LineRange{Start: 1, End: 2})
	b := ComputeFindingID("a.go", "bug", "", LineRange{Start: 3, End: 4})
	assert.NotEqual(t, a, b, "without an anchor the line range is the identity")
}

func TestComputeFindingID_DiffersByFileAndCategory(t *testing.T) {
	anchor := AnchorHash("x := y")
	base := ComputeFindingID("a.go", "bug", anchor, LineRange{})
	assert.NotEqual(t, base, ComputeFindingID("b.go", "bug", anchor, LineRange{}))
	assert.NotEqual(t, base, ComputeFindingID("a.go", "style", anchor, LineRange{}))
}

func TestContentFingerprint(t *testing.T) {
	a := ContentFingerprint("msg", "fix", SeverityWarning)
	assert.Equal(t, a, ContentFingerprint("msg", "fix", SeverityWarning))
	assert.NotEqual(t, a, ContentFingerprint("other", "fix", SeverityWarning))
	assert.NotEqual(t, a, ContentFingerprint("msg", "other", SeverityWarning))
	assert.NotEqual(t, a, ContentFingerprint("msg", "fix", SeverityError))
}
