package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMarkdownRenumbersOrderedLists(t *testing.T) {
	in := "1. first\n1. second\n7. third\n"
	want := "1. first\n2. second\n3. third\n"
	assert.Equal(t, want, NormalizeMarkdown(in))
}

func TestNormalizeMarkdownRestartsCounterPerList(t *testing.T) {
	in := "1. a\n2. b\n\nparagraph\n\n5. x\n9. y\n"
	out := NormalizeMarkdown(in)
	assert.Contains(t, out, "1. x\n2. y")
	assert.Contains(t, out, "1. a\n2. b")
}

func TestNormalizeMarkdownPadsHeadings(t *testing.T) {
	in := "intro text\n## Section\nbody\n"
	want := "intro text\n\n## Section\n\nbody\n"
	assert.Equal(t, want, NormalizeMarkdown(in))
}

func TestNormalizeMarkdownCollapsesBlankRuns(t *testing.T) {
	in := "a\n\n\n\n\nb\n"
	assert.Equal(t, "a\n\nb\n", NormalizeMarkdown(in))
}

func TestNormalizeMarkdownKeepsNestedNumbering(t *testing.T) {
	// Indented items are left alone; only top-level lists are renumbered.
	in := "1. outer\n   1. inner\n9. outer two\n"
	out := NormalizeMarkdown(in)
	assert.Contains(t, out, "   1. inner")
	assert.Contains(t, out, "2. outer two")
}

func TestNormalizeMarkdownCRLFAndTrailingSpace(t *testing.T) {
	in := "line one  \r\nline two\r\n"
	assert.Equal(t, "line one\nline two\n", NormalizeMarkdown(in))
}
