package helpers

import (
	"regexp"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// Markdown normalization for assistant chat output. The model tends to emit
// ordered lists with repeated or wrong numbers and headings glued to the
// surrounding text; the dashboard renders the normalized form.
// -----------------------------------------------------------------------------

var (
	orderedItemRe = regexp.MustCompile(`^(\s*)(\d+)\.\s+(.*)$`)
	headingRe     = regexp.MustCompile(`^#{1,6}\s`)
	manyBlanksRe  = regexp.MustCompile(`\n{3,}`)
	trailingWSRe  = regexp.MustCompile(`[ \t]+\n`)
)

// -----------------------------------------------------------------------------

// NormalizeMarkdown re-numbers ordered lists, pads headings with blank lines
// and collapses runs of blank lines.
func NormalizeMarkdown(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = trailingWSRe.ReplaceAllString(text, "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	counter := 0
	inList := false

	for _, line := range lines {
		if m := orderedItemRe.FindStringSubmatch(line); m != nil && len(m[1]) == 0 {
			// Top-level ordered item: renumber sequentially from 1.
			if !inList {
				counter = 0
				inList = true
			}
			counter++
			out = append(out, strconv.Itoa(counter)+". "+m[3])
			continue
		}

		// Blank lines (loose lists) and indented continuations keep the
		// list open; any other content closes it.
		if strings.TrimSpace(line) != "" && !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			inList = false
		}

		if headingRe.MatchString(line) {
			// Blank line before the heading unless it opens the document.
			if len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
				out = append(out, "")
			}
			out = append(out, line, "")
			continue
		}

		out = append(out, line)
	}

	result := strings.Join(out, "\n")
	result = manyBlanksRe.ReplaceAllString(result, "\n\n")
	return strings.TrimRight(result, "\n") + "\n"
}
