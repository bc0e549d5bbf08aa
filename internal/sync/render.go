package sync

import (
	"strings"

	"github.com/shuyuan/weread-issue-sync/internal/models"
)

// quoteBlock renders text as a markdown blockquote, re-prefixing embedded
// newlines so a multi-line quote stays one block.
func quoteBlock(text string) string {
	return "> " + strings.ReplaceAll(text, "\n", "\n> ")
}

// renderNotes serializes new records as a markdown fragment. Each record is
// followed by its marker comment so later runs can recognize it. The
// fragment is append-safe: concatenating it to the existing body is the
// entire write operation. Chapters and thoughts keep their input order and
// are never interleaved.
func renderNotes(chapters []models.FormattedChapter, thoughts []models.FormattedThought) string {
	var b strings.Builder

	for _, chapter := range chapters {
		if len(chapter.Highlights) == 0 {
			continue
		}
		b.WriteString("### ")
		b.WriteString(chapter.Title)
		b.WriteString("\n\n")
		for _, h := range chapter.Highlights {
			b.WriteString(quoteBlock(h.Text))
			b.WriteString("\n")
			b.WriteString(highlightMarker(highlightKey(h)))
			b.WriteString("\n\n")
		}
	}

	if len(thoughts) > 0 {
		b.WriteString("## 随想笔记\n\n---\n\n")
		for _, t := range thoughts {
			if t.Abstract != "" {
				b.WriteString(quoteBlock(t.Abstract))
				b.WriteString("\n\n")
			}
			b.WriteString("**[随想]**: ")
			b.WriteString(t.Content)
			b.WriteString("\n")
			b.WriteString("*—— 记于 ")
			b.WriteString(t.CreatedAt)
			b.WriteString("*\n")
			b.WriteString(thoughtMarker(t.ReviewID))
			b.WriteString("\n\n---\n\n")
		}
	}

	return b.String()
}

// appendNotes attaches a rendered fragment to the end of an issue body with
// a single blank-line separator. Existing content is never rewritten.
func appendNotes(body, fragment string) string {
	if fragment == "" {
		return body
	}
	return strings.TrimSpace(body) + "\n\n" + fragment
}
