package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuyuan/weread-issue-sync/internal/models"
)

func TestFormatTimestampSecondsAndMilliseconds(t *testing.T) {
	t.Parallel()

	seconds := formatTimestamp(models.Timestamp("1700000000"))
	millis := formatTimestamp(models.Timestamp("1700000000000"))

	// Same instant regardless of unit
	assert.Equal(t, seconds, millis)
	assert.Equal(t, "2023/11/15 06:13:20", seconds)
}

func TestFormatTimestampUnparseable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, unknownTime, formatTimestamp(models.Timestamp("not-a-number")))
	assert.Equal(t, unknownTime, formatTimestamp(models.Timestamp("")))
	assert.Equal(t, unknownTime, formatTimestamp(models.Timestamp("0")))
}

func TestFormatHighlightsGroupsByChapter(t *testing.T) {
	t.Parallel()

	data := &models.HighlightsData{
		Synckey: "10",
		Chapters: []models.Chapter{
			{ChapterUID: 1, Title: "第一章"},
			{ChapterUID: 2, Title: "第二章"},
		},
		Updated: []models.RawHighlight{
			{BookmarkID: "h1", ChapterUID: 2, MarkText: "乙", Created: "1700000000"},
			{BookmarkID: "h2", ChapterUID: 1, MarkText: "甲", Created: "1700000100"},
			{BookmarkID: "h3", ChapterUID: 2, MarkText: "丙", Created: "1700000200"},
		},
	}

	chapters := formatHighlights(data)
	require.Len(t, chapters, 2)

	// First-seen bucket order, not chapter number order
	assert.Equal(t, "第二章", chapters[0].Title)
	require.Len(t, chapters[0].Highlights, 2)
	assert.Equal(t, "h1", chapters[0].Highlights[0].BookmarkID)
	assert.Equal(t, "h3", chapters[0].Highlights[1].BookmarkID)

	assert.Equal(t, "第一章", chapters[1].Title)
	require.Len(t, chapters[1].Highlights, 1)
}

func TestFormatHighlightsTitleResolution(t *testing.T) {
	t.Parallel()

	data := &models.HighlightsData{
		Chapters: []models.Chapter{{ChapterUID: 1, Title: "元数据标题"}},
		Updated: []models.RawHighlight{
			// Metadata map wins over the per-record title
			{BookmarkID: "h1", ChapterUID: 1, ChapterTitle: "记录内标题", MarkText: "a"},
			// No metadata: the per-record title is used
			{BookmarkID: "h2", ChapterUID: 2, ChapterTitle: "记录内标题", MarkText: "b"},
			// Nothing at all: synthesized label
			{BookmarkID: "h3", ChapterUID: 3, MarkText: "c"},
		},
	}

	chapters := formatHighlights(data)
	require.Len(t, chapters, 3)
	assert.Equal(t, "元数据标题", chapters[0].Title)
	assert.Equal(t, "记录内标题", chapters[1].Title)
	assert.Equal(t, "章节 3", chapters[2].Title)
}

func TestFormatHighlightsEmpty(t *testing.T) {
	t.Parallel()

	assert.Nil(t, formatHighlights(nil))
	assert.Nil(t, formatHighlights(&models.HighlightsData{}))
}

func TestFormatThoughtsNestedPayloadWins(t *testing.T) {
	t.Parallel()

	data := &models.ThoughtsData{
		Reviews: []models.RawThought{
			{
				ReviewID:   "r1",
				Content:    "顶层内容",
				CreateTime: "1700000000",
				Review: &models.ReviewPayload{
					Content:     "嵌套内容",
					Abstract:    "嵌套原文",
					ChapterName: "第五章",
					CreateTime:  "1700000100",
				},
			},
			{ReviewID: "r2", Content: "只有顶层"},
			// No content anywhere: silently skipped
			{ReviewID: "r3", Abstract: "只有原文"},
		},
	}

	thoughts := formatThoughts(data)
	require.Len(t, thoughts, 2)

	assert.Equal(t, "嵌套内容", thoughts[0].Content)
	assert.Equal(t, "嵌套原文", thoughts[0].Abstract)
	assert.Equal(t, "第五章", thoughts[0].ChapterTitle)

	assert.Equal(t, "只有顶层", thoughts[1].Content)
	assert.Equal(t, "未知章节", thoughts[1].ChapterTitle)
	assert.Equal(t, unknownTime, thoughts[1].CreatedAt)
}

func TestHighlightKeyFallback(t *testing.T) {
	t.Parallel()

	withID := models.FormattedHighlight{BookmarkID: "h1", Range: "12-34"}
	assert.Equal(t, "h1", highlightKey(withID))

	withoutID := models.FormattedHighlight{Range: "12-34"}
	assert.Equal(t, "range-12-34", highlightKey(withoutID))

	// The derived key is deterministic across calls
	assert.Equal(t, highlightKey(withoutID), highlightKey(withoutID))
}
