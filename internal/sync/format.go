// Package sync implements the incremental note synchronization core: it
// normalizes raw WeRead annotation streams, deduplicates them against marker
// comments embedded in each book's GitHub issue, renders the genuinely new
// records as markdown and appends them to the issue.
package sync

import (
	"strconv"
	"time"

	"github.com/shuyuan/weread-issue-sync/internal/models"
)

// unknownTime is the sentinel rendered when a record carries no usable
// timestamp. Matches the strings WeRead itself shows.
const unknownTime = "未知时间"

// msThreshold separates second-resolution from millisecond-resolution
// timestamps: anything above it cannot be a plausible seconds value.
const msThreshold = 9999999999

// noteLocation formats rendered timestamps. WeRead is a Chinese platform;
// notes keep Chinese local time regardless of where the sync runs.
var noteLocation = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Shanghai"); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*60*60)
}()

// formatTimestamp renders a raw timestamp token as a local time string,
// auto-detecting seconds vs milliseconds. Anything unparseable or zero
// becomes the unknown-time sentinel rather than an error.
func formatTimestamp(ts models.Timestamp) string {
	v, ok := ts.Int64()
	if !ok || v == 0 {
		return unknownTime
	}

	var t time.Time
	if v > msThreshold {
		t = time.UnixMilli(v)
	} else {
		t = time.Unix(v, 0)
	}
	return t.In(noteLocation).Format("2006/01/02 15:04:05")
}

// synthesizedChapterTitle labels a chapter whose title could not be resolved
func synthesizedChapterTitle(chapterUID int) string {
	return "章节 " + strconv.Itoa(chapterUID)
}

// formatHighlights normalizes a raw bookmarks response into chapters of
// highlights. Bucketing preserves first-seen chapter order; titles resolve
// chapter metadata first, then any per-record title, then a synthesized
// label.
func formatHighlights(data *models.HighlightsData) []models.FormattedChapter {
	if data == nil || len(data.Updated) == 0 {
		return nil
	}

	titleByUID := make(map[int]string, len(data.Chapters))
	for _, chapter := range data.Chapters {
		titleByUID[chapter.ChapterUID] = chapter.Title
	}

	resolveTitle := func(h models.RawHighlight) string {
		if title, ok := titleByUID[h.ChapterUID]; ok && title != "" {
			return title
		}
		if h.ChapterTitle != "" {
			return h.ChapterTitle
		}
		return synthesizedChapterTitle(h.ChapterUID)
	}

	var order []int
	byUID := make(map[int]*models.FormattedChapter)

	for _, raw := range data.Updated {
		chapter, seen := byUID[raw.ChapterUID]
		if !seen {
			chapter = &models.FormattedChapter{
				ChapterUID: raw.ChapterUID,
				Title:      resolveTitle(raw),
			}
			byUID[raw.ChapterUID] = chapter
			order = append(order, raw.ChapterUID)
		}

		chapter.Highlights = append(chapter.Highlights, models.FormattedHighlight{
			BookmarkID:   raw.BookmarkID,
			Text:         raw.MarkText,
			Range:        raw.Range,
			ChapterTitle: chapter.Title,
			CreatedAt:    formatTimestamp(raw.Created),
		})
	}

	chapters := make([]models.FormattedChapter, 0, len(order))
	for _, uid := range order {
		chapters = append(chapters, *byUID[uid])
	}
	return chapters
}

// formatThoughts normalizes a raw review list. A thought's payload may live
// in the nested review object or at the top level; the nested location wins.
// Records with no content in either place are dropped.
func formatThoughts(data *models.ThoughtsData) []models.FormattedThought {
	if data == nil || len(data.Reviews) == 0 {
		return nil
	}

	thoughts := make([]models.FormattedThought, 0, len(data.Reviews))
	for _, raw := range data.Reviews {
		var nested models.ReviewPayload
		if raw.Review != nil {
			nested = *raw.Review
		}

		content := firstNonEmpty(nested.Content, raw.Content)
		if content == "" {
			continue
		}

		createTime := nested.CreateTime
		if createTime == "" {
			createTime = raw.CreateTime
		}

		thoughts = append(thoughts, models.FormattedThought{
			ReviewID:     raw.ReviewID,
			Content:      content,
			Abstract:     firstNonEmpty(nested.Abstract, raw.Abstract),
			ChapterTitle: firstNonEmpty(nested.ChapterName, nested.ChapterTitle, raw.ChapterTitle, "未知章节"),
			CreatedAt:    formatTimestamp(createTime),
		})
	}
	return thoughts
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// highlightKey returns the dedup key for a highlight: the native bookmark ID
// when present, otherwise a deterministic key derived from the quoted range.
// The renderer and the dedup engine must agree on this byte for byte.
func highlightKey(h models.FormattedHighlight) string {
	if h.BookmarkID != "" {
		return h.BookmarkID
	}
	return "range-" + h.Range
}
