package sync

import (
	"fmt"
	"regexp"

	"github.com/shuyuan/weread-issue-sync/internal/logger"
	"github.com/shuyuan/weread-issue-sync/internal/models"
)

// markerRe matches the hidden marker comments the renderer embeds after each
// record. The captured group is the record's dedup key.
var markerRe = regexp.MustCompile(`<!--\s*(?:highlightId|thoughtId):\s*(\S+?)\s*-->`)

// highlightMarker returns the marker comment for a highlight dedup key
func highlightMarker(key string) string {
	return fmt.Sprintf("<!-- highlightId: %s -->", key)
}

// thoughtMarker returns the marker comment for a thought dedup key
func thoughtMarker(key string) string {
	return fmt.Sprintf("<!-- thoughtId: %s -->", key)
}

// extractSyncedIDs collects every record identifier already persisted in the
// document. The marker set is the sole dedup authority; synckeys are only a
// fetch optimization.
func extractSyncedIDs(body string) map[string]bool {
	synced := make(map[string]bool)
	for _, match := range markerRe.FindAllStringSubmatch(body, -1) {
		synced[match[1]] = true
	}
	return synced
}

// filterNew drops every record whose identifier is already present in the
// synced set. Chapters keep only their unsynced highlights; a chapter left
// empty is dropped so no bare heading is rendered. A thought without an
// identifier is treated as already synced: inserting it might duplicate it
// forever, losing it once is the lesser harm. Such drops are logged so the
// policy stays visible.
func filterNew(chapters []models.FormattedChapter, thoughts []models.FormattedThought, synced map[string]bool, log *logger.Logger) ([]models.FormattedChapter, []models.FormattedThought) {
	var newChapters []models.FormattedChapter
	for _, chapter := range chapters {
		var keep []models.FormattedHighlight
		for _, h := range chapter.Highlights {
			if !synced[highlightKey(h)] {
				keep = append(keep, h)
			}
		}
		if len(keep) == 0 {
			continue
		}
		chapter.Highlights = keep
		newChapters = append(newChapters, chapter)
	}

	var newThoughts []models.FormattedThought
	for _, thought := range thoughts {
		if thought.ReviewID == "" {
			log.Warn("Dropping thought without identifier", map[string]interface{}{
				"chapter": thought.ChapterTitle,
				"created": thought.CreatedAt,
			})
			continue
		}
		if synced[thought.ReviewID] {
			continue
		}
		newThoughts = append(newThoughts, thought)
	}

	return newChapters, newThoughts
}
