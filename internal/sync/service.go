package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shuyuan/weread-issue-sync/internal/api/github"
	"github.com/shuyuan/weread-issue-sync/internal/logger"
	"github.com/shuyuan/weread-issue-sync/internal/models"
	"github.com/shuyuan/weread-issue-sync/internal/sync/state"
)

// AnnotationSource fetches raw annotation streams from the reading platform
type AnnotationSource interface {
	GetHighlights(ctx context.Context, bookID, synckey string) (*models.HighlightsData, error)
	GetThoughts(ctx context.Context, bookID, synckey string) (*models.ThoughtsData, error)
	GetBookInfo(ctx context.Context, bookID string) (*models.Book, error)
}

// IssueStore persists book notes as issue documents
type IssueStore interface {
	FindIssueByBookID(ctx context.Context, bookID string) (*github.Issue, error)
	CreateIssueForBook(ctx context.Context, book models.Book) (*github.Issue, error)
	GetIssueBody(ctx context.Context, number int) (string, error)
	UpdateIssueBody(ctx context.Context, number int, body string) error
}

// Outcome is the terminal state of one book's sync pass
type Outcome int

const (
	// OutcomeSynced means new records were appended to the issue
	OutcomeSynced Outcome = iota
	// OutcomeNoChange means the pass completed with nothing new to append
	OutcomeNoChange
	// OutcomeSkipped means the issue could not be located, created or read;
	// the book is abandoned for this run
	OutcomeSkipped
)

// BookResult summarizes one book's sync pass
type BookResult struct {
	Outcome       Outcome
	IssueNumber   int
	NewHighlights int
	NewThoughts   int
}

// Summary aggregates a whole run
type Summary struct {
	Books         int
	Synced        int
	NoChange      int
	Skipped       int
	NewHighlights int
	NewThoughts   int
}

// Options configures a sync service
type Options struct {
	// DryRun computes diffs but performs no writes
	DryRun bool
	// FullResync disables the cursor fast-path so every book gets a full
	// marker-based pass
	FullResync bool
	// BookFilter keeps only books whose title or author contains the
	// filter, case-insensitively
	BookFilter string
	// BookLimit caps the number of books processed (0 for no limit)
	BookLimit int
	// BookDelay is the pause between books, to stay under the issue API's
	// request-rate ceiling
	BookDelay time.Duration
	// StatePath is where synckey cursors are persisted
	StatePath string
}

// Service runs the per-book upsert loop. Books are processed strictly
// sequentially: dedup correctness depends on reading an issue immediately
// before appending to it.
type Service struct {
	source AnnotationSource
	issues IssueStore
	state  *state.State
	opts   Options
	logger *logger.Logger
}

// NewService creates a sync service
func NewService(source AnnotationSource, issues IssueStore, st *state.State, opts Options) *Service {
	return &Service{
		source: source,
		issues: issues,
		state:  st,
		opts:   opts,
		logger: logger.Get().With(map[string]interface{}{
			"component": "sync_service",
		}),
	}
}

// Run processes all books sequentially, continuing past per-book failures
func (s *Service) Run(ctx context.Context, books []models.Book) (Summary, error) {
	books = s.selectBooks(books)

	summary := Summary{Books: len(books)}
	s.logger.Info("Starting sync run", map[string]interface{}{
		"books":       len(books),
		"dry_run":     s.opts.DryRun,
		"full_resync": s.opts.FullResync,
	})

	for i, book := range books {
		if i > 0 && s.opts.BookDelay > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(s.opts.BookDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result, err := s.SyncBook(ctx, book)
		if err != nil {
			s.logger.Error("Book sync failed, continuing with next book", map[string]interface{}{
				"book_id": book.BookID,
				"title":   book.Title,
				"error":   err.Error(),
			})
			summary.Skipped++
			continue
		}

		switch result.Outcome {
		case OutcomeSynced:
			summary.Synced++
			summary.NewHighlights += result.NewHighlights
			summary.NewThoughts += result.NewThoughts
		case OutcomeNoChange:
			summary.NoChange++
		case OutcomeSkipped:
			summary.Skipped++
		}
	}

	s.logger.Info("Sync run finished", map[string]interface{}{
		"books":          summary.Books,
		"synced":         summary.Synced,
		"no_change":      summary.NoChange,
		"skipped":        summary.Skipped,
		"new_highlights": summary.NewHighlights,
		"new_thoughts":   summary.NewThoughts,
	})
	return summary, nil
}

// selectBooks applies the book filter and limit
func (s *Service) selectBooks(books []models.Book) []models.Book {
	if s.opts.BookFilter != "" {
		filter := strings.ToLower(s.opts.BookFilter)
		var kept []models.Book
		for _, book := range books {
			if strings.Contains(strings.ToLower(book.Title), filter) ||
				strings.Contains(strings.ToLower(book.Author), filter) {
				kept = append(kept, book)
			}
		}
		books = kept
	}
	if s.opts.BookLimit > 0 && len(books) > s.opts.BookLimit {
		books = books[:s.opts.BookLimit]
	}
	return books
}

// SyncBook runs the upsert state machine for one book:
// locate issue → read body → full fetch → diff → render → create issue
// if this is the book's first record → append → persist cursors. An
// issue is only created once there is something to write into it, so a
// book without annotations never produces an empty issue.
func (s *Service) SyncBook(ctx context.Context, book models.Book) (BookResult, error) {
	log := s.logger.With(map[string]interface{}{
		"book_id": book.BookID,
		"title":   book.Title,
	})

	issue, err := s.issues.FindIssueByBookID(ctx, book.BookID)
	if err != nil && !errors.Is(err, github.ErrIssueNotFound) {
		log.Error("Failed to search for issue", map[string]interface{}{"error": err.Error()})
		return BookResult{Outcome: OutcomeSkipped}, nil
	}

	// Cursor fast-path: when the issue already exists and nothing moved on
	// either stream since the stored cursors, skip the full pass. The
	// cursors are a hint only; a full pass always re-checks the markers.
	if issue != nil && !s.opts.FullResync {
		if upToDate := s.probeStreams(ctx, book.BookID, log); upToDate {
			log.Debug("No remote updates since last cursor, skipping")
			return BookResult{Outcome: OutcomeNoChange, IssueNumber: issue.Number}, nil
		}
	}

	var body string
	if issue != nil {
		body, err = s.issues.GetIssueBody(ctx, issue.Number)
		if err != nil {
			log.Error("Failed to read issue body", map[string]interface{}{"error": err.Error()})
			return BookResult{Outcome: OutcomeSkipped}, nil
		}
	}

	synced := extractSyncedIDs(body)
	log.Debug("Parsed synced markers", map[string]interface{}{"count": len(synced)})

	// The dedup decision is made against the marker set, so the fetch
	// always requests the full remote history from a zero cursor.
	highlightsData, highlightsOK := s.fetchHighlights(ctx, book.BookID, state.ZeroSynckey, log)
	thoughtsData, thoughtsOK := s.fetchThoughts(ctx, book.BookID, state.ZeroSynckey, log)

	chapters := formatHighlights(highlightsData)
	thoughts := formatThoughts(thoughtsData)
	newChapters, newThoughts := filterNew(chapters, thoughts, synced, log)

	result := BookResult{
		NewThoughts: len(newThoughts),
	}
	if issue != nil {
		result.IssueNumber = issue.Number
	}
	for _, chapter := range newChapters {
		result.NewHighlights += len(chapter.Highlights)
	}

	if result.NewHighlights == 0 && result.NewThoughts == 0 {
		log.Info("No new notes")
		s.persistCursors(book.BookID, highlightsData, thoughtsData, highlightsOK, thoughtsOK, log)
		result.Outcome = OutcomeNoChange
		return result, nil
	}

	log.Info("Found new notes", map[string]interface{}{
		"new_highlights": result.NewHighlights,
		"new_thoughts":   result.NewThoughts,
	})

	if s.opts.DryRun {
		if issue == nil {
			log.Info("Dry run: would create issue for book")
		}
		log.Info("Dry run: skipping issue update")
		result.Outcome = OutcomeSynced
		return result, nil
	}

	if issue == nil {
		created, err := s.createIssue(ctx, book)
		if err != nil {
			log.Error("Failed to create issue", map[string]interface{}{"error": err.Error()})
			return BookResult{Outcome: OutcomeSkipped}, nil
		}
		issue = created
		result.IssueNumber = issue.Number
		body, err = s.issues.GetIssueBody(ctx, issue.Number)
		if err != nil {
			log.Error("Failed to read issue body", map[string]interface{}{"error": err.Error()})
			return BookResult{Outcome: OutcomeSkipped}, nil
		}
	}

	newBody := appendNotes(body, renderNotes(newChapters, newThoughts))
	if err := s.issues.UpdateIssueBody(ctx, issue.Number, newBody); err != nil {
		return result, fmt.Errorf("failed to update issue #%d: %w", issue.Number, err)
	}

	s.persistCursors(book.BookID, highlightsData, thoughtsData, highlightsOK, thoughtsOK, log)
	result.Outcome = OutcomeSynced
	return result, nil
}

// probeStreams asks both streams for updates past the stored cursors.
// It reports true only when both probes succeed and neither has news.
func (s *Service) probeStreams(ctx context.Context, bookID string, log *logger.Logger) bool {
	cursors := s.state.GetBook(bookID)

	highlightsData, err := s.source.GetHighlights(ctx, bookID, cursors.HighlightsSynckey)
	if err != nil {
		return false
	}
	if len(highlightsData.Updated) > 0 ||
		(string(highlightsData.Synckey) != "" && string(highlightsData.Synckey) != cursors.HighlightsSynckey) {
		return false
	}

	thoughtsData, err := s.source.GetThoughts(ctx, bookID, cursors.ThoughtsSynckey)
	if err != nil {
		return false
	}
	if len(thoughtsData.Reviews) > 0 ||
		(string(thoughtsData.Synckey) != "" && string(thoughtsData.Synckey) != cursors.ThoughtsSynckey) {
		return false
	}

	log.Debug("Both streams unchanged since stored cursors", map[string]interface{}{
		"highlights_synckey": cursors.HighlightsSynckey,
		"thoughts_synckey":   cursors.ThoughtsSynckey,
	})
	return true
}

// fetchHighlights degrades a failed stream to "no update" so the book can
// still proceed with whatever the other stream returned.
func (s *Service) fetchHighlights(ctx context.Context, bookID, synckey string, log *logger.Logger) (*models.HighlightsData, bool) {
	data, err := s.source.GetHighlights(ctx, bookID, synckey)
	if err != nil {
		log.Warn("Highlights fetch failed, treating stream as no update", map[string]interface{}{
			"stream": "highlights",
			"error":  err.Error(),
		})
		return nil, false
	}
	return data, true
}

func (s *Service) fetchThoughts(ctx context.Context, bookID, synckey string, log *logger.Logger) (*models.ThoughtsData, bool) {
	data, err := s.source.GetThoughts(ctx, bookID, synckey)
	if err != nil {
		log.Warn("Thoughts fetch failed, treating stream as no update", map[string]interface{}{
			"stream": "thoughts",
			"error":  err.Error(),
		})
		return nil, false
	}
	return data, true
}

// createIssue enriches the book with full metadata before creating its
// issue; the shelf listing is frequently missing author or category.
func (s *Service) createIssue(ctx context.Context, book models.Book) (*github.Issue, error) {
	if info, err := s.source.GetBookInfo(ctx, book.BookID); err == nil {
		if book.Title == "" {
			book.Title = info.Title
		}
		if book.Author == "" {
			book.Author = info.Author
		}
		if book.Cover == "" {
			book.Cover = info.Cover
		}
		if book.Category == "" {
			book.Category = info.Category
		}
	}
	return s.issues.CreateIssueForBook(ctx, book)
}

// persistCursors saves the synckeys returned by successful fetches. Failed
// streams keep their previous cursor so no records are skipped next run.
func (s *Service) persistCursors(bookID string, highlightsData *models.HighlightsData, thoughtsData *models.ThoughtsData, highlightsOK, thoughtsOK bool, log *logger.Logger) {
	if s.opts.DryRun {
		return
	}

	var hKey, tKey string
	if highlightsOK && highlightsData != nil {
		hKey = string(highlightsData.Synckey)
	}
	if thoughtsOK && thoughtsData != nil {
		tKey = string(thoughtsData.Synckey)
	}
	if hKey == "" && tKey == "" {
		return
	}

	s.state.UpdateBook(bookID, hKey, tKey)
	if err := s.state.Save(s.opts.StatePath); err != nil {
		// Losing a cursor only costs a wasted fetch next run; the markers
		// still prevent duplicates.
		log.Warn("Failed to save sync state", map[string]interface{}{"error": err.Error()})
	}
}
