// Package weread is an HTTP client for the WeRead web API. The endpoints are
// undocumented and fussy about headers, so each endpoint class uses a named
// request profile (header bundle) instead of ad hoc header maps.
package weread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shuyuan/weread-issue-sync/internal/cache"
	"github.com/shuyuan/weread-issue-sync/internal/logger"
	"github.com/shuyuan/weread-issue-sync/internal/models"
)

const (
	shelfPath      = "/web/shelf"
	notebookPath   = "/web/notebooks"
	bookmarksPath  = "/web/book/bookmarks"
	bookInfoPath   = "/web/book/info"
	reviewListPath = "/web/review/list"

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"

	// errCodeLoginTimeout is WeRead's "session expired" error code
	errCodeLoginTimeout = -2012

	bookInfoCacheTTL = 1 * time.Hour
)

// ErrNotLoggedIn is returned when WeRead reports an expired session
var ErrNotLoggedIn = errors.New("weread session expired or cookie invalid")

// Book is the listing entry shared with the rest of the application
type Book = models.Book

// requestProfile is a named header bundle for one endpoint class
type requestProfile struct {
	accept  string
	referer string
	origin  string
}

// Client is a client for the WeRead web API
type Client struct {
	baseURL       string
	cookie        string
	client        *http.Client
	logger        *logger.Logger
	bookInfoCache cache.Cache[string, models.Book]
}

// NewClient creates a new WeRead client authenticated with a browser cookie
func NewClient(baseURL, cookie string, timeout time.Duration) *Client {
	log := logger.Get().With(map[string]interface{}{
		"component": "weread_client",
	})

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		cookie:  cookie,
		client: &http.Client{
			Timeout: timeout,
		},
		logger:        log,
		bookInfoCache: cache.WithTTL(cache.NewMemoryCache[string, models.Book](log), bookInfoCacheTTL),
	}
}

// apiProfile covers the JSON endpoints (notebook, book info)
func (c *Client) apiProfile() requestProfile {
	return requestProfile{
		accept:  "application/json, text/plain, */*",
		referer: c.baseURL + "/",
		origin:  c.baseURL,
	}
}

// shelfProfile covers the HTML shelf page
func (c *Client) shelfProfile() requestProfile {
	return requestProfile{
		accept:  "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		referer: c.baseURL + "/",
		origin:  c.baseURL,
	}
}

// readerProfile covers the per-book reader endpoints (bookmarks, review
// list). The referer must point at the book's reader page.
func (c *Client) readerProfile(bookID string) requestProfile {
	return requestProfile{
		accept:  "application/json, text/plain, */*",
		referer: c.baseURL + "/web/reader/" + bookID,
		origin:  c.baseURL,
	}
}

func (c *Client) newRequest(ctx context.Context, rawURL string, profile requestProfile) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Cookie", c.cookie)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", profile.accept)
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Referer", profile.referer)
	req.Header.Set("Origin", profile.origin)

	return req, nil
}

// apiError is the envelope WeRead uses to report failures inside a 200
type apiError struct {
	ErrCode int    `json:"errCode"`
	ErrMsg  string `json:"errMsg"`
}

func (c *Client) getJSON(ctx context.Context, rawURL string, profile requestProfile, result interface{}) error {
	req, err := c.newRequest(ctx, rawURL, profile)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.ErrCode != 0 {
		if apiErr.ErrCode == errCodeLoginTimeout {
			return ErrNotLoggedIn
		}
		return fmt.Errorf("weread API error %d: %s", apiErr.ErrCode, apiErr.ErrMsg)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetHighlights fetches the bookmark stream for a book starting at synckey.
// The response carries the records added since that cursor, the chapter
// metadata for title resolution and the new cursor.
func (c *Client) GetHighlights(ctx context.Context, bookID, synckey string) (*models.HighlightsData, error) {
	log := c.logger.With(map[string]interface{}{
		"book_id": bookID,
		"stream":  "highlights",
	})

	u := fmt.Sprintf("%s%s?bookId=%s&synckey=%s",
		c.baseURL, bookmarksPath, url.QueryEscape(bookID), url.QueryEscape(synckey))

	var data models.HighlightsData
	if err := c.getJSON(ctx, u, c.readerProfile(bookID), &data); err != nil {
		log.Error("Failed to fetch highlights", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	log.Debug("Fetched highlights", map[string]interface{}{
		"count":   len(data.Updated),
		"synckey": string(data.Synckey),
	})
	return &data, nil
}

// GetThoughts fetches the review (margin note) stream for a book starting at
// synckey. Highlights and thoughts cursors are independent.
func (c *Client) GetThoughts(ctx context.Context, bookID, synckey string) (*models.ThoughtsData, error) {
	log := c.logger.With(map[string]interface{}{
		"book_id": bookID,
		"stream":  "thoughts",
	})

	u := fmt.Sprintf("%s%s?bookId=%s&listType=11&mine=1&synckey=%s",
		c.baseURL, reviewListPath, url.QueryEscape(bookID), url.QueryEscape(synckey))

	var data models.ThoughtsData
	if err := c.getJSON(ctx, u, c.readerProfile(bookID), &data); err != nil {
		log.Error("Failed to fetch thoughts", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	log.Debug("Fetched thoughts", map[string]interface{}{
		"count":   len(data.Reviews),
		"synckey": string(data.Synckey),
	})
	return &data, nil
}

// GetBookInfo fetches descriptive metadata for a book. Results are cached
// in-process since book metadata rarely changes within a run.
func (c *Client) GetBookInfo(ctx context.Context, bookID string) (*models.Book, error) {
	if book, ok := c.bookInfoCache.Get(bookID); ok {
		return &book, nil
	}

	u := fmt.Sprintf("%s%s?bookId=%s", c.baseURL, bookInfoPath, url.QueryEscape(bookID))

	var book models.Book
	if err := c.getJSON(ctx, u, c.apiProfile(), &book); err != nil {
		c.logger.Error("Failed to fetch book info", map[string]interface{}{
			"book_id": bookID,
			"error":   err.Error(),
		})
		return nil, err
	}
	if book.BookID == "" {
		book.BookID = bookID
	}

	c.bookInfoCache.Set(bookID, book, bookInfoCacheTTL)
	return &book, nil
}
