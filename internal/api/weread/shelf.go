package weread

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

// initialStateRe extracts the SPA bootstrap payload from the shelf page.
// The shelf has no JSON endpoint; the book list only exists inside this blob.
var initialStateRe = regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\});`)

// GetShelfBooks scrapes the full bookshelf from the shelf page HTML
func (c *Client) GetShelfBooks(ctx context.Context) ([]Book, error) {
	req, err := c.newRequest(ctx, c.baseURL+shelfPath, c.shelfProfile())
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return parseShelfHTML(body)
}

func parseShelfHTML(body []byte) ([]Book, error) {
	match := initialStateRe.FindSubmatch(body)
	if match == nil {
		return nil, fmt.Errorf("no __INITIAL_STATE__ payload found in shelf page")
	}

	var state struct {
		Shelf struct {
			BooksAndArchives []json.RawMessage `json:"booksAndArchives"`
		} `json:"shelf"`
	}
	if err := json.Unmarshal(match[1], &state); err != nil {
		return nil, fmt.Errorf("failed to parse __INITIAL_STATE__: %w", err)
	}

	var books []Book
	for _, raw := range state.Shelf.BooksAndArchives {
		var book Book
		if err := json.Unmarshal(raw, &book); err != nil {
			continue
		}
		// Archive folders appear alongside books and carry no bookId
		if book.BookID == "" {
			continue
		}
		books = append(books, book)
	}

	return books, nil
}

// GetNotebookBooks lists the books that carry notes. Notebook entries wrap
// the book object one level down.
func (c *Client) GetNotebookBooks(ctx context.Context) ([]Book, error) {
	var result struct {
		Books []struct {
			BookID string `json:"bookId"`
			Book   Book   `json:"book"`
		} `json:"books"`
	}

	if err := c.getJSON(ctx, c.baseURL+notebookPath, c.apiProfile(), &result); err != nil {
		return nil, err
	}

	books := make([]Book, 0, len(result.Books))
	for _, item := range result.Books {
		book := item.Book
		if book.BookID == "" {
			book.BookID = item.BookID
		}
		if book.BookID == "" {
			continue
		}
		book.HasHighlights = true
		books = append(books, book)
	}

	return books, nil
}

// MergeBooks combines the shelf listing with the notebook listing. Shelf
// metadata wins; notebook-only books are appended and flagged as having
// highlights. First-seen order is preserved.
func MergeBooks(shelfBooks, notebookBooks []Book) []Book {
	merged := make([]Book, 0, len(shelfBooks)+len(notebookBooks))
	index := make(map[string]int, len(shelfBooks))

	for _, book := range shelfBooks {
		index[book.BookID] = len(merged)
		merged = append(merged, book)
	}

	for _, book := range notebookBooks {
		if i, exists := index[book.BookID]; exists {
			merged[i].HasHighlights = true
			continue
		}
		book.HasHighlights = true
		index[book.BookID] = len(merged)
		merged = append(merged, book)
	}

	return merged
}

// NotedBooks keeps only the books flagged as carrying notes. Shelf-only
// books have nothing to sync and would just spend issue-API budget.
func NotedBooks(books []Book) []Book {
	noted := make([]Book, 0, len(books))
	for _, book := range books {
		if book.HasHighlights {
			noted = append(noted, book)
		}
	}
	return noted
}
