// Package models contains the WeRead wire types and the normalized
// annotation types shared between the API clients and the sync core.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Book represents a book from the WeRead shelf or notebook listing.
// Only BookID is load-bearing for the sync; the rest is display metadata.
type Book struct {
	BookID        string `json:"bookId"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Cover         string `json:"cover"`
	Category      string `json:"category,omitempty"`
	FinishReading int    `json:"finishReading,omitempty"`

	// HasHighlights is set during shelf/notebook merge, not decoded
	HasHighlights bool `json:"-"`
}

// ReadingStatus returns the display label for the book's reading state
func (b Book) ReadingStatus() string {
	if b.FinishReading == 1 {
		return "✅已读"
	}
	return "📖在读"
}

// Synckey is the opaque stream cursor returned by WeRead. The wire value
// may be a JSON number or a string depending on the endpoint.
type Synckey string

// UnmarshalJSON accepts both string and numeric synckeys
func (s *Synckey) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Synckey(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("synckey is neither string nor number: %w", err)
	}
	*s = Synckey(num.String())
	return nil
}

// Timestamp holds a raw WeRead timestamp token. The platform is inconsistent
// about units (seconds vs milliseconds) and types (number vs string), so the
// literal is kept and interpreted during formatting.
type Timestamp string

// UnmarshalJSON accepts numbers, strings and null
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*t = Timestamp(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("timestamp is neither string nor number: %w", err)
	}
	*t = Timestamp(num.String())
	return nil
}

// Int64 parses the timestamp token, reporting whether it was numeric
func (t Timestamp) Int64() (int64, bool) {
	if t == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(string(t), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Chapter is a chapter metadata record embedded in the bookmarks response
type Chapter struct {
	ChapterUID int    `json:"chapterUid"`
	Title      string `json:"title"`
}

// RawHighlight is a single bookmark record from /web/book/bookmarks
type RawHighlight struct {
	BookmarkID   string    `json:"bookmarkId"`
	ChapterUID   int       `json:"chapterUid"`
	ChapterTitle string    `json:"chapterTitle"`
	MarkText     string    `json:"markText"`
	Range        string    `json:"range"`
	Created      Timestamp `json:"created"`
}

// HighlightsData is the raw bookmarks response for one book
type HighlightsData struct {
	Synckey  Synckey        `json:"synckey"`
	Updated  []RawHighlight `json:"updated"`
	Chapters []Chapter      `json:"chapters"`
	Book     *Book          `json:"book"`
}

// ReviewPayload is the nested review object inside a thought record
type ReviewPayload struct {
	Content      string    `json:"content"`
	Abstract     string    `json:"abstract"`
	ChapterName  string    `json:"chapterName"`
	ChapterTitle string    `json:"chapterTitle"`
	CreateTime   Timestamp `json:"createTime"`
}

// RawThought is a single review record from /web/review/list. The payload
// may live in the nested Review object or at the top level.
type RawThought struct {
	ReviewID     string         `json:"reviewId"`
	Review       *ReviewPayload `json:"review"`
	Content      string         `json:"content"`
	Abstract     string         `json:"abstract"`
	ChapterTitle string         `json:"chapterTitle"`
	CreateTime   Timestamp      `json:"createTime"`
}

// ThoughtsData is the raw review list response for one book
type ThoughtsData struct {
	Synckey Synckey      `json:"synckey"`
	Reviews []RawThought `json:"reviews"`
}

// FormattedHighlight is a normalized highlight ready for rendering
type FormattedHighlight struct {
	BookmarkID   string
	Text         string
	Range        string
	ChapterTitle string
	CreatedAt    string
}

// FormattedChapter groups normalized highlights under one chapter
type FormattedChapter struct {
	ChapterUID int
	Title      string
	Highlights []FormattedHighlight
}

// FormattedThought is a normalized margin note ready for rendering
type FormattedThought struct {
	ReviewID     string
	Content      string
	Abstract     string
	ChapterTitle string
	CreatedAt    string
}
