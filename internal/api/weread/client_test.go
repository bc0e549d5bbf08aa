package weread

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "wr_vid=1; wr_skey=abc", 5*time.Second)
}

func TestGetHighlights(t *testing.T) {
	t.Parallel()

	var gotReferer, gotCookie, gotSynckey string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/web/book/bookmarks", r.URL.Path)
		gotReferer = r.Header.Get("Referer")
		gotCookie = r.Header.Get("Cookie")
		gotSynckey = r.URL.Query().Get("synckey")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"synckey": 1700000123,
			"updated": [
				{"bookmarkId": "h1", "chapterUid": 3, "markText": "第一段划线", "range": "10-20", "created": 1700000000}
			],
			"chapters": [{"chapterUid": 3, "title": "第三章"}]
		}`))
	}))

	data, err := client.GetHighlights(context.Background(), "b1", "0")
	require.NoError(t, err)

	assert.Contains(t, gotReferer, "/web/reader/b1")
	assert.Equal(t, "wr_vid=1; wr_skey=abc", gotCookie)
	assert.Equal(t, "0", gotSynckey)

	assert.Equal(t, "1700000123", string(data.Synckey))
	require.Len(t, data.Updated, 1)
	assert.Equal(t, "h1", data.Updated[0].BookmarkID)
	require.Len(t, data.Chapters, 1)
	assert.Equal(t, "第三章", data.Chapters[0].Title)
}

func TestGetThoughts(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/web/review/list", r.URL.Path)
		assert.Equal(t, "11", r.URL.Query().Get("listType"))
		assert.Equal(t, "1", r.URL.Query().Get("mine"))

		w.Write([]byte(`{
			"synckey": "55",
			"reviews": [
				{"reviewId": "r1", "review": {"content": "想法内容", "abstract": "原文", "createTime": 1700000000}}
			]
		}`))
	}))

	data, err := client.GetThoughts(context.Background(), "b1", "0")
	require.NoError(t, err)
	assert.Equal(t, "55", string(data.Synckey))
	require.Len(t, data.Reviews, 1)
	assert.Equal(t, "r1", data.Reviews[0].ReviewID)
}

func TestGetHighlightsLoginTimeout(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errCode": -2012, "errMsg": "login timeout"}`))
	}))

	_, err := client.GetHighlights(context.Background(), "b1", "0")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestGetHighlightsServerError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.GetHighlights(context.Background(), "b1", "0")
	assert.Error(t, err)
}

func TestGetBookInfoCaches(t *testing.T) {
	t.Parallel()

	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/web/book/info", r.URL.Path)
		w.Write([]byte(`{"bookId": "b1", "title": "测试之书", "author": "某人"}`))
	}))

	book, err := client.GetBookInfo(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "测试之书", book.Title)

	_, err = client.GetBookInfo(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
