package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuyuan/weread-issue-sync/internal/models"
)

// gqlRequest is the wire shape of one GraphQL call
type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// fakeGitHub answers GraphQL operations by dispatching on the query text
type fakeGitHub struct {
	t        *testing.T
	requests []gqlRequest
	handler  func(req gqlRequest) interface{}
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req gqlRequest
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
	f.requests = append(f.requests, req)

	data := f.handler(req)
	w.Header().Set("Content-Type", "application/json")
	require.NoError(f.t, json.NewEncoder(w).Encode(map[string]interface{}{"data": data}))
}

func newTestClient(t *testing.T, handler func(req gqlRequest) interface{}) (*Client, *fakeGitHub) {
	t.Helper()
	fake := &fakeGitHub{t: t, handler: handler}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		BaseURL:   server.URL,
		Token:     "ghp_test",
		Owner:     "alice",
		Repo:      "reading-notes",
		RateLimit: time.Millisecond,
		Burst:     100,
	})
	return client, fake
}

func TestFindIssueByBookID(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t, func(req gqlRequest) interface{} {
		require.Contains(t, req.Query, "search(")
		q := req.Variables["q"].(string)
		assert.Contains(t, q, `repo:alice/reading-notes`)
		assert.Contains(t, q, `<!-- bookId: b1 -->`)

		return map[string]interface{}{
			"search": map[string]interface{}{
				"nodes": []map[string]interface{}{
					{"id": "I_node1", "number": 12},
				},
			},
		}
	})

	issue, err := client.FindIssueByBookID(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 12, issue.Number)
	assert.Equal(t, "I_node1", issue.ID)
	assert.Len(t, fake.requests, 1)
}

func TestFindIssueByMarkerNotFound(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(req gqlRequest) interface{} {
		return map[string]interface{}{
			"search": map[string]interface{}{"nodes": []map[string]interface{}{}},
		}
	})

	_, err := client.FindIssueByMarker(context.Background(), "<!-- bookId: missing -->")
	assert.ErrorIs(t, err, ErrIssueNotFound)
}

func TestCreateIssueForBook(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t, func(req gqlRequest) interface{} {
		switch {
		case strings.Contains(req.Query, "repository(owner:") && strings.Contains(req.Query, "labels("):
			return map[string]interface{}{
				"repository": map[string]interface{}{
					"labels": map[string]interface{}{
						"nodes": []map[string]interface{}{
							{"id": "L_1", "name": "weread"},
						},
					},
				},
			}
		case strings.Contains(req.Query, "repository(owner:"):
			return map[string]interface{}{
				"repository": map[string]interface{}{"id": "R_repo"},
			}
		case strings.Contains(req.Query, "createIssue"):
			input := req.Variables["input"].(map[string]interface{})
			assert.Equal(t, "R_repo", input["repositoryId"])
			assert.Equal(t, "📚 《测试之书》", input["title"])
			body := input["body"].(string)
			assert.Contains(t, body, "<!-- bookId: b1 -->")
			assert.Contains(t, body, "**作者**: 某人")
			return map[string]interface{}{
				"createIssue": map[string]interface{}{
					"issue": map[string]interface{}{"id": "I_new", "number": 7},
				},
			}
		default:
			t.Fatalf("unexpected query: %s", req.Query)
			return nil
		}
	})

	issue, err := client.CreateIssueForBook(context.Background(), models.Book{
		BookID: "b1",
		Title:  "测试之书",
		Author: "某人",
		Cover:  "https://c/1.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, issue.Number)
	// repository ID + labels + createIssue
	assert.Len(t, fake.requests, 3)
}

func TestGetIssueBodyAndUpdate(t *testing.T) {
	t.Parallel()

	var updatedBody string
	client, _ := newTestClient(t, func(req gqlRequest) interface{} {
		switch {
		case strings.Contains(req.Query, "issue(number:"):
			return map[string]interface{}{
				"repository": map[string]interface{}{
					"issue": map[string]interface{}{"id": "I_42", "body": "current body"},
				},
			}
		case strings.Contains(req.Query, "updateIssue"):
			input := req.Variables["input"].(map[string]interface{})
			assert.Equal(t, "I_42", input["id"])
			updatedBody = input["body"].(string)
			return map[string]interface{}{
				"updateIssue": map[string]interface{}{
					"issue": map[string]interface{}{"number": 42},
				},
			}
		default:
			t.Fatalf("unexpected query: %s", req.Query)
			return nil
		}
	})

	body, err := client.GetIssueBody(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "current body", body)

	// The node ID learned above is reused; no extra read happens
	require.NoError(t, client.UpdateIssueBody(context.Background(), 42, "current body\n\nnew notes"))
	assert.Equal(t, "current body\n\nnew notes", updatedBody)
}

func TestGetIssueBodyNotFound(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(req gqlRequest) interface{} {
		return map[string]interface{}{
			"repository": map[string]interface{}{
				"issue": map[string]interface{}{"id": "", "body": ""},
			},
		}
	})

	_, err := client.GetIssueBody(context.Background(), 99)
	assert.ErrorIs(t, err, ErrIssueNotFound)
}

func TestBookMarker(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "<!-- bookId: abc123 -->", BookMarker("abc123"))
}

func TestAuthHeaderIsSent(t *testing.T) {
	t.Parallel()

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"data":{"repository":{"id":"R_x"}}}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		BaseURL: server.URL,
		Token:   "ghp_secret",
		Owner:   "alice",
		Repo:    "notes",
	})

	_, err := client.repositoryID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer ghp_secret", gotAuth)
}
