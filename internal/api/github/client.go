// Package github stores book notes as GitHub issues via the GraphQL v4 API.
// Each book maps to one issue, located by a bookId marker comment embedded
// in the issue body. Issues are never deleted or truncated.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	graphql "github.com/hasura/go-graphql-client"

	"github.com/shuyuan/weread-issue-sync/internal/cache"
	"github.com/shuyuan/weread-issue-sync/internal/logger"
	"github.com/shuyuan/weread-issue-sync/internal/models"
	"github.com/shuyuan/weread-issue-sync/internal/util"
)

const (
	// DefaultBaseURL is the GitHub GraphQL endpoint
	DefaultBaseURL = "https://api.github.com/graphql"

	issueNodeIDCacheTTL = 24 * time.Hour
)

// ErrIssueNotFound is returned when no issue carries the requested marker
var ErrIssueNotFound = errors.New("issue not found")

// DefaultLabels are applied to newly created book issues when they exist in
// the repository.
var DefaultLabels = []string{"weread", "reading-notes"}

// Issue is a handle to a GitHub issue: its human-facing number and the
// GraphQL node ID needed for mutations.
type Issue struct {
	Number int
	ID     string
}

// BookMarker returns the hidden comment that ties an issue to a book
func BookMarker(bookID string) string {
	return fmt.Sprintf("<!-- bookId: %s -->", bookID)
}

// headerAddingTransport adds the auth headers to every request
type headerAddingTransport struct {
	token string
	rt    http.RoundTripper
}

func (t *headerAddingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Content-Type", "application/json")
	return t.rt.RoundTrip(req)
}

// Client is a client for the GitHub issues API
type Client struct {
	owner       string
	repo        string
	gqlClient   *graphql.Client
	logger      *logger.Logger
	rateLimiter *util.RateLimiter

	repoID      string
	issueIDs    cache.Cache[int, string] // issue number -> node ID
	labelIDs    []string
	labelsReady bool
}

// ClientConfig holds the configuration for the GitHub client
type ClientConfig struct {
	BaseURL   string
	Token     string
	Owner     string
	Repo      string
	RateLimit time.Duration
	Burst     int
}

// NewClient creates a new GitHub client for one repository
func NewClient(cfg ClientConfig) *Client {
	log := logger.Get().With(map[string]interface{}{
		"component": "github_client",
		"repo":      cfg.Owner + "/" + cfg.Repo,
	})

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	authClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &headerAddingTransport{
			token: cfg.Token,
			rt:    http.DefaultTransport,
		},
	}

	return &Client{
		owner:       cfg.Owner,
		repo:        cfg.Repo,
		gqlClient:   graphql.NewClient(cfg.BaseURL, authClient),
		logger:      log,
		rateLimiter: util.NewRateLimiter(cfg.RateLimit, cfg.Burst),
		issueIDs:    cache.WithTTL(cache.NewMemoryCache[int, string](log), issueNodeIDCacheTTL),
	}
}

// exec runs one GraphQL operation through the rate limiter
func (c *Client) exec(ctx context.Context, query string, result interface{}, variables map[string]interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}
	if err := c.gqlClient.Exec(ctx, query, result, variables); err != nil {
		return fmt.Errorf("graphql request failed: %w", err)
	}
	return nil
}

// FindIssueByMarker searches the repository for an open or closed issue
// whose body contains the given marker comment.
func (c *Client) FindIssueByMarker(ctx context.Context, marker string) (*Issue, error) {
	const query = `query ($q: String!) {
		search(query: $q, type: ISSUE, first: 1) {
			nodes {
				... on Issue { id number }
			}
		}
	}`

	searchQuery := fmt.Sprintf(`repo:%s/%s is:issue in:body "%s"`, c.owner, c.repo, marker)

	var result struct {
		Search struct {
			Nodes []struct {
				ID     string `json:"id"`
				Number int    `json:"number"`
			} `json:"nodes"`
		} `json:"search"`
	}

	if err := c.exec(ctx, query, &result, map[string]interface{}{"q": searchQuery}); err != nil {
		return nil, err
	}

	for _, node := range result.Search.Nodes {
		if node.Number > 0 {
			c.issueIDs.Set(node.Number, node.ID, issueNodeIDCacheTTL)
			return &Issue{Number: node.Number, ID: node.ID}, nil
		}
	}
	return nil, ErrIssueNotFound
}

// FindIssueByBookID locates the issue that holds a book's notes
func (c *Client) FindIssueByBookID(ctx context.Context, bookID string) (*Issue, error) {
	return c.FindIssueByMarker(ctx, BookMarker(bookID))
}

// repositoryID resolves and caches the repository node ID
func (c *Client) repositoryID(ctx context.Context) (string, error) {
	if c.repoID != "" {
		return c.repoID, nil
	}

	const query = `query ($owner: String!, $name: String!) {
		repository(owner: $owner, name: $name) { id }
	}`

	var result struct {
		Repository struct {
			ID string `json:"id"`
		} `json:"repository"`
	}

	err := c.exec(ctx, query, &result, map[string]interface{}{
		"owner": c.owner,
		"name":  c.repo,
	})
	if err != nil {
		return "", err
	}
	if result.Repository.ID == "" {
		return "", fmt.Errorf("repository %s/%s not found", c.owner, c.repo)
	}

	c.repoID = result.Repository.ID
	return c.repoID, nil
}

// resolveLabelIDs looks up the default label IDs once. Missing labels are
// fine; labelling is cosmetic.
func (c *Client) resolveLabelIDs(ctx context.Context) []string {
	if c.labelsReady {
		return c.labelIDs
	}

	const query = `query ($owner: String!, $name: String!) {
		repository(owner: $owner, name: $name) {
			labels(first: 100) {
				nodes { id name }
			}
		}
	}`

	var result struct {
		Repository struct {
			Labels struct {
				Nodes []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"nodes"`
			} `json:"labels"`
		} `json:"repository"`
	}

	err := c.exec(ctx, query, &result, map[string]interface{}{
		"owner": c.owner,
		"name":  c.repo,
	})
	if err != nil {
		c.logger.Warn("Failed to resolve labels, creating issues unlabelled", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	wanted := make(map[string]bool, len(DefaultLabels))
	for _, name := range DefaultLabels {
		wanted[strings.ToLower(name)] = true
	}
	for _, node := range result.Repository.Labels.Nodes {
		if wanted[strings.ToLower(node.Name)] {
			c.labelIDs = append(c.labelIDs, node.ID)
		}
	}
	c.labelsReady = true
	return c.labelIDs
}

// CreateIssue creates a new issue and returns its handle
func (c *Client) CreateIssue(ctx context.Context, title, body string, withLabels bool) (*Issue, error) {
	repoID, err := c.repositoryID(ctx)
	if err != nil {
		return nil, err
	}

	input := map[string]interface{}{
		"repositoryId": repoID,
		"title":        title,
		"body":         body,
	}
	if withLabels {
		if labelIDs := c.resolveLabelIDs(ctx); len(labelIDs) > 0 {
			input["labelIds"] = labelIDs
		}
	}

	const mutation = `mutation ($input: CreateIssueInput!) {
		createIssue(input: $input) {
			issue { id number }
		}
	}`

	var result struct {
		CreateIssue struct {
			Issue struct {
				ID     string `json:"id"`
				Number int    `json:"number"`
			} `json:"issue"`
		} `json:"createIssue"`
	}

	if err := c.exec(ctx, mutation, &result, map[string]interface{}{"input": input}); err != nil {
		return nil, err
	}

	issue := result.CreateIssue.Issue
	if issue.Number == 0 {
		return nil, fmt.Errorf("createIssue returned no issue")
	}

	c.issueIDs.Set(issue.Number, issue.ID, issueNodeIDCacheTTL)
	c.logger.Info("Created issue", map[string]interface{}{
		"issue": issue.Number,
		"title": title,
	})
	return &Issue{Number: issue.Number, ID: issue.ID}, nil
}

// CreateIssueForBook creates the notes issue for a book, seeding the body
// with the cover card and the bookId marker the sync relies on.
func (c *Client) CreateIssueForBook(ctx context.Context, book models.Book) (*Issue, error) {
	title := fmt.Sprintf("📚 《%s》", book.Title)
	body := bookIssueBody(book)
	return c.CreateIssue(ctx, title, body, true)
}

func bookIssueBody(book models.Book) string {
	var b strings.Builder
	fmt.Fprintf(&b, "![封面](%s)\n\n", book.Cover)
	fmt.Fprintf(&b, "### 《%s》\n", book.Title)
	fmt.Fprintf(&b, "- **作者**: %s\n", book.Author)
	if book.Category != "" {
		fmt.Fprintf(&b, "- **分类**: %s\n", book.Category)
	}
	fmt.Fprintf(&b, "- **阅读状态**: %s\n", book.ReadingStatus())
	b.WriteString("\n---\n## 读书笔记\n\n")
	b.WriteString(BookMarker(book.BookID))
	b.WriteString("\n")
	return b.String()
}

// GetIssueBody fetches the current body of an issue
func (c *Client) GetIssueBody(ctx context.Context, number int) (string, error) {
	const query = `query ($owner: String!, $name: String!, $number: Int!) {
		repository(owner: $owner, name: $name) {
			issue(number: $number) { id body }
		}
	}`

	var result struct {
		Repository struct {
			Issue struct {
				ID   string `json:"id"`
				Body string `json:"body"`
			} `json:"issue"`
		} `json:"repository"`
	}

	err := c.exec(ctx, query, &result, map[string]interface{}{
		"owner":  c.owner,
		"name":   c.repo,
		"number": number,
	})
	if err != nil {
		return "", err
	}
	if result.Repository.Issue.ID == "" {
		return "", fmt.Errorf("issue #%d: %w", number, ErrIssueNotFound)
	}

	c.issueIDs.Set(number, result.Repository.Issue.ID, issueNodeIDCacheTTL)
	return result.Repository.Issue.Body, nil
}

// UpdateIssueBody replaces the full body of an issue
func (c *Client) UpdateIssueBody(ctx context.Context, number int, body string) error {
	nodeID, ok := c.issueIDs.Get(number)
	if !ok {
		// The node ID is learned as a side effect of reading the body
		if _, err := c.GetIssueBody(ctx, number); err != nil {
			return err
		}
		nodeID, _ = c.issueIDs.Get(number)
	}

	const mutation = `mutation ($input: UpdateIssueInput!) {
		updateIssue(input: $input) {
			issue { number }
		}
	}`

	var result struct {
		UpdateIssue struct {
			Issue struct {
				Number int `json:"number"`
			} `json:"issue"`
		} `json:"updateIssue"`
	}

	input := map[string]interface{}{
		"id":   nodeID,
		"body": body,
	}

	if err := c.exec(ctx, mutation, &result, map[string]interface{}{"input": input}); err != nil {
		return err
	}

	c.logger.Debug("Updated issue body", map[string]interface{}{
		"issue": number,
		"bytes": len(body),
	})
	return nil
}
