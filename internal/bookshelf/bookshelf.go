// Package bookshelf renders the full WeRead shelf as a markdown gallery
// issue and, optionally, a static HTML page.
package bookshelf

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shuyuan/weread-issue-sync/internal/api/github"
	"github.com/shuyuan/weread-issue-sync/internal/logger"
	"github.com/shuyuan/weread-issue-sync/internal/models"
)

const (
	// Marker identifies the dedicated bookshelf issue in body searches
	Marker = "<!-- weread-bookshelf -->"

	issueTitle = "📚 我的微信读书书架"
	readerBase = "https://weread.qq.com/web/reader/"
)

func shanghaiLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// RenderMarkdown renders the shelf as a GitHub-flavored markdown table
func RenderMarkdown(books []models.Book) string {
	var b strings.Builder
	b.WriteString("| 封面 | 书名 | 作者 | 分类 | 阅读状态 |\n")
	b.WriteString("|:---:|:---|:---|:---|:---:|\n")

	for _, book := range books {
		author := book.Author
		if author == "" {
			author = "未知作者"
		}
		category := book.Category
		if category == "" {
			category = "无"
		}
		cover := fmt.Sprintf(`<a href="%s%s" target="_blank"><img src="%s" alt="%s" width="60" /></a>`,
			readerBase, book.BookID, book.Cover, book.Title)
		title := fmt.Sprintf("[《%s》](%s%s)", book.Title, readerBase, book.BookID)
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			cover, title, author, category, book.ReadingStatus())
	}

	return b.String()
}

// IssueBody builds the full bookshelf issue body: table, sync timestamp
// and the dedup marker.
func IssueBody(books []models.Book, generatedAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "共 %d 本书，同步于 %s。\n\n", len(books),
		generatedAt.In(shanghaiLocation()).Format("2006/01/02 15:04:05"))
	b.WriteString(RenderMarkdown(books))
	b.WriteString("\n" + Marker + "\n")
	return b.String()
}

// RenderHTML renders the shelf as a standalone gallery page
func RenderHTML(books []models.Book, generatedAt time.Time) string {
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html><html lang="zh-CN"><head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>我的微信读书书架</title>
<script src="https://cdn.tailwindcss.com"></script>
<link rel="preconnect" href="https://fonts.googleapis.com">
<link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
<link href="https://fonts.googleapis.com/css2?family=Noto+Sans+SC:wght@400;500;700&display=swap" rel="stylesheet">
<style>
body { font-family: 'Noto Sans SC', sans-serif; }
.book-cover { transition: transform 0.3s ease, box-shadow 0.3s ease; }
.book-cover:hover { transform: scale(1.05) translateY(-5px); box-shadow: 0 10px 20px rgba(0,0,0,0.2), 0 6px 6px rgba(0,0,0,0.23); }
</style>
</head>
<body class="bg-gray-100 dark:bg-gray-900 text-gray-900 dark:text-gray-100">
<div class="container mx-auto px-4 py-8">
<header class="text-center mb-12">
<h1 class="text-4xl font-bold">我的书架</h1>
`)
	fmt.Fprintf(&b, `<p class="text-gray-500 dark:text-gray-400 mt-2">共 %d 本书・同步于 %s</p>`,
		len(books), generatedAt.In(shanghaiLocation()).Format("2006/01/02 15:04:05"))
	b.WriteString("\n</header>\n")
	b.WriteString(`<main class="grid grid-cols-3 sm:grid-cols-4 md:grid-cols-5 lg:grid-cols-6 xl:grid-cols-8 gap-6 md:gap-8">` + "\n")

	for _, book := range books {
		badge := `<span class="absolute top-2 right-2 bg-blue-500 text-white text-xs font-semibold px-2 py-1 rounded-full shadow-md">在读</span>`
		if book.FinishReading == 1 {
			badge = `<span class="absolute top-2 right-2 bg-green-500 text-white text-xs font-semibold px-2 py-1 rounded-full shadow-md">已读</span>`
		}
		author := book.Author
		if author == "" {
			author = "未知作者"
		}
		title := html.EscapeString(book.Title)
		fmt.Fprintf(&b, `<div class="book-card flex flex-col items-center text-center group">
<div class="relative">
<a href="%s%s" target="_blank" rel="noopener noreferrer">
<img src="%s" alt="%s" class="book-cover w-32 h-48 lg:w-40 lg:h-60 object-cover rounded-md shadow-lg mb-3 bg-gray-200">
</a>
%s
</div>
<h3 class="text-sm font-bold text-gray-800 dark:text-gray-200 w-32 lg:w-40 truncate" title="%s">%s</h3>
<p class="text-xs text-gray-500 dark:text-gray-400 mt-1 w-32 lg:w-40 truncate" title="%s">%s</p>
<p class="text-xs text-gray-400 dark:text-gray-500 mt-1">%s</p>
</div>
`,
			readerBase, book.BookID, book.Cover, title, badge,
			title, title,
			html.EscapeString(author), html.EscapeString(author),
			html.EscapeString(book.Category))
	}

	b.WriteString(`</main>
<footer class="text-center mt-12 text-gray-400 dark:text-gray-500 text-sm">
<p>由 weread-issue-sync 自动生成</p>
</footer>
</div>
</body></html>
`)
	return b.String()
}

// WriteHTMLFile writes the gallery page to disk, creating parent
// directories as needed
func WriteHTMLFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write bookshelf page to %q: %w", path, err)
	}
	return nil
}

// IssueStore is the slice of the issue API the publisher needs
type IssueStore interface {
	FindIssueByMarker(ctx context.Context, marker string) (*github.Issue, error)
	CreateIssue(ctx context.Context, title, body string, withLabels bool) (*github.Issue, error)
	UpdateIssueBody(ctx context.Context, number int, body string) error
}

// Publisher upserts the bookshelf issue
type Publisher struct {
	issues IssueStore
	dryRun bool
	logger *logger.Logger
	now    func() time.Time
}

// NewPublisher creates a bookshelf publisher
func NewPublisher(issues IssueStore, dryRun bool) *Publisher {
	return &Publisher{
		issues: issues,
		dryRun: dryRun,
		logger: logger.Get().With(map[string]interface{}{
			"component": "bookshelf",
		}),
		now: time.Now,
	}
}

// Publish renders the shelf and writes it into the dedicated bookshelf
// issue, creating the issue on first run. The whole body is replaced each
// time; the shelf is a snapshot, not an append-only stream.
func (p *Publisher) Publish(ctx context.Context, books []models.Book) (*github.Issue, error) {
	body := IssueBody(books, p.now())

	issue, err := p.issues.FindIssueByMarker(ctx, Marker)
	if err != nil && !errors.Is(err, github.ErrIssueNotFound) {
		return nil, fmt.Errorf("failed to locate bookshelf issue: %w", err)
	}

	if p.dryRun {
		p.logger.Info("Dry run: skipping bookshelf issue update", map[string]interface{}{
			"books": len(books),
		})
		return issue, nil
	}

	if issue == nil {
		created, err := p.issues.CreateIssue(ctx, issueTitle, body, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create bookshelf issue: %w", err)
		}
		p.logger.Info("Created bookshelf issue", map[string]interface{}{
			"issue_number": created.Number,
			"books":        len(books),
		})
		return created, nil
	}

	if err := p.issues.UpdateIssueBody(ctx, issue.Number, body); err != nil {
		return nil, fmt.Errorf("failed to update bookshelf issue #%d: %w", issue.Number, err)
	}
	p.logger.Info("Updated bookshelf issue", map[string]interface{}{
		"issue_number": issue.Number,
		"books":        len(books),
	})
	return issue, nil
}
