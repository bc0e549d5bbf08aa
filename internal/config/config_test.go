package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("WEREAD_COOKIE", "wr_vid=1; wr_skey=abc")
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("GITHUB_REPO_OWNER", "alice")
	t.Setenv("GITHUB_REPO_NAME", "reading-notes")
}

func TestLoadFromEnvOnly(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BOOK_DELAY", "5s")
	t.Setenv("BOOK_LIMIT", "3")
	t.Setenv("DRY_RUN", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "wr_vid=1; wr_skey=abc", cfg.WeRead.Cookie)
	assert.Equal(t, DefaultWeReadBaseURL, cfg.WeRead.BaseURL)
	assert.Equal(t, "alice", cfg.GitHub.Owner)
	assert.Equal(t, 5*time.Second, cfg.App.BookDelay)
	assert.Equal(t, 3, cfg.App.BookLimit)
	assert.True(t, cfg.App.DryRun)
	assert.Equal(t, DefaultStateFile, cfg.Paths.SyncStateFile)
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GITHUB_REPO_NAME", "override-repo")

	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	yaml := `
logging:
  level: debug
github:
  repo: file-repo
app:
  book_delay: 1s
paths:
  sync_state_file: /tmp/state.json
`
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0644))

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	// Environment wins over the file
	assert.Equal(t, "override-repo", cfg.GitHub.Repo)
	assert.Equal(t, time.Second, cfg.App.BookDelay)
	assert.Equal(t, "/tmp/state.json", cfg.Paths.SyncStateFile)
}

func TestValidateMissingCredentials(t *testing.T) {
	t.Setenv("WEREAD_COOKIE", "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_REPO_OWNER", "")
	t.Setenv("GITHUB_REPO_NAME", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEREAD_COOKIE")
	assert.Contains(t, err.Error(), "GITHUB_TOKEN")
}

func TestLoadMissingFile(t *testing.T) {
	setRequiredEnv(t)

	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
