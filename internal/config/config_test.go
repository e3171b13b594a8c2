package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://api.vieon.vn/backend/cm/v5", c.APIBaseURL)
	assert.Equal(t, "platform=web&ui=012021", c.Platform)
	assert.Equal(t, 10, c.ItemConcurrency)
	assert.Equal(t, 0, c.PageConcurrency)
	assert.Equal(t, 30*time.Second, c.HTTPTimeout)
	assert.Len(t, c.Categories, len(DefaultCategories))
	assert.Equal(t, "", c.PrimaryStoreKind())
	assert.Equal(t, 600, c.APILimit)
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv("STREAM_RESOLVER_API_URL", "http://api.local/v5/")
	t.Setenv("STREAM_RESOLVER_ITEM_CONCURRENCY", "3")
	t.Setenv("STREAM_RESOLVER_HTTP_TIMEOUT", "5s")
	t.Setenv("STREAM_RESOLVER_RATE_LIMIT", "2.5")
	t.Setenv("STREAM_RESOLVER_CATEGORIES", "ANIME/vertical| KÊNH, TRUYỀN HÌNH/horizontal ")
	t.Setenv("STREAM_RESOLVER_WORKER_URL", "https://worker.example/files/")
	t.Setenv("STREAM_RESOLVER_API_LIMIT", "0")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://api.local/v5", c.APIBaseURL)
	assert.Equal(t, 3, c.ItemConcurrency)
	assert.Equal(t, 5*time.Second, c.HTTPTimeout)
	assert.Equal(t, 2.5, c.RateLimit)
	assert.Equal(t, []string{"ANIME/vertical", "KÊNH, TRUYỀN HÌNH/horizontal"}, c.Categories)
	assert.Equal(t, "https://worker.example/files", c.WorkerURL)
	assert.Equal(t, 0, c.APILimit)
}

func TestLoad_yamlThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolver.yaml")
	body := []byte(`
github_owner: someone
github_repo: manifests
primary_base_url: https://cdn.example/m3u8
item_concurrency: 4
http_timeout: 12s
categories:
  - "ANIME/vertical"
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))
	t.Setenv("STREAM_RESOLVER_ITEM_CONCURRENCY", "6")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "someone", c.GitHubOwner)
	assert.Equal(t, "github", c.PrimaryStoreKind())
	assert.Equal(t, 6, c.ItemConcurrency, "env must win over the file")
	assert.Equal(t, 12*time.Second, c.HTTPTimeout)
	assert.Equal(t, []string{"ANIME/vertical"}, c.Categories)
	assert.Equal(t, "main", c.GitHubBranch)
}

func TestLoad_missingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_invalidCategory(t *testing.T) {
	t.Setenv("STREAM_RESOLVER_CATEGORIES", "NO-ORIENTATION")
	_, err := Load("")
	assert.ErrorContains(t, err, "NO-ORIENTATION")
}

func TestNormalize_clampsConcurrency(t *testing.T) {
	t.Setenv("STREAM_RESOLVER_ITEM_CONCURRENCY", "-1")
	t.Setenv("STREAM_RESOLVER_PAGE_CONCURRENCY", "-5")
	t.Setenv("STREAM_RESOLVER_PUBLISH_CONCURRENCY", "0")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, c.ItemConcurrency)
	assert.Equal(t, 0, c.PageConcurrency)
	assert.Equal(t, 1, c.PublishConcurrency)
}

func TestPrimaryStoreKind_static(t *testing.T) {
	c := Default()
	c.PrimaryBaseURL = "https://cdn.example"
	assert.Equal(t, "static", c.PrimaryStoreKind())
}
