package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds catalog API, publishing and runtime settings.
// Precedence: built-in defaults, then the optional YAML file, then environment.
type Config struct {
	// Catalog API
	APIBaseURL   string `yaml:"api_base_url"`   // e.g. https://api.vieon.vn/backend/cm/v5
	MenuURL      string `yaml:"menu_url"`       // full menu-tree URL including platform query
	Platform     string `yaml:"platform"`       // query appended to every API call
	ImageBaseURL string `yaml:"image_base_url"` // prefix for relative poster paths

	// Home page rows, "NAME/vertical" or "NAME/horizontal".
	Categories []string `yaml:"categories"`

	// Publishing: primary store is GitHub contents when GitHubRepo is set,
	// otherwise a static base URL (files synced out-of-band).
	GitHubOwner    string `yaml:"github_owner"`
	GitHubRepo     string `yaml:"github_repo"`
	GitHubBranch   string `yaml:"github_branch"`
	GitHubDir      string `yaml:"github_dir"`
	GitHubToken    string `yaml:"-"` // env only
	PrimaryBaseURL string `yaml:"primary_base_url"`
	WorkerURL      string `yaml:"worker_url"` // secondary store, POST {WorkerURL}/{filename}

	// Concurrency
	ItemConcurrency    int `yaml:"item_concurrency"`    // catalog item projection cap
	PageConcurrency    int `yaml:"page_concurrency"`    // 0 = uncapped episode page fan-out
	PublishConcurrency int `yaml:"publish_concurrency"` // parallel track publishes per playback

	// HTTP
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	RateLimit       float64       `yaml:"rate_limit"` // upstream requests/second; 0 = unlimited
	RateBurst       int           `yaml:"rate_burst"`
	HostConcurrency int           `yaml:"host_concurrency"`

	// Runtime
	LedgerPath string `yaml:"ledger_path"` // sqlite publish ledger; "" = disabled
	ListenAddr string `yaml:"listen_addr"`
	APILimit   int    `yaml:"api_limit"` // HTTP API requests per minute per client IP; 0 = unlimited
	LogLevel   string `yaml:"log_level"`
}

// DefaultCategories are the home rows exposed by the upstream web client.
var DefaultCategories = []string{
	"THỊNH HÀNH/vertical",
	"PHIM CHIẾU RẠP VIỆT NAM/vertical",
	"PHIM BỘ VIỆT NAM/vertical",
	"KÊNH TRUYỀN HÌNH/horizontal",
	"PHIM TVB MỚI NHẤT - CLICK NGAY/vertical",
	"PHIM BỘ CHÂU Á LỒNG TIẾNG/vertical",
	"PHIM BỘ HÀN QUỐC/vertical",
	"PHIM BỘ TRUNG QUỐC/vertical",
	"ANIME/vertical",
}

const defaultPlatform = "platform=web&ui=012021"

// Default returns a Config populated with built-in defaults only.
func Default() *Config {
	return &Config{
		APIBaseURL:         "https://api.vieon.vn/backend/cm/v5",
		MenuURL:            "https://api.vieon.vn/backend/cm/v5/menu?" + defaultPlatform,
		Platform:           defaultPlatform,
		ImageBaseURL:       "https://phimimg.com",
		Categories:         append([]string(nil), DefaultCategories...),
		GitHubBranch:       "main",
		GitHubDir:          "m3u8",
		ItemConcurrency:    10,
		PageConcurrency:    0,
		PublishConcurrency: 4,
		HTTPTimeout:        30 * time.Second,
		RateLimit:          20,
		RateBurst:          40,
		HostConcurrency:    8,
		ListenAddr:         ":5005",
		APILimit:           600,
		LogLevel:           "info",
	}
}

// Load builds the config from defaults, the YAML file at path (optional; "" skips it)
// and STREAM_RESOLVER_* environment variables. Call LoadEnvFile(".env") first to use a .env file.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.applyEnv()
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	c.APIBaseURL = getEnv("STREAM_RESOLVER_API_URL", c.APIBaseURL)
	c.MenuURL = getEnv("STREAM_RESOLVER_MENU_URL", c.MenuURL)
	c.Platform = getEnv("STREAM_RESOLVER_PLATFORM", c.Platform)
	c.ImageBaseURL = getEnv("STREAM_RESOLVER_IMAGE_URL", c.ImageBaseURL)
	c.Categories = getEnvList("STREAM_RESOLVER_CATEGORIES", c.Categories)
	c.GitHubOwner = getEnv("STREAM_RESOLVER_GITHUB_OWNER", c.GitHubOwner)
	c.GitHubRepo = getEnv("STREAM_RESOLVER_GITHUB_REPO", c.GitHubRepo)
	c.GitHubBranch = getEnv("STREAM_RESOLVER_GITHUB_BRANCH", c.GitHubBranch)
	c.GitHubDir = getEnv("STREAM_RESOLVER_GITHUB_DIR", c.GitHubDir)
	c.GitHubToken = getEnv("STREAM_RESOLVER_GITHUB_TOKEN", c.GitHubToken)
	c.PrimaryBaseURL = getEnv("STREAM_RESOLVER_PRIMARY_URL", c.PrimaryBaseURL)
	c.WorkerURL = getEnv("STREAM_RESOLVER_WORKER_URL", c.WorkerURL)
	c.ItemConcurrency = getEnvInt("STREAM_RESOLVER_ITEM_CONCURRENCY", c.ItemConcurrency)
	c.PageConcurrency = getEnvInt("STREAM_RESOLVER_PAGE_CONCURRENCY", c.PageConcurrency)
	c.PublishConcurrency = getEnvInt("STREAM_RESOLVER_PUBLISH_CONCURRENCY", c.PublishConcurrency)
	c.HTTPTimeout = getEnvDuration("STREAM_RESOLVER_HTTP_TIMEOUT", c.HTTPTimeout)
	c.RateLimit = getEnvFloat("STREAM_RESOLVER_RATE_LIMIT", c.RateLimit)
	c.RateBurst = getEnvInt("STREAM_RESOLVER_RATE_BURST", c.RateBurst)
	c.HostConcurrency = getEnvInt("STREAM_RESOLVER_HOST_CONCURRENCY", c.HostConcurrency)
	c.LedgerPath = getEnv("STREAM_RESOLVER_LEDGER", c.LedgerPath)
	c.ListenAddr = getEnv("STREAM_RESOLVER_LISTEN", c.ListenAddr)
	c.APILimit = getEnvInt("STREAM_RESOLVER_API_LIMIT", c.APILimit)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

func (c *Config) normalize() {
	c.APIBaseURL = strings.TrimSuffix(strings.TrimSpace(c.APIBaseURL), "/")
	c.ImageBaseURL = strings.TrimSuffix(strings.TrimSpace(c.ImageBaseURL), "/")
	c.WorkerURL = strings.TrimSuffix(strings.TrimSpace(c.WorkerURL), "/")
	c.Platform = strings.TrimPrefix(strings.TrimSpace(c.Platform), "?")
	if c.ItemConcurrency <= 0 {
		c.ItemConcurrency = 10
	}
	if c.PageConcurrency < 0 {
		c.PageConcurrency = 0
	}
	if c.PublishConcurrency <= 0 {
		c.PublishConcurrency = 1
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.HostConcurrency <= 0 {
		c.HostConcurrency = 8
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	if c.GitHubBranch == "" {
		c.GitHubBranch = "main"
	}
}

// Validate reports settings that make the resolver unusable.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("config: api base URL is empty")
	}
	if c.MenuURL == "" {
		return fmt.Errorf("config: menu URL is empty")
	}
	for _, cat := range c.Categories {
		if !strings.Contains(cat, "/") {
			return fmt.Errorf("config: category %q must be NAME/vertical or NAME/horizontal", cat)
		}
	}
	return nil
}

// PrimaryStoreKind reports which primary store the settings select: "github", "static" or "".
func (c *Config) PrimaryStoreKind() string {
	switch {
	case c.GitHubOwner != "" && c.GitHubRepo != "":
		return "github"
	case c.PrimaryBaseURL != "":
		return "static"
	}
	return ""
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList splits on "|" since category names may contain commas.
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
