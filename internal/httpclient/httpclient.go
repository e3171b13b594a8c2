package httpclient

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16
	DefaultUserAgent       = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Options tunes a client built by New. Zero values fall back to the defaults above.
type Options struct {
	Timeout time.Duration
	// RateLimit is the sustained requests/second budget across all hosts; <= 0 disables limiting.
	RateLimit float64
	Burst     int
	// HostConcurrency caps in-flight requests per scheme+host; <= 0 uses GlobalHostSem.
	HostConcurrency int
	UserAgent       string
}

var defaultClient = New(Options{})

// Default returns the shared client used by the provider, publish stores and health checks.
func Default() *http.Client {
	return defaultClient
}

// New builds a client whose transport rate-limits, caps per-host concurrency,
// counts requests and decodes brotli/gzip bodies.
func New(opts Options) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	sem := GlobalHostSem
	if opts.HostConcurrency > 0 {
		sem = NewHostSemaphore(opts.HostConcurrency)
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &transport{
			base:      baseTransport(),
			limiter:   limiter,
			sem:       sem,
			userAgent: opts.UserAgent,
		},
	}
}

// WithTimeout returns a client with the given timeout and a fresh copy of the default transport chain.
func WithTimeout(timeout time.Duration) *http.Client {
	return New(Options{Timeout: timeout})
}

func baseTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		// transport negotiates br/gzip and decodes bodies itself.
		DisableCompression: true,
	}
}
