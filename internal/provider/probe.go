package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/snapetech/streamresolvr/internal/httpclient"
)

// Target names one upstream the probe command checks.
type Target struct {
	Name string // e.g. "menu", "worker"
	URL  string
}

// Result is the outcome of probing one upstream URL.
type Result struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Status      Status `json:"status"`
	StatusCode  int    `json:"status_code,omitempty"`
	LatencyMs   int64  `json:"latency_ms"`
	BodyPreview string `json:"-"` // first 512 bytes for CF detection
}

type Status string

const (
	StatusOK         Status = "ok"
	StatusCloudflare Status = "cloudflare"
	StatusBadStatus  Status = "bad_status"
	StatusTimeout    Status = "timeout"
	StatusError      Status = "error"
)

// ProbeOne GETs rawURL with a short timeout and classifies the result.
func ProbeOne(ctx context.Context, rawURL string, client *http.Client) Result {
	if client == nil {
		client = httpclient.WithTimeout(15 * time.Second)
	}
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{URL: rawURL, Status: StatusError, LatencyMs: time.Since(start).Milliseconds()}
	}
	resp, err := client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timeout") {
			return Result{URL: rawURL, Status: StatusTimeout, LatencyMs: latency}
		}
		return Result{URL: rawURL, Status: StatusError, LatencyMs: latency}
	}
	defer resp.Body.Close()
	preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	previewStr := strings.ToLower(string(preview))
	code := resp.StatusCode

	// Only call it Cloudflare when the Server header or a challenge page says so.
	server := strings.ToLower(strings.TrimSpace(resp.Header.Get("Server")))
	isCFServer := server == "cloudflare"
	bodyHasCFChallenge := strings.Contains(previewStr, "checking your browser") ||
		strings.Contains(previewStr, "cf-bypass") ||
		strings.Contains(previewStr, "ray id")
	if code == 403 || code == 503 || code == 520 || code == 521 || code == 524 {
		if bodyHasCFChallenge || isCFServer {
			return Result{URL: rawURL, Status: StatusCloudflare, StatusCode: code, LatencyMs: latency, BodyPreview: previewStr}
		}
	}
	if isCFServer && code != http.StatusOK {
		return Result{URL: rawURL, Status: StatusCloudflare, StatusCode: code, LatencyMs: latency}
	}
	if code != http.StatusOK {
		return Result{URL: rawURL, Status: StatusBadStatus, StatusCode: code, LatencyMs: latency}
	}
	return Result{URL: rawURL, Status: StatusOK, StatusCode: code, LatencyMs: latency}
}

// ProbeAll probes each target and returns results sorted OK first (by
// latency), then the failures by name. Targets with an empty URL are skipped.
func ProbeAll(ctx context.Context, targets []Target, client *http.Client) []Result {
	out := make([]Result, 0, len(targets))
	for _, t := range targets {
		if t.URL == "" {
			continue
		}
		r := ProbeOne(ctx, t.URL, client)
		r.Name = t.Name
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		okI := out[i].Status == StatusOK
		okJ := out[j].Status == StatusOK
		if okI != okJ {
			return okI
		}
		if okI {
			return out[i].LatencyMs < out[j].LatencyMs
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Healthy reports whether every result is OK.
func Healthy(results []Result) bool {
	for _, r := range results {
		if r.Status != StatusOK {
			return false
		}
	}
	return true
}
