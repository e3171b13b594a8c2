package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/snapetech/streamresolvr/internal/httpclient"
)

// BaseURLStore maps filenames onto a static base URL without uploading. Use it
// when manifests reach the host by other means.
type BaseURLStore struct {
	BaseURL string
}

func (s BaseURLStore) Put(_ context.Context, filename, _ string) (string, error) {
	if s.BaseURL == "" {
		return "", errors.New("base url store: no base url")
	}
	return strings.TrimRight(s.BaseURL, "/") + "/" + url.PathEscape(filename), nil
}

// WorkerStore is the fallback store: it POSTs the manifest as text/plain to
// {BaseURL}/{filename} and reads the served URL from a {"url": ...} reply.
type WorkerStore struct {
	BaseURL string
	Client  *http.Client
}

type workerReply struct {
	URL string `json:"url"`
}

func (s WorkerStore) Put(ctx context.Context, filename, content string) (string, error) {
	if s.BaseURL == "" {
		return "", errors.New("worker store: no base url")
	}
	endpoint := strings.TrimRight(s.BaseURL, "/") + "/" + url.PathEscape(filename)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(content))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp, err := httpclient.DoWithRetry(ctx, s.Client, req, httpclient.NoRetry)
	if err != nil {
		return "", fmt.Errorf("worker store: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("worker store: HTTP %d", resp.StatusCode)
	}
	var reply workerReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&reply); err != nil {
		return "", fmt.Errorf("worker store: decode reply: %w", err)
	}
	if reply.URL == "" {
		return "", errors.New("worker store: reply has no url")
	}
	return reply.URL, nil
}

// GitHubStore commits manifests into a repository directory through the
// contents API and serves them from raw.githubusercontent.com. A file that
// already exists is not committed again.
type GitHubStore struct {
	Owner, Repo, Branch, Dir string
	Token                    string
	// APIBase and RawBase default to the public GitHub endpoints.
	APIBase string
	RawBase string
	Client  *http.Client
}

const (
	defaultGitHubAPI = "https://api.github.com"
	defaultGitHubRaw = "https://raw.githubusercontent.com"
)

// RawURL is where filename is served from once committed.
func (s GitHubStore) RawURL(filename string) string {
	base := s.RawBase
	if base == "" {
		base = defaultGitHubRaw
	}
	return strings.TrimRight(base, "/") + "/" + s.Owner + "/" + s.Repo + "/" + s.branch() + "/" + s.path(filename)
}

func (s GitHubStore) Put(ctx context.Context, filename, content string) (string, error) {
	if s.Owner == "" || s.Repo == "" {
		return "", errors.New("github store: owner and repo required")
	}
	raw := s.RawURL(filename)
	exists, err := s.exists(ctx, filename)
	if err != nil {
		return "", err
	}
	if exists {
		return raw, nil
	}

	body, err := json.Marshal(map[string]string{
		"message": "add " + filename,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
		"branch":  s.branch(),
	})
	if err != nil {
		return "", err
	}
	req, err := s.request(ctx, http.MethodPut, filename, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpclient.DoWithRetry(ctx, s.Client, req, httpclient.NoRetry)
	if err != nil {
		return "", fmt.Errorf("github store: put: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return raw, nil
	case http.StatusUnprocessableEntity:
		// Lost a race with a concurrent commit of the same file.
		return raw, nil
	}
	return "", fmt.Errorf("github store: put %s: HTTP %d", filename, resp.StatusCode)
}

func (s GitHubStore) exists(ctx context.Context, filename string) (bool, error) {
	req, err := s.request(ctx, http.MethodGet, filename, nil)
	if err != nil {
		return false, err
	}
	q := req.URL.Query()
	q.Set("ref", s.branch())
	req.URL.RawQuery = q.Encode()
	resp, err := httpclient.DoWithRetry(ctx, s.Client, req, httpclient.NoRetry)
	if err != nil {
		return false, fmt.Errorf("github store: lookup: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("github store: lookup %s: HTTP %d", filename, resp.StatusCode)
}

func (s GitHubStore) request(ctx context.Context, method, filename string, body io.Reader) (*http.Request, error) {
	base := s.APIBase
	if base == "" {
		base = defaultGitHubAPI
	}
	endpoint := strings.TrimRight(base, "/") + "/repos/" + s.Owner + "/" + s.Repo + "/contents/" + s.path(filename)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	return req, nil
}

func (s GitHubStore) branch() string {
	if s.Branch == "" {
		return "main"
	}
	return s.Branch
}

func (s GitHubStore) path(filename string) string {
	name := url.PathEscape(filename)
	dir := strings.Trim(s.Dir, "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
