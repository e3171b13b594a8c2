// Package health checks that the catalog API answers and that a running
// resolver serves its own endpoints.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/snapetech/streamresolvr/internal/httpclient"
)

// CheckProvider GETs the menu URL and requires a 200 with a non-empty JSON array.
func CheckProvider(ctx context.Context, menuURL string) error {
	if menuURL == "" {
		return errors.New("no menu URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, menuURL, nil)
	if err != nil {
		return err
	}
	resp, err := httpclient.WithTimeout(15 * time.Second).Do(req)
	if err != nil {
		return fmt.Errorf("provider unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("provider returned HTTP %d", resp.StatusCode)
	}
	var menus []json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&menus); err != nil {
		return fmt.Errorf("provider menu not decodable: %w", err)
	}
	if len(menus) == 0 {
		return errors.New("provider menu is empty")
	}
	return nil
}

// CheckEndpoints hits the resolver's own health, groups and metrics endpoints
// at baseURL and returns the first error or nil.
func CheckEndpoints(ctx context.Context, baseURL string) error {
	client := httpclient.WithTimeout(5 * time.Second)
	base := strings.TrimRight(baseURL, "/")
	for _, path := range []string{"/healthz", "/api/groups", "/metrics"} {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
		}
	}
	return nil
}
