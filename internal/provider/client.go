// Package provider is the typed client for the remote catalog API and the
// upstream reachability probes used by the probe command.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/snapetech/streamresolvr/internal/catalog"
	"github.com/snapetech/streamresolvr/internal/httpclient"
	"github.com/snapetech/streamresolvr/internal/log"
	"github.com/snapetech/streamresolvr/internal/safeurl"
)

// ErrNotFound wraps every fetch that produced no decodable payload.
var ErrNotFound = errors.New("not found")

const (
	ListingLimit = 30
	SearchLimit  = 60
	maxBodySize  = 16 << 20
)

// Client talks to the catalog API. All requests share one http.Client
// (rate limit, per-host cap, brotli decoding) and retry once on 429/5xx.
type Client struct {
	apiBase  string
	menuURL  string
	platform string
	referer  string
	http     *http.Client
	logger   zerolog.Logger
}

// Options configures a Client.
type Options struct {
	APIBase  string // e.g. https://api.vieon.vn/backend/cm/v5
	MenuURL  string // defaults to {APIBase}/menu?{Platform}
	Platform string // query string appended to every request
	HTTP     *http.Client
}

// New returns a Client.
func New(opts Options) *Client {
	base := strings.TrimRight(opts.APIBase, "/")
	menu := opts.MenuURL
	if menu == "" {
		menu = base + "/menu?" + opts.Platform
	}
	client := opts.HTTP
	if client == nil {
		client = httpclient.Default()
	}
	return &Client{
		apiBase:  base,
		menuURL:  menu,
		platform: opts.Platform,
		referer:  safeurl.Referer(base),
		http:     client,
		logger:   log.WithComponent("provider"),
	}
}

// APIBase is the configured API root.
func (c *Client) APIBase() string { return c.apiBase }

// Referer is the origin sent with API requests and attached to playable links.
func (c *Client) Referer() string { return c.referer }

// MenuURL is the menu tree endpoint.
func (c *Client) MenuURL() string { return c.menuURL }

// ContentURL is the detail URL for VOD id.
func (c *Client) ContentURL(id string) string {
	return c.apiBase + "/content/" + url.PathEscape(id) + "?" + c.platform
}

// LiveURL is the detail URL for live channel id.
func (c *Client) LiveURL(id string) string {
	return c.apiBase + "/livetv/detail/" + url.PathEscape(id) + "?" + c.platform
}

// ContentDetailURL is the playback payload URL for episodeID of groupID.
// An empty episodeID addresses a movie.
func (c *Client) ContentDetailURL(groupID, episodeID string) string {
	return c.apiBase + "/content_detail/" + url.PathEscape(groupID) + "?eps_id=" + url.QueryEscape(episodeID) + "&" + c.platform
}

// IsLiveURL reports whether a detail or data URL addresses a live channel.
func IsLiveURL(u string) bool {
	return strings.Contains(u, "livetv")
}

// Menu fetches the menu tree.
func (c *Client) Menu(ctx context.Context) ([]catalog.Menu, error) {
	var raw []menuJSON
	if err := c.getJSON(ctx, c.menuURL, &raw); err != nil {
		return nil, err
	}
	return toMenus(raw), nil
}

func toMenus(in []menuJSON) []catalog.Menu {
	if len(in) == 0 {
		return nil
	}
	out := make([]catalog.Menu, 0, len(in))
	for _, m := range in {
		out = append(out, catalog.Menu{ID: m.ID, Name: m.Name, SubMenu: toMenus(m.SubMenu)})
	}
	return out
}

// Ribbons lists the category groups (ribbons) of a menu page.
func (c *Client) Ribbons(ctx context.Context, menuID string) ([]catalog.CategoryGroup, error) {
	var raw []ribbonJSON
	u := c.apiBase + "/page_ribbons/" + url.PathEscape(menuID) + "?" + c.platform
	if err := c.getJSON(ctx, u, &raw); err != nil {
		return nil, err
	}
	out := make([]catalog.CategoryGroup, 0, len(raw))
	for _, r := range raw {
		if r.Name == "" || r.ID == "" {
			continue
		}
		out = append(out, catalog.CategoryGroup{Name: r.Name, GroupID: r.ID})
	}
	return out, nil
}

// Ribbon fetches one zero-based page of a category group.
func (c *Client) Ribbon(ctx context.Context, groupID string, page int) (*Items, error) {
	u := c.apiBase + "/ribbon/" + url.PathEscape(groupID) + "?limit=" + strconv.Itoa(ListingLimit) + "&page=" + strconv.Itoa(page) + "&" + c.platform
	return c.items(ctx, u)
}

// Search runs a keyword search.
func (c *Client) Search(ctx context.Context, query string) (*Items, error) {
	u := c.apiBase + "/search?limit=" + strconv.Itoa(SearchLimit) + "&keyword=" + url.QueryEscape(query) + "&page=0&tags=&" + c.platform
	return c.items(ctx, u)
}

// Related lists recommendations for content id.
func (c *Client) Related(ctx context.Context, id string) (*Items, error) {
	u := c.apiBase + "/related/" + url.PathEscape(id) + "?limit=" + strconv.Itoa(ListingLimit) + "&" + c.platform
	return c.items(ctx, u)
}

// Episodes fetches one zero-based page of a series' episodes.
func (c *Client) Episodes(ctx context.Context, id string, page, size int) (*Items, error) {
	u := c.apiBase + "/episode/" + url.PathEscape(id) + "?limit=" + strconv.Itoa(size) + "&page=" + strconv.Itoa(page) + "&" + c.platform
	return c.items(ctx, u)
}

// ErrForeignURL is wrapped with ErrNotFound when a caller-supplied detail or
// data URL does not point at the configured API.
var ErrForeignURL = errors.New("url is not on the catalog API host")

// Owns reports whether u is an http(s) URL on the API's scheme and host.
func (c *Client) Owns(u string) bool {
	return safeurl.SameOrigin(u, c.apiBase)
}

func (c *Client) checkOwned(u string) error {
	if c.Owns(u) {
		return nil
	}
	c.logger.Warn().Str(log.FieldURL, u).Msg("rejected url outside the catalog API")
	return fmt.Errorf("%w: %w: %q", ErrNotFound, ErrForeignURL, u)
}

// Content fetches a movie or series detail payload. detailURL must be on the API host.
func (c *Client) Content(ctx context.Context, detailURL string) (*Content, error) {
	if err := c.checkOwned(detailURL); err != nil {
		return nil, err
	}
	var out Content
	if err := c.getJSON(ctx, detailURL, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Play fetches a playback payload (content_detail or livetv detail URL). dataURL
// must be on the API host.
func (c *Client) Play(ctx context.Context, dataURL string) (*Play, error) {
	if err := c.checkOwned(dataURL); err != nil {
		return nil, err
	}
	var out Play
	if err := c.getJSON(ctx, dataURL, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Text fetches a raw body such as a stream manifest.
func (c *Client) Text(ctx context.Context, rawURL string) (string, error) {
	b, err := c.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Client) items(ctx context.Context, u string) (*Items, error) {
	var out Items
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, u string, v interface{}) error {
	b, err := c.get(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		c.logger.Debug().Err(err).Str(log.FieldURL, u).Msg("decode failed")
		return fmt.Errorf("decode %s: %w: %v", u, ErrNotFound, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}
	resp, err := httpclient.DoWithRetry(ctx, c.http, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		c.logger.Debug().Int(log.FieldStatus, resp.StatusCode).Str(log.FieldURL, u).Msg("upstream non-200")
		return nil, fmt.Errorf("get %s: HTTP %d: %w", u, resp.StatusCode, ErrNotFound)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	return b, nil
}
