// Package catalog holds the display-side data model shared by the indexer,
// playback resolver, HTTP API and CLI.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio/v2"
)

// Kind distinguishes what a catalog entry plays as.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
	KindLive   Kind = "live"
)

// ResolutionTier is a named target resolution a video rendition can be selected at.
type ResolutionTier string

const (
	Tier4K     ResolutionTier = "4K"
	Tier2K     ResolutionTier = "2K"
	TierFullHD ResolutionTier = "FullHD"
	TierHD     ResolutionTier = "HD"
)

// PlaybackTiers is the order tiers are resolved and emitted in.
var PlaybackTiers = []ResolutionTier{TierFullHD, Tier4K, Tier2K, TierHD}

// Dimensions returns the exact width and height a rendition must carry to match t.
func (t ResolutionTier) Dimensions() (width, height int) {
	switch t {
	case Tier4K:
		return 3840, 2160
	case Tier2K:
		return 2560, 1440
	case TierFullHD:
		return 1920, 1080
	case TierHD:
		return 1280, 720
	}
	return 0, 0
}

// CategoryGroup maps a category display name to the provider's group (ribbon) id.
// Immutable once discovered.
type CategoryGroup struct {
	Name    string `json:"name"`
	GroupID string `json:"group_id"`
}

// Item is one catalog entry projected for display.
type Item struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	URL       string         `json:"url"` // detail URL passed back to Load
	PosterURL string         `json:"poster_url"`
	Premium   bool           `json:"premium,omitempty"`
	Live      bool           `json:"live,omitempty"`
	Quality   ResolutionTier `json:"quality,omitempty"` // set only for 4K items
}

// EpisodeRef is a playable episode reference: the content_detail URL handed to
// the playback resolver plus its display title.
type EpisodeRef struct {
	DataURL string `json:"data_url"`
	Name    string `json:"name"`
}

// Actor is one cast entry.
type Actor struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Detail is the resolved detail page for a movie, series or live channel.
type Detail struct {
	Kind       Kind         `json:"kind"`
	Title      string       `json:"title"`
	URL        string       `json:"url"`
	PosterURL  string       `json:"poster_url,omitempty"`
	Background string       `json:"background,omitempty"`
	Year       int          `json:"year,omitempty"`
	Plot       string       `json:"plot,omitempty"`
	Tags       []string     `json:"tags,omitempty"`
	Actors     []Actor      `json:"actors,omitempty"`
	Related    []Item       `json:"related,omitempty"`
	Episodes   []EpisodeRef `json:"episodes,omitempty"`
	DataURL    string       `json:"data_url,omitempty"` // movie and live: the single playable reference
}

// Page is one category row of the home screen.
type Page struct {
	Name       string `json:"name"`
	Horizontal bool   `json:"horizontal"`
	Items      []Item `json:"items"`
	HasNext    bool   `json:"has_next"`
}

// LinkType is the container type of a playable link.
type LinkType string

const (
	LinkM3U8 LinkType = "m3u8"
)

// Link is one playable stream for a detail's data URL.
type Link struct {
	Source  string   `json:"source"`
	Name    string   `json:"name"`
	URL     string   `json:"url"`
	Type    LinkType `json:"type"`
	Referer string   `json:"referer,omitempty"`
	Tier    string   `json:"tier,omitempty"`
}

// Subtitle is an external subtitle file.
type Subtitle struct {
	Lang string `json:"lang"`
	URL  string `json:"url"`
}

// Save writes v to path as indented JSON. The file is replaced atomically so
// readers never observe a partial write.
func Save(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog save: marshal: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("catalog save: %w", err)
	}
	return nil
}

// Load decodes the JSON file at path into v.
func Load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("catalog load %s: %w", path, err)
	}
	return nil
}

// Menu is one node of the provider's menu tree.
type Menu struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	SubMenu []Menu `json:"sub_menu,omitempty"`
}
