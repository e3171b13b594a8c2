package provider

import (
	"strconv"
	"strings"
)

// Wire shapes of the catalog API. Only the fields the resolver reads are declared.

type menuJSON struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	SubMenu []menuJSON `json:"sub_menu"`
}

type ribbonJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Images carries the artwork variants an item may have.
type Images struct {
	PosterV4    string `json:"poster_v4"`
	ThumbnailV4 string `json:"thumbnail_v4"`
	Logo        string `json:"logo"`
	Avatar      string `json:"avatar"`
}

// SEO holds the slug used to tell live channels from VOD.
type SEO struct {
	Slug string `json:"slug"`
}

// Item is one raw catalog entry from ribbon, search, related and episode listings.
type Item struct {
	ID         string      `json:"id"`
	GroupID    string      `json:"group_id"`
	Title      string      `json:"title"`
	IsPremium  interface{} `json:"is_premium"`
	Resolution interface{} `json:"resolution"`
	Images     *Images     `json:"images"`
	SEO        *SEO        `json:"seo"`
}

// Premium reports is_premium != 0.
func (it Item) Premium() bool { return intOf(it.IsPremium) != 0 }

// ResolutionCode is the numeric resolution class (4 means 4K).
func (it Item) ResolutionCode() int { return intOf(it.Resolution) }

// Items is a paged listing.
type Items struct {
	Items    []Item    `json:"items"`
	Metadata *Metadata `json:"metadata"`
}

// Metadata is the paging block some listings carry.
type Metadata struct {
	Total interface{} `json:"total"`
	Limit interface{} `json:"limit"`
	Page  interface{} `json:"page"`
}

// Tag is a typed label on content (genre, country, ...).
type Tag struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Person is a cast member.
type Person struct {
	Name   string  `json:"name"`
	Images *Images `json:"images"`
}

// People groups cast by role.
type People struct {
	Actor    []Person `json:"actor"`
	Director []Person `json:"director"`
}

// Content is the detail payload for a movie or series.
type Content struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Images          *Images     `json:"images"`
	Tags            []Tag       `json:"tags"`
	Runtime         interface{} `json:"runtime"`
	LongDescription string      `json:"long_description"`
	ShortDesc       string      `json:"short_description"`
	Episode         interface{} `json:"episode"`
	CurrentEpisode  interface{} `json:"current_episode"`
	ReleaseYear     interface{} `json:"release_year"`
	AvgRate         interface{} `json:"avg_rate"`
	People          *People     `json:"people"`
}

// EpisodeCount is the number of episodes the content declares (<= 1 means a movie).
func (c Content) EpisodeCount() int { return intOf(c.Episode) }

// CurrentEpisodeCount is how many episodes are published so far.
func (c Content) CurrentEpisodeCount() int { return intOf(c.CurrentEpisode) }

// Year is the release year or 0.
func (c Content) Year() int { return intOf(c.ReleaseYear) }

// RuntimeMinutes is the runtime or 0.
func (c Content) RuntimeMinutes() int { return intOf(c.Runtime) }

// Rating is avg_rate formatted for display, or "" when absent.
func (c Content) Rating() string { return numberStr(c.AvgRate) }

// Stream holds the HLS entry point for one codec.
type Stream struct {
	HLS  string `json:"hls"`
	Dash string `json:"dash"`
}

// PlayLinks lists streams per codec.
type PlayLinks struct {
	H264 *Stream `json:"h264"`
	H265 *Stream `json:"h265"`
}

// Subtitle is an external subtitle file.
type Subtitle struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Play is the playback payload behind a content_detail or livetv detail URL.
type Play struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	PlayLinks *PlayLinks `json:"play_links"`
	Subtitles []Subtitle `json:"subtitles"`
	Images    *Images    `json:"images"`
}

// StreamURL prefers the h265 HLS entry and falls back to h264; "" when neither exists.
func (p Play) StreamURL() string {
	if p.PlayLinks == nil {
		return ""
	}
	if s := p.PlayLinks.H265; s != nil && strings.TrimSpace(s.HLS) != "" {
		return strings.TrimSpace(s.HLS)
	}
	if s := p.PlayLinks.H264; s != nil {
		return strings.TrimSpace(s.HLS)
	}
	return ""
}

// intOf reads numbers the API sends as either JSON numbers or strings.
func intOf(v interface{}) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0
		}
		return n
	case bool:
		if x {
			return 1
		}
	}
	return 0
}

func numberStr(v interface{}) string {
	switch x := v.(type) {
	case float64:
		if x == 0 {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return strings.TrimSpace(x)
	}
	return ""
}
