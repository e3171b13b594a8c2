// Package rendition parses HLS master playlists and selects the video, audio
// and subtitle renditions a synthesized track manifest is built from.
package rendition

import (
	"bufio"
	"errors"
	"strconv"
	"strings"

	"github.com/snapetech/streamresolvr/internal/safeurl"
)

const maxLineSize = 1 << 20

// ErrNotPlaylist is returned when the text does not start with #EXTM3U.
var ErrNotPlaylist = errors.New("not an m3u8 playlist")

// Media is one #EXT-X-MEDIA declaration.
type Media struct {
	Type     string // AUDIO, SUBTITLES, ...
	GroupID  string
	Name     string
	Language string
	URI      string // absolute
	Default  bool
}

// Variant is one #EXT-X-STREAM-INF declaration and its URI line.
type Variant struct {
	URI       string // absolute
	Bandwidth int
	Width     int
	Height    int
	Codecs    string
	Audio     string // AUDIO group id
	Subtitles string // SUBTITLES group id
}

// Master is a parsed master playlist. A media playlist parses to a Master
// with no variants.
type Master struct {
	Media    []Media
	Variants []Variant
}

// Parse reads an HLS playlist. Relative URIs are resolved against baseURL.
func Parse(baseURL, text string) (*Master, error) {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(nil, maxLineSize)
	m := &Master{}
	first := true
	var pending *Variant
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			if line == "" {
				continue
			}
			if line != "#EXTM3U" && !strings.HasPrefix(line, "#EXTM3U ") {
				return nil, ErrNotPlaylist
			}
			first = false
			continue
		}
		switch {
		case line == "":
		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			attrs := parseAttrs(strings.TrimPrefix(line, "#EXT-X-MEDIA:"))
			m.Media = append(m.Media, Media{
				Type:     strings.ToUpper(attrs["TYPE"]),
				GroupID:  attrs["GROUP-ID"],
				Name:     attrs["NAME"],
				Language: attrs["LANGUAGE"],
				URI:      safeurl.Resolve(baseURL, attrs["URI"]),
				Default:  strings.EqualFold(attrs["DEFAULT"], "YES"),
			})
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			attrs := parseAttrs(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			v := Variant{
				Codecs:    attrs["CODECS"],
				Audio:     attrs["AUDIO"],
				Subtitles: attrs["SUBTITLES"],
			}
			v.Bandwidth, _ = strconv.Atoi(attrs["BANDWIDTH"])
			v.Width, v.Height = parseResolution(attrs["RESOLUTION"])
			pending = &v
		case strings.HasPrefix(line, "#"):
			// Other tags and comments do not end a pending STREAM-INF.
		default:
			if pending != nil {
				pending.URI = safeurl.Resolve(baseURL, line)
				m.Variants = append(m.Variants, *pending)
				pending = nil
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if first {
		return nil, ErrNotPlaylist
	}
	if pending != nil {
		// STREAM-INF without a URI line: kept so callers see it, but never playable.
		m.Variants = append(m.Variants, *pending)
	}
	return m, nil
}

// IsMaster reports whether the playlist declared any variant streams.
func (m *Master) IsMaster() bool { return len(m.Variants) > 0 }

// parseAttrs splits an HLS attribute list (KEY=VALUE,KEY="quoted, value").
func parseAttrs(s string) map[string]string {
	out := make(map[string]string)
	for len(s) > 0 {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		key := strings.ToUpper(strings.TrimSpace(s[:eq]))
		s = s[eq+1:]
		var val string
		if strings.HasPrefix(s, `"`) {
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				val, s = s[1:], ""
			} else {
				val, s = s[1:end+1], s[end+2:]
			}
			if i := strings.IndexByte(s, ','); i >= 0 {
				s = s[i+1:]
			} else {
				s = ""
			}
		} else if i := strings.IndexByte(s, ','); i >= 0 {
			val, s = s[:i], s[i+1:]
		} else {
			val, s = s, ""
		}
		out[key] = strings.TrimSpace(val)
	}
	return out
}

func parseResolution(s string) (w, h int) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0
	}
	w, err1 := strconv.Atoi(ws)
	h, err2 := strconv.Atoi(hs)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return w, h
}
