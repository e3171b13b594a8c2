package rendition

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// AudioKind classifies an audio rendition by what the viewer hears.
type AudioKind int

const (
	AudioOriginal AudioKind = iota
	AudioDubbed
	AudioVoiceover
)

// Rendition is everything selected for one target resolution. VideoURL is
// always set on a returned Rendition; the other fields are empty when the
// playlist does not offer them.
type Rendition struct {
	Width, Height  int
	Bandwidth      int
	VideoURL       string
	AudioOriginal  string
	AudioDub       string
	AudioVoiceover string
	SubtitleURL    string
}

// Select picks the variant whose resolution is exactly width x height. When
// several match, the highest bandwidth wins. Variants without a URI never
// match. There is no fallback to a neighbouring resolution.
func (m *Master) Select(width, height int) (Rendition, bool) {
	var best *Variant
	for i := range m.Variants {
		v := &m.Variants[i]
		if v.Width != width || v.Height != height || v.URI == "" {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	if best == nil {
		return Rendition{}, false
	}
	r := Rendition{
		Width:     best.Width,
		Height:    best.Height,
		Bandwidth: best.Bandwidth,
		VideoURL:  best.URI,
	}
	for _, md := range m.groupMedia("AUDIO", best.Audio) {
		if md.URI == "" {
			continue
		}
		switch ClassifyAudio(md.Name, md.Language) {
		case AudioDubbed:
			setOnce(&r.AudioDub, md.URI)
		case AudioVoiceover:
			setOnce(&r.AudioVoiceover, md.URI)
		default:
			setOnce(&r.AudioOriginal, md.URI)
		}
	}
	r.SubtitleURL = pickSubtitle(m.groupMedia("SUBTITLES", best.Subtitles))
	return r, true
}

// Select parses text and selects width x height in one step. Unparseable
// text yields absent.
func Select(baseURL, text string, width, height int) (Rendition, bool) {
	m, err := Parse(baseURL, text)
	if err != nil {
		return Rendition{}, false
	}
	return m.Select(width, height)
}

// ParseLive picks the tracks for a live channel: the highest-bandwidth variant
// as video and the first audio rendition. A media playlist (no variants) is
// its own video. Either result is empty when absent.
func ParseLive(baseURL, text string) (audioURL, videoURL string) {
	m, err := Parse(baseURL, text)
	if err != nil {
		return "", ""
	}
	if !m.IsMaster() {
		return "", baseURL
	}
	var best *Variant
	for i := range m.Variants {
		v := &m.Variants[i]
		if v.URI == "" {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	if best == nil {
		return "", ""
	}
	for _, md := range m.groupMedia("AUDIO", best.Audio) {
		if md.URI != "" {
			return md.URI, best.URI
		}
	}
	return "", best.URI
}

// groupMedia returns media of typ in group; an empty group means every media of typ.
func (m *Master) groupMedia(typ, group string) []Media {
	var out []Media
	for _, md := range m.Media {
		if md.Type != typ {
			continue
		}
		if group != "" && md.GroupID != group {
			continue
		}
		out = append(out, md)
	}
	return out
}

func pickSubtitle(subs []Media) string {
	first := ""
	for _, s := range subs {
		if s.URI == "" {
			continue
		}
		if first == "" {
			first = s.URI
		}
		lang := strings.ToLower(s.Language)
		if lang == "vi" || lang == "vie" || strings.Contains(Fold(s.Name), "viet") {
			return s.URI
		}
	}
	return first
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// ClassifyAudio maps an audio rendition's NAME and LANGUAGE to its kind.
func ClassifyAudio(name, language string) AudioKind {
	s := Fold(name + " " + language)
	switch {
	case strings.Contains(s, "long tieng"), strings.Contains(s, "dub"):
		return AudioDubbed
	case strings.Contains(s, "thuyet minh"), strings.Contains(s, "voice"), strings.Contains(s, "narrat"):
		return AudioVoiceover
	}
	return AudioOriginal
}

// Fold lower-cases s and strips diacritics ("Lồng Tiếng" -> "long tieng").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.NewReplacer("đ", "d", "Đ", "d").Replace(out)
	return strings.ToLower(out)
}
