// Package manifest builds single-variant HLS master playlists that pair one
// video rendition with one audio track and an optional subtitle track.
//
// Synthesize is pure: identical requests produce byte-identical text and the
// same cache key and filename, which is what lets publishing skip duplicates.
package manifest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Track labels shown to viewers and baked into filenames.
const (
	TrackDubbed    = "Lồng Tiếng"
	TrackVoiceover = "Thuyết Minh"
	TrackOriginal  = "Tiếng Gốc"
	TrackLive      = "LiveTV"
)

const (
	AudioGroupID    = "audio/mp4a"
	SubtitleGroupID = "subs"
	SubtitleName    = "VietSub"
	Language        = "vi"
	Version         = 6

	streamInf = `BANDWIDTH=6734175,RESOLUTION=1920x1080,CODECS="avc1.4D4028,mp4a.40.2"`
)

// Request describes one track manifest. Empty URLs are treated as absent.
type Request struct {
	TrackLabel  string
	AudioURL    string
	SubtitleURL string
	VideoURL    string
}

// Manifest is a synthesized playlist and the name it is published under.
type Manifest struct {
	Text     string
	CacheKey string
	Filename string
}

// Synthesize renders req.
func Synthesize(req Request) Manifest {
	lines := []string{"#EXTM3U", "#EXT-X-VERSION:" + strconv.Itoa(Version)}
	if req.AudioURL != "" {
		lines = append(lines, "#EXT-X-MEDIA:TYPE=AUDIO"+
			",GROUP-ID="+quote(AudioGroupID)+
			",LANGUAGE="+quote(Language)+
			",NAME="+quote(req.TrackLabel)+
			",DEFAULT=YES,AUTOSELECT=YES"+
			",URI="+quote(req.AudioURL))
	}
	if req.SubtitleURL != "" {
		lines = append(lines, "#EXT-X-MEDIA:TYPE=SUBTITLES"+
			",GROUP-ID="+quote(SubtitleGroupID)+
			",LANGUAGE="+quote(Language)+
			",NAME="+quote(SubtitleName)+
			",DEFAULT=YES,AUTOSELECT=YES"+
			",URI="+quote(req.SubtitleURL))
	}
	inf := "#EXT-X-STREAM-INF:" + streamInf
	if req.AudioURL != "" {
		inf += ",AUDIO=" + quote(AudioGroupID)
	}
	if req.SubtitleURL != "" {
		inf += ",SUBTITLES=" + quote(SubtitleGroupID)
	}
	lines = append(lines, inf, req.VideoURL)

	key := CacheKey(req)
	return Manifest{
		Text:     strings.Join(lines, "\n"),
		CacheKey: key,
		Filename: Filename(req.TrackLabel, key),
	}
}

// SynthesizeLive renders the combined manifest for a live channel's separate
// video and audio streams.
func SynthesizeLive(videoURL, audioURL string) Manifest {
	return Synthesize(Request{TrackLabel: TrackLive, AudioURL: audioURL, VideoURL: videoURL})
}

// CacheKey is the 16-digit hex xxhash64 of label|audio|video|subtitle.
func CacheKey(req Request) string {
	d := xxhash.New()
	_, _ = d.WriteString(req.TrackLabel)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(req.AudioURL)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(req.VideoURL)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(req.SubtitleURL)
	return fmt.Sprintf("%016x", d.Sum64())
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Filename is track_<label, whitespace runs as "_">_<key>.m3u8.
func Filename(label, key string) string {
	return "track_" + whitespaceRun.ReplaceAllString(label, "_") + "_" + key + ".m3u8"
}

// quote wraps v in double quotes; embedded double quotes become single quotes.
func quote(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `'`) + `"`
}
