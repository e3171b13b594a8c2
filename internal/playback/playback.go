// Package playback resolves a data URL into playable links: it selects
// renditions per resolution tier, synthesizes one manifest per audio track and
// publishes each through the fallback publisher.
package playback

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/snapetech/streamresolvr/internal/catalog"
	"github.com/snapetech/streamresolvr/internal/log"
	"github.com/snapetech/streamresolvr/internal/manifest"
	"github.com/snapetech/streamresolvr/internal/provider"
	"github.com/snapetech/streamresolvr/internal/publish"
	"github.com/snapetech/streamresolvr/internal/rendition"
)

// ErrNoStream means the playback payload carries no HLS entry point.
var ErrNoStream = errors.New("playback: no stream in payload")

const (
	DefaultSource       = "VieON"
	DefaultPublishLimit = 4
	vietnameseSubtitle  = "tiếng việt"
	subtitleLanguage    = "Vietnamese"
	originalLinkName    = "VietNam"
)

// Options configures a Resolver.
type Options struct {
	Source       string // Link.Source; defaults to DefaultSource
	PublishLimit int    // concurrent track publishes; defaults to DefaultPublishLimit
}

// Resolver produces playable links for data URLs.
type Resolver struct {
	api     *provider.Client
	pub     *publish.Publisher
	source  string
	limit   int
	referer string
	logger  zerolog.Logger
}

// New returns a Resolver.
func New(api *provider.Client, pub *publish.Publisher, opts Options) *Resolver {
	src := opts.Source
	if src == "" {
		src = DefaultSource
	}
	limit := opts.PublishLimit
	if limit <= 0 {
		limit = DefaultPublishLimit
	}
	return &Resolver{
		api:     api,
		pub:     pub,
		source:  src,
		limit:   limit,
		referer: api.Referer(),
		logger:  log.WithComponent("playback"),
	}
}

// Result is the resolved links and external subtitles for one data URL.
type Result struct {
	Links     []catalog.Link     `json:"links"`
	Subtitles []catalog.Subtitle `json:"subtitles"`
}

// Links resolves dataURL. Tracks that cannot be published are left out; the
// remaining tracks are still returned.
func (r *Resolver) Links(ctx context.Context, dataURL string) (*Result, error) {
	play, err := r.api.Play(ctx, dataURL)
	if err != nil {
		return nil, err
	}
	stream := play.StreamURL()
	if stream == "" {
		return nil, ErrNoStream
	}
	text, err := r.api.Text(ctx, stream)
	if err != nil {
		return nil, err
	}
	if provider.IsLiveURL(dataURL) {
		return r.live(ctx, stream, text), nil
	}
	return r.vod(ctx, stream, text, vietnameseSubtitleURL(play.Subtitles)), nil
}

func (r *Resolver) live(ctx context.Context, stream, text string) *Result {
	res := &Result{}
	audio, video := rendition.ParseLive(stream, text)
	if video == "" {
		r.logger.Info().Str(log.FieldURL, stream).Msg("live stream has no video variant")
		return res
	}
	art, err := r.pub.PublishLive(ctx, stream, video, audio)
	if err != nil {
		r.logger.Warn().Err(err).Str(log.FieldTrack, manifest.TrackLive).Msg("live track skipped")
		return res
	}
	res.Links = append(res.Links, r.link(manifest.TrackLive, "", art.URL))
	return res
}

// job is one track manifest to publish.
type job struct {
	tier     catalog.ResolutionTier
	kind     rendition.AudioKind
	name     string
	req      manifest.Request
	embedded bool // original-language track carrying the playlist's own subtitle
}

func (r *Resolver) vod(ctx context.Context, stream, text, externalSub string) *Result {
	res := &Result{}
	master, err := rendition.Parse(stream, text)
	if err != nil {
		r.logger.Warn().Err(err).Str(log.FieldURL, stream).Msg("stream manifest unusable")
		return res
	}

	var jobs []job
	for _, tier := range catalog.PlaybackTiers {
		w, h := tier.Dimensions()
		sel, ok := master.Select(w, h)
		if !ok {
			continue
		}
		if sel.AudioDub != "" {
			jobs = append(jobs, job{tier: tier, kind: rendition.AudioDubbed, name: manifest.TrackDubbed,
				req: manifest.Request{TrackLabel: manifest.TrackDubbed, AudioURL: sel.AudioDub, VideoURL: sel.VideoURL}})
		}
		if sel.AudioVoiceover != "" {
			jobs = append(jobs, job{tier: tier, kind: rendition.AudioVoiceover, name: manifest.TrackVoiceover,
				req: manifest.Request{TrackLabel: manifest.TrackVoiceover, AudioURL: sel.AudioVoiceover, VideoURL: sel.VideoURL}})
		}
		if sel.AudioOriginal != "" {
			jobs = append(jobs, job{tier: tier, kind: rendition.AudioOriginal, name: originalLinkName,
				req:      manifest.Request{TrackLabel: manifest.TrackOriginal, AudioURL: sel.AudioOriginal, SubtitleURL: sel.SubtitleURL, VideoURL: sel.VideoURL},
				embedded: sel.SubtitleURL != ""})
		}
	}

	links := make([]*catalog.Link, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for i, j := range jobs {
		g.Go(func() error {
			m := manifest.Synthesize(j.req)
			art, err := r.pub.Publish(gctx, m.Filename, m.Text)
			if err != nil {
				r.logger.Warn().Err(err).Str(log.FieldTrack, j.req.TrackLabel).Str(log.FieldTier, string(j.tier)).Msg("track skipped")
				return nil
			}
			l := r.link(j.name, j.tier, art.URL)
			links[i] = &l
			return nil
		})
	}
	_ = g.Wait()

	needSub := false
	for i, l := range links {
		if l == nil {
			continue
		}
		res.Links = append(res.Links, *l)
		if jobs[i].kind != rendition.AudioOriginal || !jobs[i].embedded {
			needSub = true
		}
	}
	if needSub && externalSub != "" {
		res.Subtitles = append(res.Subtitles, catalog.Subtitle{Lang: subtitleLanguage, URL: externalSub})
	}
	return res
}

func (r *Resolver) link(name string, tier catalog.ResolutionTier, url string) catalog.Link {
	if tier != "" {
		name += "-" + string(tier)
	}
	return catalog.Link{
		Source:  r.source,
		Name:    name,
		URL:     url,
		Type:    catalog.LinkM3U8,
		Referer: r.referer,
		Tier:    string(tier),
	}
}

func vietnameseSubtitleURL(subs []provider.Subtitle) string {
	for _, s := range subs {
		if strings.ToLower(strings.TrimSpace(s.Title)) == vietnameseSubtitle && strings.TrimSpace(s.URI) != "" {
			return s.URI
		}
	}
	return ""
}
