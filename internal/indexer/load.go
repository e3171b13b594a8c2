package indexer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/snapetech/streamresolvr/internal/catalog"
	"github.com/snapetech/streamresolvr/internal/fanout"
	"github.com/snapetech/streamresolvr/internal/log"
	"github.com/snapetech/streamresolvr/internal/provider"
)

// Load resolves a detail URL from an Item into a detail page. Live channels
// resolve to their playback payload; movies get one data URL and series get
// their full episode list. Related items, cast and individual episode pages
// are best-effort.
func (ix *Indexer) Load(ctx context.Context, detailURL string) (*catalog.Detail, error) {
	if provider.IsLiveURL(detailURL) {
		return ix.loadLive(ctx, detailURL)
	}
	content, err := ix.api.Content(ctx, detailURL)
	if err != nil {
		return nil, err
	}
	logger := ix.logger.With().Str(log.FieldItemID, content.ID).Logger()

	var img provider.Images
	if content.Images != nil {
		img = *content.Images
	}
	d := &catalog.Detail{
		Kind:       catalog.KindMovie,
		Title:      content.Title,
		URL:        detailURL,
		PosterURL:  ix.imageURL(firstNonEmpty(img.PosterV4, img.ThumbnailV4)),
		Background: ix.imageURL(img.ThumbnailV4),
		Year:       content.Year(),
		Tags:       tagNames(content.Tags, "genre"),
		Plot:       FormatPlot(content),
	}

	var g errgroup.Group
	g.Go(func() error {
		related, err := ix.api.Related(ctx, content.ID)
		if err != nil {
			logger.Warn().Err(err).Msg("related list unavailable")
			return nil
		}
		d.Related = ix.Items(ctx, related)
		return nil
	})
	g.Go(func() error {
		d.Actors = actors(content.People, ix.imageURL)
		return nil
	})
	if content.EpisodeCount() > 1 {
		d.Kind = catalog.KindSeries
		g.Go(func() error {
			d.Episodes = ix.episodes(ctx, content)
			return nil
		})
	} else {
		d.DataURL = ix.api.ContentDetailURL(content.ID, "")
	}
	_ = g.Wait()
	return d, nil
}

func (ix *Indexer) loadLive(ctx context.Context, detailURL string) (*catalog.Detail, error) {
	play, err := ix.api.Play(ctx, detailURL)
	if err != nil {
		return nil, err
	}
	d := &catalog.Detail{
		Kind:    catalog.KindLive,
		Title:   play.Title,
		URL:     detailURL,
		DataURL: detailURL,
	}
	if play.Images != nil {
		d.PosterURL = ix.imageURL(play.Images.Logo)
	}
	return d, nil
}

func (ix *Indexer) episodes(ctx context.Context, content *provider.Content) []catalog.EpisodeRef {
	var opts []fanout.PageOption
	if ix.pageLimit > 0 {
		opts = append(opts, fanout.WithPageLimit(ix.pageLimit))
	}
	return fanout.CollectPages(ctx, content.CurrentEpisodeCount(), episodePageSize,
		func(ctx context.Context, page int) ([]catalog.EpisodeRef, error) {
			items, err := ix.api.Episodes(ctx, content.ID, page, episodePageSize)
			if err != nil {
				return nil, err
			}
			refs := make([]catalog.EpisodeRef, 0, len(items.Items))
			for _, it := range items.Items {
				refs = append(refs, catalog.EpisodeRef{
					DataURL: ix.api.ContentDetailURL(it.GroupID, it.ID),
					Name:    it.Title,
				})
			}
			return refs, nil
		}, opts...)
}

func actors(p *provider.People, img func(string) string) []catalog.Actor {
	if p == nil {
		return nil
	}
	out := make([]catalog.Actor, 0, len(p.Actor))
	for _, a := range p.Actor {
		actor := catalog.Actor{Name: a.Name}
		if a.Images != nil && a.Images.Avatar != "" {
			actor.Image = img(a.Images.Avatar)
		}
		out = append(out, actor)
	}
	return out
}

func tagNames(tags []provider.Tag, typ string) []string {
	var out []string
	for _, t := range tags {
		if t.Type == typ && t.Name != "" {
			out = append(out, t.Name)
		}
	}
	return out
}

// FormatPlot renders the detail header: year, region, rating, duration and
// genres, one per line, then the long description after a blank line.
func FormatPlot(c *provider.Content) string {
	var lines []string
	if y := c.Year(); y > 0 {
		lines = append(lines, "Năm: "+strconv.Itoa(y))
	}
	if regions := tagNames(c.Tags, "country"); len(regions) > 0 {
		lines = append(lines, "Quốc gia: "+regions[0])
	}
	if r := c.Rating(); r != "" {
		lines = append(lines, "Đánh giá: "+r)
	}
	if m := c.RuntimeMinutes(); m > 0 {
		lines = append(lines, fmt.Sprintf("Thời lượng: %d phút", m))
	}
	if genres := tagNames(c.Tags, "genre"); len(genres) > 0 {
		lines = append(lines, "Thể loại: "+strings.Join(genres, ", "))
	}
	desc := strings.TrimSpace(c.LongDescription)
	if desc == "" {
		desc = strings.TrimSpace(c.ShortDesc)
	}
	if desc != "" {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, desc)
	}
	return strings.Join(lines, "\n")
}
