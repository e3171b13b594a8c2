// Package indexer turns catalog API payloads into display items, home rows
// and detail pages. Per-item and per-page failures shrink the result instead
// of failing the request.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/snapetech/streamresolvr/internal/catalog"
	"github.com/snapetech/streamresolvr/internal/fanout"
	"github.com/snapetech/streamresolvr/internal/log"
	"github.com/snapetech/streamresolvr/internal/provider"
	"github.com/snapetech/streamresolvr/internal/ribbon"
)

const (
	liveSlugMarker  = "truyen-hinh-truc-tuyen"
	channelExcluded = "Vie Channel"
	episodePageSize = provider.ListingLimit
)

var (
	// ErrUnknownCategory is returned by HomePage when the category has no group id.
	ErrUnknownCategory = errors.New("unknown category")
	errNoPoster        = errors.New("item has no artwork")
)

// Options configures an Indexer.
type Options struct {
	ItemConcurrency int    // cap for item projection; default fanout.DefaultItemLimit
	PageConcurrency int    // cap for episode page fetches; <= 0 is uncapped
	ImageBase       string // prefix for relative artwork paths
}

// Indexer builds display data from the provider.
type Indexer struct {
	api       *provider.Client
	groups    *ribbon.Cache
	itemLimit int
	pageLimit int
	imageBase string
	logger    zerolog.Logger
}

// New returns an Indexer.
func New(api *provider.Client, groups *ribbon.Cache, opts Options) *Indexer {
	limit := opts.ItemConcurrency
	if limit <= 0 {
		limit = fanout.DefaultItemLimit
	}
	return &Indexer{
		api:       api,
		groups:    groups,
		itemLimit: limit,
		pageLimit: opts.PageConcurrency,
		imageBase: strings.TrimRight(opts.ImageBase, "/"),
		logger:    log.WithComponent("indexer"),
	}
}

// SplitCategory splits "Name/horizontal" into the ribbon name and orientation.
func SplitCategory(category string) (name string, horizontal bool) {
	name, orient, _ := strings.Cut(category, "/")
	return name, orient == "horizontal"
}

// HomePage resolves a one-based page of a home category ("Name/vertical" or "Name/horizontal").
func (ix *Indexer) HomePage(ctx context.Context, category string, page int) (*catalog.Page, error) {
	if page < 1 {
		page = 1
	}
	name, horizontal := SplitCategory(category)
	groupID, ok := ix.groups.Resolve(ctx, name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	payload, err := ix.api.Ribbon(ctx, groupID, page-1)
	if err != nil {
		return nil, err
	}
	items := ix.Items(ctx, payload)
	ix.logger.Debug().Str(log.FieldCategory, name).Str(log.FieldGroupID, groupID).Int(log.FieldPage, page).Int("items", len(items)).Msg("home page")
	return &catalog.Page{
		Name:       name,
		Horizontal: horizontal,
		Items:      items,
		HasNext:    len(items) > 0,
	}, nil
}

// Search runs a keyword search.
func (ix *Indexer) Search(ctx context.Context, query string) ([]catalog.Item, error) {
	payload, err := ix.api.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return ix.Items(ctx, payload), nil
}

type indexed struct {
	pos  int
	item catalog.Item
}

// Items filters out premium, untitled and channel entries and projects the
// rest concurrently. Entries without usable artwork are dropped. Output keeps
// the payload order.
func (ix *Indexer) Items(ctx context.Context, payload *provider.Items) []catalog.Item {
	if payload == nil {
		return nil
	}
	var work []indexed
	for i, it := range payload.Items {
		if it.Premium() || it.Title == "" || strings.Contains(it.Title, channelExcluded) {
			continue
		}
		work = append(work, indexed{pos: i})
	}
	projected := fanout.MapBounded(ctx, work, ix.itemLimit, func(_ context.Context, w indexed) (indexed, error) {
		item, err := ix.project(payload.Items[w.pos])
		if err != nil {
			return indexed{}, err
		}
		return indexed{pos: w.pos, item: item}, nil
	})
	sort.Slice(projected, func(i, j int) bool { return projected[i].pos < projected[j].pos })
	out := make([]catalog.Item, 0, len(projected))
	for _, p := range projected {
		out = append(out, p.item)
	}
	return out
}

func (ix *Indexer) project(it provider.Item) (catalog.Item, error) {
	var img provider.Images
	if it.Images != nil {
		img = *it.Images
	}
	live := it.SEO != nil && strings.Contains(it.SEO.Slug, liveSlugMarker)
	out := catalog.Item{
		ID:      it.ID,
		Title:   it.Title,
		Premium: it.Premium(),
		Live:    live,
	}
	if live {
		out.PosterURL = firstNonEmpty(img.ThumbnailV4, img.Logo)
		out.URL = ix.api.LiveURL(it.ID)
	} else {
		out.PosterURL = firstNonEmpty(img.PosterV4, img.ThumbnailV4)
		out.URL = ix.api.ContentURL(it.ID)
	}
	if out.PosterURL == "" {
		return catalog.Item{}, fmt.Errorf("%s %q: %w", it.ID, it.Title, errNoPoster)
	}
	out.PosterURL = ix.imageURL(out.PosterURL)
	if it.ResolutionCode() == 4 {
		out.Quality = catalog.Tier4K
	}
	return out, nil
}

func (ix *Indexer) imageURL(u string) string {
	if u == "" || strings.Contains(u, "http") || ix.imageBase == "" {
		return u
	}
	return ix.imageBase + "/" + strings.TrimLeft(u, "/")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
