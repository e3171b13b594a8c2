package indexer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapetech/streamresolvr/internal/catalog"
	"github.com/snapetech/streamresolvr/internal/provider"
	"github.com/snapetech/streamresolvr/internal/ribbon"
)

const platform = "platform=web&ui=012021"

type fakeAPI struct {
	srv          *httptest.Server
	menuCalls    atomic.Int32
	episodePages atomic.Int32
}

func ribbonItems() string {
	return `{"items":[
	{"id":"m1","title":"Movie One","is_premium":0,"resolution":4,"images":{"poster_v4":"https://img/m1.jpg"}},
	{"id":"p1","title":"Paid","is_premium":1,"images":{"poster_v4":"https://img/p1.jpg"}},
	{"id":"c1","title":"Vie Channel - Giải trí","is_premium":0,"images":{"poster_v4":"https://img/c1.jpg"}},
	{"id":"np","title":"No Art","is_premium":0,"images":{}},
	{"id":"nt","is_premium":0,"images":{"poster_v4":"https://img/nt.jpg"}},
	{"id":"s1","title":"Series One","is_premium":"0","images":{"thumbnail_v4":"/thumb/s1.jpg"}},
	{"id":"l1","title":"VTV1","is_premium":0,"seo":{"slug":"/truyen-hinh-truc-tuyen/vtv1"},"images":{"poster_v4":"https://img/l1-poster.jpg","logo":"https://img/l1-logo.png"}}
	]}`
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/menu", func(w http.ResponseWriter, r *http.Request) {
		f.menuCalls.Add(1)
		fmt.Fprint(w, `[{"id":"root","sub_menu":[{"id":"home"}]}]`)
	})
	mux.HandleFunc("/page_ribbons/home", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"rb-series","name":"Phim Bộ"},{"id":"rb-empty","name":"Trống"}]`)
	})
	mux.HandleFunc("/ribbon/rb-series", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			http.Error(w, "unexpected page", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, ribbonItems())
	})
	mux.HandleFunc("/ribbon/rb-empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[]}`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ribbonItems())
	})
	mux.HandleFunc("/content/series", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"series","title":"Series","episode":65,"current_episode":"65","release_year":2024,
		"tags":[{"type":"genre","name":"Hành Động"},{"type":"country","name":"Hàn Quốc"},{"type":"genre","name":"Tâm Lý"}],
		"images":{"poster_v4":"https://img/series.jpg"},
		"people":{"actor":[{"name":"Lee","images":{"avatar":"https://img/lee.jpg"}},{"name":"Kim"}]}}`)
	})
	mux.HandleFunc("/related/series", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/episode/series", func(w http.ResponseWriter, r *http.Request) {
		f.episodePages.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		assert.Equal(t, "30", r.URL.Query().Get("limit"))
		if page == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var items []string
		for i := page * 30; i < (page+1)*30 && i < 65; i++ {
			items = append(items, fmt.Sprintf(`{"id":"e%d","group_id":"series","title":"Tập %d"}`, i+1, i+1))
		}
		fmt.Fprintf(w, `{"items":[%s]}`, strings.Join(items, ","))
	})
	mux.HandleFunc("/content/movie", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"movie","title":"Movie","episode":1,"images":{"thumbnail_v4":"https://img/movie.jpg"},"long_description":"Plot."}`)
	})
	mux.HandleFunc("/related/movie", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[{"id":"r1","title":"Rel","is_premium":0,"images":{"poster_v4":"https://img/r1.jpg"}}]}`)
	})
	mux.HandleFunc("/livetv/detail/vtv1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"vtv1","title":"VTV1","images":{"logo":"https://img/vtv1.png"},"play_links":{"h264":{"hls":"https://live/vtv1.m3u8"}}}`)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newIndexer(f *fakeAPI) *Indexer {
	api := provider.New(provider.Options{APIBase: f.srv.URL, MenuURL: f.srv.URL + "/menu?" + platform, Platform: platform})
	return New(api, ribbon.New(api), Options{ImageBase: "https://phimimg.com"})
}

func TestItems_FilterAndProject(t *testing.T) {
	f := newFakeAPI(t)
	ix := newIndexer(f)
	base := f.srv.URL

	items, err := ix.Search(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []catalog.Item{
		{ID: "m1", Title: "Movie One", URL: base + "/content/m1?" + platform, PosterURL: "https://img/m1.jpg", Quality: catalog.Tier4K},
		{ID: "s1", Title: "Series One", URL: base + "/content/s1?" + platform, PosterURL: "https://phimimg.com/thumb/s1.jpg"},
		{ID: "l1", Title: "VTV1", URL: base + "/livetv/detail/l1?" + platform, PosterURL: "https://img/l1-logo.png", Live: true},
	}, items)
}

func TestItems_PartialFailureIsolation(t *testing.T) {
	f := newFakeAPI(t)
	ix := newIndexer(f)
	payload := &provider.Items{}
	for i := 1; i <= 5; i++ {
		it := provider.Item{ID: fmt.Sprintf("i%d", i), Title: fmt.Sprintf("Item %d", i), IsPremium: float64(0)}
		if i != 3 {
			it.Images = &provider.Images{PosterV4: fmt.Sprintf("https://img/%d.jpg", i)}
		}
		payload.Items = append(payload.Items, it)
	}
	items := ix.Items(context.Background(), payload)
	require.Len(t, items, 4)
	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"i1", "i2", "i4", "i5"}, ids)
}

func TestItems_DropsUntitled(t *testing.T) {
	f := newFakeAPI(t)
	ix := newIndexer(f)
	payload := &provider.Items{Items: []provider.Item{
		{ID: "a", Title: "Has Title", IsPremium: float64(0), Images: &provider.Images{PosterV4: "https://img/a.jpg"}},
		{ID: "b", IsPremium: float64(0), Images: &provider.Images{PosterV4: "https://img/b.jpg"}},
	}}
	items := ix.Items(context.Background(), payload)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID)
}

func TestHomePage(t *testing.T) {
	f := newFakeAPI(t)
	ix := newIndexer(f)
	ctx := context.Background()

	page, err := ix.HomePage(ctx, "Phim Bộ/horizontal", 2)
	require.NoError(t, err)
	assert.Equal(t, "Phim Bộ", page.Name)
	assert.True(t, page.Horizontal)
	assert.True(t, page.HasNext)
	assert.Len(t, page.Items, 3)

	empty, err := ix.HomePage(ctx, "Trống/vertical", 1)
	require.NoError(t, err)
	assert.False(t, empty.Horizontal)
	assert.False(t, empty.HasNext)

	_, err = ix.HomePage(ctx, "Không Có/vertical", 1)
	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.EqualValues(t, 1, f.menuCalls.Load())
}

func TestLoad_SeriesDegradesGracefully(t *testing.T) {
	f := newFakeAPI(t)
	ix := newIndexer(f)
	d, err := ix.Load(context.Background(), f.srv.URL+"/content/series?"+platform)
	require.NoError(t, err)

	assert.Equal(t, catalog.KindSeries, d.Kind)
	assert.EqualValues(t, 3, f.episodePages.Load())
	require.Len(t, d.Episodes, 35, "page 1 is dead, pages 0 and 2 survive")
	assert.Equal(t, "Tập 1", d.Episodes[0].Name)
	assert.Equal(t, "Tập 30", d.Episodes[29].Name)
	assert.Equal(t, "Tập 61", d.Episodes[30].Name)
	assert.Equal(t, f.srv.URL+"/content_detail/series?eps_id=e1&"+platform, d.Episodes[0].DataURL)
	assert.Empty(t, d.Related)
	assert.Empty(t, d.DataURL)
	assert.Equal(t, []catalog.Actor{{Name: "Lee", Image: "https://img/lee.jpg"}, {Name: "Kim"}}, d.Actors)
	assert.Equal(t, []string{"Hành Động", "Tâm Lý"}, d.Tags)
	assert.Equal(t, "Năm: 2024\nQuốc gia: Hàn Quốc\nThể loại: Hành Động, Tâm Lý", d.Plot)
}

func TestLoad_Movie(t *testing.T) {
	f := newFakeAPI(t)
	ix := newIndexer(f)
	d, err := ix.Load(context.Background(), f.srv.URL+"/content/movie?"+platform)
	require.NoError(t, err)
	assert.Equal(t, catalog.KindMovie, d.Kind)
	assert.Equal(t, f.srv.URL+"/content_detail/movie?eps_id=&"+platform, d.DataURL)
	assert.Equal(t, "https://img/movie.jpg", d.PosterURL)
	require.Len(t, d.Related, 1)
	assert.Empty(t, d.Episodes)
	assert.Equal(t, "Plot.", d.Plot)
}

func TestLoad_Live(t *testing.T) {
	f := newFakeAPI(t)
	ix := newIndexer(f)
	u := f.srv.URL + "/livetv/detail/vtv1?" + platform
	d, err := ix.Load(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, catalog.KindLive, d.Kind)
	assert.Equal(t, u, d.DataURL)
	assert.Equal(t, "https://img/vtv1.png", d.PosterURL)
}

func TestLoad_NotFound(t *testing.T) {
	f := newFakeAPI(t)
	ix := newIndexer(f)
	_, err := ix.Load(context.Background(), f.srv.URL+"/content/missing?"+platform)
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestSplitCategory(t *testing.T) {
	name, h := SplitCategory("Phim Lẻ/vertical")
	assert.Equal(t, "Phim Lẻ", name)
	assert.False(t, h)
	name, h = SplitCategory("Anime/horizontal")
	assert.Equal(t, "Anime", name)
	assert.True(t, h)
	name, h = SplitCategory("Bare")
	assert.Equal(t, "Bare", name)
	assert.False(t, h)
}
