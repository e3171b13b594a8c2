package fanout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/snapetech/streamresolvr/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMapBounded_NeverExceedsLimit(t *testing.T) {
	for _, tc := range []struct{ items, limit int }{{1, 1}, {5, 1}, {50, 3}, {100, 10}, {7, 20}} {
		t.Run(fmt.Sprintf("%d_items_limit_%d", tc.items, tc.limit), func(t *testing.T) {
			var inflight, peak atomic.Int32
			items := make([]int, tc.items)
			for i := range items {
				items[i] = i
			}
			out := MapBounded(context.Background(), items, tc.limit, func(_ context.Context, n int) (int, error) {
				cur := inflight.Add(1)
				for {
					p := peak.Load()
					if cur <= p || peak.CompareAndSwap(p, cur) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inflight.Add(-1)
				return n * 2, nil
			})
			assert.Len(t, out, tc.items)
			assert.LessOrEqual(t, int(peak.Load()), tc.limit)
		})
	}
}

func TestMapBounded_PartialFailureIsolation(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	out := MapBounded(context.Background(), items, DefaultItemLimit, func(_ context.Context, n int) (string, error) {
		if n == 3 {
			return "", errors.New("item 3 broke")
		}
		return fmt.Sprintf("item-%d", n), nil
	})
	sort.Strings(out)
	assert.Equal(t, []string{"item-1", "item-2", "item-4", "item-5"}, out)
}

func TestMapBounded_countsEachItemOnce(t *testing.T) {
	count := func(result string) float64 {
		return testutil.ToFloat64(metrics.FanoutItemsTotal.WithLabelValues(result))
	}
	ok, failed, panicked := count("ok"), count("error"), count("panic")

	MapBounded(context.Background(), []int{1, 2, 3, 4, 5}, 2, func(_ context.Context, n int) (int, error) {
		switch n {
		case 2:
			return 0, errors.New("bad item")
		case 4:
			panic("boom")
		}
		return n, nil
	})
	assert.Equal(t, ok+3, count("ok"))
	assert.Equal(t, failed+1, count("error"))
	assert.Equal(t, panicked+1, count("panic"))

	ok, failed, panicked = count("ok"), count("error"), count("panic")
	CollectPages(context.Background(), 3, 1, func(_ context.Context, page int) ([]int, error) {
		if page == 1 {
			panic("page exploded")
		}
		return []int{page}, nil
	})
	assert.Equal(t, ok+2, count("ok"))
	assert.Equal(t, failed, count("error"))
	assert.Equal(t, panicked+1, count("panic"))
}

func TestMapBounded_PanicIsIsolated(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	out := MapBounded(context.Background(), items, 2, func(_ context.Context, n int) (int, error) {
		if n == 3 {
			panic("boom")
		}
		return n, nil
	})
	sort.Ints(out)
	assert.Equal(t, []int{1, 2, 4, 5}, out)
}

func TestMapBounded_ZeroLimitRunsSerially(t *testing.T) {
	var inflight, peak atomic.Int32
	out := MapBounded(context.Background(), []int{1, 2, 3}, 0, func(_ context.Context, n int) (int, error) {
		cur := inflight.Add(1)
		if cur > peak.Load() {
			peak.Store(cur)
		}
		time.Sleep(time.Millisecond)
		inflight.Add(-1)
		return n, nil
	})
	assert.Len(t, out, 3)
	assert.EqualValues(t, 1, peak.Load())
}

func TestMapBounded_Empty(t *testing.T) {
	out := MapBounded(context.Background(), []int(nil), 4, func(context.Context, int) (int, error) {
		t.Fatal("f must not be called")
		return 0, nil
	})
	assert.Empty(t, out)
}

func TestPageCount(t *testing.T) {
	tests := []struct{ total, size, want int }{
		{65, 30, 3},
		{60, 30, 2},
		{1, 30, 1},
		{0, 30, 0},
		{-4, 30, 0},
		{10, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PageCount(tt.total, tt.size), "%d/%d", tt.total, tt.size)
	}
}

// pageItems builds the items the fake endpoint returns for a page of a 65-item listing.
func pageItems(page, size, total int) []string {
	var out []string
	for i := page * size; i < (page+1)*size && i < total; i++ {
		out = append(out, fmt.Sprintf("ep-%02d", i))
	}
	return out
}

func TestCollectPages_OrderIndependentOfCompletion(t *testing.T) {
	const total, size = 65, 30
	var calls atomic.Int32
	page2Done := make(chan struct{})

	outOfOrder := CollectPages(context.Background(), total, size, func(_ context.Context, page int) ([]string, error) {
		calls.Add(1)
		if page == 2 {
			defer close(page2Done)
		} else {
			<-page2Done
		}
		return pageItems(page, size, total), nil
	})

	inOrder := CollectPages(context.Background(), total, size, func(_ context.Context, page int) ([]string, error) {
		return pageItems(page, size, total), nil
	}, WithPageLimit(1))

	assert.EqualValues(t, 3, calls.Load())
	require.Len(t, outOfOrder, total)
	assert.Equal(t, inOrder, outOfOrder)
	assert.Equal(t, "ep-00", outOfOrder[0])
	assert.Equal(t, "ep-29", outOfOrder[29])
	assert.Equal(t, "ep-60", outOfOrder[60])
}

func TestCollectPages_DropsFailedPages(t *testing.T) {
	out := CollectPages(context.Background(), 9, 3, func(_ context.Context, page int) ([]int, error) {
		switch page {
		case 1:
			return nil, errors.New("page 1 down")
		case 2:
			panic("page 2 exploded")
		}
		return []int{page*3 + 0, page*3 + 1, page*3 + 2}, nil
	})
	assert.Equal(t, []int{0, 1, 2}, out)
}

func TestCollectPages_NilPageSkipped(t *testing.T) {
	out := CollectPages(context.Background(), 4, 2, func(_ context.Context, page int) ([]int, error) {
		if page == 0 {
			return nil, nil
		}
		return []int{7, 8}, nil
	})
	assert.Equal(t, []int{7, 8}, out)
}

func TestCollectPages_NoFetchForEmptyCollection(t *testing.T) {
	for _, tc := range []struct{ total, size int }{{0, 30}, {30, 0}, {-1, -1}} {
		out := CollectPages(context.Background(), tc.total, tc.size, func(context.Context, int) ([]int, error) {
			t.Fatal("fetch must not be called")
			return nil, nil
		})
		assert.Empty(t, out)
	}
}

func TestCollectPages_PageLimit(t *testing.T) {
	var inflight, peak atomic.Int32
	out := CollectPages(context.Background(), 200, 10, func(_ context.Context, page int) ([]int, error) {
		cur := inflight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inflight.Add(-1)
		return []int{page}, nil
	}, WithPageLimit(4))
	assert.Len(t, out, 20)
	assert.LessOrEqual(t, int(peak.Load()), 4)
	for i, v := range out {
		assert.Equal(t, i, v)
	}
}
