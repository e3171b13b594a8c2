// Package fanout runs per-request network work concurrently and joins it
// before returning. A failing or panicking item never cancels its siblings;
// it is logged and dropped from the result.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/snapetech/streamresolvr/internal/log"
	"github.com/snapetech/streamresolvr/internal/metrics"
)

var errPanic = errors.New("panic")

// DefaultItemLimit is the item projection cap used by the indexer.
const DefaultItemLimit = 10

// MapBounded applies f to every item with at most limit invocations in flight
// (limit <= 0 means 1). Items whose f returns an error or panics contribute no
// result. It returns once every invocation has finished; output order is not
// tied to input order.
func MapBounded[T, R any](ctx context.Context, items []T, limit int, f func(context.Context, T) (R, error)) []R {
	if len(items) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 1
	}
	metrics.FanoutInflight.Inc()
	defer metrics.FanoutInflight.Dec()

	logger := log.WithComponent("fanout")
	sem := semaphore.NewWeighted(int64(limit))
	var (
		mu  sync.Mutex
		out = make([]R, 0, len(items))
		wg  sync.WaitGroup
	)
	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			logger.Debug().Err(err).Int("remaining", len(items)-i).Msg("fan-out stopped before all items started")
			metrics.FanoutItemsTotal.WithLabelValues("error").Add(float64(len(items) - i))
			break
		}
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer sem.Release(1)
			r, err := safeCall(ctx, item, f)
			if err != nil {
				logger.Warn().Err(err).Int("index", i).Msg("item dropped")
				metrics.FanoutItemsTotal.WithLabelValues(failureLabel(err)).Inc()
				return
			}
			metrics.FanoutItemsTotal.WithLabelValues("ok").Inc()
			mu.Lock()
			out = append(out, r)
			mu.Unlock()
		}(i, item)
	}
	wg.Wait()
	return out
}

type pageConfig struct {
	limit int
}

// PageOption tunes CollectPages.
type PageOption func(*pageConfig)

// WithPageLimit caps concurrent page fetches; n <= 0 leaves fetches uncapped.
func WithPageLimit(n int) PageOption {
	return func(c *pageConfig) { c.limit = n }
}

// PageCount is ceil(totalCount/pageSize), or 0 when either argument is not positive.
func PageCount(totalCount, pageSize int) int {
	if totalCount <= 0 || pageSize <= 0 {
		return 0
	}
	return (totalCount + pageSize - 1) / pageSize
}

// CollectPages fetches pages 0..PageCount(totalCount, pageSize)-1 concurrently
// and flattens them by page index, then in-page order, regardless of the order
// pages complete in. Failed pages are dropped.
func CollectPages[P any](ctx context.Context, totalCount, pageSize int, fetch func(ctx context.Context, page int) ([]P, error), opts ...PageOption) []P {
	n := PageCount(totalCount, pageSize)
	if n == 0 {
		return nil
	}
	var cfg pageConfig
	for _, o := range opts {
		o(&cfg)
	}
	metrics.FanoutInflight.Inc()
	defer metrics.FanoutInflight.Dec()

	logger := log.WithComponent("fanout")
	pages := make([][]P, n)
	var g errgroup.Group
	if cfg.limit > 0 {
		g.SetLimit(cfg.limit)
	}
	for page := 0; page < n; page++ {
		g.Go(func() error {
			items, err := safeCall(ctx, page, fetch)
			if err != nil {
				logger.Warn().Err(err).Int(log.FieldPage, page).Msg("page dropped")
				metrics.FanoutItemsTotal.WithLabelValues(failureLabel(err)).Inc()
				return nil
			}
			metrics.FanoutItemsTotal.WithLabelValues("ok").Inc()
			pages[page] = items
			return nil
		})
	}
	_ = g.Wait()

	var out []P
	for _, items := range pages {
		out = append(out, items...)
	}
	return out
}

func safeCall[T, R any](ctx context.Context, in T, f func(context.Context, T) (R, error)) (r R, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", errPanic, p)
		}
	}()
	return f(ctx, in)
}

// failureLabel is the FanoutItemsTotal result for a dropped item.
func failureLabel(err error) string {
	if errors.Is(err, errPanic) {
		return "panic"
	}
	return "error"
}
