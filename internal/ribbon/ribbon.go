// Package ribbon resolves category names to provider group (ribbon) ids.
//
// The name -> id mapping is discovered from the provider's menu tree at most
// once per successful attempt and then served lock-free until Invalidate.
package ribbon

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/snapetech/streamresolvr/internal/catalog"
	"github.com/snapetech/streamresolvr/internal/log"
	"github.com/snapetech/streamresolvr/internal/metrics"
)

var (
	ErrEmptyMenu    = errors.New("menu tree is empty")
	ErrEmptySubMenu = errors.New("first menu has no sub-menu")
)

// Discoverer is the remote source of the menu tree and group listings.
type Discoverer interface {
	Menu(ctx context.Context) ([]catalog.Menu, error)
	Ribbons(ctx context.Context, menuID string) ([]catalog.CategoryGroup, error)
}

// Cache is the process-scoped category resolution cache. The zero value is not
// usable; construct with New.
type Cache struct {
	src    Discoverer
	logger zerolog.Logger

	mu       sync.Mutex
	failures atomic.Uint64 // completed failed discovery attempts
	groups   atomic.Pointer[map[string]string]
}

// New returns an empty cache backed by src.
func New(src Discoverer) *Cache {
	return &Cache{src: src, logger: log.WithComponent("ribbon")}
}

// Resolve returns the group id for name, running discovery first if the
// mapping is not loaded. Callers that waited on a discovery attempt that
// failed get not-found; the next call starts a new attempt.
func (c *Cache) Resolve(ctx context.Context, name string) (string, bool) {
	m, ok := c.load(ctx)
	if !ok {
		return "", false
	}
	id, ok := m[name]
	return id, ok
}

// Groups returns the discovered mapping sorted by name, or nil when discovery failed.
func (c *Cache) Groups(ctx context.Context) []catalog.CategoryGroup {
	m, ok := c.load(ctx)
	if !ok {
		return nil
	}
	out := make([]catalog.CategoryGroup, 0, len(m))
	for name, id := range m {
		out = append(out, catalog.CategoryGroup{Name: name, GroupID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Loaded reports whether a mapping is currently cached.
func (c *Cache) Loaded() bool {
	return c.groups.Load() != nil
}

// Invalidate drops the cached mapping; the next lookup rediscovers it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.groups.Store(nil)
	c.mu.Unlock()
	c.logger.Info().Msg("category groups invalidated")
}

func (c *Cache) load(ctx context.Context) (map[string]string, bool) {
	if m := c.groups.Load(); m != nil {
		return *m, true
	}
	seen := c.failures.Load()

	c.mu.Lock()
	defer c.mu.Unlock()
	if m := c.groups.Load(); m != nil {
		return *m, true
	}
	if c.failures.Load() != seen {
		// An attempt failed while this caller waited.
		return nil, false
	}

	m, err := c.discover(ctx)
	if err != nil {
		c.failures.Add(1)
		metrics.DiscoveryTotal.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Msg("category discovery failed")
		return nil, false
	}
	metrics.DiscoveryTotal.WithLabelValues("ok").Inc()
	c.groups.Store(&m)
	c.logger.Info().Int("groups", len(m)).Msg("category groups discovered")
	return m, true
}

func (c *Cache) discover(ctx context.Context) (map[string]string, error) {
	menus, err := c.src.Menu(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch menu: %w", err)
	}
	if len(menus) == 0 {
		return nil, ErrEmptyMenu
	}
	if len(menus[0].SubMenu) == 0 || menus[0].SubMenu[0].ID == "" {
		return nil, ErrEmptySubMenu
	}
	menuID := menus[0].SubMenu[0].ID
	groups, err := c.src.Ribbons(ctx, menuID)
	if err != nil {
		return nil, fmt.Errorf("fetch groups for menu %s: %w", menuID, err)
	}
	m := make(map[string]string, len(groups))
	for _, g := range groups {
		m[g.Name] = g.GroupID
	}
	return m, nil
}
