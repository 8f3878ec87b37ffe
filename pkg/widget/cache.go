package widget

import (
	"time"

	"github.com/google/uuid"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

// ScreenCache remembers the widgets seen on each screen state, keyed by
// the screen's structural signature. One cache belongs to one migration
// session; entries are never evicted.
type ScreenCache struct {
	session string
	now     func() time.Time
	states  map[string]*screenState
	hits    int
	misses  int
	updated time.Time
}

type screenState struct {
	widgets []core.Widget
}

// CacheOption configures a ScreenCache.
type CacheOption func(*ScreenCache)

// WithClock sets the clock used to stamp entries.
func WithClock(now func() time.Time) CacheOption {
	return func(c *ScreenCache) { c.now = now }
}

// WithSession sets the session id instead of a random one.
func WithSession(id string) CacheOption {
	return func(c *ScreenCache) { c.session = id }
}

// NewScreenCache returns an empty cache for a new session.
func NewScreenCache(opts ...CacheOption) *ScreenCache {
	c := &ScreenCache{
		session: uuid.NewString(),
		now:     time.Now,
		states:  make(map[string]*screenState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the id of the session owning the cache.
func (c *ScreenCache) Session() string { return c.session }

// FindAll returns the widgets on a screen. Screens outside the target app
// yield nothing. With refresh unset, a previously seen screen state is
// served from the cache; the key ignores text, so callers that need the
// text currently shown must refresh.
func (c *ScreenCache) FindAll(screen core.Screen, targetPkg string, refresh bool) ([]core.Widget, error) {
	if OutOfScope(screen.Package, screen.Activity, targetPkg) {
		return nil, nil
	}
	root, err := ParseHierarchy(screen.Source)
	if err != nil {
		return nil, err
	}
	sig := Signature(root, screen.Package, screen.Activity)
	if st, ok := c.states[sig]; ok && !refresh && len(st.widgets) > 0 {
		c.hits++
		return st.widgets, nil
	}
	c.misses++

	widgets := Extract(root)
	for i := range widgets {
		widgets[i].Package, widgets[i].Activity = screen.Package, screen.Activity
	}
	c.updated = c.now()
	if st, ok := c.states[sig]; ok {
		st.widgets = widgets
		return widgets, nil
	}
	c.states[sig] = &screenState{widgets: widgets}
	return widgets, nil
}

// CacheStats summarizes cache use.
type CacheStats struct {
	Session string    `json:"session"`
	Screens int       `json:"screens"`
	Hits    int       `json:"hits"`
	Misses  int       `json:"misses"`
	Updated time.Time `json:"updated"` // last extraction
}

// Stats returns counters for reports.
func (c *ScreenCache) Stats() CacheStats {
	return CacheStats{Session: c.session, Screens: len(c.states), Hits: c.hits, Misses: c.misses, Updated: c.updated}
}
