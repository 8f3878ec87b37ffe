package migrate

import (
	"strings"

	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/databank"
)

// Catalogue holds every target widget known to the search, keyed by
// signature in insertion order. It starts with the widgets found in
// resource files and grows with every screen observed.
type Catalogue struct {
	keys    []string
	widgets map[string]core.Widget
}

// NewCatalogue returns an empty catalogue.
func NewCatalogue() *Catalogue {
	return &Catalogue{widgets: make(map[string]core.Widget)}
}

// Seed adds static widgets. Widgets without an activity are never
// reachable and are left out.
func (c *Catalogue) Seed(static []core.Widget) {
	for _, w := range static {
		if w.Activity == "" {
			continue
		}
		w.Static = true
		c.Put(w)
	}
}

// Put stores a widget under its signature. An existing entry keeps its
// position.
func (c *Catalogue) Put(w core.Widget) {
	sig := w.Signature()
	if _, ok := c.widgets[sig]; !ok {
		c.keys = append(c.keys, sig)
	}
	c.widgets[sig] = w
}

// Pop removes and returns the entry stored under a signature.
func (c *Catalogue) Pop(sig string) (core.Widget, bool) {
	w, ok := c.widgets[sig]
	if !ok {
		return core.Widget{}, false
	}
	delete(c.widgets, sig)
	for i, k := range c.keys {
		if k == sig {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
	return w, true
}

// Get returns the entry stored under a signature.
func (c *Catalogue) Get(sig string) (core.Widget, bool) {
	w, ok := c.widgets[sig]
	return w, ok
}

// Len returns the number of entries.
func (c *Catalogue) Len() int { return len(c.keys) }

// Widgets returns the entries in insertion order.
func (c *Catalogue) Widgets() []core.Widget {
	out := make([]core.Widget, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.widgets[k])
	}
	return out
}

// Observe merges the widgets of a live screen. A live widget supersedes
// the static entry it was derived from. When a widget shows the current
// temporary e-mail address, entries that differ from it only in the field
// holding the address and still show an older address are dropped.
func (c *Catalogue) Observe(widgets []core.Widget, tempEmail string) (superseded, purged int) {
	for _, w := range widgets {
		if _, ok := c.Pop(w.StaticSignature()); ok {
			superseded++
		}
		sig := w.Signature()
		if tempEmail != "" && strings.Contains(sig, tempEmail) {
			purged += c.purgeObsoleteEmail(sig, tempEmail)
		}
		c.Put(w)
	}
	return superseded, purged
}

func (c *Catalogue) purgeObsoleteEmail(sig, email string) int {
	i := strings.Index(sig, email)
	pre, post := sig[:i], sig[i+len(email):]
	if j := strings.LastIndex(pre, "!"); j >= 0 {
		pre = pre[:j+1]
	} else {
		pre = ""
	}
	if j := strings.Index(post, "!"); j >= 0 {
		post = post[j:]
	} else {
		post = ""
	}

	var drop []string
	for _, k := range c.keys {
		if k == pre+post || !strings.HasPrefix(k, pre) || !strings.HasSuffix(k, post) {
			continue
		}
		if databank.IsEmail(c.widgets[k].Text) {
			drop = append(drop, k)
		}
	}
	for _, k := range drop {
		c.Pop(k)
	}
	return len(drop)
}
