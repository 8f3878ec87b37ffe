package atg

import (
	"strings"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

// DynamicPrefix starts every label learned from the live app.
const DynamicPrefix = "D@"

// Handler names used in event descriptors.
const (
	HandlerClick         = "onClick"
	HandlerLongClick     = "onLongClick"
	HandlerItemLongClick = "onItemLongClick"
)

// labelKeys is the fixed order of widget features in a dynamic label.
var labelKeys = []string{
	core.AttrClass, core.AttrResourceID, core.AttrText, core.AttrContentDesc, core.AttrNAF,
}

// DynamicLabel serializes a stepping widget into a dynamic edge label, e.g.
// "D@class=android.widget.Button&resource-id=save&text=Save&content-desc=&naf= (onClick)".
func DynamicLabel(w core.Widget, verb string) string {
	pairs := make([]string, len(labelKeys))
	for i, k := range labelKeys {
		pairs[i] = k + "=" + w.Get(k)
	}
	handler := HandlerClick
	if verb == core.VerbLongPress {
		handler = HandlerLongClick
	}
	return DynamicPrefix + strings.Join(pairs, "&") + " (" + handler + ")"
}

// Hop is a parsed event descriptor.
type Hop struct {
	// Criteria holds the widget features of a dynamic hop.
	Criteria map[string]string
	// OID is the static widget id of a static hop, e.g. "2131296593".
	OID     string
	Handler string
}

// Dynamic reports whether the hop was learned from the live app.
func (h Hop) Dynamic() bool { return h.Criteria != nil }

// Verb returns the action that fires the hop.
func (h Hop) Verb() string {
	if h.Handler == HandlerLongClick || h.Handler == HandlerItemLongClick {
		return core.VerbLongPress
	}
	return core.VerbClick
}

// IsEvent reports whether a path element is a descriptor rather than an
// activity.
func IsEvent(hop string) bool {
	return strings.Contains(hop, "(")
}

// ParseHop splits a descriptor into its widget part and handler.
func ParseHop(hop string) (Hop, bool) {
	if !IsEvent(hop) || !strings.HasSuffix(hop, ")") {
		return Hop{}, false
	}
	i := strings.LastIndex(hop, " (")
	if i < 0 {
		return Hop{}, false
	}
	body, handler := hop[:i], hop[i+2:len(hop)-1]
	if !strings.HasPrefix(body, DynamicPrefix) {
		return Hop{OID: strings.TrimSpace(body), Handler: handler}, true
	}
	return Hop{Criteria: parseCriteria(body[len(DynamicPrefix):]), Handler: handler}, true
}

// parseCriteria splits key=value pairs on '&'. A fragment that does not
// start with a known key belongs to the previous value.
func parseCriteria(s string) map[string]string {
	crit := make(map[string]string)
	last := ""
	for _, frag := range strings.Split(s, "&") {
		if k, v, ok := strings.Cut(frag, "="); ok && isLabelKey(k) {
			crit[k] = v
			last = k
			continue
		}
		if last != "" {
			crit[last] += "&" + frag
		}
	}
	return crit
}

func isLabelKey(k string) bool {
	for _, lk := range labelKeys {
		if lk == k {
			return true
		}
	}
	return false
}

// IsHostileOnly reports whether a dynamic descriptor names a widget that
// has a class and the naf flag but nothing else to identify it by.
func IsHostileOnly(hop string) bool {
	if !strings.HasPrefix(hop, DynamicPrefix) {
		return false
	}
	h, ok := ParseHop(hop)
	if !ok {
		return false
	}
	if h.Criteria[core.AttrClass] == "" || h.Criteria[core.AttrNAF] == "" {
		return false
	}
	for k, v := range h.Criteria {
		if k != core.AttrClass && k != core.AttrNAF && v != "" {
			return false
		}
	}
	return true
}

// AddEdge records a transition observed while actuating a stepping widget.
// from and to are screen keys (package + activity). Adding the same
// transition twice has no effect.
func (g *Graph) AddEdge(from, to string, stepping core.Event) {
	nFrom := g.entryNode(from)
	nTo := g.entryNode(to)
	label := DynamicLabel(stepping.Widget, stepping.Action.Verb)

	if nFrom != nTo {
		for _, l := range g.labels[nodePair{nFrom, nTo}] {
			if l == label {
				return
			}
		}
		g.log.Infow("Adding edge", "from", nFrom, "to", nTo, "label", label)
		g.addEdge(nFrom, nTo, label)
		g.updateActToNodes(nFrom)
		g.updateActToNodes(nTo)
		return
	}

	for _, l := range g.selfLoops[nFrom] {
		if l == label {
			return
		}
	}
	g.log.Infow("Adding self-loop", "node", nFrom, "label", label)
	g.selfLoops[nFrom] = append(g.selfLoops[nFrom], label)
	g.addEdge(nFrom, nFrom, label)
	g.updateActToNodes(nFrom)
}

func (g *Graph) entryNode(act string) string {
	if n, ok := g.entryNodes[act]; ok {
		return n
	}
	n := act + entryMarker + g.entryParams[0] + ")"
	g.entryNodes[act] = n
	return n
}

func (g *Graph) updateActToNodes(node string) {
	act := ActivityOf(node)
	nodes, ok := g.actToNodes[act]
	if !ok {
		g.actToNodes[act] = []string{node}
		return
	}
	for _, n := range nodes {
		if n == node {
			return
		}
	}
	g.actToNodes[act] = append([]string{node}, nodes...)
}
