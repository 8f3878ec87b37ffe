package atg

import (
	"regexp"
	"strings"
)

var staticLabel = regexp.MustCompile(`GUI ?\((.+)\)`)

// Path alternates activities and GUI-event descriptors:
// [activity, descriptor, activity, ..., activity].
type Path []string

// Key is the content key used to deduplicate paths.
func (p Path) Key() string { return strings.Join(p, "") }

// Events returns the descriptors of the path, in order.
func (p Path) Events() []string {
	var out []string
	for _, h := range p {
		if IsEvent(h) {
			out = append(out, h)
		}
	}
	return out
}

// HasPrefix reports whether q is a prefix of p.
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	for i := range q {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

func (p Path) insert(i int, hop string) Path {
	out := make(Path, 0, len(p)+1)
	out = append(out, p[:i]...)
	out = append(out, hop)
	return append(out, p[i:]...)
}

type pathSet struct {
	seen  map[string]bool
	paths []Path
}

func newPathSet() *pathSet { return &pathSet{seen: make(map[string]bool)} }

func (s *pathSet) add(p Path) bool {
	k := p.Key()
	if s.seen[k] {
		return false
	}
	s.seen[k] = true
	s.paths = append(s.paths, p)
	return true
}

// PathsBetweenActivities returns the distinct paths from any node of one
// activity to any node of another. Paths through hostile-only widgets are
// dropped unless includeHostile is set. Unknown activities yield no paths.
func (g *Graph) PathsBetweenActivities(from, to string, includeHostile bool) []Path {
	all := newPathSet()
	for _, nFrom := range g.actToNodes[from] {
		for _, nTo := range g.actToNodes[to] {
			for _, p := range g.PathsBetweenNodes(nFrom, nTo, includeHostile) {
				all.add(p)
			}
		}
	}
	return all.paths
}

// PathsBetweenNodes enumerates the simple paths between two nodes, each
// turned into an activity/descriptor chain. Every accepted chain also
// yields variants that repeat a registered self-loop at the destination or
// at the activity before it. For n1 == n2 the self-loops of n1 are
// returned as [activity, label, activity].
func (g *Graph) PathsBetweenNodes(n1, n2 string, includeHostile bool) []Path {
	set := newPathSet()
	if n1 != n2 {
		g.simplePaths(n1, n2, func(hops []string) {
			var p Path
			for i := 0; i < len(hops)-1; i++ {
				if d, ok := g.descriptor(hops[i], hops[i+1]); ok {
					p = append(p, ActivityOf(hops[i]), d)
				}
			}
			p = append(p, ActivityOf(n2))
			if len(p) <= 2 || !set.add(p) {
				return
			}
			last := len(p) - 1
			for _, lbl := range g.selfLoops[n2] {
				if lbl != p[last-1] {
					set.add(p.insert(last, lbl))
				}
			}
			if ActivityOf(p[last]) != ActivityOf(p[last-2]) {
				for _, node := range g.actToNodes[p[last-2]] {
					for _, lbl := range g.selfLoops[node] {
						if lbl != p[last-1] {
							set.add(p.insert(last-1, lbl))
						}
					}
				}
			}
		})
	} else {
		act := ActivityOf(n1)
		for _, lbl := range g.selfLoops[n1] {
			set.add(Path{act, lbl, act})
		}
	}
	if includeHostile {
		return set.paths
	}
	kept := set.paths[:0]
	for _, p := range set.paths {
		if !p.throughHostile() {
			kept = append(kept, p)
		}
	}
	return kept
}

func (p Path) throughHostile() bool {
	for _, h := range p {
		if IsHostileOnly(h) {
			return true
		}
	}
	return false
}

// descriptor returns the first parallel edge label between u and v that
// names a GUI event.
func (g *Graph) descriptor(u, v string) (string, bool) {
	for _, l := range g.labels[nodePair{u, v}] {
		if m := staticLabel.FindStringSubmatch(l); m != nil && m[1] != "NULL" {
			return m[1] + " (" + MethodOf(v) + ")", true
		}
		if strings.HasPrefix(l, DynamicPrefix) {
			return l, true
		}
	}
	return "", false
}

func (g *Graph) simplePaths(src, dst string, visit func(hops []string)) {
	if !g.nodeSet[src] || !g.nodeSet[dst] {
		return
	}
	onPath := map[string]bool{src: true}
	hops := []string{src}
	var dfs func(u string)
	dfs = func(u string) {
		for _, v := range g.succ[u] {
			if onPath[v] {
				continue
			}
			if v == dst {
				visit(append(hops[:len(hops):len(hops)], v))
				continue
			}
			onPath[v] = true
			hops = append(hops, v)
			dfs(v)
			hops = hops[:len(hops)-1]
			onPath[v] = false
		}
	}
	dfs(src)
}
