// Package atg holds the activity transition graph of a target app.
//
// Nodes are screen-entry points such as
// "com.example.MainActivity: void onCreate(android.os.Bundle)". Edges carry a
// label that names the GUI event causing the transition: either a static
// "GUI (<id>)" label from call-graph analysis or a dynamic "D@..." label
// learned while exploring the live app.
package atg

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/seal-hub/CraftDroid/pkg/logger"
)

// BundleParam is the entry parameter every activity's onCreate accepts.
const BundleParam = "android.os.Bundle"

const entryMarker = ": void onCreate("

// Edge is one labeled transition.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

type nodePair struct {
	from, to string
}

// Graph is a directed multigraph of activity nodes.
//
// A Graph is owned by one migration session and is not safe for concurrent use.
type Graph struct {
	nodes   []string
	nodeSet map[string]bool
	succ    map[string][]string
	labels  map[nodePair][]string

	actToNodes  map[string][]string
	entryNodes  map[string]string
	entryParams []string
	selfLoops   map[string][]string

	log *zap.SugaredLogger
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodeSet:     make(map[string]bool),
		succ:        make(map[string][]string),
		labels:      make(map[nodePair][]string),
		actToNodes:  make(map[string][]string),
		entryNodes:  make(map[string]string),
		entryParams: []string{BundleParam},
		selfLoops:   make(map[string][]string),
		log:         logger.Named("atg"),
	}
}

// ActivityOf returns the activity owning a node: the part before ':' with
// any inner-class suffix removed.
func ActivityOf(node string) string {
	act, _, _ := strings.Cut(node, ":")
	act, _, _ = strings.Cut(act, "$")
	return act
}

// MethodOf returns the handler name of a node, e.g. "onCreate".
func MethodOf(node string) string {
	fields := strings.Fields(node)
	if len(fields) == 0 {
		return ""
	}
	m, _, _ := strings.Cut(fields[len(fields)-1], "(")
	return m
}

func (g *Graph) addNode(n string) {
	if g.nodeSet[n] {
		return
	}
	g.nodeSet[n] = true
	g.nodes = append(g.nodes, n)
}

func (g *Graph) addEdge(from, to, label string) {
	g.addNode(from)
	g.addNode(to)
	p := nodePair{from, to}
	if len(g.labels[p]) == 0 {
		g.succ[from] = append(g.succ[from], to)
	}
	g.labels[p] = append(g.labels[p], label)
}

// group indexes nodes by activity and records entry nodes. It runs once
// after loading.
func (g *Graph) group() {
	for _, n := range g.nodes {
		act := ActivityOf(n)
		g.actToNodes[act] = append(g.actToNodes[act], n)
		if !strings.Contains(n, entryMarker) {
			continue
		}
		g.entryNodes[act] = n
		if _, rest, ok := strings.Cut(n, "("); ok {
			param, _, _ := strings.Cut(rest, ")")
			g.addEntryParam(param)
		}
	}
	for act, nodes := range g.actToNodes {
		sort.SliceStable(nodes, func(i, j int) bool {
			ci, cj := classOf(nodes[i]), classOf(nodes[j])
			if ci != cj {
				return ci < cj
			}
			return len(MethodOf(nodes[i])) < len(MethodOf(nodes[j]))
		})
		g.actToNodes[act] = nodes
	}
}

func classOf(node string) string {
	c, _, _ := strings.Cut(node, ":")
	return c
}

func (g *Graph) addEntryParam(p string) {
	for _, existing := range g.entryParams {
		if existing == p {
			return
		}
	}
	g.entryParams = append(g.entryParams, p)
}

// NumNodes returns the number of nodes.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the number of edges, counting parallel edges.
func (g *Graph) NumEdges() int {
	n := 0
	for _, l := range g.labels {
		n += len(l)
	}
	return n
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// Edges returns every edge in node insertion order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, from := range g.nodes {
		for _, to := range g.succ[from] {
			for _, l := range g.labels[nodePair{from, to}] {
				out = append(out, Edge{From: from, To: to, Label: l})
			}
		}
	}
	return out
}

// Labels returns the labels of the parallel edges from one node to another.
func (g *Graph) Labels(from, to string) []string {
	return append([]string(nil), g.labels[nodePair{from, to}]...)
}

// NodesOf returns an activity's nodes, preferred node first.
func (g *Graph) NodesOf(activity string) []string {
	return append([]string(nil), g.actToNodes[activity]...)
}

// EntryNode returns the onCreate node of an activity.
func (g *Graph) EntryNode(activity string) (string, bool) {
	n, ok := g.entryNodes[activity]
	return n, ok
}

// SelfLoops returns the self-loop labels registered at a node.
func (g *Graph) SelfLoops(node string) []string {
	return append([]string(nil), g.selfLoops[node]...)
}

// NumSelfLoops counts labels across the self-loop registry.
func (g *Graph) NumSelfLoops() int {
	n := 0
	for _, l := range g.selfLoops {
		n += len(l)
	}
	return n
}
