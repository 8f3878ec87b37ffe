package atg

import (
	"io"

	"github.com/emicklei/dot"
)

// Snapshot is the serializable state of a graph, stored in checkpoints.
type Snapshot struct {
	Nodes       []string            `json:"nodes"`
	Edges       []Edge              `json:"edges"`
	ActToNodes  map[string][]string `json:"act_to_nodes"`
	EntryNodes  map[string]string   `json:"entry_nodes"`
	EntryParams []string            `json:"entry_params"`
	SelfLoops   map[string][]string `json:"self_loops,omitempty"`
}

// Snapshot captures the graph, including learned edges and self-loops.
func (g *Graph) Snapshot() Snapshot {
	s := Snapshot{
		Nodes:       g.Nodes(),
		Edges:       g.Edges(),
		ActToNodes:  make(map[string][]string, len(g.actToNodes)),
		EntryNodes:  make(map[string]string, len(g.entryNodes)),
		EntryParams: append([]string(nil), g.entryParams...),
		SelfLoops:   make(map[string][]string, len(g.selfLoops)),
	}
	for k, v := range g.actToNodes {
		s.ActToNodes[k] = append([]string(nil), v...)
	}
	for k, v := range g.entryNodes {
		s.EntryNodes[k] = v
	}
	for k, v := range g.selfLoops {
		s.SelfLoops[k] = append([]string(nil), v...)
	}
	return s
}

// FromSnapshot rebuilds a graph captured by Snapshot.
func FromSnapshot(s Snapshot) *Graph {
	g := New()
	for _, n := range s.Nodes {
		g.addNode(n)
	}
	for _, e := range s.Edges {
		g.addEdge(e.From, e.To, e.Label)
	}
	for k, v := range s.ActToNodes {
		g.actToNodes[k] = append([]string(nil), v...)
	}
	for k, v := range s.EntryNodes {
		g.entryNodes[k] = v
	}
	if len(s.EntryParams) > 0 {
		g.entryParams = append([]string(nil), s.EntryParams...)
	}
	for k, v := range s.SelfLoops {
		g.selfLoops[k] = append([]string(nil), v...)
	}
	return g
}

// WriteDOT writes the graph in DOT format. Node names become labels, so the
// output can be read back with Parse.
func (g *Graph) WriteDOT(w io.Writer) error {
	out := dot.NewGraph(dot.Directed)
	nodes := make(map[string]dot.Node, len(g.nodes))
	for _, n := range g.nodes {
		nodes[n] = out.Node(n)
	}
	for _, e := range g.Edges() {
		out.Edge(nodes[e.From], nodes[e.To], e.Label)
	}
	_, err := io.WriteString(w, out.String())
	return err
}
