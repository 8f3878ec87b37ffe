package atg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/graph/formats/dot"
	"gonum.org/v1/gonum/graph/formats/dot/ast"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

// GraphFile is the call-graph location inside a static-info directory.
const GraphFile = "atm/atm.gv"

// NullLabel marks a transition without a GUI trigger. Such edges are dropped.
const NullLabel = "GUI (NULL)"

// Load reads <dir>/atm/atm.gv. A missing file yields an empty graph.
func Load(dir string) (*Graph, error) {
	path := filepath.Join(dir, GraphFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		g := New()
		g.log.Warnw("No call graph, starting empty", "path", path)
		return g, nil
	}
	if err != nil {
		return nil, core.ErrGraphAbsent.WithCause(err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	g.log.Infow("Loaded call graph", "path", path, "nodes", g.NumNodes(), "edges", g.NumEdges())
	return g, nil
}

// Parse builds a graph from DOT source. Nodes carrying a label attribute
// are named by it.
func Parse(src []byte) (*Graph, error) {
	f, err := dot.ParseBytes(src)
	if err != nil {
		return nil, err
	}
	g := New()
	if len(f.Graphs) == 0 {
		return g, nil
	}
	ag := f.Graphs[0]

	names := make(map[string]string)
	collectNames(ag.Stmts, names)
	name := func(id string) string {
		id = unquote(id)
		if n, ok := names[id]; ok {
			return n
		}
		return id
	}

	var walk func(stmts []ast.Stmt)
	walk = func(stmts []ast.Stmt) {
		for _, s := range stmts {
			switch s := s.(type) {
			case *ast.NodeStmt:
				g.addNode(name(s.Node.ID))
			case *ast.EdgeStmt:
				label := unquote(attr(s.Attrs, "label"))
				from := vertexIDs(s.From)
				for e := s.To; e != nil; e = e.To {
					to := vertexIDs(e.Vertex)
					for _, u := range from {
						for _, v := range to {
							if label == NullLabel {
								g.addNode(name(u))
								g.addNode(name(v))
								continue
							}
							g.addEdge(name(u), name(v), label)
						}
					}
					from = to
				}
			case *ast.Subgraph:
				walk(s.Stmts)
			}
		}
	}
	walk(ag.Stmts)
	g.group()
	return g, nil
}

func collectNames(stmts []ast.Stmt, names map[string]string) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *ast.NodeStmt:
			if l := attr(s.Attrs, "label"); l != "" {
				names[unquote(s.Node.ID)] = unquote(l)
			}
		case *ast.Subgraph:
			collectNames(s.Stmts, names)
		}
	}
}

func vertexIDs(v ast.Vertex) []string {
	switch v := v.(type) {
	case *ast.Node:
		return []string{v.ID}
	case *ast.Subgraph:
		var ids []string
		for _, s := range v.Stmts {
			if n, ok := s.(*ast.NodeStmt); ok {
				ids = append(ids, n.Node.ID)
			}
		}
		return ids
	}
	return nil
}

func attr(attrs []*ast.Attr, key string) string {
	for _, a := range attrs {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func unquote(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	return strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
}
