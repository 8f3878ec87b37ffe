// Package widget extracts widgets from UI hierarchies and scores them
// against a source widget.
package widget

import (
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

// Node is one element of a UI hierarchy dump.
type Node struct {
	Class    string
	Attrs    map[string]string
	Bounds   core.Bounds
	Parent   *Node
	Children []*Node
	Index    int // position among siblings
	Depth    int
}

// charRef matches numeric character references, which UI Automator emits
// for emoji and which are often not valid XML characters.
var charRef = regexp.MustCompile(`&#\d+;`)

// ParseHierarchy parses a UI Automator or Appium page source into a tree.
// Elements are either <node class="..."> or named by their class.
func ParseHierarchy(xmlData string) (*Node, error) {
	decoder := xml.NewDecoder(strings.NewReader(charRef.ReplaceAllString(xmlData, "")))
	decoder.Strict = false

	var parseElement func(parent *Node) (*Node, error)
	parseElement = func(parent *Node) (*Node, error) {
		for {
			token, err := decoder.Token()
			if err != nil {
				return nil, err
			}

			switch t := token.(type) {
			case xml.StartElement:
				elem := &Node{
					Class:  t.Name.Local,
					Attrs:  make(map[string]string, len(t.Attr)),
					Parent: parent,
				}
				if parent != nil {
					elem.Depth = parent.Depth + 1
				}
				for _, attr := range t.Attr {
					elem.Attrs[attr.Name.Local] = attr.Value
					switch attr.Name.Local {
					case "class":
						if f := strings.Fields(attr.Value); len(f) > 0 {
							elem.Class = f[0]
						}
					case "bounds":
						elem.Bounds = parseBounds(attr.Value)
					}
				}

				for {
					child, err := parseElement(elem)
					if err != nil {
						return nil, err
					}
					if child == nil {
						break
					}
					child.Index = len(elem.Children)
					elem.Children = append(elem.Children, child)
				}
				return elem, nil

			case xml.EndElement:
				return nil, nil
			}
		}
	}

	root, err := parseElement(nil)
	if errors.Is(err, io.EOF) && root == nil {
		return nil, errors.New("invalid page source: no root element")
	}
	if err != nil {
		return nil, err
	}
	return root, nil
}

// Attr returns an attribute value. The naf flag is looked up under both
// spellings used by UI Automator.
func (n *Node) Attr(key string) string {
	if v, ok := n.Attrs[key]; ok {
		return v
	}
	if key == core.AttrNAF {
		return n.Attrs["NAF"]
	}
	return ""
}

// HasAttr reports whether the attribute is present.
func (n *Node) HasAttr(key string) bool {
	if _, ok := n.Attrs[key]; ok {
		return true
	}
	if key == core.AttrNAF {
		_, ok := n.Attrs["NAF"]
		return ok
	}
	return false
}

// PrevSibling returns the element just before n under the same parent.
func (n *Node) PrevSibling() *Node {
	if n.Parent == nil || n.Index == 0 {
		return nil
	}
	return n.Parent.Children[n.Index-1]
}

// Walk visits n and its descendants in document order until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// FindAll returns the elements of a class in document order.
func (n *Node) FindAll(class string) []*Node {
	var out []*Node
	n.Walk(func(e *Node) bool {
		if e.Class == class {
			out = append(out, e)
		}
		return true
	})
	return out
}

// parseBounds parses Android bounds string "[x1,y1][x2,y2]" to Bounds.
func parseBounds(s string) core.Bounds {
	s = strings.ReplaceAll(s, "][", ",")
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return core.Bounds{}
	}

	x1, _ := strconv.Atoi(parts[0])
	y1, _ := strconv.Atoi(parts[1])
	x2, _ := strconv.Atoi(parts[2])
	y2, _ := strconv.Atoi(parts[3])

	return core.Bounds{
		X:      x1,
		Y:      y1,
		Width:  x2 - x1,
		Height: y2 - y1,
	}
}

// Signature identifies a screen state by package, activity and the
// breadth-first layout of its hierarchy: index paths of inner nodes and of
// leaves, each joined by '+'.
func Signature(root *Node, pkg, act string) string {
	var layouts, leaves []string
	type item struct {
		node *Node
		idx  string
	}
	queue := []item{{root, "0"}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if len(it.node.Children) == 0 {
			leaves = append(leaves, it.idx)
			continue
		}
		layouts = append(layouts, it.idx)
		for i, c := range it.node.Children {
			queue = append(queue, item{c, it.idx + "-" + strconv.Itoa(i)})
		}
	}
	return strings.Join([]string{pkg, act, strings.Join(layouts, "+"), strings.Join(leaves, "+")}, "!")
}
